package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/stakevault-io/staking-vault/internal/db/model"
)

// InitVault inserts the singleton vault document. A second initialization
// fails with a DuplicateKeyError.
func (db *Database) InitVault(ctx context.Context, vaultDoc *model.VaultDocument) error {
	_, err := db.collection(model.VaultCollection).InsertOne(ctx, vaultDoc)
	if err != nil {
		var writeErr mongo.WriteException
		if errors.As(err, &writeErr) {
			for _, e := range writeErr.WriteErrors {
				if mongo.IsDuplicateKeyError(e) {
					return &DuplicateKeyError{
						Key:     vaultDoc.ID,
						Message: "vault already initialized",
					}
				}
			}
		}
		return err
	}
	return nil
}

func (db *Database) GetVault(ctx context.Context) (*model.VaultDocument, error) {
	filter := bson.M{"_id": model.VaultDocumentID}

	res := db.collection(model.VaultCollection).FindOne(ctx, filter)

	var vaultDoc model.VaultDocument
	if err := res.Decode(&vaultDoc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     model.VaultDocumentID,
				Message: "vault not initialized",
			}
		}
		return nil, err
	}

	return &vaultDoc, nil
}

// CreditVault atomically adjusts the vault counters. Deltas may be
// negative; callers are responsible for never driving a balance below
// zero on this path (conditional debits go through DebitVaultForPayout
// and WithdrawVaultSurplus).
func (db *Database) CreditVault(ctx context.Context, stakedDelta, custodyDelta int64) error {
	filter := bson.M{"_id": model.VaultDocumentID}
	update := bson.M{
		"$inc": bson.M{
			"total_staked":    stakedDelta,
			"custody_balance": custodyDelta,
		},
		"$set": bson.M{"updated_at": time.Now().Unix()},
	}

	res, err := db.collection(model.VaultCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &NotFoundError{
			Key:     model.VaultDocumentID,
			Message: "vault not initialized",
		}
	}
	return nil
}

// DebitVaultForPayout removes payout from custody and principal from the
// staked total in one conditional update. The filter requires the custody
// balance to cover the payout; a non-match against an existing vault is a
// solvency fault.
func (db *Database) DebitVaultForPayout(ctx context.Context, payout, principal uint64) error {
	filter := bson.M{
		"_id":             model.VaultDocumentID,
		"custody_balance": bson.M{"$gte": payout},
	}
	update := bson.M{
		"$inc": bson.M{
			"total_staked":    -int64(principal),
			"custody_balance": -int64(payout),
		},
		"$set": bson.M{"updated_at": time.Now().Unix()},
	}

	res, err := db.collection(model.VaultCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := db.GetVault(ctx); err != nil {
			return err
		}
		return &InsufficientCustodyError{
			Required: payout,
			Message:  "custody balance cannot cover payout",
		}
	}
	return nil
}

// WithdrawVaultSurplus debits custody only while the remainder still
// covers the total staked principal.
func (db *Database) WithdrawVaultSurplus(ctx context.Context, amount uint64) error {
	filter := bson.M{
		"_id": model.VaultDocumentID,
		"$expr": bson.M{
			"$gte": bson.A{
				bson.M{"$subtract": bson.A{"$custody_balance", int64(amount)}},
				"$total_staked",
			},
		},
	}
	update := bson.M{
		"$inc": bson.M{"custody_balance": -int64(amount)},
		"$set": bson.M{"updated_at": time.Now().Unix()},
	}

	res, err := db.collection(model.VaultCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := db.GetVault(ctx); err != nil {
			return err
		}
		return &InsufficientCustodyError{
			Required: amount,
			Message:  "withdrawal exceeds vault surplus",
		}
	}
	return nil
}

func (db *Database) SetVaultApyRate(ctx context.Context, apyRateBps uint64) error {
	return db.setVaultField(ctx, "apy_rate_bps", apyRateBps)
}

func (db *Database) SetVaultPaused(ctx context.Context, paused bool) error {
	return db.setVaultField(ctx, "paused", paused)
}

func (db *Database) setVaultField(ctx context.Context, field string, value interface{}) error {
	filter := bson.M{"_id": model.VaultDocumentID}
	update := bson.M{
		"$set": bson.M{
			field:        value,
			"updated_at": time.Now().Unix(),
		},
	}

	res, err := db.collection(model.VaultCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &NotFoundError{
			Key:     model.VaultDocumentID,
			Message: "vault not initialized",
		}
	}
	return nil
}
