package db

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/stakevault-io/staking-vault/internal/db/model"
	"github.com/stakevault-io/staking-vault/internal/types"
)

func (db *Database) SaveNewStake(ctx context.Context, stakeDoc *model.StakeDocument) error {
	_, err := db.collection(model.StakeCollection).InsertOne(ctx, stakeDoc)
	if err != nil {
		var writeErr mongo.WriteException
		if errors.As(err, &writeErr) {
			for _, e := range writeErr.WriteErrors {
				if mongo.IsDuplicateKeyError(e) {
					return &DuplicateKeyError{
						Key:     stakeDoc.Account,
						Message: "stake record already exists",
					}
				}
			}
		}
		return err
	}
	return nil
}

func (db *Database) GetStake(ctx context.Context, account string) (*model.StakeDocument, error) {
	filter := bson.M{"_id": account}

	res := db.collection(model.StakeCollection).FindOne(ctx, filter)

	var stakeDoc model.StakeDocument
	if err := res.Decode(&stakeDoc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     account,
				Message: "no active stake for account",
			}
		}
		return nil, err
	}

	return &stakeDoc, nil
}

// UpdateActiveStake replaces the mutable fields of a stake record,
// conditioned on the record still holding the expected principal in a
// qualified state. A non-match means the record was mutated concurrently
// (or emptied) and the caller must re-read and retry.
func (db *Database) UpdateActiveStake(
	ctx context.Context,
	account string,
	qualifiedPreviousStates []types.StakeState,
	expectedPrincipal uint64,
	stakeDoc *model.StakeDocument,
) error {
	qualifiedStateStrs := make([]string, len(qualifiedPreviousStates))
	for i, state := range qualifiedPreviousStates {
		qualifiedStateStrs[i] = state.String()
	}

	filter := bson.M{
		"_id":       account,
		"state":     bson.M{"$in": qualifiedStateStrs},
		"principal": expectedPrincipal,
	}
	update := bson.M{
		"$set": bson.M{
			"principal":         stakeDoc.Principal,
			"staked_at":         stakeDoc.StakedAt,
			"lock_duration":     stakeDoc.LockDuration,
			"reward_checkpoint": stakeDoc.RewardCheckpoint,
			"accrued_reward":    stakeDoc.AccruedReward,
			"state":             stakeDoc.State.String(),
		},
	}

	res := db.collection(model.StakeCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     account,
				Message: "stake record not found or not in a qualified state",
			}
		}
		return res.Err()
	}

	return nil
}

// DeleteActiveStake removes the record entirely on full unstake, so an
// emptied position leaves no dangling partial state behind.
func (db *Database) DeleteActiveStake(ctx context.Context, account string, expectedPrincipal uint64) error {
	filter := bson.M{
		"_id":       account,
		"state":     types.StateActive.String(),
		"principal": expectedPrincipal,
	}

	res, err := db.collection(model.StakeCollection).DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return &NotFoundError{
			Key:     account,
			Message: "stake record not found or not in a qualified state",
		}
	}
	return nil
}

// SumActivePrincipals aggregates the principal of every active stake
// record. The solvency auditor compares it against the vault counter.
func (db *Database) SumActivePrincipals(ctx context.Context) (uint64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"state": types.StateActive.String()}},
		{"$group": bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$principal"},
		}},
	}

	cursor, err := db.collection(model.StakeCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}

	return uint64(results[0].Total), nil
}
