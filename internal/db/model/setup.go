package model

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stakevault-io/staking-vault/internal/config"
)

type index struct {
	Indexes map[string]int
	Unique  bool
}

var collections = map[string][]index{
	VaultCollection: {},
	StakeCollection: {
		{Indexes: map[string]int{"state": 1}, Unique: false},
	},
}

func Setup(ctx context.Context, cfg *config.DbConfig) error {
	credential := options.Credential{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	clientOps := options.Client().ApplyURI(cfg.Address).SetAuth(credential)
	client, err := mongo.Connect(ctx, clientOps)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	database := client.Database(cfg.DbName)

	for name, idxs := range collections {
		createCollection(ctx, database, name)
		for _, idx := range idxs {
			createIndex(ctx, database, name, idx)
		}
	}

	log.Info().Msg("Collections and indexes created successfully")
	return nil
}

func createCollection(ctx context.Context, database *mongo.Database, collectionName string) {
	// CreateCollection errors if the collection already exists; that is
	// expected on restarts
	if err := database.CreateCollection(ctx, collectionName); err != nil {
		log.Debug().Str("collection", collectionName).Msg("Collection maybe already exists, skipping creation")
		return
	}

	log.Debug().Str("collection", collectionName).Msg("Collection created successfully")
}

func createIndex(ctx context.Context, database *mongo.Database, collectionName string, idx index) {
	if len(idx.Indexes) == 0 {
		return
	}

	indexKeys := bson.D{}
	for field, order := range idx.Indexes {
		indexKeys = append(indexKeys, bson.E{Key: field, Value: order})
	}

	indexModel := mongo.IndexModel{
		Keys:    indexKeys,
		Options: options.Index().SetUnique(idx.Unique),
	}

	if _, err := database.Collection(collectionName).Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Debug().Str("collection", collectionName).Msg("Failed to create index on collection")
		return
	}

	log.Debug().Str("collection", collectionName).Msg("Index created successfully")
}
