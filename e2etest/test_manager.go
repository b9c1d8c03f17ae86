//go:build integration

package e2etest

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"

	"github.com/stakevault-io/staking-vault/internal/api"
	"github.com/stakevault-io/staking-vault/internal/config"
	"github.com/stakevault-io/staking-vault/internal/db"
	"github.com/stakevault-io/staking-vault/internal/db/model"
	"github.com/stakevault-io/staking-vault/internal/services"
)

const (
	mongoUsername     = "user"
	mongoPassword     = "password"
	mongoDatabaseName = "e2e-database"
	mongoVersion      = "7.0.5"
)

// TestManager wires the real mongo-backed stack behind an httptest server,
// so lifecycle tests drive the same request path production traffic takes.
type TestManager struct {
	Db      db.DbInterface
	Service *services.Service
	Server  *httptest.Server
}

func StartManager(t *testing.T) *TestManager {
	t.Helper()

	dbConfig := setupMongoContainer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, model.Setup(ctx, dbConfig))

	dbClient, err := db.New(ctx, *dbConfig)
	require.NoError(t, err)

	cfg := &config.Config{
		Db: *dbConfig,
		Ledger: config.LedgerConfig{
			MinStake: 1_00000000,
			MaxStake: 1_000_000_00000000,
			// short windows keep the lifecycle test wall-clock bound
			MinDuration: time.Second,
			MaxDuration: 365 * 24 * time.Hour,
			MinApyBps:   100,
			MaxApyBps:   20_000,
		},
		Api: config.ApiConfig{
			Host: "127.0.0.1",
			Port: 0,
		},
	}

	service := services.NewService(cfg, dbClient, nil)

	server := httptest.NewServer(api.New(&cfg.Api, service, dbClient).Router())
	t.Cleanup(server.Close)

	return &TestManager{
		Db:      dbClient,
		Service: service,
		Server:  server,
	}
}

func setupMongoContainer(t *testing.T) *config.DbConfig {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	containerName := "mongo-e2e-tests-db-" + gofakeit.LetterN(3)
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Name:       containerName,
		Repository: "mongo",
		Tag:        mongoVersion,
		Env: []string{
			"MONGO_INITDB_ROOT_USERNAME=" + mongoUsername,
			"MONGO_INITDB_ROOT_PASSWORD=" + mongoPassword,
			"MONGO_INITDB_DATABASE=" + mongoDatabaseName,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pool.Purge(resource))
	})

	hostPort := resource.GetPort("27017/tcp")

	return &config.DbConfig{
		Username: mongoUsername,
		Password: mongoPassword,
		DbName:   mongoDatabaseName,
		Address:  fmt.Sprintf("mongodb://localhost:%s/", hostPort),
	}
}
