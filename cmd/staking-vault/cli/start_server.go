package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stakevault-io/staking-vault/internal/api"
	"github.com/stakevault-io/staking-vault/internal/config"
	"github.com/stakevault-io/staking-vault/internal/db"
	dbmodel "github.com/stakevault-io/staking-vault/internal/db/model"
	"github.com/stakevault-io/staking-vault/internal/observability/metrics"
	"github.com/stakevault-io/staking-vault/internal/observability/tracing"
	"github.com/stakevault-io/staking-vault/internal/queue"
	"github.com/stakevault-io/staking-vault/internal/services"
)

func StartServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-server",
		Short: "Starts the staking vault ledger server",
		Args:  cobra.ExactArgs(0),
		RunE:  startServer,
	}

	return cmd
}

func startServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ctx = tracing.InjectTraceID(ctx)
	log := log.Ctx(ctx)

	// load config
	cfgPath := GetConfigPath()
	cfg, err := config.New(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg(fmt.Sprintf("error while loading config file: %s", cfgPath))
	}

	err = dbmodel.Setup(ctx, &cfg.Db)
	if err != nil {
		log.Fatal().Err(err).Msg("error while setting up ledger db model")
	}

	// create new db client
	var dbClient db.DbInterface
	dbClient, err = db.New(ctx, cfg.Db)
	if err != nil {
		log.Fatal().Err(err).Msg("error while creating db client")
	}
	dbClient = db.NewDbWithMetrics(dbClient)

	qm, err := queue.NewQueueManager(&cfg.Queue)
	if err != nil {
		log.Fatal().Err(err).Msg("error while creating queue manager")
	}
	if err := qm.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("error while starting queue manager")
	}
	defer func() {
		if err := qm.Stop(); err != nil {
			log.Error().Err(err).Msg("error while stopping queue manager")
		}
	}()

	service := services.NewService(cfg, dbClient, qm)

	// initialize metrics with the metrics port from config
	metricsPort := cfg.Metrics.GetMetricsPort()
	metrics.Init(metricsPort)

	service.StartSolvencyAuditor(ctx)

	return api.New(&cfg.Api, service, dbClient).Start(ctx)
}
