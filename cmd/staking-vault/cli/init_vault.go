package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stakevault-io/staking-vault/internal/config"
	"github.com/stakevault-io/staking-vault/internal/db"
	dbmodel "github.com/stakevault-io/staking-vault/internal/db/model"
	"github.com/stakevault-io/staking-vault/internal/services"
	"github.com/stakevault-io/staking-vault/internal/types"
)

func InitVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-vault",
		Short: "Creates the singleton vault document and pins its authority",
		Args:  cobra.ExactArgs(0),
		RunE:  initVault,
	}

	cmd.Flags().String("authority", "", "account id of the vault authority")
	cmd.Flags().Uint64("apy-bps", 0, "initial APY rate in basis points")

	return cmd
}

func initVault(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	authority, err := cmd.Flags().GetString("authority")
	if err != nil {
		return err
	}
	apyBps, err := cmd.Flags().GetUint64("apy-bps")
	if err != nil {
		return err
	}

	cfgPath := GetConfigPath()
	cfg, err := config.New(cfgPath)
	if err != nil {
		return fmt.Errorf("error while loading config file %s: %w", cfgPath, err)
	}

	if err := dbmodel.Setup(ctx, &cfg.Db); err != nil {
		return fmt.Errorf("error while setting up ledger db model: %w", err)
	}

	dbClient, err := db.New(ctx, cfg.Db)
	if err != nil {
		return fmt.Errorf("error while creating db client: %w", err)
	}

	service := services.NewService(cfg, dbClient, nil)
	if serviceErr := service.InitVault(ctx, authority, apyBps); serviceErr != nil {
		if serviceErr.ErrorCode == types.VaultAlreadyInitialized {
			log.Warn().Str("authority", authority).Msg("Vault is already initialized")
			return nil
		}
		return serviceErr
	}

	log.Info().
		Str("authority", authority).
		Uint64("apy_rate_bps", apyBps).
		Msg("Vault initialized")
	return nil
}
