package main

import (
	"github.com/spf13/cobra"

	"pix-subscription/internal/config"
	"pix-subscription/internal/infra/logging"
)

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema for the configured driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log)
			ctx := cmd.Context()

			st, err := openStore(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer st.close()
			if err := st.migrate(ctx); err != nil {
				return err
			}
			logger.Info().Str("driver", cfg.Database.Driver).Msg("schema applied")
			return nil
		},
	}
}
