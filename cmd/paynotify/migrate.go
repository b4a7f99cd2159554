// cmd/paynotify/migrate.go
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/config"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/store/postgres"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.CommonConfig.HasDatabase() {
				return errors.New("migrate: set DATABASE_URL or DB_HOST")
			}
			db, err := postgres.Connect(cmd.Context(), cfg.CommonConfig.GetDBURL())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.RunMigrations(cmd.Context(), db.SQL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
