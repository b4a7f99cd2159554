// cmd/paynotify/orders.go
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/config"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/store/postgres"
)

func ordersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Manage merchant orders",
	}
	cmd.AddCommand(ordersCreateCmd(configPath))
	return cmd
}

func ordersCreateCmd(configPath *string) *cobra.Command {
	var amount int64
	cmd := &cobra.Command{
		Use:   "create [out_trade_no]",
		Short: "Create an UNPAID order so a notification can settle it (existing orders are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount < 0 {
				return errors.New("orders create: --amount must not be negative")
			}
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.CommonConfig.HasDatabase() {
				return errors.New("orders create: set DATABASE_URL or DB_HOST (without a database use serve --seed-order)")
			}
			db, err := postgres.Connect(cmd.Context(), cfg.CommonConfig.GetDBURL())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.NewOrderStore(db.SQL).CreateOrder(cmd.Context(), args[0], amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s created (amount_total=%d)\n", args[0], amount)
			return nil
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", 0, "order total in fen")
	return cmd
}
