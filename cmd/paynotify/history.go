// cmd/paynotify/history.go
package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/config"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/order"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/store/postgres"
)

func historyCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [out_trade_no]",
		Short: "Show an order and the notifications received for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.CommonConfig.HasDatabase() {
				return errors.New("history: set DATABASE_URL or DB_HOST")
			}
			db, err := postgres.Connect(cmd.Context(), cfg.CommonConfig.GetDBURL())
			if err != nil {
				return err
			}
			defer db.Close()

			outTradeNo := args[0]
			out := cmd.OutOrStdout()

			o, err := postgres.NewOrderStore(db.SQL).GetOrder(cmd.Context(), outTradeNo)
			switch {
			case errors.Is(err, order.ErrOrderNotFound):
				fmt.Fprintf(out, "order %s: not found\n", outTradeNo)
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "order %s: %s transaction=%s success_time=%s updated_at=%s\n",
					o.OutTradeNo, o.Status, o.TransactionID, o.SuccessTime, o.UpdatedAt.Format(time.RFC3339))
			}

			rows, err := postgres.NewNotificationLogStore(db.Gorm).ListByOrder(cmd.Context(), outTradeNo, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RECEIVED\tEVENT ID\tEVENT TYPE\tSTATUS\tREASON")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ReceivedAt.Format(time.RFC3339), r.EventID, r.EventType, r.Status, r.Reason)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum notifications to show")
	return cmd
}
