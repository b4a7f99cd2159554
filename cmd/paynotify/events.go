// cmd/paynotify/events.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/config"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/events"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
)

func eventsCmd(configPath *string) *cobra.Command {
	var groupID string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail order-paid events from kafka, one JSON object per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c := cfg.CommonConfig
			if c.KAFKA_BROKER == "" || c.KAFKA_TOPIC == "" {
				return errors.New("events: set KAFKA_BROKER and KAFKA_TOPIC")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			consumer := events.NewConsumer([]string{c.KAFKA_BROKER}, c.KAFKA_TOPIC, groupID)
			defer consumer.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			return consumer.Run(ctx, func(_ context.Context, e payment.OrderPaidEvent) error {
				return enc.Encode(e)
			})
		},
	}
	cmd.Flags().StringVarP(&groupID, "group", "g", "paynotify-tail", "kafka consumer group")
	return cmd
}
