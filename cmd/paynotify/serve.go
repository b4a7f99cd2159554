// cmd/paynotify/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/config"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/events"
	httpServer "github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/handler/http"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/order"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment/webhook/wechat"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/store/cache"
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/store/postgres"
)

const shutdownTimeout = 10 * time.Second

// serveOptions are the command-line switches of `serve`.
type serveOptions struct {
	autoMigrate bool
	// seedOrders are "out_trade_no[:amount]" specs created UNPAID at startup.
	seedOrders []string
}

func serveCmd(configPath *string) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runServe(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.autoMigrate, "migrate", false, "apply database migrations before serving")
	cmd.Flags().StringSliceVar(&opts.seedOrders, "seed-order", nil, "create an UNPAID order at startup, as out_trade_no[:amount] (repeatable)")
	return cmd
}

// app is the wired service plus everything that needs closing on the way out.
type app struct {
	handler http.Handler
	orders  orderStore
	closers []func() error
}

func (a *app) Close() {
	// reverse order of opening
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("[WARN] close: %v", err)
		}
	}
}

// buildApp wires config into stores, verifier, publisher and router. Optional
// dependencies that are not configured degrade rather than fail.
func buildApp(ctx context.Context, cfg *config.Config, opts serveOptions) (*app, error) {
	a := &app{}

	// 1. Order store and notification log
	var (
		orders   orderStore
		recorder payment.NotificationRecorder
	)
	if cfg.CommonConfig.HasDatabase() {
		db, err := postgres.Connect(ctx, cfg.CommonConfig.GetDBURL())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if opts.autoMigrate {
			if err := postgres.RunMigrations(ctx, db.SQL); err != nil {
				a.Close()
				return nil, err
			}
		}
		orders = postgres.NewOrderStore(db.SQL)
		recorder = postgres.NewNotificationLogStore(db.Gorm)
	} else {
		log.Println("[WARN] no database configured, using the in-memory order store")
		orders = order.NewMemoryStore()
	}
	if err := seedOrders(ctx, orders, opts.seedOrders); err != nil {
		a.Close()
		return nil, err
	}
	a.orders = orders

	// 2. Signature verification
	var verifier *wechat.Verifier
	switch {
	case cfg.VerifySignatures():
		platform, err := wechat.LoadPlatformVerifier(cfg.PlatformPublicKeyPEM, cfg.PlatformPublicKeyID)
		if err != nil {
			a.Close()
			return nil, err
		}
		verifier = wechat.NewVerifier(platform, cfg.SignatureMaxSkew, nonceStore(ctx, cfg, a))
	case cfg.SkipSignatureVerify:
		log.Println("[WARN] signature verification disabled by WECHATPAY_SKIP_VERIFY")
	default:
		log.Println("[WARN] no platform public key configured, notifications are not signature checked")
	}

	// 3. Order-paid events
	publisher, err := events.Open(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)

	decryptor := payment.NewDecryptor(cfg.APIv3Key)
	svc := payment.NewNotificationService(
		wechat.New(decryptor, verifier),
		payment.NewSettler(orders),
		publisher,
		recorder,
		cfg.SettlementTimeout,
	)
	a.handler = httpServer.NewRouter(httpServer.NewNotifyHandler(svc))
	return a, nil
}

// orderStore is what serve needs from either order store: settlement plus seeding.
type orderStore interface {
	payment.OrderUpdater
	GetOrder(ctx context.Context, outTradeNo string) (order.Order, error)
	CreateOrder(ctx context.Context, outTradeNo string, amountTotal int64) error
}

// seedOrders creates the given orders UNPAID. Orders that already exist are left alone.
func seedOrders(ctx context.Context, store orderStore, specs []string) error {
	for _, spec := range specs {
		outTradeNo, amount, err := parseOrderSpec(spec)
		if err != nil {
			return err
		}
		if err := store.CreateOrder(ctx, outTradeNo, amount); err != nil {
			return fmt.Errorf("seed order %s: %w", outTradeNo, err)
		}
		log.Printf("[Seed] order %s ready (amount_total=%d)", outTradeNo, amount)
	}
	return nil
}

// parseOrderSpec splits "out_trade_no[:amount]".
func parseOrderSpec(spec string) (string, int64, error) {
	outTradeNo, rawAmount, hasAmount := strings.Cut(strings.TrimSpace(spec), ":")
	if outTradeNo == "" {
		return "", 0, fmt.Errorf("order spec %q: %w", spec, order.ErrEmptyOutTradeNo)
	}
	if !hasAmount {
		return outTradeNo, 0, nil
	}
	amount, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil || amount < 0 {
		return "", 0, fmt.Errorf("order spec %q: amount must be a non-negative integer", spec)
	}
	return outTradeNo, amount, nil
}

// nonceStore prefers redis so replays are caught across instances.
func nonceStore(ctx context.Context, cfg *config.Config, a *app) wechat.NonceStore {
	if cfg.CommonConfig.REDIS_URL == "" {
		return wechat.NewMemoryNonceStore()
	}
	client, err := cache.Connect(ctx, cfg.CommonConfig.REDIS_URL)
	if err != nil {
		log.Printf("[WARN] redis unavailable (%v), replay cache is per-instance", err)
		return wechat.NewMemoryNonceStore()
	}
	a.closers = append(a.closers, client.Close)
	return cache.NewRedisNonceStore(client)
}

func runServe(ctx context.Context, cfg *config.Config, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("pay-notify listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Println("shutting down, draining in-flight notifications")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
