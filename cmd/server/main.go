package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/revshare/internal/app"
	"github.com/mmynk/revshare/internal/auth"
	"github.com/mmynk/revshare/internal/config"
	"github.com/mmynk/revshare/internal/gateway"
	"github.com/mmynk/revshare/internal/handler"
	"github.com/mmynk/revshare/internal/middleware"
	"github.com/mmynk/revshare/internal/money"
	"github.com/mmynk/revshare/internal/scheduler"
	"github.com/mmynk/revshare/internal/service"
	"github.com/mmynk/revshare/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to read .env", "error", err)
	}
	logging.Setup()

	if err := run(); err != nil {
		var splitErr *config.SplitConfigError
		if errors.As(err, &splitErr) {
			slog.Error("Refusing to start with invalid split configuration", "field", splitErr.Field, "reason", splitErr.Reason)
		} else {
			slog.Error("Server failed", "error", err)
		}
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := scheduler.ValidateSchedule(cfg.PayoutSchedule); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ledger, err := app.New(cfg, reg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	maxCharge, err := parseMaxCharge(cfg.GatewayMaxCharge, cfg.Ledger.Currency)
	if err != nil {
		return err
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		slog.Warn("JWT_SECRET not set; tokens will not survive a restart")
	}
	if cfg.AdminPasswordHash == "" {
		slog.Warn("ADMIN_PASSWORD_HASH not set; admin endpoints are unreachable")
	}
	jwtManager := auth.NewJWTManager(secret, cfg.TokenTTL)

	api := handler.New(handler.Deps{
		Subscriptions: service.NewSubscriptionService(gateway.NewSimulated(maxCharge), ledger.Tracker),
		Tracker:       ledger.Tracker,
		Engine:        ledger.Engine,
		Reporter:      ledger.Reporter,
		Auth:          service.NewAuthService(auth.NewPasswordAuthenticator(cfg.AdminPasswordHash), jwtManager, slog.Default()),
		JWT:           jwtManager,
		Gatherer:      reg,
	})

	sched, err := scheduler.New(scheduler.Config{
		Schedule: cfg.PayoutSchedule,
		Timeout:  cfg.PayoutTimeout,
	}, ledger.Engine)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2c.NewHandler(middleware.CORS(api), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Ledger server starting",
			"address", srv.Addr,
			"currency", cfg.Ledger.Currency,
			"accounts", len(cfg.Ledger.Accounts),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sched.Start(ctx)
		<-sched.Done()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down")
		sched.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func parseMaxCharge(s, currency string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return money.ParseMajor(s, currency)
}
