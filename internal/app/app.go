// Package app wires the ledger components from configuration.
package app

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/revshare/internal/config"
	"github.com/mmynk/revshare/internal/metrics"
	"github.com/mmynk/revshare/internal/service"
	"github.com/mmynk/revshare/internal/storage"
	"github.com/mmynk/revshare/internal/storage/sqlite"
)

// App holds the core ledger services over one store.
type App struct {
	Config   *config.Config
	Store    storage.Store
	Metrics  *metrics.Observer
	Tracker  *service.RevenueTracker
	Engine   *service.DistributionEngine
	Reporter *service.Reporter
}

// New opens the store and builds the services. reg may be nil to skip metrics.
func New(cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	base, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	slog.Info("Storage initialized", "database", cfg.DBPath)

	var observer *metrics.Observer
	if reg != nil {
		if observer, err = metrics.New("revshare", reg); err != nil {
			base.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	store := storage.NewRetryingStore(base, cfg.StorageRetryMaxElapsed, nil)
	ledger := cfg.Ledger

	engine, err := service.NewDistributionEngine(store, ledger.Accounts, ledger.Currency, service.WithEngineMetrics(observer))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &App{
		Config:   cfg,
		Store:    store,
		Metrics:  observer,
		Tracker:  service.NewRevenueTracker(store, ledger.Currency, service.WithTrackerMetrics(observer)),
		Engine:   engine,
		Reporter: service.NewReporter(store, ledger.Accounts, ledger.Targets, ledger.Currency),
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
