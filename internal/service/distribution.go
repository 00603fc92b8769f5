package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/mmynk/revshare/internal/calculator"
	"github.com/mmynk/revshare/internal/ids"
	"github.com/mmynk/revshare/internal/metrics"
	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/money"
	"github.com/mmynk/revshare/internal/storage"
)

// DistributionEngine splits settled revenue across the configured accounts.
type DistributionEngine struct {
	store    storage.Store
	accounts []models.Account
	currency string
	metrics  *metrics.Observer
	now      func() time.Time

	mu sync.Mutex
}

// EngineOption configures a DistributionEngine.
type EngineOption func(*DistributionEngine)

// WithEngineMetrics records distribution runs on o.
func WithEngineMetrics(o *metrics.Observer) EngineOption {
	return func(e *DistributionEngine) { e.metrics = o }
}

// WithEngineClock overrides the distribution timestamp source.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *DistributionEngine) { e.now = now }
}

// NewDistributionEngine validates accounts and creates an engine.
func NewDistributionEngine(store storage.Store, accounts []models.Account, currency string, opts ...EngineOption) (*DistributionEngine, error) {
	if err := calculator.ValidateSplits(accounts); err != nil {
		return nil, err
	}
	e := &DistributionEngine{
		store:    store,
		accounts: slices.Clone(accounts),
		currency: currency,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Accounts returns the configured accounts.
func (e *DistributionEngine) Accounts() []models.Account {
	return slices.Clone(e.accounts)
}

// DistributeUndistributed allocates every settled event not yet covered by a
// distribution. A batch whose sum would not fit in int64 is cut short and the
// remainder is left for the next run. It returns nil, nil when there is
// nothing to distribute.
// A failed run leaves the ledger unchanged and may be retried.
func (e *DistributionEngine) DistributeUndistributed(ctx context.Context) (*models.DistributionEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	dist, err := e.store.DistributePending(ctx, e.allocate)
	duration := time.Since(start)

	if err != nil {
		e.metrics.RecordDistribution(duration, nil, err)
		slog.Error("Distribution failed", "error", err, "duration_ms", duration.Milliseconds())
		return nil, storeErr("distribute", err)
	}
	if dist == nil {
		e.metrics.RecordDistribution(duration, nil, nil)
		slog.Info("Nothing to distribute")
		return nil, nil
	}

	e.metrics.RecordDistribution(duration, dist.Allocations, nil)
	slog.Info("Distribution committed",
		"distribution_id", dist.ID,
		"events", len(dist.SourceEventIDs),
		"total", dist.Total,
		"duration_ms", duration.Milliseconds(),
	)
	return dist, nil
}

func (e *DistributionEngine) allocate(ctx context.Context, batch []*models.SubscriptionEvent) (*models.DistributionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, event := range batch {
		if event.Status != models.StatusSettled {
			return nil, fmt.Errorf("event %s is %s, not settled", event.ID, event.Status)
		}
		if event.Currency != e.currency {
			return nil, fmt.Errorf("%w: event %s is in %s", ErrUnsupportedCurrency, event.ID, event.Currency)
		}
	}

	selected, total, deferred := selectBatch(batch, models.MaxAmount, math.MaxInt64)
	if deferred > 0 {
		slog.Warn("Deferring events to a later distribution", "deferred", deferred, "selected", len(selected))
	}
	if len(selected) == 0 {
		return nil, nil
	}

	allocations, err := calculator.Allocate(total, e.accounts)
	if err != nil {
		return nil, fmt.Errorf("allocate %d: %w", total, err)
	}

	sources := make([]string, 0, len(selected))
	for _, event := range selected {
		sources = append(sources, event.ID)
	}
	return &models.DistributionEvent{
		ID:             ids.NewDistributionID(),
		SourceEventIDs: sources,
		Allocations:    allocations,
		Total:          total,
		Currency:       e.currency,
		CreatedAt:      e.now().UTC(),
	}, nil
}

// selectBatch takes the longest prefix of batch whose amounts each lie in
// (0, maxAmount] and whose sum stays within limit. Out-of-range events are
// skipped and logged. Everything after the cut stays pending.
func selectBatch(batch []*models.SubscriptionEvent, maxAmount, limit int64) ([]*models.SubscriptionEvent, int64, int) {
	var total int64
	selected := make([]*models.SubscriptionEvent, 0, len(batch))
	for i, event := range batch {
		if event.Amount <= 0 || event.Amount > maxAmount {
			slog.Error("Skipping event with out-of-range amount", "event_id", event.ID, "amount", event.Amount)
			continue
		}
		sum, err := money.Add(total, event.Amount)
		if err != nil || sum > limit {
			return selected, total, len(batch) - i
		}
		total = sum
		selected = append(selected, event)
	}
	return selected, total, 0
}
