package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/revshare/internal/calculator"
	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/storage"
)

// Period selects the window of a revenue summary.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAll     Period = "all"
)

// TargetProgress is a target with its current value.
type TargetProgress struct {
	models.Target
	Current             int64  `json:"current"`
	ProgressBasisPoints int64  `json:"progressBasisPoints"`
	Percent             string `json:"percent"`
}

// Dashboard is a point-in-time view of the ledger.
type Dashboard struct {
	Currency      string                      `json:"currency"`
	Subscribers   int64                       `json:"subscribers"`
	Payments      int64                       `json:"payments"`
	TotalSettled  int64                       `json:"totalSettled"`
	Distributed   int64                       `json:"distributed"`
	Undistributed int64                       `json:"undistributed"`
	Balances      []calculator.AccountBalance `json:"balances"`
	Targets       []TargetProgress            `json:"targets"`
	GeneratedAt   time.Time                   `json:"generatedAt"`
}

// RevenueSummary aggregates settled revenue over a period.
type RevenueSummary struct {
	Period      Period    `json:"period"`
	Since       time.Time `json:"since,omitzero"`
	Currency    string    `json:"currency"`
	Total       int64     `json:"total"`
	Payments    int64     `json:"payments"`
	Subscribers int64     `json:"subscribers"`
	Average     int64     `json:"average"`
}

// Reporter serves read-only views of the ledger.
type Reporter struct {
	store    storage.Store
	accounts []models.Account
	targets  []models.Target
	currency string
	now      func() time.Time
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithReporterClock overrides the reporting clock.
func WithReporterClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) { r.now = now }
}

// NewReporter creates a reporter over store.
func NewReporter(store storage.Store, accounts []models.Account, targets []models.Target, currency string, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		store:    store,
		accounts: slices.Clone(accounts),
		targets:  slices.Clone(targets),
		currency: currency,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dashboard reports totals, balances and target progress.
func (r *Reporter) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := r.now().UTC()

	snap, err := r.store.Snapshot(ctx)
	if err != nil {
		return nil, unavailable("snapshot", err)
	}

	targets, err := r.progress(ctx, now, snap.Settled)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Currency:      r.currency,
		Subscribers:   snap.Settled.Subscribers,
		Payments:      snap.Settled.Payments,
		TotalSettled:  snap.Settled.Amount,
		Distributed:   snap.Distributed,
		Undistributed: max(snap.Settled.Amount-snap.Distributed, 0),
		Balances:      calculator.BuildBalances(r.accounts, snap.AccountTotals),
		Targets:       targets,
		GeneratedAt:   now,
	}, nil
}

// Revenue summarizes settled revenue for period. Windows are calendar
// aligned in UTC; weeks start on Monday.
func (r *Reporter) Revenue(ctx context.Context, period Period) (*RevenueSummary, error) {
	if period == "" {
		period = PeriodAll
	}
	since, err := PeriodStart(period, r.now())
	if err != nil {
		return nil, err
	}
	totals, err := r.store.SettledTotals(ctx, since)
	if err != nil {
		return nil, unavailable("revenue", err)
	}
	return &RevenueSummary{
		Period:      period,
		Since:       since,
		Currency:    r.currency,
		Total:       totals.Amount,
		Payments:    totals.Payments,
		Subscribers: totals.Subscribers,
		Average:     calculator.Average(totals.Amount, totals.Payments),
	}, nil
}

// Distributions returns up to limit recent distributions, newest first.
func (r *Reporter) Distributions(ctx context.Context, limit int) ([]*models.DistributionEvent, error) {
	dists, err := r.store.ListDistributions(ctx, limit)
	if err != nil {
		return nil, unavailable("distributions", err)
	}
	return dists, nil
}

// Events lists recorded payments newest first. An unknown status filter is
// ErrInvalidInput.
func (r *Reporter) Events(ctx context.Context, filter storage.EventFilter) ([]*models.SubscriptionEvent, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	events, err := r.store.ListSubscriptionEvents(ctx, filter)
	if err != nil {
		return nil, unavailable("subscription events", err)
	}
	return events, nil
}

// Targets reports progress against each configured target.
func (r *Reporter) Targets(ctx context.Context) ([]TargetProgress, error) {
	now := r.now().UTC()
	allTime, err := r.store.SettledTotals(ctx, time.Time{})
	if err != nil {
		return nil, unavailable("settled totals", err)
	}
	return r.progress(ctx, now, allTime)
}

func (r *Reporter) progress(ctx context.Context, now time.Time, allTime storage.SettledTotals) ([]TargetProgress, error) {
	progress := make([]TargetProgress, 0, len(r.targets))
	for _, target := range r.targets {
		totals := allTime
		if target.WindowDays > 0 {
			var err error
			totals, err = r.store.SettledTotals(ctx, now.AddDate(0, 0, -target.WindowDays))
			if err != nil {
				return nil, unavailable("target "+target.Name, err)
			}
		}

		current := totals.Amount
		if target.Metric == models.MetricSubscribers {
			current = totals.Subscribers
		}
		bps := calculator.ProgressBasisPoints(current, target.Value)
		progress = append(progress, TargetProgress{
			Target:              target,
			Current:             current,
			ProgressBasisPoints: bps,
			Percent:             decimal.New(bps, -2).StringFixed(2),
		})
	}
	return progress, nil
}

// PeriodStart returns the start of the period containing now. PeriodAll
// returns the zero time.
func PeriodStart(period Period, now time.Time) (time.Time, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case PeriodDaily:
		return today, nil
	case PeriodWeekly:
		offset := (int(today.Weekday()) + 6) % 7
		return today.AddDate(0, 0, -offset), nil
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	case PeriodAll, "":
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
}

func unavailable(what string, err error) error {
	return fmt.Errorf("%s: %w: %v", what, ErrStorageUnavailable, err)
}
