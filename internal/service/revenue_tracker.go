package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/revshare/internal/metrics"
	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/money"
	"github.com/mmynk/revshare/internal/storage"
)

// SettlementInput is a payment reported by the gateway.
type SettlementInput struct {
	PaymentReference string
	SubscriberID     string
	Amount           int64 // minor units
	Currency         string
}

// Notification is a gateway status callback.
type Notification struct {
	TransactionID string
	Status        models.Status
	SubscriberID  string
	Amount        int64
	Currency      string
}

// RevenueTracker appends subscription events to the ledger. It keeps no
// counters of its own; totals are aggregated from the store.
type RevenueTracker struct {
	store    storage.Store
	currency string
	metrics  *metrics.Observer
	now      func() time.Time
}

// TrackerOption configures a RevenueTracker.
type TrackerOption func(*RevenueTracker)

// WithTrackerMetrics records settlement outcomes on o.
func WithTrackerMetrics(o *metrics.Observer) TrackerOption {
	return func(t *RevenueTracker) { t.metrics = o }
}

// WithTrackerClock overrides the event timestamp source.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *RevenueTracker) { t.now = now }
}

// NewRevenueTracker creates a tracker accepting payments in currency.
func NewRevenueTracker(store storage.Store, currency string, opts ...TrackerOption) *RevenueTracker {
	t := &RevenueTracker{
		store:    store,
		currency: money.NormalizeCurrency(currency),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Currency returns the ledger currency.
func (t *RevenueTracker) Currency() string { return t.currency }

// RecordSettlement appends a settled event. If the payment reference is
// already known, the stored event is returned with a *DuplicatePaymentError
// and nothing is written; a pending event with that reference is settled.
func (t *RevenueTracker) RecordSettlement(ctx context.Context, in SettlementInput) (*models.SubscriptionEvent, error) {
	return t.record(ctx, in, models.StatusSettled)
}

// RecordPending appends an event awaiting the gateway's final status.
func (t *RevenueTracker) RecordPending(ctx context.Context, in SettlementInput) (*models.SubscriptionEvent, error) {
	return t.record(ctx, in, models.StatusPending)
}

// ResolvePayment moves a pending event to settled or failed. Repeating the
// transition that already happened is a no-op.
func (t *RevenueTracker) ResolvePayment(ctx context.Context, paymentReference string, status models.Status) (*models.SubscriptionEvent, error) {
	if status != models.StatusSettled && status != models.StatusFailed {
		return nil, fmt.Errorf("%w: cannot resolve to %q", ErrInvalidInput, status)
	}
	event, err := t.store.TransitionStatus(ctx, paymentReference, status, t.now().UTC())
	switch {
	case err == nil:
		slog.Info("Payment resolved", "payment_reference", paymentReference, "status", status)
		t.observe(event)
		return event, nil
	case errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentReference)
	case errors.Is(err, storage.ErrInvalidTransition):
		if event == nil {
			return nil, fmt.Errorf("%w: %v", ErrStatusConflict, err)
		}
		if event.Status == status {
			return event, nil
		}
		return event, fmt.Errorf("%w: %s is %s", ErrStatusConflict, paymentReference, event.Status)
	default:
		return nil, storeErr("resolve payment", err)
	}
}

// HandleNotification applies a gateway callback. Notifications are
// idempotent: a repeat returns the stored event without error.
func (t *RevenueTracker) HandleNotification(ctx context.Context, n Notification) (*models.SubscriptionEvent, error) {
	if !n.Status.Valid() {
		t.metrics.RecordSettlement(metrics.SettlementRejected, 0)
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, n.Status)
	}
	event, err := t.record(ctx, SettlementInput{
		PaymentReference: n.TransactionID,
		SubscriberID:     n.SubscriberID,
		Amount:           n.Amount,
		Currency:         n.Currency,
	}, n.Status)
	if existing, ok := AsDuplicate(err); ok {
		slog.Info("Duplicate notification absorbed",
			"payment_reference", n.TransactionID,
			"status", existing.Status,
		)
		return existing, nil
	}
	return event, err
}

// TotalSettled sums settled amounts created at or after since (zero: all time).
func (t *RevenueTracker) TotalSettled(ctx context.Context, since time.Time) (int64, error) {
	totals, err := t.store.SettledTotals(ctx, since)
	if err != nil {
		return 0, storeErr("total settled", err)
	}
	return totals.Amount, nil
}

// CountSubscribers counts distinct subscribers with a settled event since.
func (t *RevenueTracker) CountSubscribers(ctx context.Context, since time.Time) (int64, error) {
	totals, err := t.store.SettledTotals(ctx, since)
	if err != nil {
		return 0, storeErr("count subscribers", err)
	}
	return totals.Subscribers, nil
}

func (t *RevenueTracker) validate(in SettlementInput) (SettlementInput, error) {
	in.PaymentReference = strings.TrimSpace(in.PaymentReference)
	in.SubscriberID = strings.TrimSpace(in.SubscriberID)
	if in.PaymentReference == "" {
		return in, fmt.Errorf("%w: payment reference is required", ErrInvalidInput)
	}
	if in.SubscriberID == "" {
		return in, fmt.Errorf("%w: subscriber id is required", ErrInvalidInput)
	}
	if in.Amount <= 0 || in.Amount > models.MaxAmount {
		return in, fmt.Errorf("%w: got %d", ErrInvalidAmount, in.Amount)
	}
	in.Currency = money.NormalizeCurrency(in.Currency)
	if in.Currency == "" {
		in.Currency = t.currency
	}
	if in.Currency != t.currency {
		return in, fmt.Errorf("%w: %s (ledger is %s)", ErrUnsupportedCurrency, in.Currency, t.currency)
	}
	return in, nil
}

func (t *RevenueTracker) record(ctx context.Context, in SettlementInput, status models.Status) (*models.SubscriptionEvent, error) {
	in, err := t.validate(in)
	if err != nil {
		t.metrics.RecordSettlement(metrics.SettlementRejected, 0)
		return nil, err
	}

	event := &models.SubscriptionEvent{
		SubscriberID:     in.SubscriberID,
		Amount:           in.Amount,
		Currency:         in.Currency,
		PaymentReference: in.PaymentReference,
		Status:           status,
		CreatedAt:        t.now().UTC(),
	}
	err = t.store.AppendSubscriptionEvent(ctx, event)
	if err == nil {
		slog.Info("Subscription event recorded",
			"event_id", event.ID,
			"payment_reference", event.PaymentReference,
			"status", event.Status,
			"amount", event.Amount,
		)
		t.observe(event)
		return event, nil
	}
	if !errors.Is(err, storage.ErrDuplicatePayment) {
		slog.Error("Recording subscription event failed", "payment_reference", in.PaymentReference, "error", err)
		return nil, storeErr("record "+string(status)+" event", err)
	}

	existing, err := t.store.GetSubscriptionEventByReference(ctx, in.PaymentReference)
	if err != nil {
		return nil, storeErr("load duplicate payment", err)
	}
	if existing.Status == models.StatusPending && status != models.StatusPending {
		if existing.Amount != in.Amount {
			slog.Warn("Notification amount differs from pending event; keeping recorded amount",
				"payment_reference", in.PaymentReference,
				"recorded", existing.Amount,
				"notified", in.Amount,
			)
		}
		resolved, err := t.ResolvePayment(ctx, in.PaymentReference, status)
		if err == nil {
			return resolved, nil
		}
		if !errors.Is(err, ErrStatusConflict) {
			return nil, err
		}
		// Resolved concurrently to the other status.
		existing = resolved
	}
	t.metrics.RecordSettlement(metrics.SettlementDuplicate, 0)
	return existing, &DuplicatePaymentError{Existing: existing}
}

func (t *RevenueTracker) observe(event *models.SubscriptionEvent) {
	switch event.Status {
	case models.StatusSettled:
		t.metrics.RecordSettlement(metrics.SettlementRecorded, event.Amount)
	case models.StatusFailed:
		t.metrics.RecordSettlement(metrics.SettlementFailed, 0)
	}
}
