package storage

import (
	"context"
	"log/slog"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/mmynk/revshare/internal/models"
)

var _ Store = (*RetryingStore)(nil)

// RetryingStore wraps a Store and retries transient failures with
// exponential backoff. Non-transient errors are returned immediately.
type RetryingStore struct {
	delegate     Store
	buildBackoff func() backoff.BackOff
}

// NewRetryingStore creates a store that retries ErrUnavailable for at most
// maxElapsed per call. A nil factory uses exponential backoff starting at 50ms.
func NewRetryingStore(delegate Store, maxElapsed time.Duration, factory func() backoff.BackOff) *RetryingStore {
	if factory == nil {
		factory = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			b.MaxElapsedTime = maxElapsed
			return b
		}
	}
	return &RetryingStore{delegate: delegate, buildBackoff: factory}
}

func (s *RetryingStore) retry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	b := backoff.WithContext(s.buildBackoff(), ctx)
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		slog.Warn("Retrying storage operation", "op", op, "attempt", attempt, "wait", wait, "error", err)
	})
}

func (s *RetryingStore) AppendSubscriptionEvent(ctx context.Context, event *models.SubscriptionEvent) error {
	return s.retry(ctx, "append_subscription_event", func() error {
		return s.delegate.AppendSubscriptionEvent(ctx, event)
	})
}

func (s *RetryingStore) GetSubscriptionEventByReference(ctx context.Context, paymentReference string) (*models.SubscriptionEvent, error) {
	var event *models.SubscriptionEvent
	err := s.retry(ctx, "get_subscription_event", func() error {
		var err error
		event, err = s.delegate.GetSubscriptionEventByReference(ctx, paymentReference)
		return err
	})
	return event, err
}

func (s *RetryingStore) TransitionStatus(ctx context.Context, paymentReference string, to models.Status, at time.Time) (*models.SubscriptionEvent, error) {
	var event *models.SubscriptionEvent
	err := s.retry(ctx, "transition_status", func() error {
		var err error
		event, err = s.delegate.TransitionStatus(ctx, paymentReference, to, at)
		return err
	})
	return event, err
}

func (s *RetryingStore) ListSubscriptionEvents(ctx context.Context, filter EventFilter) ([]*models.SubscriptionEvent, error) {
	var events []*models.SubscriptionEvent
	err := s.retry(ctx, "list_subscription_events", func() error {
		var err error
		events, err = s.delegate.ListSubscriptionEvents(ctx, filter)
		return err
	})
	return events, err
}

func (s *RetryingStore) SettledTotals(ctx context.Context, since time.Time) (SettledTotals, error) {
	var totals SettledTotals
	err := s.retry(ctx, "settled_totals", func() error {
		var err error
		totals, err = s.delegate.SettledTotals(ctx, since)
		return err
	})
	return totals, err
}

// DistributePending retries the whole transaction. A failed attempt has
// rolled back, so allocate sees the same pending batch again.
func (s *RetryingStore) DistributePending(ctx context.Context, allocate AllocateFunc) (*models.DistributionEvent, error) {
	var dist *models.DistributionEvent
	err := s.retry(ctx, "distribute_pending", func() error {
		var err error
		dist, err = s.delegate.DistributePending(ctx, allocate)
		return err
	})
	return dist, err
}

func (s *RetryingStore) ListDistributions(ctx context.Context, limit int) ([]*models.DistributionEvent, error) {
	var dists []*models.DistributionEvent
	err := s.retry(ctx, "list_distributions", func() error {
		var err error
		dists, err = s.delegate.ListDistributions(ctx, limit)
		return err
	})
	return dists, err
}

func (s *RetryingStore) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.retry(ctx, "snapshot", func() error {
		var err error
		snap, err = s.delegate.Snapshot(ctx)
		return err
	})
	return snap, err
}

// Close closes the underlying store.
func (s *RetryingStore) Close() error {
	return s.delegate.Close()
}
