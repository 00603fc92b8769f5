package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/revshare/internal/models"
)

// flakyStore fails the first n calls with the configured error.
type flakyStore struct {
	Store
	failures int
	err      error
	calls    int
}

func (f *flakyStore) AppendSubscriptionEvent(_ context.Context, _ *models.SubscriptionEvent) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyStore) SettledTotals(_ context.Context, _ time.Time) (SettledTotals, error) {
	f.calls++
	if f.calls <= f.failures {
		return SettledTotals{}, f.err
	}
	return SettledTotals{Amount: 42, Payments: 1, Subscribers: 1}, nil
}

func quickBackoff(retries uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, retries)
	}
}

func TestRetryingStoreRetriesTransientErrors(t *testing.T) {
	flaky := &flakyStore{failures: 2, err: fmt.Errorf("insert: %w", ErrUnavailable)}
	store := NewRetryingStore(flaky, time.Second, quickBackoff(5))

	require.NoError(t, store.AppendSubscriptionEvent(context.Background(), &models.SubscriptionEvent{}))
	assert.Equal(t, 3, flaky.calls)
}

func TestRetryingStoreGivesUpAfterBound(t *testing.T) {
	flaky := &flakyStore{failures: 10, err: ErrUnavailable}
	store := NewRetryingStore(flaky, time.Second, quickBackoff(2))

	_, err := store.SettledTotals(context.Background(), time.Time{})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, flaky.calls)
}

func TestRetryingStoreDoesNotRetryPermanentErrors(t *testing.T) {
	flaky := &flakyStore{failures: 10, err: ErrDuplicatePayment}
	store := NewRetryingStore(flaky, time.Second, quickBackoff(5))

	err := store.AppendSubscriptionEvent(context.Background(), &models.SubscriptionEvent{})
	require.True(t, errors.Is(err, ErrDuplicatePayment))
	assert.Equal(t, 1, flaky.calls)
}

func TestRetryingStoreStopsOnCancel(t *testing.T) {
	flaky := &flakyStore{failures: 100, err: ErrUnavailable}
	store := NewRetryingStore(flaky, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.SettledTotals(ctx, time.Time{})
	require.Error(t, err)
	assert.LessOrEqual(t, flaky.calls, 1)
}
