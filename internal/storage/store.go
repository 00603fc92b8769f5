// Package storage provides abstractions for the append-only revenue ledger.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/revshare/internal/models"
)

var (
	// ErrDuplicatePayment is returned when a payment reference is already recorded.
	ErrDuplicatePayment = errors.New("storage: payment reference already recorded")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("storage: invalid status transition")

	// ErrInvalidAmount is returned for amounts outside (0, models.MaxAmount].
	ErrInvalidAmount = errors.New("storage: amount out of range")

	// ErrUnavailable marks transient failures (busy or locked database,
	// closed connection). Callers may retry.
	ErrUnavailable = errors.New("storage: unavailable")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// AllocateFunc turns a batch of undistributed settled events into a
// distribution. It runs inside the store's distribution transaction; returning
// an error aborts the transaction and leaves the ledger unchanged.
//
// The distribution may cover a subset of the batch; uncovered events stay
// pending for a later run. Returning nil, nil distributes nothing.
type AllocateFunc func(ctx context.Context, batch []*models.SubscriptionEvent) (*models.DistributionEvent, error)

// SettledTotals aggregates settled events.
type SettledTotals struct {
	// Amount is the sum of settled amounts in minor units.
	Amount int64

	// Payments is the number of settled events.
	Payments int64

	// Subscribers is the number of distinct subscribers with a settled event.
	Subscribers int64
}

// Snapshot is a consistent view of the ledger's all-time aggregates, read in
// a single transaction.
type Snapshot struct {
	Settled SettledTotals

	// Distributed is the sum of all distribution totals.
	Distributed int64

	// AccountTotals sums allocations per account across all distributions.
	AccountTotals map[string]int64
}

// EventFilter narrows ListSubscriptionEvents.
type EventFilter struct {
	Status models.Status // empty matches all
	Since  time.Time     // zero matches all
	Limit  int           // zero means no limit
}

// Store defines the ledger operations. All aggregates are computed at read
// time from immutable rows; implementations keep no running counters.
type Store interface {
	// AppendSubscriptionEvent persists a new event. event.ID and
	// event.CreatedAt are populated by the store when empty.
	// Returns ErrDuplicatePayment if the payment reference exists and
	// ErrInvalidAmount if the amount is out of range.
	AppendSubscriptionEvent(ctx context.Context, event *models.SubscriptionEvent) error

	// GetSubscriptionEventByReference looks an event up by payment reference.
	GetSubscriptionEventByReference(ctx context.Context, paymentReference string) (*models.SubscriptionEvent, error)

	// TransitionStatus moves a pending event to settled or failed.
	// Returns ErrInvalidTransition if the event is not pending.
	TransitionStatus(ctx context.Context, paymentReference string, to models.Status, at time.Time) (*models.SubscriptionEvent, error)

	// ListSubscriptionEvents returns events newest first.
	ListSubscriptionEvents(ctx context.Context, filter EventFilter) ([]*models.SubscriptionEvent, error)

	// SettledTotals aggregates settled events created at or after since.
	// A zero since covers the whole ledger.
	SettledTotals(ctx context.Context, since time.Time) (SettledTotals, error)

	// DistributePending selects every settled event not yet part of a
	// distribution and records the distribution built by allocate, in one
	// transaction. Returns nil, nil when nothing is pending.
	DistributePending(ctx context.Context, allocate AllocateFunc) (*models.DistributionEvent, error)

	// ListDistributions returns distributions newest first.
	ListDistributions(ctx context.Context, limit int) ([]*models.DistributionEvent, error)

	// Snapshot reads settled, distributed and per-account totals from one
	// consistent view of the ledger.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Close releases any resources held by the store.
	Close() error
}
