package models

import "time"

// Status is the settlement state of a subscription payment.
type Status string

// MaxAmount caps a single payment in minor units. Any batch of fewer than
// 9223 maximal payments sums without overflowing int64.
const MaxAmount int64 = 1_000_000_000_000_000

const (
	StatusPending Status = "pending"
	StatusSettled Status = "settled"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSettled, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the ledger allows moving from s to next.
// Only pending events move, and only once.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusSettled || next == StatusFailed)
}

// SubscriptionEvent records a subscription payment reported by the gateway.
type SubscriptionEvent struct {
	// ID is the ledger identifier (prefix "sevt", K-sortable).
	ID string `json:"id"`

	// SubscriberID identifies the paying subscriber.
	SubscriberID string `json:"subscriberId"`

	// Amount is the payment amount in minor units, in (0, MaxAmount].
	Amount int64 `json:"amount"`

	// Currency is the ISO 4217 code, lowercase.
	Currency string `json:"currency"`

	// PaymentReference is the gateway transaction id. Unique across the ledger.
	PaymentReference string `json:"paymentReference"`

	Status Status `json:"status"`

	// CreatedAt is set once when the event is appended.
	CreatedAt time.Time `json:"createdAt"`

	// ResolvedAt is set when a pending event transitions. Zero otherwise.
	ResolvedAt time.Time `json:"resolvedAt,omitzero"`
}
