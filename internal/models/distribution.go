package models

import "time"

// DistributionEvent records one payout run over a batch of settled events.
type DistributionEvent struct {
	// ID is the ledger identifier (prefix "dist", K-sortable).
	ID string `json:"id"`

	// SourceEventIDs lists the subscription events this run distributed.
	// An event id appears in at most one distribution.
	SourceEventIDs []string `json:"sourceEventIds"`

	// Allocations maps account name to allocated minor units.
	// The values sum exactly to Total.
	Allocations map[string]int64 `json:"allocations"`

	// Total is the sum of the source event amounts.
	Total int64 `json:"total"`

	Currency string `json:"currency"`

	CreatedAt time.Time `json:"createdAt"`
}

// AllocatedTotal sums the allocations.
func (d *DistributionEvent) AllocatedTotal() int64 {
	var sum int64
	for _, amount := range d.Allocations {
		sum += amount
	}
	return sum
}
