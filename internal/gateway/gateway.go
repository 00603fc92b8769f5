// Package gateway defines the payment gateway contract the ledger consumes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrUnavailable means the gateway could not be reached. No charge was made.
var ErrUnavailable = errors.New("gateway: unavailable")

// Status is the outcome of a charge.
type Status string

const (
	StatusSettled Status = "settled"
	StatusFailed  Status = "failed"
)

// ChargeRequest asks the gateway to collect a payment.
type ChargeRequest struct {
	SubscriberID string
	Amount       int64 // minor units
	Currency     string
	Country      string
}

// Result is the gateway's answer. TransactionID is the idempotency key the
// ledger stores as the payment reference.
type Result struct {
	Status        Status
	TransactionID string
	Reason        string
}

// Gateway charges subscribers.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Result, error)
}

// Simulated settles every charge up to MaxCharge and declines the rest.
// It stands in for a bank integration in development and tests.
type Simulated struct {
	// MaxCharge in minor units; zero means no limit.
	MaxCharge int64

	mu     sync.Mutex
	nextID func() string
}

// NewSimulated creates a simulated gateway.
func NewSimulated(maxCharge int64) *Simulated {
	return &Simulated{MaxCharge: maxCharge}
}

// WithTransactionIDs overrides transaction id generation, letting tests
// replay the same id.
func (g *Simulated) WithTransactionIDs(next func() string) *Simulated {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID = next
	return g
}

// Charge implements Gateway.
func (g *Simulated) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	g.mu.Lock()
	next := g.nextID
	g.mu.Unlock()

	txID := "SIM_" + uuid.NewString()
	if next != nil {
		txID = next()
	}

	if req.Amount <= 0 {
		return Result{Status: StatusFailed, TransactionID: txID, Reason: "amount must be positive"}, nil
	}
	if g.MaxCharge > 0 && req.Amount > g.MaxCharge {
		return Result{Status: StatusFailed, TransactionID: txID, Reason: "amount exceeds card limit"}, nil
	}
	return Result{Status: StatusSettled, TransactionID: txID}, nil
}
