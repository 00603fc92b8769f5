// Package models defines the ledger records for revshare.
//
// # Records
//
//   - SubscriptionEvent: one settled (or pending/failed) subscription payment,
//     keyed by the gateway's payment reference
//   - DistributionEvent: one payout run that splits a batch of settled events
//     across the configured accounts
//   - Account: a payout destination with its split percentage
//
// Both event types are append-only. The only mutation the ledger allows is a
// single Pending→Settled or Pending→Failed status transition. Account balances
// are never stored; they are the sum of allocations across all distributions.
//
// All amounts are int64 minor units (cents) of the ledger currency.
package models
