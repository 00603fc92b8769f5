package service

import (
	"errors"
	"fmt"

	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/storage"
)

var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrStatusConflict      = errors.New("payment already resolved")
	ErrInvalidPeriod       = errors.New("invalid reporting period")

	// ErrStorageUnavailable means the ledger could not be reached even after
	// retries. Nothing was written; the caller may try again later.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DuplicatePaymentError reports a payment reference that is already in the
// ledger. Existing is the event recorded the first time; callers treat it as
// the idempotent result.
type DuplicatePaymentError struct {
	Existing *models.SubscriptionEvent
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("payment %s already recorded as %s", e.Existing.PaymentReference, e.Existing.Status)
}

func (e *DuplicatePaymentError) Unwrap() error { return storage.ErrDuplicatePayment }

// AsDuplicate returns the original event if err is a DuplicatePaymentError.
func AsDuplicate(err error) (*models.SubscriptionEvent, bool) {
	var dup *DuplicatePaymentError
	if errors.As(err, &dup) {
		return dup.Existing, true
	}
	return nil, false
}

// storeErr wraps a storage failure, marking transient ones as unavailable.
func storeErr(op string, err error) error {
	if storage.IsTransient(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
