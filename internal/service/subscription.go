package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/revshare/internal/gateway"
	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/money"
)

// ErrGatewayUnavailable means the charge could not be attempted.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// PaymentDeclinedError is returned when the gateway refuses a charge. Event
// is the failed event kept for audit.
type PaymentDeclinedError struct {
	Reason string
	Event  *models.SubscriptionEvent
}

func (e *PaymentDeclinedError) Error() string {
	if e.Reason == "" {
		return "payment declined"
	}
	return "payment declined: " + e.Reason
}

// SubscribeRequest is a new subscriber paying through the gateway.
type SubscribeRequest struct {
	SubscriberID string
	Amount       int64 // minor units
	Currency     string
	Country      string
}

// SubscriptionService charges subscribers and records the outcome.
type SubscriptionService struct {
	gateway gateway.Gateway
	tracker *RevenueTracker
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(gw gateway.Gateway, tracker *RevenueTracker) *SubscriptionService {
	return &SubscriptionService{gateway: gw, tracker: tracker}
}

// Subscribe charges the subscriber and records the settlement. A repeated
// transaction id from the gateway yields a *DuplicatePaymentError.
func (s *SubscriptionService) Subscribe(ctx context.Context, req SubscribeRequest) (*models.SubscriptionEvent, error) {
	slog.Info("Subscribe request received",
		"subscriber_id", req.SubscriberID,
		"amount", req.Amount,
		"currency", req.Currency,
	)

	if strings.TrimSpace(req.SubscriberID) == "" {
		return nil, fmt.Errorf("%w: subscriber id is required", ErrInvalidInput)
	}
	if req.Amount <= 0 || req.Amount > models.MaxAmount {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, req.Amount)
	}
	currency := money.NormalizeCurrency(req.Currency)
	if currency == "" {
		currency = s.tracker.Currency()
	}
	if currency != s.tracker.Currency() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}

	result, err := s.gateway.Charge(ctx, gateway.ChargeRequest{
		SubscriberID: req.SubscriberID,
		Amount:       req.Amount,
		Currency:     currency,
		Country:      req.Country,
	})
	if err != nil {
		slog.Error("Gateway charge failed", "subscriber_id", req.SubscriberID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	in := SettlementInput{
		PaymentReference: result.TransactionID,
		SubscriberID:     req.SubscriberID,
		Amount:           req.Amount,
		Currency:         currency,
	}
	if result.Status != gateway.StatusSettled {
		event, err := s.tracker.record(ctx, in, models.StatusFailed)
		if err != nil {
			if _, ok := AsDuplicate(err); !ok {
				slog.Warn("Could not record declined payment", "transaction_id", result.TransactionID, "error", err)
			}
		}
		slog.Info("Payment declined", "transaction_id", result.TransactionID, "reason", result.Reason)
		return nil, &PaymentDeclinedError{Reason: result.Reason, Event: event}
	}

	return s.tracker.RecordSettlement(ctx, in)
}
