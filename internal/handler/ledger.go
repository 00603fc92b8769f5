package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/revshare/internal/middleware"
	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/money"
	"github.com/mmynk/revshare/internal/service"
)

// subscribeRequest carries the amount in major units, as a JSON number or string.
type subscribeRequest struct {
	Amount       *decimal.Decimal `json:"amount"`
	Currency     string           `json:"currency"`
	SubscriberID string           `json:"subscriberId"`
	Country      string           `json:"country,omitempty"`
}

type settlementNotification struct {
	TransactionID string           `json:"transactionId"`
	Status        string           `json:"status"`
	SubscriberID  string           `json:"subscriberId"`
	Amount        *decimal.Decimal `json:"amount"`
	Currency      string           `json:"currency"`
}

type eventResponse struct {
	SubscriptionID   string        `json:"subscriptionId"`
	PaymentReference string        `json:"paymentReference"`
	SubscriberID     string        `json:"subscriberId"`
	Status           models.Status `json:"status"`
	Amount           int64         `json:"amount"`
	AmountDisplay    string        `json:"amountDisplay"`
	Currency         string        `json:"currency"`
}

func toEventResponse(e *models.SubscriptionEvent) eventResponse {
	return eventResponse{
		SubscriptionID:   e.ID,
		PaymentReference: e.PaymentReference,
		SubscriberID:     e.SubscriberID,
		Status:           e.Status,
		Amount:           e.Amount,
		AmountDisplay:    money.Format(e.Amount, e.Currency),
		Currency:         e.Currency,
	}
}

// minorAmount converts a request amount in major units.
func (h *handler) minorAmount(amount *decimal.Decimal, currency string) (int64, error) {
	if amount == nil {
		return 0, service.ErrInvalidAmount
	}
	if currency == "" {
		currency = h.Tracker.Currency()
	}
	return money.ToMinor(*amount, currency)
}

func (h *handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := h.minorAmount(req.Amount, req.Currency)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	event, err := h.Subscriptions.Subscribe(r.Context(), service.SubscribeRequest{
		SubscriberID: req.SubscriberID,
		Amount:       amount,
		Currency:     req.Currency,
		Country:      req.Country,
	})
	if existing, ok := service.AsDuplicate(err); ok {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":          "duplicate payment reference",
			"subscriptionId": existing.ID,
		})
		return
	}
	var declined *service.PaymentDeclinedError
	if errors.As(err, &declined) {
		writeJSON(w, http.StatusPaymentRequired, map[string]string{
			"error":  "payment declined",
			"reason": declined.Reason,
		})
		return
	}
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toEventResponse(event))
}

func (h *handler) handleSettlementWebhook(w http.ResponseWriter, r *http.Request) {
	var req settlementNotification
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := h.minorAmount(req.Amount, req.Currency)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	event, err := h.Tracker.HandleNotification(r.Context(), service.Notification{
		TransactionID: req.TransactionID,
		Status:        models.Status(strings.ToLower(strings.TrimSpace(req.Status))),
		SubscriberID:  req.SubscriberID,
		Amount:        amount,
		Currency:      req.Currency,
	})
	if err != nil {
		slog.Warn("Settlement notification rejected", "transaction_id", req.TransactionID, "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

func (h *handler) handleRunPayout(w http.ResponseWriter, r *http.Request) {
	slog.Info("Payout run requested", "subject", middleware.GetSubject(r.Context()))
	dist, err := h.Engine.DistributeUndistributed(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if dist == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "nothing_to_distribute",
			"allocations": map[string]int64{},
		})
		return
	}
	writeJSON(w, http.StatusCreated, dist)
}
