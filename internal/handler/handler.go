// Package handler exposes the ledger over HTTP with JSON bodies.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/revshare/internal/auth"
	"github.com/mmynk/revshare/internal/middleware"
	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/money"
	"github.com/mmynk/revshare/internal/service"
	"github.com/mmynk/revshare/internal/storage"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 20
	maxListLimit     = 200
)

// Deps are the services the HTTP layer calls.
type Deps struct {
	Subscriptions *service.SubscriptionService
	Tracker       *service.RevenueTracker
	Engine        *service.DistributionEngine
	Reporter      *service.Reporter
	Auth          *service.AuthService
	JWT           *auth.JWTManager
	Gatherer      prometheus.Gatherer
}

type handler struct {
	Deps
}

// New builds the HTTP routes. Admin routes require a bearer token.
func New(deps Deps) http.Handler {
	h := &handler{Deps: deps}
	if h.Gatherer == nil {
		h.Gatherer = prometheus.DefaultGatherer
	}
	admin := middleware.RequireAdmin(h.JWT)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /subscriptions", h.handleSubscribe)
	mux.HandleFunc("POST /webhooks/settlements", h.handleSettlementWebhook)
	mux.HandleFunc("POST /admin/login", h.handleLogin)
	mux.Handle("POST /payouts/run", admin(http.HandlerFunc(h.handleRunPayout)))
	mux.Handle("GET /payouts", admin(http.HandlerFunc(h.handleListPayouts)))
	mux.Handle("GET /subscriptions", admin(http.HandlerFunc(h.handleListSubscriptions)))
	mux.Handle("GET /dashboard", admin(http.HandlerFunc(h.handleDashboard)))
	mux.Handle("GET /revenue", admin(http.HandlerFunc(h.handleRevenue)))
	mux.Handle("GET /targets", admin(http.HandlerFunc(h.handleTargets)))
	return middleware.Logging(mux)
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.Auth.Login(r.Context(), req.Password)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queryLimit reads ?limit, defaulting and capping it.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxListLimit), nil
}

func (h *handler) handleListPayouts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dists, err := h.Reporter.Distributions(r.Context(), limit)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"distributions": dists})
}

func (h *handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := h.Reporter.Events(r.Context(), storage.EventFilter{
		Status: models.Status(strings.ToLower(r.URL.Query().Get("status"))),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": resp})
}

func (h *handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.Reporter.Dashboard(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *handler) handleRevenue(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Reporter.Revenue(r.Context(), service.Period(r.URL.Query().Get("period")))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":       summary.Period,
		"since":        summary.Since,
		"currency":     summary.Currency,
		"total":        summary.Total,
		"payments":     summary.Payments,
		"subscribers":  summary.Subscribers,
		"average":      summary.Average,
		"totalDisplay": money.Format(summary.Total, summary.Currency),
	})
}

func (h *handler) handleTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.Reporter.Targets(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": targets})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrUnsupportedCurrency),
		errors.Is(err, service.ErrInvalidPeriod),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrPrecision),
		errors.Is(err, money.ErrOutOfRange),
		errors.Is(err, storage.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrStorageUnavailable),
		errors.Is(err, service.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
