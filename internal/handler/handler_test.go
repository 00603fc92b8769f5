package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/revshare/internal/auth"
	"github.com/mmynk/revshare/internal/config"
	"github.com/mmynk/revshare/internal/gateway"
	"github.com/mmynk/revshare/internal/metrics"
	"github.com/mmynk/revshare/internal/service"
	"github.com/mmynk/revshare/internal/storage/sqlite"
)

const adminPassword = "let-me-in-please"

type testServer struct {
	*httptest.Server
	gateway *gateway.Simulated
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	observer, err := metrics.New("revshare", reg)
	require.NoError(t, err)

	ledger := config.DefaultLedger()
	tracker := service.NewRevenueTracker(store, ledger.Currency, service.WithTrackerMetrics(observer))
	engine, err := service.NewDistributionEngine(store, ledger.Accounts, ledger.Currency, service.WithEngineMetrics(observer))
	require.NoError(t, err)

	hash, err := auth.HashPassword(adminPassword)
	require.NoError(t, err)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	gw := gateway.NewSimulated(1_000_000)

	srv := httptest.NewServer(New(Deps{
		Subscriptions: service.NewSubscriptionService(gw, tracker),
		Tracker:       tracker,
		Engine:        engine,
		Reporter:      service.NewReporter(store, ledger.Accounts, ledger.Targets, ledger.Currency),
		Auth:          service.NewAuthService(auth.NewPasswordAuthenticator(hash), jwtManager, nil),
		JWT:           jwtManager,
		Gatherer:      reg,
	}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, gateway: gw}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/admin/login", "", `{"password":"`+adminPassword+`"}`)
	require.Equal(t, http.StatusOK, status)
	return body["token"].(string)
}

func TestSubscriptionsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	t.Run("created", func(t *testing.T) {
		status, body := srv.do(t, http.MethodPost, "/subscriptions", "",
			`{"amount":"249.70","currency":"ZAR","subscriberId":"alice","country":"ZA"}`)
		assert.Equal(t, http.StatusCreated, status)
		assert.NotEmpty(t, body["subscriptionId"])
		assert.EqualValues(t, 24970, body["amount"])
		assert.Equal(t, "R249.70", body["amountDisplay"])
	})

	t.Run("numeric amount", func(t *testing.T) {
		status, _ := srv.do(t, http.MethodPost, "/subscriptions", "", `{"amount":99.5,"subscriberId":"bob"}`)
		assert.Equal(t, http.StatusCreated, status)
	})

	t.Run("invalid amounts", func(t *testing.T) {
		for _, body := range []string{
			`{"amount":0,"subscriberId":"x"}`,
			`{"amount":-10,"subscriberId":"x"}`,
			`{"amount":"1.234","subscriberId":"x"}`,
			`{"subscriberId":"x"}`,
			`{"amount":"abc","subscriberId":"x"}`,
			`{"amount":"10000000000000.01","subscriberId":"x"}`,
			`{"amount":"92233720368547758.07","subscriberId":"x"}`,
		} {
			status, _ := srv.do(t, http.MethodPost, "/subscriptions", "", body)
			assert.Equal(t, http.StatusBadRequest, status, body)
		}
	})

	t.Run("unsupported currency", func(t *testing.T) {
		status, _ := srv.do(t, http.MethodPost, "/subscriptions", "", `{"amount":"10","currency":"usd","subscriberId":"x"}`)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("declined", func(t *testing.T) {
		status, body := srv.do(t, http.MethodPost, "/subscriptions", "", `{"amount":"10000.01","subscriberId":"carol"}`)
		assert.Equal(t, http.StatusPaymentRequired, status)
		assert.Equal(t, "payment declined", body["error"])
	})

	t.Run("duplicate transaction", func(t *testing.T) {
		srv.gateway.WithTransactionIDs(func() string { return "SIM_REPLAY" })
		defer srv.gateway.WithTransactionIDs(nil)

		status, first := srv.do(t, http.MethodPost, "/subscriptions", "", `{"amount":"5","subscriberId":"dave"}`)
		require.Equal(t, http.StatusCreated, status)
		status, body := srv.do(t, http.MethodPost, "/subscriptions", "", `{"amount":"5","subscriberId":"dave"}`)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, first["subscriptionId"], body["subscriptionId"])
	})
}

func TestSettlementWebhook(t *testing.T) {
	srv := newTestServer(t)
	payload := `{"transactionId":"PSK_1","status":"settled","subscriberId":"erin","amount":"100.00","currency":"zar"}`

	status, first := srv.do(t, http.MethodPost, "/webhooks/settlements", "", payload)
	require.Equal(t, http.StatusOK, status)
	status, again := srv.do(t, http.MethodPost, "/webhooks/settlements", "", payload)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, first["subscriptionId"], again["subscriptionId"])

	status, _ = srv.do(t, http.MethodPost, "/webhooks/settlements", "",
		`{"transactionId":"PSK_2","status":"chargeback","subscriberId":"erin","amount":"1","currency":"zar"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, http.MethodPost, "/payouts/run", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = srv.do(t, http.MethodPost, "/admin/login", "", `{"password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	token := srv.login(t)

	status, body := srv.do(t, http.MethodPost, "/payouts/run", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "nothing_to_distribute", body["status"])
	assert.Empty(t, body["allocations"])

	for _, amount := range []string{"100.00", "100.00", "0.01"} {
		status, _ := srv.do(t, http.MethodPost, "/subscriptions", "", `{"amount":"`+amount+`","subscriberId":"s`+amount+`"}`)
		require.Equal(t, http.StatusCreated, status)
	}

	status, body = srv.do(t, http.MethodPost, "/payouts/run", token, "")
	require.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 20001, body["total"])
	assert.Equal(t, map[string]any{
		"owner":         float64(12001),
		"ai_operations": float64(4000),
		"reserve":       float64(4000),
	}, body["allocations"])

	status, body = srv.do(t, http.MethodGet, "/dashboard", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 20001, body["totalSettled"])
	assert.EqualValues(t, 20001, body["distributed"])
	assert.EqualValues(t, 0, body["undistributed"])

	status, body = srv.do(t, http.MethodGet, "/payouts?limit=5", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["distributions"], 1)

	status, _ = srv.do(t, http.MethodGet, "/payouts?limit=-1", token, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = srv.do(t, http.MethodGet, "/revenue?period=all", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "R200.01", body["totalDisplay"])

	status, _ = srv.do(t, http.MethodGet, "/revenue?period=fortnightly", token, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = srv.do(t, http.MethodGet, "/targets", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["targets"], 2)
}

func TestListSubscriptions(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, http.MethodGet, "/subscriptions", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	for _, body := range []string{
		`{"amount":"10.00","subscriberId":"alice"}`,
		`{"amount":"10000.01","subscriberId":"bob"}`,
		`{"amount":"20.00","subscriberId":"carol"}`,
	} {
		srv.do(t, http.MethodPost, "/subscriptions", "", body)
	}
	token := srv.login(t)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{name: "all", query: "", wantStatus: http.StatusOK, wantCount: 3},
		{name: "failed", query: "?status=failed", wantStatus: http.StatusOK, wantCount: 1},
		{name: "settled limited", query: "?status=SETTLED&limit=1", wantStatus: http.StatusOK, wantCount: 1},
		{name: "unknown status", query: "?status=refunded", wantStatus: http.StatusBadRequest},
		{name: "bad limit", query: "?limit=zero", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := srv.do(t, http.MethodGet, "/subscriptions"+tt.query, token, "")
			require.Equal(t, tt.wantStatus, status)
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.Len(t, body["subscriptions"], tt.wantCount)
		})
	}

	_, body := srv.do(t, http.MethodGet, "/subscriptions?status=failed", token, "")
	failed := body["subscriptions"].([]any)[0].(map[string]any)
	assert.Equal(t, "bob", failed["subscriberId"])
	assert.Equal(t, "failed", failed["status"])
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	srv.do(t, http.MethodPost, "/subscriptions", "", `{"amount":"1","subscriberId":"m"}`)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `revshare_settlements_total{result="recorded"} 1`)
}
