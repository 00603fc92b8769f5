package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/storage"
	"github.com/mmynk/revshare/internal/storage/sqlite"
)

var testAccounts = []models.Account{
	{Name: "owner", SplitBasisPoints: 6000},
	{Name: "ai_operations", SplitBasisPoints: 2000},
	{Name: "reserve", SplitBasisPoints: 2000},
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestEngine(t *testing.T, store storage.Store) *DistributionEngine {
	t.Helper()
	engine, err := NewDistributionEngine(store, testAccounts, "zar")
	require.NoError(t, err)
	return engine
}

func settle(t *testing.T, tracker *RevenueTracker, ref, subscriber string, amount int64) *models.SubscriptionEvent {
	t.Helper()
	event, err := tracker.RecordSettlement(context.Background(), SettlementInput{
		PaymentReference: ref,
		SubscriberID:     subscriber,
		Amount:           amount,
		Currency:         "zar",
	})
	require.NoError(t, err)
	return event
}

// unavailableStore fails every call with a transient error.
type unavailableStore struct {
	storage.Store
}

func (unavailableStore) AppendSubscriptionEvent(context.Context, *models.SubscriptionEvent) error {
	return storage.ErrUnavailable
}

func (unavailableStore) SettledTotals(context.Context, time.Time) (storage.SettledTotals, error) {
	return storage.SettledTotals{}, storage.ErrUnavailable
}

func (unavailableStore) Snapshot(context.Context) (storage.Snapshot, error) {
	return storage.Snapshot{}, storage.ErrUnavailable
}

func (unavailableStore) ListSubscriptionEvents(context.Context, storage.EventFilter) ([]*models.SubscriptionEvent, error) {
	return nil, storage.ErrUnavailable
}

func (unavailableStore) ListDistributions(context.Context, int) ([]*models.DistributionEvent, error) {
	return nil, storage.ErrUnavailable
}

func (unavailableStore) DistributePending(context.Context, storage.AllocateFunc) (*models.DistributionEvent, error) {
	return nil, storage.ErrUnavailable
}
