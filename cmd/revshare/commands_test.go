package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/storage/sqlite"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, "", "hash-password", "long-enough")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("long-enough")))

	out, err = execute(t, "from-stdin-pw\n", "hash-password")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from-stdin-pw")))

	_, err = execute(t, "", "hash-password", "short")
	assert.Error(t, err)
}

func TestValidateSplits(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
currency: zar
accounts:
  - name: owner
    percentage: "60"
  - name: ai_operations
    percentage: "20"
  - name: reserve
    percentage: "20"
`), 0o644))
	out, err := execute(t, "", "validate-splits", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok: 3 accounts")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
currency: zar
accounts:
  - name: owner
    percentage: "60"
  - name: reserve
    percentage: "37"
`), 0o644))
	_, err = execute(t, "", "validate-splits", bad)
	assert.Error(t, err)
}

func TestDistributeAndReport(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("SPLITS_FILE", "")

	out, err := execute(t, "", "distribute")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to distribute")

	out, err = execute(t, "", "report", "--period", "weekly")
	require.NoError(t, err)
	assert.Contains(t, out, "Subscribers")
	assert.Contains(t, out, "owner")
	assert.Contains(t, out, "60.00%")

	_, err = execute(t, "", "report", "--period", "hourly")
	assert.Error(t, err)
}

func TestEvents(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("SPLITS_FILE", "")

	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	for _, e := range []*models.SubscriptionEvent{
		{PaymentReference: "PAID_1", SubscriberID: "alice", Amount: 24970, Currency: "zar", Status: models.StatusSettled},
		{PaymentReference: "DECLINED_1", SubscriberID: "bob", Amount: 500, Currency: "zar", Status: models.StatusFailed},
	} {
		require.NoError(t, store.AppendSubscriptionEvent(context.Background(), e))
	}
	require.NoError(t, store.Close())

	out, err := execute(t, "", "events")
	require.NoError(t, err)
	assert.Contains(t, out, "REFERENCE")
	assert.Contains(t, out, "PAID_1")
	assert.Contains(t, out, "DECLINED_1")

	out, err = execute(t, "", "events", "--status", "failed")
	require.NoError(t, err)
	assert.Contains(t, out, "DECLINED_1")
	assert.NotContains(t, out, "PAID_1")

	_, err = execute(t, "", "events", "--status", "refunded")
	assert.Error(t, err)

	_, err = execute(t, "", "events", "--limit", "-1")
	assert.Error(t, err)
}
