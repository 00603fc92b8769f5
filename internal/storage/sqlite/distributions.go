package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/revshare/internal/ids"
	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/money"
	"github.com/mmynk/revshare/internal/storage"
)

// DistributePending selects undistributed settled events and records the
// distribution built by allocate in a single transaction. Nothing becomes
// attributed unless the whole distribution commits.
func (s *SQLiteStore) DistributePending(ctx context.Context, allocate storage.AllocateFunc) (*models.DistributionEvent, error) {
	s.distMu.Lock()
	defer s.distMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("failed to begin transaction", err)
	}
	defer tx.Rollback()

	batch, err := selectPending(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, nil
	}

	dist, err := allocate(ctx, batch)
	if err != nil {
		return nil, err
	}
	if dist == nil {
		return nil, nil
	}
	if err := checkDistribution(dist, batch); err != nil {
		return nil, err
	}
	if dist.ID == "" {
		dist.ID = ids.NewDistributionID()
	}
	if dist.CreatedAt.IsZero() {
		dist.CreatedAt = s.now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO distribution_events (id, total_minor, currency, created_at) VALUES (?, ?, ?, ?)",
		dist.ID, dist.Total, dist.Currency, toNanos(dist.CreatedAt),
	); err != nil {
		return nil, classify("failed to insert distribution", err)
	}

	for account, amount := range dist.Allocations {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO distribution_allocations (distribution_id, account, amount_minor) VALUES (?, ?, ?)",
			dist.ID, account, amount,
		); err != nil {
			return nil, classify("failed to insert allocation", err)
		}
	}

	for _, eventID := range dist.SourceEventIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO distribution_sources (source_event_id, distribution_id) VALUES (?, ?)",
			eventID, dist.ID,
		); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("event %s already distributed: %w", eventID, err)
			}
			return nil, classify("failed to insert distribution source", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("failed to commit distribution", err)
	}

	return dist, nil
}

func selectPending(ctx context.Context, tx *sql.Tx) ([]*models.SubscriptionEvent, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT e.id, e.payment_reference, e.subscriber_id, e.amount_minor, e.currency, e.status, e.created_at, e.resolved_at
		 FROM subscription_events e
		 LEFT JOIN distribution_sources d ON d.source_event_id = e.id
		 WHERE e.status = 'settled' AND d.source_event_id IS NULL
		 ORDER BY e.resolved_at, e.id`,
	)
	if err != nil {
		return nil, classify("failed to select pending events", err)
	}
	defer rows.Close()

	var batch []*models.SubscriptionEvent
	for rows.Next() {
		event, err := scanSubscriptionEvent(rows)
		if err != nil {
			return nil, classify("failed to scan pending event", err)
		}
		batch = append(batch, event)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("failed to iterate pending events", err)
	}
	return batch, nil
}

// checkDistribution refuses to persist a distribution whose sources are not
// pending events of the batch, or whose totals drift from those events.
func checkDistribution(dist *models.DistributionEvent, batch []*models.SubscriptionEvent) error {
	if len(dist.SourceEventIDs) == 0 {
		return fmt.Errorf("distribution covers none of the %d pending events", len(batch))
	}
	inBatch := make(map[string]int64, len(batch))
	for _, event := range batch {
		inBatch[event.ID] = event.Amount
	}

	var sourceTotal int64
	seen := make(map[string]bool, len(dist.SourceEventIDs))
	for _, id := range dist.SourceEventIDs {
		amount, ok := inBatch[id]
		if !ok || seen[id] {
			return fmt.Errorf("distribution source %s is not a pending event", id)
		}
		seen[id] = true
		var err error
		if sourceTotal, err = money.Add(sourceTotal, amount); err != nil {
			return fmt.Errorf("distribution sources: %w", err)
		}
	}
	if dist.Total != sourceTotal {
		return fmt.Errorf("distribution total %d does not match source total %d", dist.Total, sourceTotal)
	}

	var allocated int64
	for account, amount := range dist.Allocations {
		if amount < 0 {
			return fmt.Errorf("negative allocation %d to %s", amount, account)
		}
		var err error
		if allocated, err = money.Add(allocated, amount); err != nil {
			return fmt.Errorf("allocations: %w", err)
		}
	}
	if allocated != dist.Total {
		return fmt.Errorf("allocations sum to %d, expected %d", allocated, dist.Total)
	}
	return nil
}

// ListDistributions retrieves distributions newest first, with their
// allocations and source events.
func (s *SQLiteStore) ListDistributions(ctx context.Context, limit int) ([]*models.DistributionEvent, error) {
	query := "SELECT id, total_minor, currency, created_at FROM distribution_events ORDER BY created_at DESC, id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("failed to list distributions", err)
	}

	var dists []*models.DistributionEvent
	for rows.Next() {
		dist := &models.DistributionEvent{Allocations: make(map[string]int64)}
		var createdAt int64
		if err := rows.Scan(&dist.ID, &dist.Total, &dist.Currency, &createdAt); err != nil {
			rows.Close()
			return nil, classify("failed to scan distribution", err)
		}
		dist.CreatedAt = fromNanos(createdAt)
		dists = append(dists, dist)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify("failed to iterate distributions", err)
	}

	for _, dist := range dists {
		if err := s.loadDistributionDetails(ctx, dist); err != nil {
			return nil, err
		}
	}

	return dists, nil
}

func (s *SQLiteStore) loadDistributionDetails(ctx context.Context, dist *models.DistributionEvent) error {
	allocRows, err := s.db.QueryContext(ctx,
		"SELECT account, amount_minor FROM distribution_allocations WHERE distribution_id = ?",
		dist.ID,
	)
	if err != nil {
		return classify("failed to get allocations", err)
	}
	for allocRows.Next() {
		var account string
		var amount int64
		if err := allocRows.Scan(&account, &amount); err != nil {
			allocRows.Close()
			return classify("failed to scan allocation", err)
		}
		dist.Allocations[account] = amount
	}
	allocRows.Close()
	if err := allocRows.Err(); err != nil {
		return classify("failed to iterate allocations", err)
	}

	sourceRows, err := s.db.QueryContext(ctx,
		"SELECT source_event_id FROM distribution_sources WHERE distribution_id = ? ORDER BY source_event_id",
		dist.ID,
	)
	if err != nil {
		return classify("failed to get distribution sources", err)
	}
	defer sourceRows.Close()
	for sourceRows.Next() {
		var eventID string
		if err := sourceRows.Scan(&eventID); err != nil {
			return classify("failed to scan distribution source", err)
		}
		dist.SourceEventIDs = append(dist.SourceEventIDs, eventID)
	}
	if err := sourceRows.Err(); err != nil {
		return classify("failed to iterate distribution sources", err)
	}
	return nil
}

// Snapshot reads all-time aggregates inside one read transaction, so a
// distribution committing concurrently is either fully visible or not at all.
func (s *SQLiteStore) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return storage.Snapshot{}, classify("failed to begin snapshot", err)
	}
	defer tx.Rollback()

	var snap storage.Snapshot
	if snap.Distributed, err = distributedTotal(ctx, tx); err != nil {
		return storage.Snapshot{}, err
	}
	if snap.AccountTotals, err = accountTotals(ctx, tx); err != nil {
		return storage.Snapshot{}, err
	}
	if snap.Settled, err = settledTotals(ctx, tx, time.Time{}); err != nil {
		return storage.Snapshot{}, err
	}
	return snap, nil
}

func accountTotals(ctx context.Context, q querier) (map[string]int64, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT account, SUM(amount_minor) FROM distribution_allocations GROUP BY account",
	)
	if err != nil {
		return nil, classify("failed to sum allocations", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var account string
		var amount int64
		if err := rows.Scan(&account, &amount); err != nil {
			return nil, classify("failed to scan allocation sum", err)
		}
		totals[account] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, classify("failed to iterate allocation sums", err)
	}
	return totals, nil
}

func distributedTotal(ctx context.Context, q querier) (int64, error) {
	var total int64
	err := q.QueryRowContext(ctx, "SELECT COALESCE(SUM(total_minor), 0) FROM distribution_events").Scan(&total)
	if err != nil {
		return 0, classify("failed to sum distributions", err)
	}
	return total, nil
}
