package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmynk/revshare/internal/ids"
	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/storage"
)

const subscriptionColumns = `id, payment_reference, subscriber_id, amount_minor, currency, status, created_at, resolved_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriptionEvent(row rowScanner) (*models.SubscriptionEvent, error) {
	event := &models.SubscriptionEvent{}
	var createdAt int64
	var resolvedAt sql.NullInt64
	var status string
	if err := row.Scan(&event.ID, &event.PaymentReference, &event.SubscriberID, &event.Amount,
		&event.Currency, &status, &createdAt, &resolvedAt); err != nil {
		return nil, err
	}
	event.Status = models.Status(status)
	event.CreatedAt = fromNanos(createdAt)
	if resolvedAt.Valid {
		event.ResolvedAt = fromNanos(resolvedAt.Int64)
	}
	return event, nil
}

// AppendSubscriptionEvent persists a new subscription event.
func (s *SQLiteStore) AppendSubscriptionEvent(ctx context.Context, event *models.SubscriptionEvent) error {
	if event.PaymentReference == "" {
		return fmt.Errorf("append subscription event: payment reference is required")
	}
	if !event.Status.Valid() {
		return fmt.Errorf("append subscription event: invalid status %q", event.Status)
	}
	if event.Amount <= 0 || event.Amount > models.MaxAmount {
		return fmt.Errorf("append subscription event: %w: %d", storage.ErrInvalidAmount, event.Amount)
	}

	// Generate ID if not set
	if event.ID == "" {
		event.ID = ids.NewSubscriptionEventID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	// Settled and failed events are resolved on arrival.
	if event.Status != models.StatusPending && event.ResolvedAt.IsZero() {
		event.ResolvedAt = event.CreatedAt
	}

	var resolvedAt any
	if !event.ResolvedAt.IsZero() {
		resolvedAt = toNanos(event.ResolvedAt)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscription_events (`+subscriptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.PaymentReference, event.SubscriberID, event.Amount,
		event.Currency, string(event.Status), toNanos(event.CreatedAt), resolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(err.Error(), "payment_reference") {
			return fmt.Errorf("%w: %s", storage.ErrDuplicatePayment, event.PaymentReference)
		}
		return classify("failed to insert subscription event", err)
	}

	return nil
}

// GetSubscriptionEventByReference retrieves a subscription event by payment reference.
func (s *SQLiteStore) GetSubscriptionEventByReference(ctx context.Context, paymentReference string) (*models.SubscriptionEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscription_events WHERE payment_reference = ?`,
		paymentReference,
	)
	event, err := scanSubscriptionEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment reference %s", storage.ErrNotFound, paymentReference)
	}
	if err != nil {
		return nil, classify("failed to get subscription event", err)
	}
	return event, nil
}

// TransitionStatus resolves a pending event. The WHERE clause guards the
// transition so it can only ever happen once.
func (s *SQLiteStore) TransitionStatus(ctx context.Context, paymentReference string, to models.Status, at time.Time) (*models.SubscriptionEvent, error) {
	if !models.StatusPending.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: pending -> %s", storage.ErrInvalidTransition, to)
	}
	if at.IsZero() {
		at = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE subscription_events SET status = ?, resolved_at = ?
		 WHERE payment_reference = ? AND status = 'pending'`,
		string(to), toNanos(at), paymentReference,
	)
	if err != nil {
		return nil, classify("failed to transition subscription event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, classify("failed to transition subscription event", err)
	}

	event, err := s.GetSubscriptionEventByReference(ctx, paymentReference)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return event, fmt.Errorf("%w: %s is %s", storage.ErrInvalidTransition, paymentReference, event.Status)
	}
	return event, nil
}

// ListSubscriptionEvents retrieves events newest first.
func (s *SQLiteStore) ListSubscriptionEvents(ctx context.Context, filter storage.EventFilter) ([]*models.SubscriptionEvent, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscription_events WHERE 1 = 1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, toNanos(filter.Since))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("failed to list subscription events", err)
	}
	defer rows.Close()

	var events []*models.SubscriptionEvent
	for rows.Next() {
		event, err := scanSubscriptionEvent(rows)
		if err != nil {
			return nil, classify("failed to scan subscription event", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("failed to iterate subscription events", err)
	}

	return events, nil
}

// SettledTotals aggregates settled events resolved at or after since.
func (s *SQLiteStore) SettledTotals(ctx context.Context, since time.Time) (storage.SettledTotals, error) {
	return settledTotals(ctx, s.db, since)
}

func settledTotals(ctx context.Context, q querier, since time.Time) (storage.SettledTotals, error) {
	var totals storage.SettledTotals
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_minor), 0), COUNT(*), COUNT(DISTINCT subscriber_id)
		 FROM subscription_events
		 WHERE status = 'settled' AND resolved_at >= ?`,
		toNanos(since),
	).Scan(&totals.Amount, &totals.Payments, &totals.Subscribers)
	if err != nil {
		return storage.SettledTotals{}, classify("failed to aggregate settled events", err)
	}
	return totals, nil
}
