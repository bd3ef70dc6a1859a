package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// OutboxEntry is an activity event committed alongside a resolution and not
// yet delivered to the activity log. Payload is opaque to the store.
type OutboxEntry struct {
	Seq       int64
	EventID   string
	Payload   []byte
	CreatedAt time.Time
}

// EnqueueEvent adds an event to the outbox outside any resolution.
// Re-enqueueing an event id is a no-op.
func (s *Store) EnqueueEvent(ctx context.Context, eventID string, payload []byte) error {
	return enqueueEvent(ctx, s.db, eventID, payload, s.now())
}

// PendingEvents returns undelivered outbox entries in commit order.
// A limit of zero or less returns every entry.
func (s *Store) PendingEvents(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `SELECT seq, event_id, payload, created_at FROM outbox ORDER BY seq ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	entries := []OutboxEntry{}
	for rows.Next() {
		var e OutboxEntry
		var payload string
		var createdAt int64
		if err := rows.Scan(&e.Seq, &e.EventID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		e.Payload = []byte(payload)
		e.CreatedAt = fromMillis(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// DeleteEvents removes delivered entries from the outbox.
func (s *Store) DeleteEvents(ctx context.Context, eventIDs ...string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(eventIDs)), ",")
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE event_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("delete outbox events: %w", err)
	}
	return nil
}

func enqueueEvent(ctx context.Context, q querier, eventID string, payload []byte, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO outbox (event_id, payload, created_at) VALUES (?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, eventID, string(payload), toMillis(at))
	if err != nil {
		return fmt.Errorf("enqueue event %q: %w", eventID, err)
	}
	return nil
}
