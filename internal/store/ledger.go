package store

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// RecordPurchased adds an evidence unit to the global evidence ledger.
//
// Uses ON CONFLICT(evidence_id) DO NOTHING for idempotency: recording a unit
// that is already present is a no-op reporting newlyRecorded=false. The first
// order that conveyed the unit is kept.
//
// The write is a single statement, so a failure leaves nothing recorded.
func (s *Store) RecordPurchased(ctx context.Context, evidenceID, orderID string) (newlyRecorded bool, err error) {
	return recordPurchased(ctx, s.db, evidenceID, orderID, s.now())
}

// IsPurchased reports whether an evidence unit has ever been purchased.
func (s *Store) IsPurchased(ctx context.Context, evidenceID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM purchased_evidence WHERE evidence_id = ?
	`, evidenceID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("is purchased: %w", err)
	}
	return count > 0, nil
}

// PurchasedSet returns every evidence unit ever purchased.
func (s *Store) PurchasedSet(ctx context.Context) (map[string]struct{}, error) {
	return purchasedSet(ctx, s.db)
}

// PurchasedIDs returns the purchased evidence ids in ascending order.
// Returns an empty slice (not nil) when the ledger is empty.
func (s *Store) PurchasedIDs(ctx context.Context) ([]string, error) {
	set, err := purchasedSet(ctx, s.db)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func recordPurchased(ctx context.Context, q querier, evidenceID, orderID string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO purchased_evidence (evidence_id, first_order_id, purchased_at)
		VALUES (?, ?, ?)
		ON CONFLICT(evidence_id) DO NOTHING
	`, evidenceID, orderID, toMillis(at))
	if err != nil {
		return false, fmt.Errorf("record purchased %q: %w", evidenceID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record purchased %q: rows affected: %w", evidenceID, err)
	}
	return rowsAffected > 0, nil
}

func purchasedSet(ctx context.Context, q querier) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, `SELECT evidence_id FROM purchased_evidence`)
	if err != nil {
		return nil, fmt.Errorf("query purchased evidence: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan purchased evidence: %w", err)
		}
		set[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchased evidence: %w", err)
	}
	return set, nil
}
