package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Purchase is the receipt of one processed order.
type Purchase struct {
	OrderID       string
	EvidenceIDs   []string // sorted
	SolvedCaseIDs []string // sorted
	TotalAmount   float64
	ProcessedAt   time.Time
}

// HasPurchase reports whether an order id has already been processed.
func (s *Store) HasPurchase(ctx context.Context, orderID string) (bool, error) {
	return hasPurchase(ctx, s.db, orderID)
}

// WritePurchase stores a purchase receipt.
//
// Uses ON CONFLICT(order_id) DO NOTHING: the order id is the idempotency
// key, so a second receipt for the same order is dropped and inserted=false
// is returned.
func (s *Store) WritePurchase(ctx context.Context, p Purchase) (inserted bool, err error) {
	return writePurchase(ctx, s.db, p)
}

// ReadPurchase retrieves a receipt by order id.
// Returns sql.ErrNoRows if the order has not been processed.
func (s *Store) ReadPurchase(ctx context.Context, orderID string) (Purchase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT order_id, evidence_ids, solved_case_ids, total_amount, processed_at
		FROM purchases
		WHERE order_id = ?
	`, orderID)
	return scanPurchase(row)
}

// ListPurchases returns the most recent receipts, newest first.
// A limit of zero or less returns every receipt.
func (s *Store) ListPurchases(ctx context.Context, limit int) ([]Purchase, error) {
	query := `
		SELECT order_id, evidence_ids, solved_case_ids, total_amount, processed_at
		FROM purchases
		ORDER BY processed_at DESC, order_id COLLATE BINARY ASC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query purchases: %w", err)
	}
	defer rows.Close()

	purchases := []Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return purchases, nil
}

func hasPurchase(ctx context.Context, q querier, orderID string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM purchases WHERE order_id = ?
	`, orderID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("has purchase %q: %w", orderID, err)
	}
	return count > 0, nil
}

func writePurchase(ctx context.Context, q querier, p Purchase) (bool, error) {
	evidenceJSON, err := marshalIDs(p.EvidenceIDs)
	if err != nil {
		return false, err
	}
	solvedJSON, err := marshalIDs(p.SolvedCaseIDs)
	if err != nil {
		return false, err
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO purchases (order_id, evidence_ids, solved_case_ids, total_amount, processed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO NOTHING
	`, p.OrderID, evidenceJSON, solvedJSON, p.TotalAmount, toMillis(p.ProcessedAt))
	if err != nil {
		return false, fmt.Errorf("write purchase %q: %w", p.OrderID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write purchase %q: rows affected: %w", p.OrderID, err)
	}
	return rowsAffected > 0, nil
}

func scanPurchase(row rowScanner) (Purchase, error) {
	var p Purchase
	var evidenceJSON, solvedJSON string
	var processedAt int64
	err := row.Scan(&p.OrderID, &evidenceJSON, &solvedJSON, &p.TotalAmount, &processedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Purchase{}, err
		}
		return Purchase{}, fmt.Errorf("scan purchase: %w", err)
	}

	if p.EvidenceIDs, err = unmarshalIDs(evidenceJSON); err != nil {
		return Purchase{}, fmt.Errorf("purchase %q evidence: %w", p.OrderID, err)
	}
	if p.SolvedCaseIDs, err = unmarshalIDs(solvedJSON); err != nil {
		return Purchase{}, fmt.Errorf("purchase %q solved cases: %w", p.OrderID, err)
	}
	p.ProcessedAt = fromMillis(processedAt)
	return p, nil
}
