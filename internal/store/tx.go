package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Tx is a resolution transaction. Every read and write made through a Tx
// commits or rolls back together.
//
// Transactions begin with BEGIN IMMEDIATE, so two resolutions never
// interleave their read-evaluate-write sequences.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a single write transaction.
//
// If fn returns an error the transaction is rolled back and the error is
// returned unchanged. Otherwise the transaction is committed. fn must only
// touch the database through tx.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// HasPurchase reports whether the order id is already recorded.
func (t *Tx) HasPurchase(ctx context.Context, orderID string) (bool, error) {
	return hasPurchase(ctx, t.tx, orderID)
}

// RecordPurchased adds an evidence unit to the ledger. See Store.RecordPurchased.
func (t *Tx) RecordPurchased(ctx context.Context, evidenceID, orderID string, at time.Time) (bool, error) {
	return recordPurchased(ctx, t.tx, evidenceID, orderID, at)
}

// PurchasedSet returns the ledger as seen by this transaction.
func (t *Tx) PurchasedSet(ctx context.Context) (map[string]struct{}, error) {
	return purchasedSet(ctx, t.tx)
}

// UnsolvedRequirements returns the requirement index of unsolved cases as
// seen by this transaction.
func (t *Tx) UnsolvedRequirements(ctx context.Context) (map[string][]string, error) {
	return allRequirements(ctx, t.tx, true)
}

// MarkSolved transitions a case to SOLVED. Reports false if the case was
// already solved or does not exist.
func (t *Tx) MarkSolved(ctx context.Context, caseID string, at time.Time) (bool, error) {
	return markSolved(ctx, t.tx, caseID, at)
}

// WritePurchase stores the receipt. Reports false if the order id is taken.
func (t *Tx) WritePurchase(ctx context.Context, p Purchase) (bool, error) {
	return writePurchase(ctx, t.tx, p)
}

// EnqueueEvent stages an activity event for delivery after commit.
func (t *Tx) EnqueueEvent(ctx context.Context, eventID string, payload []byte, at time.Time) error {
	return enqueueEvent(ctx, t.tx, eventID, payload, at)
}
