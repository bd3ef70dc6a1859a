package store

import (
	"context"
	"fmt"
)

// Reset returns the store to its freshly seeded state: every case unsolved,
// the ledger empty, no receipts and no staged events. The catalog itself is
// kept.
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		statements := []string{
			`DELETE FROM purchased_evidence`,
			`DELETE FROM purchases`,
			`DELETE FROM outbox`,
			`UPDATE cases SET solved_at = NULL`,
		}
		for _, stmt := range statements {
			if _, err := tx.tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("reset: %q: %w", stmt, err)
			}
		}
		return nil
	})
}
