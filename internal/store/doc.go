// Package store provides SQLite-backed durable storage for the case
// resolution engine.
//
// The store holds:
//   - Cases: the case catalog and each case's solved timestamp
//   - Case Requirements: the required evidence set of every case
//   - Evidence: display metadata of purchasable evidence units
//   - Purchased Evidence: the global, append-only evidence ledger
//   - Purchases: one immutable receipt per external order id
//   - Outbox: activity events committed with a resolution, awaiting publication
//
// # Critical Patterns
//
// Idempotent writes:
//   - The ledger and purchase receipts are written with ON CONFLICT DO NOTHING
//   - RowsAffected() tells the caller whether the write was new
//
// Exactly-once solve:
//   - UPDATE cases SET solved_at = ? WHERE id = ? AND solved_at IS NULL
//   - Only the transaction whose update affects a row owns the solve
//
// Atomic resolution:
//   - Store.WithTx runs the whole resolution of one order in a single
//     IMMEDIATE transaction; any error rolls every step back
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: Write transactions take the write lock at BEGIN, so
//     two processes resolving orders never interleave read-then-write
//
// Timestamps are stored as INTEGER unix milliseconds (UTC).
package store
