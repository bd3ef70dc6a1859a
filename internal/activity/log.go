package activity

import (
	"context"
	"time"
)

// DefaultRetention is how long events stay in the log.
const DefaultRetention = 7 * 24 * time.Hour

// Log is an append-only, time-ordered event store with expiry.
type Log interface {
	// Append stores a validated event. An event whose ID is already stored
	// is dropped, whatever its Timestamp: the first append wins.
	Append(ctx context.Context, e Event) error

	// Since returns up to limit events strictly after the cursor in
	// (Timestamp, ID) order. limit <= 0 means no limit.
	Since(ctx context.Context, c Cursor, limit int) ([]Event, error)

	// Between returns every event with from <= Timestamp <= to in
	// (Timestamp, ID) order.
	Between(ctx context.Context, from, to time.Time) ([]Event, error)

	Close() error
}
