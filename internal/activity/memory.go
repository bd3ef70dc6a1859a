package activity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bedwards/imaginary-crime-lab/internal/clock"
)

// MemoryLog is a Log held in process memory.
//
// Expired events are dropped lazily on append and read, using the log's own
// clock. Thread-safety: safe for concurrent use via internal mutex.
type MemoryLog struct {
	mu        sync.Mutex
	events    []Event             // sorted by (Timestamp, ID)
	stored    map[string]struct{} // IDs in events
	retention time.Duration
	clock     clock.Clock
}

// NewMemoryLog creates an empty log. A non-positive retention selects
// DefaultRetention; a nil clock selects the system clock.
func NewMemoryLog(retention time.Duration, c clock.Clock) *MemoryLog {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryLog{
		stored:    make(map[string]struct{}),
		retention: retention,
		clock:     clock.Or(c),
	}
}

func (m *MemoryLog) Append(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()

	if _, ok := m.stored[e.ID]; ok {
		return nil
	}
	i := sort.Search(len(m.events), func(i int) bool { return !Less(m.events[i], e) })
	m.stored[e.ID] = struct{}{}
	m.events = append(m.events, Event{})
	copy(m.events[i+1:], m.events[i:])
	m.events[i] = e
	return nil
}

func (m *MemoryLog) Since(ctx context.Context, c Cursor, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()

	i := sort.Search(len(m.events), func(i int) bool { return c.Before(m.events[i]) })
	out := []Event{}
	for ; i < len(m.events); i++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *MemoryLog) Between(ctx context.Context, from, to time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()

	out := []Event{}
	for _, e := range m.events {
		if e.Timestamp.Before(from) {
			continue
		}
		if e.Timestamp.After(to) {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryLog) Close() error {
	return nil
}

// Len returns the number of unexpired events.
func (m *MemoryLog) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return len(m.events)
}

func (m *MemoryLog) expireLocked() {
	cutoff := m.clock.Now().Add(-m.retention)
	n := 0
	for n < len(m.events) && m.events[n].Timestamp.Before(cutoff) {
		delete(m.stored, m.events[n].ID)
		n++
	}
	if n > 0 {
		m.events = append(m.events[:0], m.events[n:]...)
	}
}
