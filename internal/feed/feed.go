// Package feed serves the live activity feed.
//
// Each observer connection runs its own Broadcaster.Serve loop. The loop
// polls the activity log on a fixed interval from a cursor that starts at
// the moment of subscription, sends what it finds in (Timestamp, ID) order
// and advances the cursor past every event it sent. The cursor lives only in
// the loop, so a dropped connection leaves nothing behind on the server.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
	"github.com/bedwards/imaginary-crime-lab/internal/clock"
)

var connections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "crimelab_feed_connections",
	Help: "Live feed connections currently being served",
})

// Reader is the part of an activity.Log the feed needs.
type Reader interface {
	Since(ctx context.Context, c activity.Cursor, limit int) ([]activity.Event, error)
	Between(ctx context.Context, from, to time.Time) ([]activity.Event, error)
}

// Config controls the polling loop.
type Config struct {
	// Interval between polls.
	Interval time.Duration

	// Lifetime bounds how long one connection is served before the client
	// is told to reconnect.
	Lifetime time.Duration

	// ActiveWindow is how far back a session's last event may be for it to
	// count as active.
	ActiveWindow time.Duration

	// BatchSize caps one log read. A full batch is followed immediately by
	// another read.
	BatchSize int
}

// DefaultConfig returns the reference polling configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     3 * time.Second,
		Lifetime:     5 * time.Minute,
		ActiveWindow: 30 * time.Second,
		BatchSize:    500,
	}
}

// SendFunc delivers one event to the observer. An error means the observer
// is gone.
type SendFunc func(activity.Event) error

// Broadcaster runs feed loops over one activity log.
type Broadcaster struct {
	log    Reader
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithClock sets the clock for the initial cursor and the active window.
func WithClock(c clock.Clock) Option {
	return func(b *Broadcaster) { b.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broadcaster) { b.logger = l }
}

// New creates a Broadcaster. Zero fields of cfg take their DefaultConfig value.
func New(log Reader, cfg Config, opts ...Option) *Broadcaster {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = def.Lifetime
	}
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = def.ActiveWindow
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	b := &Broadcaster{log: log, cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	b.clock = clock.Or(b.clock)
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Serve runs one observer's feed until ctx is cancelled, send fails or the
// connection lifetime ends.
//
// Only events after the moment Serve is called are delivered. Each poll
// sends new events followed by a connection_count event. When the lifetime
// ends a final reconnect event is sent and Serve returns nil. Cancellation
// also returns nil. A send failure is returned wrapped. Log read failures
// are logged and retried on the next tick.
func (b *Broadcaster) Serve(ctx context.Context, send SendFunc) error {
	connections.Inc()
	defer connections.Dec()

	cursor := activity.Cursor{Time: b.clock.Now()}
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()
	deadline := time.NewTimer(b.cfg.Lifetime)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			hint := activity.Event{Type: activity.TypeReconnect, Timestamp: b.clock.Now()}
			if err := send(hint); err != nil {
				return fmt.Errorf("send reconnect: %w", err)
			}
			return nil
		case <-ticker.C:
			next, err := b.poll(ctx, cursor, send)
			cursor = next
			if err != nil {
				return err
			}
		}
	}
}

// poll delivers everything after cursor and the active session count. It
// returns the advanced cursor.
func (b *Broadcaster) poll(ctx context.Context, cursor activity.Cursor, send SendFunc) (activity.Cursor, error) {
	for {
		events, err := b.log.Since(ctx, cursor, b.cfg.BatchSize)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				b.logger.Warn("feed read failed, retrying next tick", "error", err)
			}
			break
		}
		for _, e := range events {
			if err := send(e); err != nil {
				return cursor, fmt.Errorf("send %s: %w", e.Type, err)
			}
			cursor = activity.CursorAt(e)
		}
		if len(events) < b.cfg.BatchSize {
			break
		}
	}

	now := b.clock.Now()
	recent, err := b.log.Between(ctx, now.Add(-b.cfg.ActiveWindow), now)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			b.logger.Warn("feed session count failed", "error", err)
		}
		return cursor, nil
	}
	count := activity.Event{
		Type:      activity.TypeConnectionCount,
		Timestamp: now,
		Payload:   activity.Payload{Count: activeSessions(recent)},
	}
	if err := send(count); err != nil {
		return cursor, fmt.Errorf("send %s: %w", count.Type, err)
	}
	return cursor, nil
}

func activeSessions(events []activity.Event) int {
	sessions := make(map[string]struct{})
	for _, e := range events {
		if e.SessionID != "" {
			sessions[e.SessionID] = struct{}{}
		}
	}
	return len(sessions)
}
