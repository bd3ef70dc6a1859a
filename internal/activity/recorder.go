package activity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bedwards/imaginary-crime-lab/internal/clock"
)

// Recorder stamps and appends events to a Log.
//
// Append writes synchronously and never waits on readers. A Recorder is safe
// for concurrent use if its Log is.
type Recorder struct {
	log    Log
	clock  clock.Clock
	ids    IDGenerator
	logger *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock sets the clock used to stamp events without a timestamp.
func WithClock(c clock.Clock) RecorderOption {
	return func(r *Recorder) { r.clock = c }
}

// WithIDGenerator sets the generator used for events without an id.
func WithIDGenerator(g IDGenerator) RecorderOption {
	return func(r *Recorder) { r.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// NewRecorder creates a Recorder writing to log.
func NewRecorder(log Log, opts ...RecorderOption) *Recorder {
	r := &Recorder{log: log}
	for _, opt := range opts {
		opt(r)
	}
	r.clock = clock.Or(r.clock)
	if r.ids == nil {
		r.ids = UUIDv7Generator{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Append fills in a missing id and timestamp, validates the event and writes
// it to the log. It returns the event as stored.
//
// An event that already carries an id keeps it, so re-appending the same
// event is idempotent.
func (r *Recorder) Append(ctx context.Context, e Event) (Event, error) {
	if e.ID == "" {
		e.ID = r.ids.Generate()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = r.clock.Now()
	}
	e.Timestamp = e.Timestamp.UTC()

	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	if err := r.log.Append(ctx, e); err != nil {
		return Event{}, fmt.Errorf("append %s event: %w", e.Type, err)
	}

	appendedTotal.WithLabelValues(string(e.Type)).Inc()
	r.logger.Debug("activity appended",
		"id", e.ID,
		"type", e.Type,
		"session", e.SessionID,
	)
	return e, nil
}

// Log returns the underlying log for readers.
func (r *Recorder) Log() Log {
	return r.log
}
