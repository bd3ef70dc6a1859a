// Package analytics computes rollups over the activity log on demand.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
	"github.com/bedwards/imaginary-crime-lab/internal/clock"
)

// DefaultTopN is the length of the ranked lists.
const DefaultTopN = 10

// Windows accepted by ParseWindow.
var windows = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
}

// DefaultWindow is used when no window is requested.
const DefaultWindow = "24h"

// ParseWindow maps a window name ("1h" or "24h") to its duration. An empty
// name selects DefaultWindow.
func ParseWindow(name string) (time.Duration, error) {
	if name == "" {
		name = DefaultWindow
	}
	d, ok := windows[name]
	if !ok {
		return 0, fmt.Errorf("unsupported window %q (want 1h or 24h)", name)
	}
	return d, nil
}

// Reader reads a time range of the activity log.
type Reader interface {
	Between(ctx context.Context, from, to time.Time) ([]activity.Event, error)
}

// Ranked is one entry of a top-N list.
type Ranked struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Summary is the rollup of one trailing window.
type Summary struct {
	From        time.Time             `json:"from"`
	To          time.Time             `json:"to"`
	TopCases    []Ranked              `json:"top_cases"`
	TopEvidence []Ranked              `json:"top_evidence"`
	ByType      map[activity.Type]int `json:"by_type"`
	Total       int                   `json:"total"`
}

// Aggregator summarizes activity. It keeps no state between calls.
type Aggregator struct {
	log    Reader
	clock  clock.Clock
	topN   int
	logger *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the clock that decides where a window ends.
func WithClock(c clock.Clock) Option {
	return func(a *Aggregator) { a.clock = c }
}

// WithTopN sets the ranked list length. Non-positive values are ignored.
func WithTopN(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topN = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// New creates an Aggregator reading from log.
func New(log Reader, opts ...Option) *Aggregator {
	a := &Aggregator{log: log, topN: DefaultTopN}
	for _, opt := range opts {
		opt(a)
	}
	a.clock = clock.Or(a.clock)
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Summarize rolls up the events of [now-window, now].
//
// Case views are ranked by case id and cart adds by evidence id, each by
// count descending then id ascending. If the log cannot be read the summary
// is empty; the failure is logged, not returned.
func (a *Aggregator) Summarize(ctx context.Context, window time.Duration) Summary {
	to := a.clock.Now()
	from := to.Add(-window)
	s := Summary{
		From:        from,
		To:          to,
		TopCases:    []Ranked{},
		TopEvidence: []Ranked{},
		ByType:      map[activity.Type]int{},
	}

	events, err := a.log.Between(ctx, from, to)
	if err != nil {
		a.logger.Warn("analytics read failed, returning empty summary", "window", window, "error", err)
		return s
	}

	views := map[string]int{}
	carts := map[string]int{}
	for _, e := range events {
		s.ByType[e.Type]++
		s.Total++
		switch e.Type {
		case activity.TypeCaseViewed:
			if e.Payload.CaseID != "" {
				views[e.Payload.CaseID]++
			}
		case activity.TypeCartAdd:
			if e.Payload.EvidenceID != "" {
				carts[e.Payload.EvidenceID]++
			}
		}
	}
	s.TopCases = rank(views, a.topN)
	s.TopEvidence = rank(carts, a.topN)
	return s
}

func rank(counts map[string]int, n int) []Ranked {
	ranked := make([]Ranked, 0, len(counts))
	for id, count := range counts {
		ranked = append(ranked, Ranked{ID: id, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
