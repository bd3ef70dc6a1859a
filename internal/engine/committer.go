package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
	"github.com/bedwards/imaginary-crime-lab/internal/clock"
	"github.com/bedwards/imaginary-crime-lab/internal/store"
)

const tracerName = "github.com/bedwards/imaginary-crime-lab/internal/engine"

// errLostRace aborts a resolution whose receipt insert found the order id
// already taken by a concurrent delivery.
var errLostRace = errors.New("order committed concurrently")

// Publisher appends activity events. Implemented by *activity.Recorder.
type Publisher interface {
	Append(ctx context.Context, e activity.Event) (activity.Event, error)
}

// Committer processes orders against the store.
//
// Committer holds no mutable state of its own. Any number of goroutines (or
// processes sharing the database file) may call ProcessOrder concurrently.
type Committer struct {
	store  *store.Store
	pub    Publisher
	clock  clock.Clock
	ids    activity.IDGenerator
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Committer.
type Option func(*Committer)

// WithClock sets the clock used for solve, receipt and event timestamps.
func WithClock(c clock.Clock) Option {
	return func(cm *Committer) { cm.clock = c }
}

// WithIDGenerator sets the generator for activity event ids.
func WithIDGenerator(g activity.IDGenerator) Option {
	return func(cm *Committer) { cm.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cm *Committer) { cm.logger = l }
}

// NewCommitter creates a Committer writing to st and publishing to pub.
func NewCommitter(st *store.Store, pub Publisher, opts ...Option) *Committer {
	c := &Committer{store: st, pub: pub}
	for _, opt := range opts {
		opt(c)
	}
	c.clock = clock.Or(c.clock)
	if c.ids == nil {
		c.ids = activity.UUIDv7Generator{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.tracer = otel.Tracer(tracerName)
	return c
}

// ProcessOrder resolves one order.
//
// On success the ledger, case states and receipt are committed and the
// order's activity events are published. A repeated order id returns
// Result{Duplicate: true} and changes nothing, though it does retry
// publishing any events an earlier delivery left in the outbox.
//
// Errors are *ResolveError. ErrCodeStorage means nothing was committed.
// ErrCodePublish means the resolution committed and the returned Result is
// valid, but its events are still waiting in the outbox.
func (c *Committer) ProcessOrder(ctx context.Context, o Order) (Result, error) {
	start := time.Now()
	defer func() { orderDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := c.tracer.Start(ctx, "engine.Committer.ProcessOrder",
		trace.WithAttributes(
			attribute.String("order_id", o.ID),
			attribute.Int("evidence_count", len(o.EvidenceIDs)),
		),
	)
	defer span.End()

	order, err := o.normalize()
	if err != nil {
		ordersProcessedTotal.WithLabelValues(resultInvalid).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid order")
		return Result{}, err
	}

	res, staged, err := c.resolve(ctx, order)
	if errors.Is(err, errLostRace) {
		res, staged, err = Result{Duplicate: true}, nil, nil
	}
	if err != nil {
		ordersProcessedTotal.WithLabelValues(resultError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution rolled back")
		c.logger.Error("order resolution failed", "order", order.ID, "error", err)
		return Result{}, newStorageError(order.ID, err)
	}

	if res.Duplicate {
		ordersProcessedTotal.WithLabelValues(resultDuplicate).Inc()
		span.SetAttributes(attribute.Bool("duplicate", true))
		c.logger.Info("duplicate order ignored", "order", order.ID)
		if err := c.FlushOutbox(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "outbox flush failed")
			return res, newPublishError(order.ID, err)
		}
		span.SetStatus(codes.Ok, "duplicate")
		return res, nil
	}

	if len(res.SolvedCaseIDs) > 0 {
		ordersProcessedTotal.WithLabelValues(resultSolved).Inc()
	} else {
		ordersProcessedTotal.WithLabelValues(resultRecorded).Inc()
	}
	casesSolvedTotal.Add(float64(len(res.SolvedCaseIDs)))
	span.SetAttributes(
		attribute.StringSlice("solved_case_ids", res.SolvedCaseIDs),
		attribute.Int("new_evidence", len(res.NewEvidence)),
	)
	c.logger.Info("order resolved",
		"order", order.ID,
		"evidence", order.EvidenceIDs,
		"new_evidence", res.NewEvidence,
		"solved", res.SolvedCaseIDs,
	)

	if err := c.publish(ctx, staged); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return res, newPublishError(order.ID, err)
	}
	span.SetStatus(codes.Ok, "resolved")
	return res, nil
}

// resolve runs the resolution transaction and returns the events it staged.
func (c *Committer) resolve(ctx context.Context, order Order) (Result, []activity.Event, error) {
	var (
		res    Result
		staged []activity.Event
	)
	err := c.store.WithTx(ctx, func(tx *store.Tx) error {
		dup, err := tx.HasPurchase(ctx, order.ID)
		if err != nil {
			return err
		}
		if dup {
			res.Duplicate = true
			return nil
		}

		now := c.clock.Now()
		res.NewEvidence = []string{}
		for _, evidenceID := range order.EvidenceIDs {
			newly, err := tx.RecordPurchased(ctx, evidenceID, order.ID, now)
			if err != nil {
				return err
			}
			if newly {
				res.NewEvidence = append(res.NewEvidence, evidenceID)
			}
		}

		// Evaluate against everything ever purchased, as this transaction
		// sees it, not only this order.
		purchased, err := tx.PurchasedSet(ctx)
		if err != nil {
			return err
		}
		requirements, err := tx.UnsolvedRequirements(ctx)
		if err != nil {
			return err
		}

		res.SolvedCaseIDs = []string{}
		for _, caseID := range Evaluate(purchased, requirements) {
			solved, err := tx.MarkSolved(ctx, caseID, now)
			if err != nil {
				return err
			}
			if solved {
				res.SolvedCaseIDs = append(res.SolvedCaseIDs, caseID)
			}
		}

		inserted, err := tx.WritePurchase(ctx, store.Purchase{
			OrderID:       order.ID,
			EvidenceIDs:   order.EvidenceIDs,
			SolvedCaseIDs: res.SolvedCaseIDs,
			TotalAmount:   order.TotalAmount,
			ProcessedAt:   now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return errLostRace
		}

		staged = c.events(order.ID, res, now)
		for _, e := range staged {
			payload, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode %s event: %w", e.Type, err)
			}
			if err := tx.EnqueueEvent(ctx, e.ID, payload, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, nil, err
	}
	return res, staged, nil
}

// events builds the activity produced by a resolution: one
// evidence_purchased per newly recorded unit, then one case_solved per newly
// solved case.
func (c *Committer) events(orderID string, res Result, at time.Time) []activity.Event {
	events := make([]activity.Event, 0, len(res.NewEvidence)+len(res.SolvedCaseIDs))
	for _, evidenceID := range res.NewEvidence {
		events = append(events, activity.Event{
			ID:        c.ids.Generate(),
			Type:      activity.TypeEvidencePurchased,
			Timestamp: at,
			Payload:   activity.Payload{EvidenceID: evidenceID, OrderID: orderID},
		})
	}
	for _, caseID := range res.SolvedCaseIDs {
		events = append(events, activity.Event{
			ID:        c.ids.Generate(),
			Type:      activity.TypeCaseSolved,
			Timestamp: at,
			Payload:   activity.Payload{CaseID: caseID, OrderID: orderID},
		})
	}
	return events
}

// publish appends staged events and removes them from the outbox. Events
// that fail to append stay in the outbox.
func (c *Committer) publish(ctx context.Context, events []activity.Event) error {
	delivered := make([]string, 0, len(events))
	var errs []error
	for _, e := range events {
		// Observers only read past their cursor, so an event carries its
		// append time, not the time it was staged.
		e.Timestamp = time.Time{}
		if _, err := c.pub.Append(ctx, e); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = append(delivered, e.ID)
	}
	if err := c.store.DeleteEvents(ctx, delivered...); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// FlushOutbox publishes every event still waiting in the outbox.
func (c *Committer) FlushOutbox(ctx context.Context) error {
	entries, err := c.store.PendingEvents(ctx, 0)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	events := make([]activity.Event, 0, len(entries))
	for _, entry := range entries {
		var e activity.Event
		if err := json.Unmarshal(entry.Payload, &e); err != nil {
			return fmt.Errorf("decode outbox event %s: %w", entry.EventID, err)
		}
		events = append(events, e)
	}
	c.logger.Info("flushing activity outbox", "events", len(events))
	return c.publish(ctx, events)
}

// Reset returns every case to unsolved and empties the ledger and receipts.
// The activity log is not touched.
func (c *Committer) Reset(ctx context.Context) error {
	if err := c.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	c.logger.Warn("case progress reset")
	return nil
}
