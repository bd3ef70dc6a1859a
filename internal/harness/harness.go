package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
	"github.com/bedwards/imaginary-crime-lab/internal/catalog"
	"github.com/bedwards/imaginary-crime-lab/internal/engine"
	"github.com/bedwards/imaginary-crime-lab/internal/store"
	"github.com/bedwards/imaginary-crime-lab/internal/testutil"
)

// orderSpacing is how far the clock moves between orders.
const orderSpacing = time.Second

// Harness holds the components of one scenario run.
type Harness struct {
	store     *store.Store
	committer *engine.Committer
	log       *activity.MemoryLog
	clock     *testutil.ManualClock
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database and activity log.
// An error is returned only when the run itself could not be set up; failed
// expectations and assertions are reported in the Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	cat, err := catalog.Load(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	clk := testutil.NewManualClock(testutil.Epoch)
	st, err := store.Open(":memory:", store.WithClock(clk))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if _, err := st.Seed(ctx, cat); err != nil {
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ids := testutil.NewSequenceIDGenerator("evt")
	log := activity.NewMemoryLog(activity.DefaultRetention, clk)
	rec := activity.NewRecorder(log,
		activity.WithClock(clk),
		activity.WithIDGenerator(ids),
		activity.WithLogger(logger),
	)
	h := &Harness{
		store: st,
		committer: engine.NewCommitter(st, rec,
			engine.WithClock(clk),
			engine.WithIDGenerator(ids),
			engine.WithLogger(logger),
		),
		log:   log,
		clock: clk,
	}

	result := NewResult()
	for i, step := range scenario.Orders {
		h.clock.Advance(orderSpacing)
		h.executeOrder(ctx, i, step, result)
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeOrder processes one order and checks its expectation.
func (h *Harness) executeOrder(ctx context.Context, index int, step OrderStep, result *Result) {
	res, err := h.committer.ProcessOrder(ctx, engine.Order{
		ID:          step.ID,
		EvidenceIDs: step.Evidence,
		TotalAmount: step.Total,
	})

	trace := OrderTrace{
		Seq:           index + 1,
		OrderID:       step.ID,
		EvidenceIDs:   nonNil(step.Evidence),
		SolvedCaseIDs: nonNil(res.SolvedCaseIDs),
		NewEvidence:   nonNil(res.NewEvidence),
		Duplicate:     res.Duplicate,
	}
	if err != nil {
		trace.Error = err.Error()
	}
	result.Orders = append(result.Orders, trace)

	if step.Expect == nil {
		if err != nil {
			result.AddError(fmt.Sprintf("orders[%d] %s: unexpected error: %v", index, step.ID, err))
		}
		return
	}
	for _, msg := range checkExpect(step.Expect, trace) {
		result.AddError(fmt.Sprintf("orders[%d] %s: %s", index, step.ID, msg))
	}
}

func checkExpect(want *Expect, got OrderTrace) []string {
	var problems []string
	switch {
	case want.Error == "" && got.Error != "":
		problems = append(problems, fmt.Sprintf("unexpected error: %s", got.Error))
	case want.Error != "" && !strings.Contains(got.Error, want.Error):
		problems = append(problems, fmt.Sprintf("error = %q, expected it to contain %q", got.Error, want.Error))
	}
	if want.Solved != nil && !slices.Equal(sorted(want.Solved), got.SolvedCaseIDs) {
		problems = append(problems, fmt.Sprintf("solved = %v, expected %v", got.SolvedCaseIDs, want.Solved))
	}
	if want.NewEvidence != nil && !slices.Equal(sorted(want.NewEvidence), got.NewEvidence) {
		problems = append(problems, fmt.Sprintf("new_evidence = %v, expected %v", got.NewEvidence, want.NewEvidence))
	}
	if want.Duplicate != nil && *want.Duplicate != got.Duplicate {
		problems = append(problems, fmt.Sprintf("duplicate = %t, expected %t", got.Duplicate, *want.Duplicate))
	}
	return problems
}

// collect reads the final state and the activity log into result.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	cases, err := h.store.ListCases(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cases: %w", err)
	}
	result.State.Solved = []string{}
	result.State.Unsolved = []string{}
	for _, c := range cases {
		if c.Solved() {
			result.State.Solved = append(result.State.Solved, c.ID)
		} else {
			result.State.Unsolved = append(result.State.Unsolved, c.ID)
		}
	}

	result.State.Purchased, err = h.store.PurchasedIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	events, err := h.log.Between(ctx, testutil.Epoch, h.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to read activity log: %w", err)
	}
	for _, e := range events {
		result.Events = append(result.Events, EventTrace{
			ID:         e.ID,
			Type:       string(e.Type),
			Timestamp:  e.Timestamp,
			OrderID:    e.Payload.OrderID,
			CaseID:     e.Payload.CaseID,
			EvidenceID: e.Payload.EvidenceID,
		})
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func sorted(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}
