package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
)

// AssertionError is returned when an assertion fails.
// It carries the activity log so a failure can be read without rerunning.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Events   []EventTrace
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nActivity log:\n")
		for i, ev := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s %s%s\n", i+1, ev.Type, ev.CaseID, ev.EvidenceID)
		}
	}
	return buf.String()
}

// assertMembership checks that every id in want is in got (or, with
// negate, that none is).
func assertMembership(kind string, got, want []string, negate bool, events []EventTrace) error {
	var wrong []string
	for _, id := range want {
		if slices.Contains(got, id) == negate {
			wrong = append(wrong, id)
		}
	}
	if len(wrong) == 0 {
		return nil
	}
	expected := fmt.Sprintf("%s includes %v", kind, want)
	if negate {
		expected = fmt.Sprintf("%s excludes %v", kind, want)
	}
	return &AssertionError{
		Type:     kind,
		Expected: expected,
		Actual:   fmt.Sprintf("%s = %v", kind, got),
		Events:   events,
	}
}

// assertEventCount checks the number of events of a type, optionally about
// one case.
func assertEventCount(events []EventTrace, a Assertion) error {
	count := 0
	for _, e := range events {
		if e.Type == string(a.Event) && (a.Case == "" || e.CaseID == a.Case) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	what := string(a.Event)
	if a.Case != "" {
		what += " for " + a.Case
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d %s event(s)", a.Count, what),
		Actual:   fmt.Sprintf("%d", count),
		Events:   events,
	}
}

// assertEventOrder checks that the first occurrence of each type appears in
// the given order. Other events may appear in between.
func assertEventOrder(events []EventTrace, order []activity.Type) error {
	last := -1
	for _, typ := range order {
		pos := slices.IndexFunc(events, func(e EventTrace) bool { return e.Type == string(typ) })
		if pos < 0 {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("events in order %v", order),
				Actual:   fmt.Sprintf("%s not found", typ),
				Events:   events,
			}
		}
		if pos < last {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("events in order %v", order),
				Actual:   fmt.Sprintf("%s first appears at %d, before a preceding type", typ, pos+1),
				Events:   events,
			}
		}
		last = pos
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertSolved:
			err = assertMembership("solved", result.State.Solved, a.Cases, false, result.Events)
		case AssertUnsolved:
			err = assertMembership("unsolved", result.State.Unsolved, a.Cases, false, result.Events)
		case AssertPurchased:
			err = assertMembership("purchased", result.State.Purchased, a.Evidence, false, result.Events)
		case AssertNotPurchased:
			err = assertMembership("purchased", result.State.Purchased, a.Evidence, true, result.Events)
		case AssertEventCount:
			err = assertEventCount(result.Events, a)
		case AssertEventOrder:
			err = assertEventOrder(result.Events, a.Events)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
