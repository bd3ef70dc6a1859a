package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
)

func sampleResult() *Result {
	r := NewResult()
	r.State = State{
		Solved:    []string{"C1"},
		Unsolved:  []string{"C2"},
		Purchased: []string{"X", "Y"},
	}
	r.Events = []EventTrace{
		{ID: "evt-0001", Type: "evidence_purchased", EvidenceID: "X"},
		{ID: "evt-0002", Type: "evidence_purchased", EvidenceID: "Y"},
		{ID: "evt-0003", Type: "case_solved", CaseID: "C1"},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertSolved, Cases: []string{"C1"}},
		{Type: AssertUnsolved, Cases: []string{"C2"}},
		{Type: AssertPurchased, Evidence: []string{"X", "Y"}},
		{Type: AssertNotPurchased, Evidence: []string{"Z"}},
		{Type: AssertEventCount, Event: activity.TypeEvidencePurchased, Count: 2},
		{Type: AssertEventCount, Event: activity.TypeCaseSolved, Case: "C2", Count: 0},
		{Type: AssertEventOrder, Events: []activity.Type{activity.TypeEvidencePurchased, activity.TypeCaseSolved}},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name string
		a    Assertion
		want string
	}{
		{"solved", Assertion{Type: AssertSolved, Cases: []string{"C2"}}, "solved includes [C2]"},
		{"not purchased", Assertion{Type: AssertNotPurchased, Evidence: []string{"X"}}, "purchased excludes [X]"},
		{"event count", Assertion{Type: AssertEventCount, Event: activity.TypeCaseSolved, Case: "C1", Count: 2}, "2 case_solved for C1 event(s)"},
		{"order", Assertion{Type: AssertEventOrder, Events: []activity.Type{activity.TypeCaseSolved, activity.TypeEvidencePurchased}}, "before a preceding type"},
		{"missing type", Assertion{Type: AssertEventOrder, Events: []activity.Type{activity.TypeEvidencePurchased, activity.TypeCartAdd}}, "cart_add not found"},
		{"unknown", Assertion{Type: "final_state"}, `unknown assertion type "final_state"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.a})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestAssertionError_IncludesActivityLog(t *testing.T) {
	err := &AssertionError{
		Type:     AssertSolved,
		Expected: "solved includes [C2]",
		Actual:   "solved = [C1]",
		Events:   sampleResult().Events,
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: solved")
	assert.Contains(t, msg, "[3] case_solved C1")
}
