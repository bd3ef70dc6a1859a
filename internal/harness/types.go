package harness

import "time"

// OrderTrace records what one order did.
type OrderTrace struct {
	Seq           int      `json:"seq"`
	OrderID       string   `json:"order_id"`
	EvidenceIDs   []string `json:"evidence_ids"`
	SolvedCaseIDs []string `json:"solved_case_ids"`
	NewEvidence   []string `json:"new_evidence"`
	Duplicate     bool     `json:"duplicate"`
	Error         string   `json:"error,omitempty"`
}

// EventTrace is an activity log entry in trace form.
type EventTrace struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	OrderID    string    `json:"order_id,omitempty"`
	CaseID     string    `json:"case_id,omitempty"`
	EvidenceID string    `json:"evidence_id,omitempty"`
}

// State is the ledger and case status after the last order.
type State struct {
	Solved    []string `json:"solved"`
	Unsolved  []string `json:"unsolved"`
	Purchased []string `json:"purchased"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Orders []OrderTrace `json:"orders"`
	Events []EventTrace `json:"events"`
	State  State        `json:"state"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Orders: []OrderTrace{},
		Events: []EventTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
