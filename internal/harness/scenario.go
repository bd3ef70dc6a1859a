package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
)

// Scenario is one harness run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is the catalog file to seed, relative to the scenario file.
	Catalog string `yaml:"catalog"`

	// Orders are processed in sequence.
	Orders []OrderStep `yaml:"orders"`

	// Assertions validate the final state and activity log.
	Assertions []Assertion `yaml:"assertions"`
}

// OrderStep is one order delivery.
type OrderStep struct {
	ID       string   `yaml:"id"`
	Evidence []string `yaml:"evidence"`
	Total    float64  `yaml:"total,omitempty"`

	// Expect is checked against the order's result when set.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of one order. Nil fields are not checked.
type Expect struct {
	Solved      []string `yaml:"solved,omitempty"`
	NewEvidence []string `yaml:"new_evidence,omitempty"`
	Duplicate   *bool    `yaml:"duplicate,omitempty"`
	// Error is a substring of the expected error. Empty expects success.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the outcome of the whole scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Cases are case ids (solved, unsolved).
	Cases []string `yaml:"cases,omitempty"`

	// Evidence are evidence ids (purchased, not_purchased).
	Evidence []string `yaml:"evidence,omitempty"`

	// Event is the activity type (event_count).
	Event activity.Type `yaml:"event,omitempty"`

	// Case narrows event_count to events about one case.
	Case string `yaml:"case,omitempty"`

	// Count is the expected number of events (event_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected relative order of activity types (event_order).
	Events []activity.Type `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertSolved       = "solved"
	AssertUnsolved     = "unsolved"
	AssertPurchased    = "purchased"
	AssertNotPurchased = "not_purchased"
	AssertEventCount   = "event_count"
	AssertEventOrder   = "event_order"
)

// LoadScenario reads and validates a scenario file. The catalog path is
// resolved relative to the scenario file.
//
// Unknown fields are errors so that typos like "assertion:" are caught.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
		return fmt.Errorf("catalog file not found: %s", s.Catalog)
	}
	if len(s.Orders) == 0 {
		return fmt.Errorf("orders list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, o := range s.Orders {
		if o.Evidence == nil {
			return fmt.Errorf("orders[%d]: evidence is required (use [] for an empty order)", i)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertSolved, AssertUnsolved:
		if len(a.Cases) == 0 {
			return fmt.Errorf("assertions[%d]: cases list is required for %s", index, a.Type)
		}
	case AssertPurchased, AssertNotPurchased:
		if len(a.Evidence) == 0 {
			return fmt.Errorf("assertions[%d]: evidence list is required for %s", index, a.Type)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertions[%d]: event_order needs at least two events", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
