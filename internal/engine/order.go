package engine

import (
	"sort"

	"github.com/bedwards/imaginary-crime-lab/internal/catalog"
)

// Order is a completed storefront checkout.
type Order struct {
	ID          string
	EvidenceIDs []string
	TotalAmount float64
}

// Result describes what processing an order changed.
type Result struct {
	// SolvedCaseIDs are the cases this order moved to SOLVED, sorted.
	SolvedCaseIDs []string

	// NewEvidence are the units this order added to the ledger, sorted.
	// Units bought earlier by anyone are not repeated here.
	NewEvidence []string

	// Duplicate is true when the order had already been processed. Nothing
	// was changed.
	Duplicate bool
}

// normalize returns the order with NFC-normalised ids and a sorted,
// deduplicated evidence list.
func (o Order) normalize() (Order, error) {
	o.ID = catalog.NormalizeID(o.ID)
	if o.ID == "" {
		return Order{}, newInvalidOrderError("", "order id is required")
	}
	if o.TotalAmount < 0 {
		return Order{}, newInvalidOrderError(o.ID, "total amount must not be negative")
	}

	seen := make(map[string]struct{}, len(o.EvidenceIDs))
	evidence := make([]string, 0, len(o.EvidenceIDs))
	for _, id := range o.EvidenceIDs {
		id = catalog.NormalizeID(id)
		if id == "" {
			return Order{}, newInvalidOrderError(o.ID, "evidence id must not be blank")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		evidence = append(evidence, id)
	}
	if len(evidence) == 0 {
		return Order{}, newInvalidOrderError(o.ID, "order carries no evidence")
	}
	sort.Strings(evidence)
	o.EvidenceIDs = evidence
	return o, nil
}
