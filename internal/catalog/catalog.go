package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// Evidence is a purchasable evidence unit as shown to players.
// The resolution engine only ever looks at ID.
type Evidence struct {
	ID    string  `json:"id" yaml:"id" validate:"required"`
	Name  string  `json:"name" yaml:"name"`
	Price float64 `json:"price" yaml:"price" validate:"gte=0"`
}

// Case is a detective case and the evidence that solves it.
type Case struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Title       string   `json:"title" yaml:"title" validate:"required"`
	Description string   `json:"description" yaml:"description"`
	Solution    string   `json:"solution" yaml:"solution"`
	Requires    []string `json:"requires" yaml:"requires" validate:"required,min=1,dive,required"`
}

// Catalog is the full set of cases and evidence units.
type Catalog struct {
	Evidence []Evidence `json:"evidence" yaml:"evidence" validate:"dive"`
	Cases    []Case     `json:"cases" yaml:"cases" validate:"required,min=1,dive"`
}

var validate = validator.New()

// IntegrityError lists every data-integrity problem found in a catalog.
type IntegrityError struct {
	Source   string
	Problems []string
}

func (e *IntegrityError) Error() string {
	src := e.Source
	if src == "" {
		src = "catalog"
	}
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", src, e.Problems[0])
	}
	return fmt.Sprintf("%s: %d integrity problems: %s", src, len(e.Problems), strings.Join(e.Problems, "; "))
}

// NormalizeID returns id in Unicode NFC with surrounding whitespace removed.
//
// Every identifier entering the system (catalog, webhook, activity intake)
// goes through NormalizeID so that visually identical ids compare equal.
func NormalizeID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}

// Prepare normalises identifiers, deduplicates requirement sets and checks
// integrity. It mutates c in place and returns an *IntegrityError listing all
// problems, or nil.
func (c *Catalog) Prepare(source string) error {
	c.normalize()

	var problems []string
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}
	problems = append(problems, c.integrityProblems()...)

	if len(problems) > 0 {
		return &IntegrityError{Source: source, Problems: problems}
	}
	return nil
}

func (c *Catalog) normalize() {
	for i := range c.Evidence {
		c.Evidence[i].ID = NormalizeID(c.Evidence[i].ID)
	}
	for i := range c.Cases {
		cs := &c.Cases[i]
		cs.ID = NormalizeID(cs.ID)
		seen := make(map[string]struct{}, len(cs.Requires))
		reqs := make([]string, 0, len(cs.Requires))
		for _, r := range cs.Requires {
			r = NormalizeID(r)
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			reqs = append(reqs, r)
		}
		sort.Strings(reqs)
		cs.Requires = reqs
	}
}

func (c *Catalog) integrityProblems() []string {
	var problems []string

	evidence := make(map[string]struct{}, len(c.Evidence))
	for _, e := range c.Evidence {
		if e.ID == "" {
			continue
		}
		if _, dup := evidence[e.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate evidence id %q", e.ID))
		}
		evidence[e.ID] = struct{}{}
	}

	cases := make(map[string]struct{}, len(c.Cases))
	for _, cs := range c.Cases {
		if cs.ID == "" {
			continue
		}
		if _, dup := cases[cs.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate case id %q", cs.ID))
		}
		cases[cs.ID] = struct{}{}

		// A catalog without an evidence list cannot check references.
		if len(evidence) == 0 {
			continue
		}
		for _, r := range cs.Requires {
			if r == "" {
				continue
			}
			if _, ok := evidence[r]; !ok {
				problems = append(problems, fmt.Sprintf("case %q requires unknown evidence %q", cs.ID, r))
			}
		}
	}
	return problems
}

// Case returns the case with the given id.
func (c *Catalog) Case(id string) (Case, bool) {
	for _, cs := range c.Cases {
		if cs.ID == id {
			return cs, true
		}
	}
	return Case{}, false
}

// Requirements maps every case id to its required evidence ids.
func (c *Catalog) Requirements() map[string][]string {
	out := make(map[string][]string, len(c.Cases))
	for _, cs := range c.Cases {
		out[cs.ID] = append([]string(nil), cs.Requires...)
	}
	return out
}
