package store

import (
	"database/sql"
	"errors"
	"slices"
	"testing"

	"github.com/bedwards/imaginary-crime-lab/internal/catalog"
	"github.com/bedwards/imaginary-crime-lab/internal/testutil"
)

func TestSeed_InsertsCatalog(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	res, err := s.Seed(ctx, testCatalog(t))
	if err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	if res.CasesInserted != 2 || res.CasesUpdated != 0 || res.Evidence != 3 {
		t.Errorf("Seed() = %+v, want 2 inserted, 0 updated, 3 evidence", res)
	}

	cases, err := s.ListCases(ctx)
	if err != nil {
		t.Fatalf("ListCases() failed: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("ListCases() len = %d, want 2", len(cases))
	}
	if cases[0].ID != "case-001" || cases[1].ID != "case-002" {
		t.Errorf("cases not ordered by id: %s, %s", cases[0].ID, cases[1].ID)
	}
	if !slices.Equal(cases[1].RequiredEvidence, []string{"ledger-page", "train-ticket"}) {
		t.Errorf("case-002 requirements = %v", cases[1].RequiredEvidence)
	}
	for _, c := range cases {
		if c.Solved() {
			t.Errorf("%s seeded as solved", c.ID)
		}
	}
}

func TestSeed_Idempotent(t *testing.T) {
	s, _ := seededStore(t)
	ctx := t.Context()

	res, err := s.Seed(ctx, testCatalog(t))
	if err != nil {
		t.Fatalf("second Seed() failed: %v", err)
	}
	if res.CasesInserted != 0 || res.CasesUpdated != 2 {
		t.Errorf("second Seed() = %+v, want 0 inserted, 2 updated", res)
	}

	reqs, err := s.Requirements(ctx)
	if err != nil {
		t.Fatalf("Requirements() failed: %v", err)
	}
	if len(reqs["case-001"]) != 2 {
		t.Errorf("case-001 requirements duplicated or lost: %v", reqs["case-001"])
	}
}

func TestSeed_PreservesSolvedState(t *testing.T) {
	s, clk := seededStore(t)
	ctx := t.Context()

	err := s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.MarkSolved(ctx, "case-001", clk.Now())
		return err
	})
	if err != nil {
		t.Fatalf("MarkSolved() failed: %v", err)
	}

	cat := testCatalog(t)
	cat.Cases[0].Title = "Renamed"
	if _, err := s.Seed(ctx, cat); err != nil {
		t.Fatalf("reseed failed: %v", err)
	}

	c, err := s.ReadCase(ctx, "case-001")
	if err != nil {
		t.Fatalf("ReadCase() failed: %v", err)
	}
	if !c.Solved() {
		t.Error("reseed reset solved state")
	}
	if c.Title != "Renamed" {
		t.Errorf("Title = %q, want %q", c.Title, "Renamed")
	}
}

func TestSeed_ReplacesRequirementsOfUnsolvedCase(t *testing.T) {
	s, _ := seededStore(t)
	ctx := t.Context()

	cat := testCatalog(t)
	cat.Cases[1].Requires = []string{"train-ticket"}
	if _, err := s.Seed(ctx, cat); err != nil {
		t.Fatalf("reseed failed: %v", err)
	}

	got, err := s.RequirementsFor(ctx, "case-002")
	if err != nil {
		t.Fatalf("RequirementsFor() failed: %v", err)
	}
	if !slices.Equal(got, []string{"train-ticket"}) {
		t.Errorf("RequirementsFor(case-002) = %v, want [train-ticket]", got)
	}
}

func TestSeed_RejectsRequirementChangeOnSolvedCase(t *testing.T) {
	s, clk := seededStore(t)
	ctx := t.Context()

	err := s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.MarkSolved(ctx, "case-001", clk.Now())
		return err
	})
	if err != nil {
		t.Fatalf("MarkSolved() failed: %v", err)
	}

	cat := testCatalog(t)
	cat.Cases[0].Requires = []string{"fingerprint"}
	cat.Cases[0].Title = "Should not stick"
	_, err = s.Seed(ctx, cat)
	if !errors.Is(err, ErrRequirementsChanged) {
		t.Fatalf("Seed() error = %v, want ErrRequirementsChanged", err)
	}

	c, err := s.ReadCase(ctx, "case-001")
	if err != nil {
		t.Fatalf("ReadCase() failed: %v", err)
	}
	if c.Title == "Should not stick" {
		t.Error("failed seed was partially applied")
	}
}

func TestReadCase_NotFound(t *testing.T) {
	s, _ := seededStore(t)

	_, err := s.ReadCase(t.Context(), "case-404")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadCase() error = %v, want sql.ErrNoRows", err)
	}
	_, err = s.RequirementsFor(t.Context(), "case-404")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("RequirementsFor() error = %v, want sql.ErrNoRows", err)
	}
}

func TestListCases_EmptyStore(t *testing.T) {
	s := createTestStore(t)

	cases, err := s.ListCases(t.Context())
	if err != nil {
		t.Fatalf("ListCases() failed: %v", err)
	}
	if cases == nil || len(cases) != 0 {
		t.Errorf("ListCases() = %v, want empty non-nil slice", cases)
	}
}

func TestUnsolvedCases_ExcludesSolved(t *testing.T) {
	s, clk := seededStore(t)
	ctx := t.Context()

	err := s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.MarkSolved(ctx, "case-002", clk.Now())
		return err
	})
	if err != nil {
		t.Fatalf("MarkSolved() failed: %v", err)
	}

	ids, err := s.UnsolvedCases(ctx)
	if err != nil {
		t.Fatalf("UnsolvedCases() failed: %v", err)
	}
	if !slices.Equal(ids, []string{"case-001"}) {
		t.Errorf("UnsolvedCases() = %v, want [case-001]", ids)
	}

	reqs, err := s.Requirements(ctx)
	if err != nil {
		t.Fatalf("Requirements() failed: %v", err)
	}
	if _, ok := reqs["case-002"]; ok {
		t.Error("Requirements() includes solved case-002")
	}
}

func TestMarkSolved_OnlyOnce(t *testing.T) {
	s, clk := seededStore(t)
	ctx := t.Context()

	var first, second bool
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		if first, err = tx.MarkSolved(ctx, "case-001", clk.Now()); err != nil {
			return err
		}
		second, err = tx.MarkSolved(ctx, "case-001", clk.Advance(1))
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() failed: %v", err)
	}
	if !first || second {
		t.Errorf("MarkSolved() = %v then %v, want true then false", first, second)
	}

	c, err := s.ReadCase(ctx, "case-001")
	if err != nil {
		t.Fatalf("ReadCase() failed: %v", err)
	}
	if c.SolvedAt == nil || !c.SolvedAt.Equal(testutil.Epoch) {
		t.Errorf("SolvedAt = %v, want first solve time", c.SolvedAt)
	}
}

func TestListEvidence_MarksPurchased(t *testing.T) {
	s, _ := seededStore(t)
	ctx := t.Context()

	if _, err := s.RecordPurchased(ctx, "ledger-page", "order-1"); err != nil {
		t.Fatalf("RecordPurchased() failed: %v", err)
	}

	evidence, err := s.ListEvidence(ctx)
	if err != nil {
		t.Fatalf("ListEvidence() failed: %v", err)
	}
	want := map[string]bool{"fingerprint": false, "ledger-page": true, "train-ticket": false}
	if len(evidence) != len(want) {
		t.Fatalf("ListEvidence() len = %d, want %d", len(evidence), len(want))
	}
	for _, e := range evidence {
		if e.Purchased != want[e.ID] {
			t.Errorf("%s Purchased = %v, want %v", e.ID, e.Purchased, want[e.ID])
		}
	}
	if evidence[0].Price != 12.5 {
		t.Errorf("fingerprint price = %v, want 12.5", evidence[0].Price)
	}
}

func TestSeed_AcceptsCaseWithUnlistedEvidence(t *testing.T) {
	s := createTestStore(t)

	cat := &catalog.Catalog{
		Cases: []catalog.Case{{ID: "solo", Title: "Solo", Requires: []string{"anything"}}},
	}
	if err := cat.Prepare("inline"); err != nil {
		t.Fatalf("Prepare() failed: %v", err)
	}
	if _, err := s.Seed(t.Context(), cat); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	got, err := s.RequirementsFor(t.Context(), "solo")
	if err != nil {
		t.Fatalf("RequirementsFor() failed: %v", err)
	}
	if !slices.Equal(got, []string{"anything"}) {
		t.Errorf("RequirementsFor(solo) = %v", got)
	}
}
