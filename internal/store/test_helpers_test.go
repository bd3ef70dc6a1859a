package store

import (
	"path/filepath"
	"testing"

	"github.com/bedwards/imaginary-crime-lab/internal/catalog"
	"github.com/bedwards/imaginary-crime-lab/internal/testutil"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testCatalog returns a prepared two-case catalog. case-001 needs
// fingerprint and ledger-page; case-002 needs ledger-page and train-ticket.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat := &catalog.Catalog{
		Evidence: []catalog.Evidence{
			{ID: "fingerprint", Name: "Partial fingerprint", Price: 12.5},
			{ID: "ledger-page", Name: "Torn ledger page", Price: 20},
			{ID: "train-ticket", Name: "Train ticket stub", Price: 4},
		},
		Cases: []catalog.Case{
			{ID: "case-001", Title: "The Vanishing Accountant", Requires: []string{"fingerprint", "ledger-page"}},
			{ID: "case-002", Title: "Night Train", Requires: []string{"train-ticket", "ledger-page"}},
		},
	}
	if err := cat.Prepare("test"); err != nil {
		t.Fatalf("Prepare() failed: %v", err)
	}
	return cat
}

// seededStore returns a store seeded with testCatalog and a manual clock.
func seededStore(t *testing.T) (*Store, *testutil.ManualClock) {
	t.Helper()
	clk := testutil.NewManualClock(testutil.Epoch)
	s := createTestStore(t, WithClock(clk))
	if _, err := s.Seed(t.Context(), testCatalog(t)); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	return s, clk
}
