package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/bedwards/imaginary-crime-lab/internal/catalog"
)

// ErrRequirementsChanged is returned by Seed when a catalog tries to change
// the required evidence of a case that is already solved.
var ErrRequirementsChanged = errors.New("requirements of a solved case cannot change")

// Case is a stored detective case.
type Case struct {
	ID               string
	Title            string
	Description      string
	Solution         string
	RequiredEvidence []string // sorted
	SolvedAt         *time.Time
}

// Solved reports whether the case has transitioned to SOLVED.
func (c Case) Solved() bool {
	return c.SolvedAt != nil
}

// Evidence is a stored evidence unit with its ledger status.
type Evidence struct {
	ID        string
	Name      string
	Price     float64
	Purchased bool
}

// SeedResult summarizes what Seed changed.
type SeedResult struct {
	CasesInserted int
	CasesUpdated  int
	Evidence      int
}

// Seed loads a prepared catalog into the store in one transaction.
//
// Seeding is idempotent. New cases are inserted unsolved. Existing cases keep
// their solved state; their display text is refreshed. The requirement set
// of an unsolved case is replaced if the catalog changed it; changing the
// requirements of a solved case fails with ErrRequirementsChanged and nothing
// is written.
func (s *Store) Seed(ctx context.Context, cat *catalog.Catalog) (SeedResult, error) {
	var res SeedResult
	err := s.WithTx(ctx, func(tx *Tx) error {
		for _, e := range cat.Evidence {
			_, err := tx.tx.ExecContext(ctx, `
				INSERT INTO evidence (id, name, price) VALUES (?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price
			`, e.ID, e.Name, e.Price)
			if err != nil {
				return fmt.Errorf("seed evidence %q: %w", e.ID, err)
			}
			res.Evidence++
		}

		for _, c := range cat.Cases {
			inserted, err := seedCase(ctx, tx.tx, c)
			if err != nil {
				return err
			}
			if inserted {
				res.CasesInserted++
			} else {
				res.CasesUpdated++
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return res, nil
}

func seedCase(ctx context.Context, q querier, c catalog.Case) (inserted bool, err error) {
	var solvedAt sql.NullInt64
	err = q.QueryRowContext(ctx, `SELECT solved_at FROM cases WHERE id = ?`, c.ID).Scan(&solvedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = q.ExecContext(ctx, `
			INSERT INTO cases (id, title, description, solution) VALUES (?, ?, ?, ?)
		`, c.ID, c.Title, c.Description, c.Solution)
		if err != nil {
			return false, fmt.Errorf("seed case %q: %w", c.ID, err)
		}
		if err := insertRequirements(ctx, q, c.ID, c.Requires); err != nil {
			return false, err
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("seed case %q: %w", c.ID, err)
	}

	current, err := requirementsFor(ctx, q, c.ID)
	if err != nil {
		return false, err
	}
	want := append([]string{}, c.Requires...)
	sort.Strings(want)
	if !slices.Equal(current, want) {
		if solvedAt.Valid {
			return false, fmt.Errorf("seed case %q: %w", c.ID, ErrRequirementsChanged)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM case_requirements WHERE case_id = ?`, c.ID); err != nil {
			return false, fmt.Errorf("seed case %q: clear requirements: %w", c.ID, err)
		}
		if err := insertRequirements(ctx, q, c.ID, want); err != nil {
			return false, err
		}
	}

	_, err = q.ExecContext(ctx, `
		UPDATE cases SET title = ?, description = ?, solution = ? WHERE id = ?
	`, c.Title, c.Description, c.Solution, c.ID)
	if err != nil {
		return false, fmt.Errorf("seed case %q: %w", c.ID, err)
	}
	return false, nil
}

func insertRequirements(ctx context.Context, q querier, caseID string, evidenceIDs []string) error {
	for _, evidenceID := range evidenceIDs {
		_, err := q.ExecContext(ctx, `
			INSERT INTO case_requirements (case_id, evidence_id) VALUES (?, ?)
			ON CONFLICT(case_id, evidence_id) DO NOTHING
		`, caseID, evidenceID)
		if err != nil {
			return fmt.Errorf("seed case %q: requirement %q: %w", caseID, evidenceID, err)
		}
	}
	return nil
}

// ListCases returns every case ordered by id, with requirements and solved state.
// Returns an empty slice (not nil) if the catalog has not been seeded.
func (s *Store) ListCases(ctx context.Context) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, solution, solved_at
		FROM cases
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	cases := []Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}

	reqs, err := allRequirements(ctx, s.db, false)
	if err != nil {
		return nil, err
	}
	for i := range cases {
		cases[i].RequiredEvidence = reqs[cases[i].ID]
		if cases[i].RequiredEvidence == nil {
			cases[i].RequiredEvidence = []string{}
		}
	}
	return cases, nil
}

// ReadCase retrieves a single case by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadCase(ctx context.Context, id string) (Case, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, solution, solved_at
		FROM cases
		WHERE id = ?
	`, id)
	c, err := scanCase(row)
	if err != nil {
		return Case{}, err
	}
	c.RequiredEvidence, err = requirementsFor(ctx, s.db, id)
	if err != nil {
		return Case{}, err
	}
	return c, nil
}

// RequirementsFor returns the sorted required evidence ids of a case.
// Returns sql.ErrNoRows if the case does not exist.
func (s *Store) RequirementsFor(ctx context.Context, caseID string) ([]string, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM cases WHERE id = ?`, caseID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("requirements for %q: %w", caseID, err)
	}
	return requirementsFor(ctx, s.db, caseID)
}

// UnsolvedCases returns the ids of all unsolved cases in ascending order.
func (s *Store) UnsolvedCases(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM cases WHERE solved_at IS NULL ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query unsolved cases: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unsolved case: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unsolved cases: %w", err)
	}
	return ids, nil
}

// Requirements returns the requirement index of every unsolved case.
func (s *Store) Requirements(ctx context.Context) (map[string][]string, error) {
	return allRequirements(ctx, s.db, true)
}

// ListEvidence returns the evidence catalog ordered by id, each entry marked
// with whether it has ever been purchased.
func (s *Store) ListEvidence(ctx context.Context) ([]Evidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.price, p.evidence_id IS NOT NULL
		FROM evidence e
		LEFT JOIN purchased_evidence p ON p.evidence_id = e.id
		ORDER BY e.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	evidence := []Evidence{}
	for rows.Next() {
		var e Evidence
		if err := rows.Scan(&e.ID, &e.Name, &e.Price, &e.Purchased); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		evidence = append(evidence, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return evidence, nil
}

// markSolved transitions a case from UNSOLVED to SOLVED.
//
// The update is conditional on solved_at IS NULL, so of several transactions
// racing to solve the same case exactly one sees solved=true.
func markSolved(ctx context.Context, q querier, caseID string, at time.Time) (solved bool, err error) {
	result, err := q.ExecContext(ctx, `
		UPDATE cases SET solved_at = ? WHERE id = ? AND solved_at IS NULL
	`, toMillis(at), caseID)
	if err != nil {
		return false, fmt.Errorf("mark solved %q: %w", caseID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark solved %q: rows affected: %w", caseID, err)
	}
	return rowsAffected == 1, nil
}

func requirementsFor(ctx context.Context, q querier, caseID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT evidence_id FROM case_requirements
		WHERE case_id = ?
		ORDER BY evidence_id COLLATE BINARY ASC
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("query requirements for %q: %w", caseID, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirements: %w", err)
	}
	return ids, nil
}

// allRequirements builds the requirement index, optionally restricted to
// unsolved cases. Each slice is sorted.
func allRequirements(ctx context.Context, q querier, unsolvedOnly bool) (map[string][]string, error) {
	query := `
		SELECT r.case_id, r.evidence_id
		FROM case_requirements r
		JOIN cases c ON c.id = r.case_id
	`
	if unsolvedOnly {
		query += ` WHERE c.solved_at IS NULL`
	}
	query += ` ORDER BY r.case_id COLLATE BINARY ASC, r.evidence_id COLLATE BINARY ASC`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query requirement index: %w", err)
	}
	defer rows.Close()

	index := make(map[string][]string)
	for rows.Next() {
		var caseID, evidenceID string
		if err := rows.Scan(&caseID, &evidenceID); err != nil {
			return nil, fmt.Errorf("scan requirement index: %w", err)
		}
		index[caseID] = append(index[caseID], evidenceID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirement index: %w", err)
	}
	return index, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (Case, error) {
	var c Case
	var solvedAt sql.NullInt64
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Solution, &solvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Case{}, err
		}
		return Case{}, fmt.Errorf("scan case: %w", err)
	}
	if solvedAt.Valid {
		t := fromMillis(solvedAt.Int64)
		c.SolvedAt = &t
	}
	return c, nil
}
