package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bedwards/imaginary-crime-lab/internal/store"
)

// CaseOutput is one case in the cases listing.
type CaseOutput struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	RequiredEvidence []string   `json:"required_evidence_ids"`
	Missing          []string   `json:"missing_evidence_ids"`
	SolvedAt         *time.Time `json:"solved_at,omitempty"`
	Solution         string     `json:"solution,omitempty"`
}

// CasesOutput is the cases listing.
type CasesOutput struct {
	Cases  []CaseOutput `json:"cases"`
	Solved int          `json:"solved"`
	Total  int          `json:"total"`
}

// RenderText implements TextRenderer.
func (o CasesOutput) RenderText(w io.Writer) {
	st := newStyles(w)
	fmt.Fprintln(w, st.Title.Render(fmt.Sprintf("Cases: %d of %d solved", o.Solved, o.Total)))
	for _, c := range o.Cases {
		status := st.Pending.Render("OPEN  ")
		detail := "missing " + strings.Join(c.Missing, ", ")
		if c.SolvedAt != nil {
			status = st.Solved.Render("SOLVED")
			detail = c.SolvedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s  %s %s  %s\n", status, st.Label.Render(c.ID), c.Title, st.Muted.Render(detail))
	}
}

// NewCasesCommand creates the cases command.
func NewCasesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cases",
		Short: "List cases and their progress",
		Long: `List every case with its required evidence and what is still missing.

Example:
  crimelab cases --db ./crimelab.db
  crimelab cases --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCases(rootOpts, cmd)
		},
	}
}

func runCases(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	cases, err := st.ListCases(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list cases", err)
	}
	purchased, err := st.PurchasedSet(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read ledger", err)
	}

	output := CasesOutput{Cases: make([]CaseOutput, 0, len(cases)), Total: len(cases)}
	for _, c := range cases {
		co := CaseOutput{
			ID:               c.ID,
			Title:            c.Title,
			RequiredEvidence: c.RequiredEvidence,
			Missing:          []string{},
			SolvedAt:         c.SolvedAt,
		}
		if c.Solved() {
			co.Solution = c.Solution
			output.Solved++
		} else {
			for _, id := range c.RequiredEvidence {
				if _, ok := purchased[id]; !ok {
					co.Missing = append(co.Missing, id)
				}
			}
		}
		output.Cases = append(output.Cases, co)
	}
	return out.Success(output)
}
