package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bedwards/imaginary-crime-lab/internal/catalog"
	"github.com/bedwards/imaginary-crime-lab/internal/engine"
)

// OrderOptions holds flags for the order command.
type OrderOptions struct {
	*RootOptions
	Evidence []string
	Total    float64
}

// OrderOutput is the outcome of a processed order.
type OrderOutput struct {
	OrderID       string         `json:"order_id"`
	SolvedCaseIDs []string       `json:"solved_case_ids"`
	NewEvidence   []string       `json:"new_evidence"`
	Duplicate     bool           `json:"duplicate"`
	Receipt       *ReceiptOutput `json:"receipt,omitempty"`
}

// ReceiptOutput is the stored receipt of an order.
type ReceiptOutput struct {
	EvidenceIDs   []string  `json:"evidence_ids"`
	SolvedCaseIDs []string  `json:"solved_case_ids"`
	TotalAmount   float64   `json:"total_amount"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// RenderText implements TextRenderer.
func (o OrderOutput) RenderText(w io.Writer) {
	if o.Duplicate {
		fmt.Fprintf(w, "Order %s was already processed; nothing changed.\n", o.OrderID)
	} else {
		fmt.Fprintf(w, "Order %s processed.\n", o.OrderID)
		fmt.Fprintf(w, "  New evidence: %s\n", joinOrNone(o.NewEvidence))
		fmt.Fprintf(w, "  Solved cases: %s\n", joinOrNone(o.SolvedCaseIDs))
	}
	if o.Receipt != nil {
		fmt.Fprintf(w, "  Receipt: %s, total %.2f, processed %s\n",
			joinOrNone(o.Receipt.EvidenceIDs), o.Receipt.TotalAmount, o.Receipt.ProcessedAt.Format(time.RFC3339))
	}
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}

// NewOrderCommand creates the order command.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "order <order-id>",
		Short: "Process an order by hand",
		Long: `Process an order exactly as the storefront webhook would.

Re-running the same order id changes nothing and reports a duplicate.

Example:
  crimelab order order-1001 --evidence fingerprint,ledger-page --total 20.5`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Evidence, "evidence", "e", nil, "evidence ids in the order (comma separated)")
	cmd.Flags().Float64Var(&opts.Total, "total", 0, "order total")
	_ = cmd.MarkFlagRequired("evidence")

	return cmd
}

func runOrder(opts *OrderOptions, orderID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.committer.ProcessOrder(ctx, engine.Order{
		ID:          orderID,
		EvidenceIDs: opts.Evidence,
		TotalAmount: opts.Total,
	})
	var resolveErr *engine.ResolveError
	switch {
	case err == nil:
	case engine.IsInvalidOrder(err):
		return out.Fail(CodeOrder, WrapExitError(ExitFailure, "order rejected", err))
	case errors.As(err, &resolveErr) && resolveErr.Code == engine.ErrCodePublish:
		// Committed. The outbox keeps the events for the next flush.
		logger.Warn("order committed but activity not published", "error", err)
	default:
		return out.Fail(CodeOrder, WrapExitError(ExitFailure, "order failed", err))
	}

	output := OrderOutput{
		OrderID:       orderID,
		SolvedCaseIDs: nonNil(res.SolvedCaseIDs),
		NewEvidence:   nonNil(res.NewEvidence),
		Duplicate:     res.Duplicate,
	}
	if p, err := a.store.ReadPurchase(ctx, catalog.NormalizeID(orderID)); err == nil {
		output.Receipt = &ReceiptOutput{
			EvidenceIDs:   p.EvidenceIDs,
			SolvedCaseIDs: nonNil(p.SolvedCaseIDs),
			TotalAmount:   p.TotalAmount,
			ProcessedAt:   p.ProcessedAt,
		}
	}
	return out.Success(output)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
