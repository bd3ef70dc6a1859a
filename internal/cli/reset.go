package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Yes bool
}

// ResetOutput confirms a reset.
type ResetOutput struct {
	Reset bool `json:"reset"`
}

// RenderText implements TextRenderer.
func (ResetOutput) RenderText(w io.Writer) {
	fmt.Fprintln(w, "All cases are unsolved again; ledger and receipts cleared.")
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Return every case to unsolved",
		Long: `Return every case to unsolved and clear the evidence ledger and the order
receipts. The catalog and the activity log are kept.

This cannot be undone, so --yes is required.

Example:
  crimelab reset --yes --db ./crimelab.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm the reset")

	return cmd
}

func runReset(opts *ResetOptions, cmd *cobra.Command) error {
	if !opts.Yes {
		return NewExitError(ExitCommandError, "refusing to reset without --yes")
	}
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.committer.Reset(cmd.Context()); err != nil {
		return WrapExitError(ExitFailure, "reset failed", err)
	}
	return out.Success(ResetOutput{Reset: true})
}
