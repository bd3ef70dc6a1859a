package cli

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
	"github.com/bedwards/imaginary-crime-lab/internal/analytics"
)

// AnalyticsOptions holds flags for the analytics command.
type AnalyticsOptions struct {
	*RootOptions
	Window string
}

// AnalyticsOutput is a summary over one trailing window.
type AnalyticsOutput struct {
	Window string `json:"window"`
	analytics.Summary
}

// RenderText implements TextRenderer.
func (o AnalyticsOutput) RenderText(w io.Writer) {
	st := newStyles(w)
	fmt.Fprintln(w, st.Title.Render(fmt.Sprintf("Activity, last %s: %d event(s)", o.Window, o.Total)))
	fmt.Fprintln(w, st.Muted.Render(fmt.Sprintf("%s to %s", o.From.Format(time.RFC3339), o.To.Format(time.RFC3339))))

	types := make([]activity.Type, 0, len(o.ByType))
	for t := range o.ByType {
		types = append(types, t)
	}
	slices.Sort(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s %d\n", st.Label.Render(string(t)), o.ByType[t])
	}

	renderRanked(w, st, "Most viewed cases", o.TopCases)
	renderRanked(w, st, "Most added evidence", o.TopEvidence)
}

func renderRanked(w io.Writer, st styles, title string, ranked []analytics.Ranked) {
	fmt.Fprintln(w, st.Title.Render(title))
	if len(ranked) == 0 {
		fmt.Fprintln(w, st.Muted.Render("  none"))
		return
	}
	for i, r := range ranked {
		fmt.Fprintf(w, "  %2d. %s %d\n", i+1, st.Label.Render(r.ID), r.Count)
	}
}

// NewAnalyticsCommand creates the analytics command.
func NewAnalyticsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyticsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Summarize recent activity",
		Long: `Summarize the activity log over a trailing window: event counts by type,
the most viewed cases and the evidence most often added to carts.

Example:
  crimelab analytics --window 1h
  crimelab analytics --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalytics(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Window, "window", analytics.DefaultWindow, "trailing window (1h|24h)")

	return cmd
}

func runAnalytics(opts *AnalyticsOptions, cmd *cobra.Command) error {
	window, err := analytics.ParseWindow(opts.Window)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid window", err)
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

	return out.Success(AnalyticsOutput{
		Window:  opts.Window,
		Summary: a.analytics.Summarize(cmd.Context(), window),
	})
}
