package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
)

const redialDelay = 500 * time.Millisecond

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Once bool // stop at the first reconnect instead of redialing
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <ws-url>",
		Short: "Follow the live activity feed",
		Long: `Connect to a running server's WebSocket feed and print activity as it
happens. When the server ends a connection with a reconnect event the
watcher dials again and carries on.

With --format json every event is printed as one JSON object per line.

Example:
  crimelab watch ws://localhost:8080/api/feed/ws`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "exit at the first reconnect")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, url string, w io.Writer) error {
	emit := eventPrinter(opts.Format, w)
	for {
		reconnect, err := watchOnce(ctx, url, emit)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return WrapExitError(ExitFailure, "feed unavailable", err)
		}
		if !reconnect || opts.Once {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(redialDelay):
		}
	}
}

// watchOnce reads one feed connection until it ends. It reports whether the
// server asked the client to reconnect.
func watchOnce(ctx context.Context, url string, emit func(activity.Event)) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var e activity.Event
		if err := conn.ReadJSON(&e); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return false, nil
			}
			return false, err
		}
		emit(e)
		if e.Type == activity.TypeReconnect {
			return true, nil
		}
	}
}

func eventPrinter(format string, w io.Writer) func(activity.Event) {
	if format == "json" {
		enc := json.NewEncoder(w)
		return func(e activity.Event) {
			_ = enc.Encode(e)
		}
	}
	st := newStyles(w)
	return func(e activity.Event) {
		fmt.Fprintf(w, "%s %s %s\n",
			st.Muted.Render(e.Timestamp.Format(time.TimeOnly)),
			eventStyle(st, e.Type).Render(string(e.Type)),
			describeEvent(e))
	}
}

func eventStyle(st styles, t activity.Type) lipgloss.Style {
	switch t {
	case activity.TypeCaseSolved:
		return st.Solved
	case activity.TypeEvidencePurchased:
		return st.Title
	case activity.TypeReconnect:
		return st.Alert
	case activity.TypeConnectionCount:
		return st.Muted
	}
	return st.Pending
}

func describeEvent(e activity.Event) string {
	var parts []string
	p := e.Payload
	if p.CaseID != "" {
		parts = append(parts, "case="+p.CaseID)
	}
	if len(p.CaseIDs) > 0 {
		parts = append(parts, "cases="+strings.Join(p.CaseIDs, ","))
	}
	if p.EvidenceID != "" {
		parts = append(parts, "evidence="+p.EvidenceID)
	}
	if p.OrderID != "" {
		parts = append(parts, "order="+p.OrderID)
	}
	if e.Type == activity.TypeConnectionCount {
		parts = append(parts, fmt.Sprintf("active=%d", p.Count))
	}
	if e.SessionID != "" {
		parts = append(parts, "session="+e.SessionID)
	}
	return strings.Join(parts, " ")
}
