package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bedwards/imaginary-crime-lab/internal/api"
	"github.com/bedwards/imaginary-crime-lab/internal/telemetry"
)

const (
	shutdownTimeout     = 10 * time.Second
	outboxFlushInterval = 30 * time.Second
)

// Version is reported in traces. Set at build time with -ldflags.
var Version = "dev"

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	Catalog string

	// ready, when set, receives the listener address once the server is up.
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Long: `Run the webhook receiver, read API and live activity feed.

When a catalog is configured (or given with --catalog) it is seeded before
the server starts. Activity events left in the outbox by an earlier failure
are published at start-up and then periodically.

Example:
  crimelab serve --config crimelab.yaml
  crimelab serve --db ./crimelab.db --catalog data/catalog.cue --addr :8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "catalog file to seed at start-up (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(logger)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}
	if opts.Catalog != "" {
		cfg.Catalog = opts.Catalog
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Exporter: cfg.Tracing,
		Version:  Version,
		Writer:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialise tracing", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("error flushing traces", "error", err)
		}
	}()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Error("error closing storage", "error", err)
		}
	}()

	if cfg.Catalog != "" {
		if _, err := a.seedCatalog(ctx, cfg.Catalog); err != nil {
			return err
		}
	}
	if err := a.committer.FlushOutbox(ctx); err != nil {
		logger.Warn("outbox flush failed", "error", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(&api.Handler{
		Store:         a.store,
		Committer:     a.committer,
		Recorder:      a.recorder,
		Analytics:     a.analytics,
		Feed:          a.feed,
		Logger:        logger,
		WebhookSecret: cfg.WebhookSecret,
	}, api.Options{
		EnableReset:   cfg.EnableReset,
		ActivityRate:  cfg.ActivityRate,
		ActivityBurst: cfg.ActivityBurst,
	})

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", cfg.HTTPAddr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	logger.Info("server starting", "addr", listener.Addr().String(), "db", cfg.Database, "activity", cfg.Activity.Backend)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", listener.Addr())
	if opts.ready != nil {
		opts.ready <- listener.Addr().String()
	}

	g, gctx := errgroup.WithContext(ctx)
	// Request contexts derive from gctx so that shutdown ends long-lived
	// feed streams instead of waiting out their lifetime.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		flushOutboxLoop(gctx, a, outboxFlushInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

// flushOutboxLoop republishes stranded activity events until ctx is done.
func flushOutboxLoop(ctx context.Context, a *app, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.committer.FlushOutbox(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn("outbox flush failed", "error", err)
			}
		}
	}
}
