package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
	"github.com/bedwards/imaginary-crime-lab/internal/analytics"
	"github.com/bedwards/imaginary-crime-lab/internal/catalog"
	"github.com/bedwards/imaginary-crime-lab/internal/config"
	"github.com/bedwards/imaginary-crime-lab/internal/engine"
	"github.com/bedwards/imaginary-crime-lab/internal/feed"
	"github.com/bedwards/imaginary-crime-lab/internal/store"
)

const badgerGCInterval = 5 * time.Minute

// app is the set of components a command works with.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *store.Store
	log       activity.Log
	recorder  *activity.Recorder
	committer *engine.Committer
	analytics *analytics.Aggregator
	feed      *feed.Broadcaster
}

// newLogger returns a text logger on w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig loads the configuration and applies global flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

// openApp opens the store and activity log and wires the components.
// The caller must call close.
func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	log, err := openActivityLog(ctx, cfg, logger)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open activity log", err)
	}

	rec := activity.NewRecorder(log, activity.WithLogger(logger))
	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		log:       log,
		recorder:  rec,
		committer: engine.NewCommitter(st, rec, engine.WithLogger(logger)),
		analytics: analytics.New(log,
			analytics.WithTopN(cfg.Analytics.TopN),
			analytics.WithLogger(logger),
		),
		feed: feed.New(log, feed.Config{
			Interval:     cfg.Feed.Interval.Std(),
			Lifetime:     cfg.Feed.Lifetime.Std(),
			ActiveWindow: cfg.Feed.ActiveWindow.Std(),
		}, feed.WithLogger(logger)),
	}, nil
}

func openActivityLog(ctx context.Context, cfg config.Config, logger *slog.Logger) (activity.Log, error) {
	retention := cfg.Activity.Retention.Std()
	switch cfg.Activity.Backend {
	case config.BackendBadger:
		return activity.OpenBadger(activity.BadgerConfig{
			Path:       cfg.Activity.BadgerPath,
			Retention:  retention,
			GCInterval: badgerGCInterval,
			Logger:     logger,
		})
	case config.BackendRedis:
		return activity.OpenRedis(ctx, activity.RedisConfig{
			Addr:      cfg.Activity.RedisAddr,
			Retention: retention,
		})
	case config.BackendMemory:
		return activity.NewMemoryLog(retention, nil), nil
	default:
		return nil, fmt.Errorf("unknown activity backend %q", cfg.Activity.Backend)
	}
}

// seedCatalog loads a catalog file and seeds it into the store.
func (a *app) seedCatalog(ctx context.Context, path string) (store.SeedResult, error) {
	cat, err := catalog.Load(path)
	if err != nil {
		return store.SeedResult{}, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	res, err := a.store.Seed(ctx, cat)
	if err != nil {
		return store.SeedResult{}, WrapExitError(ExitCommandError, "failed to seed catalog", err)
	}
	a.logger.Info("catalog seeded",
		"path", path,
		"cases_inserted", res.CasesInserted,
		"cases_updated", res.CasesUpdated,
		"evidence", res.Evidence,
	)
	return res, nil
}

func (a *app) close() error {
	return errors.Join(a.log.Close(), a.store.Close())
}
