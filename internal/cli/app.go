package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/casetrail/internal/config"
	"github.com/roach88/casetrail/internal/notes"
	"github.com/roach88/casetrail/internal/revert"
	"github.com/roach88/casetrail/internal/store"
)

// app is the wired service stack for commands that open a database.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	engine  *revert.Engine
	service *notes.Service
}

// loadConfig loads the config named by --config. A non-empty db flag
// overrides the configured database.
func loadConfig(opts *RootOptions, db string) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if db != "" {
		cfg.Database = db
	}
	return cfg, nil
}

// newLogger builds the CLI logger: text on stderr at the configured level,
// or debug with --verbose.
func newLogger(w io.Writer, cfg config.Config, verbose bool) *slog.Logger {
	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openApp loads config and opens the store, engine, and notes service.
func openApp(opts *RootOptions, cmd *cobra.Command, db string) (*app, error) {
	cfg, err := loadConfig(opts, db)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)

	st, err := store.Open(cfg.Database, store.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	eng, err := revert.New(st, cfg.Labels,
		revert.WithLogger(logger),
		revert.WithSurfaceAborts(cfg.SurfaceAborts),
	)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid label configuration", err)
	}
	svc, err := notes.New(st, eng, notes.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid label configuration", err)
	}

	logger.Debug("database opened", "path", cfg.Database)
	return &app{cfg: cfg, logger: logger, store: st, engine: eng, service: svc}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
