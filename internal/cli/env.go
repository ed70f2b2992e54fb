package cli

import (
	"log/slog"
	"time"

	"github.com/WhatsYourWhy/Hardstop/internal/config"
	"github.com/WhatsYourWhy/Hardstop/internal/pipeline"
	"github.com/WhatsYourWhy/Hardstop/internal/provenance"
	"github.com/WhatsYourWhy/Hardstop/internal/store"
)

// appEnv bundles the loaded config, the open store, and the ledger that
// every command needs.
type appEnv struct {
	cfg    config.Snapshot
	store  *store.Store
	ledger *provenance.Ledger
}

// openEnv loads the config and opens the database. Both failures are
// command errors (exit 2), not processing failures.
func openEnv(opts *RootOptions) (*appEnv, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}
	if dbPath == "" {
		dbPath = "hardstop.db"
	}

	window := time.Duration(cfg.WindowDays) * 24 * time.Hour
	st, err := store.Open(dbPath, store.WithWindow(window))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	ledger, err := provenance.NewLedger(st, cfg.Mode, cfg.ToMap())
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "init ledger", err)
	}

	return &appEnv{cfg: cfg, store: st, ledger: ledger}, nil
}

func (e *appEnv) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

func (e *appEnv) pipeline() *pipeline.Pipeline {
	return pipeline.New(e.cfg, pipeline.Deps{
		Directory: e.store,
		Alerts:    e.store,
		Incidents: e.store,
		Ledger:    e.ledger,
		Logger:    slog.Default(),
	})
}
