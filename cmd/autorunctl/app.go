package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshuapare/autorunkit/internal/config"
	"github.com/joshuapare/autorunkit/internal/identity"
	"github.com/joshuapare/autorunkit/internal/logger"
	"github.com/joshuapare/autorunkit/internal/metrics"
	"github.com/joshuapare/autorunkit/pkg/action"
	"github.com/joshuapare/autorunkit/pkg/configstore"
	"github.com/joshuapare/autorunkit/pkg/integrity"
	"github.com/joshuapare/autorunkit/pkg/store"
	"github.com/joshuapare/autorunkit/pkg/txn"
)

// app holds everything a command needs, built from the configuration file.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	closeLog func() error
	metrics  *metrics.Metrics
	acc      configstore.Accessor
	store    *store.Store
	mgr      *txn.Manager
	exec     *action.Executor
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	printVerbose("Transaction store: %s\n", cfg.Store.BaseDir)

	level, _ := logger.ParseLevel(cfg.Log.Level)
	logOpts := logger.Options{
		Dir:           cfg.Log.Dir,
		RetentionDays: cfg.Log.RetentionDays,
		Level:         level,
	}
	if !quiet {
		logOpts.Console = os.Stderr
		logOpts.ConsoleLevel = slog.LevelWarn
		if verbose {
			logOpts.ConsoleLevel = slog.LevelDebug
		}
	}
	log, closeLog, err := logger.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	a := &app{cfg: cfg, log: log, closeLog: closeLog, metrics: metrics.New()}
	if err := a.wire(); err != nil {
		closeLog()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	actor := identity.NewOS().Current()
	a.log.Debug("resolved actor", "name", actor.Name, "machine", actor.Machine)

	st, err := store.New(store.Options{
		BaseDir:         a.cfg.Store.BaseDir,
		Guard:           integrity.New(actor.Machine, identity.AccountName(actor)),
		Logger:          a.log.With("component", "store"),
		Flush:           a.cfg.FlushMode(),
		IntegrityPolicy: a.cfg.IntegrityPolicy(),
		Metrics:         a.metrics,
	})
	if err != nil {
		return err
	}
	a.store = st

	acc, err := configstore.Open(a.cfg.ConfigStore.Backend, a.cfg.ConfigStore.File)
	if err != nil {
		return fmt.Errorf("open configuration store: %w", err)
	}
	a.acc = acc

	a.mgr, err = txn.NewManager(txn.Options{
		Store:    st,
		Accessor: acc,
		Identity: identity.Static(actor),
		Logger:   a.log.With("component", "txn"),
		Metrics:  a.metrics,
	})
	if err != nil {
		return err
	}

	execOpts := action.ExecutorOptions{Logger: a.log.With("component", "action"), Metrics: a.metrics}
	// file and memory backends are not protected by the OS
	if _, ok := acc.(*configstore.Registry); ok {
		execOpts.Elevated = action.IsElevated
	}
	a.exec = action.NewDefaultExecutor(acc, execOpts)
	return nil
}

// Close writes the metrics textfile, if configured, and closes the log.
func (a *app) Close() error {
	var errs []error
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	errs = append(errs, a.closeLog())
	return errors.Join(errs...)
}

// closeApp is deferred by commands; a close failure only overrides success.
func closeApp(a *app, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
