package surrealshift

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/surrealdb/surrealshift/pkg/coordinator"
	"github.com/surrealdb/surrealshift/pkg/journal"
	"github.com/surrealdb/surrealshift/pkg/logger"
	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/store"
	"github.com/surrealdb/surrealshift/pkg/store/memory"
	"github.com/surrealdb/surrealshift/pkg/store/postgres"
	"github.com/surrealdb/surrealshift/pkg/store/surrealdb"
)

// App is the wired application: both stores, the phase registry, the
// compensation journal and the coordinators over them.
type App struct {
	config  *Config
	logData *logger.LogData
	logger  zerolog.Logger

	primary   store.Store
	secondary store.Store
	registry  *migration.Registry
	journal   migration.Journal

	coordinators *coordinator.Set
	reconciler   *coordinator.Reconciler

	closers []io.Closer
}

// New connects the stores and journal described by config. The caller owns
// the returned App and must Close it.
func New(ctx context.Context, config *Config) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logBuild := logger.New().Level(config.LogLevel).Console(config.LogConsole)
	if config.LogFile != "" {
		logBuild = logBuild.FromPath(config.LogFile)
	}
	logData, err := logBuild.Make()
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	app := &App{
		config:  config,
		logData: logData,
		logger:  logger.WithComponent(logData.Logger, "surrealshift"),
	}
	if err := app.connect(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.config
	if cfg.Memory {
		a.primary, a.secondary = memory.New(), memory.New()
		a.logger.Info().Msg("using in-memory stores")
	} else {
		pg, err := postgres.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		a.primary = pg
		a.closers = append(a.closers, pg)

		sdb, err := surrealdb.NewSurrealStore(ctx, cfg.SurrealDBURL, cfg.SurrealDBNS, cfg.SurrealDBDB, cfg.SurrealDBUser, cfg.SurrealDBPass)
		if err != nil {
			return fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		a.secondary = sdb
		a.closers = append(a.closers, sdb)
		a.logger.Info().Str("surrealdb_url", cfg.SurrealDBURL).Msg("connected to both stores")
	}

	switch cfg.Journal {
	case JournalMemory:
		a.journal = journal.NewMemory()
	case JournalBolt:
		bj, err := journal.OpenBolt(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		a.journal = bj
		a.closers = append(a.closers, bj)
	case JournalPostgres:
		pg, ok := a.primary.(*postgres.PostgresStore)
		if !ok {
			return errors.New("the postgres journal needs a PostgreSQL primary store")
		}
		a.journal = pg
	default:
		return fmt.Errorf("unknown journal %q", cfg.Journal)
	}

	a.registry = migration.NewRegistry()
	if err := a.registry.SetPhase(migration.Phase(cfg.InitialPhase)); err != nil {
		return err
	}

	a.coordinators = coordinator.New(coordinator.Config{
		Primary:   a.primary,
		Secondary: a.secondary,
		Registry:  a.registry,
		Journal:   a.journal,
		Logger:    a.logData.Logger,
	})
	a.reconciler = coordinator.NewReconciler(a.journal, a.coordinators, a.logData.Logger,
		coordinator.WithGrace(cfg.ReconcileGrace))
	a.logger.Info().
		Int("phase", cfg.InitialPhase).
		Str("journal", cfg.Journal).
		Msg("application ready")
	return nil
}

// Close releases stores, the journal and the log file, in reverse order of
// acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.logData != nil {
		if err := a.logData.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Migrate creates the schema in both stores.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.primary.Migrate(ctx); err != nil {
		return fmt.Errorf("primary migration failed: %w", err)
	}
	if err := a.secondary.Migrate(ctx); err != nil {
		return fmt.Errorf("secondary migration failed: %w", err)
	}
	a.logger.Info().Msg("schema migrated in both stores")
	return nil
}

func (a *App) Backfill(ctx context.Context) ([]coordinator.BackfillResult, error) {
	return a.coordinators.Backfill(ctx)
}

func (a *App) Reconcile(ctx context.Context) (coordinator.SweepResult, error) {
	return a.reconciler.Sweep(ctx)
}

func (a *App) Registry() *migration.Registry { return a.registry }

func (a *App) Coordinators() *coordinator.Set { return a.coordinators }

// Stores returns the primary and secondary store.
func (a *App) Stores() (store.Store, store.Store) { return a.primary, a.secondary }
