// Package game assembles the paintshot stack: SQLite-backed store, file
// canvas store, scoring engine, debounce coordinator and shot engine,
// wired from a single Config.
package game

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/hazyhaar/paintshot/sqltrace" // registers "sqlite-trace" (and "sqlite")

	"github.com/hazyhaar/paintshot/canvas"
	"github.com/hazyhaar/paintshot/dbopen"
	"github.com/hazyhaar/paintshot/engine"
	"github.com/hazyhaar/paintshot/schedule"
	"github.com/hazyhaar/paintshot/scoring"
	"github.com/hazyhaar/paintshot/store"
)

// App is the assembled application. Fields are exported for the CLI and
// for embedding into a transport layer.
type App struct {
	Config      Config
	DB          *sql.DB
	Store       *store.Store
	Rasters     *canvas.FileStore
	Scorer      *scoring.Engine
	Coordinator *schedule.Coordinator
	Engine      *engine.Engine

	logger *slog.Logger
}

// New opens the database, applies the schema and wires every component.
// Close releases the database when done.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	opts := []dbopen.Option{dbopen.WithImmediateTx(), dbopen.WithMkdirAll()}
	if cfg.TraceSQL {
		opts = append(opts, dbopen.WithDriver("sqlite-trace"))
	}
	db, err := dbopen.Open(cfg.DBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("game: open db: %w", err)
	}

	st := store.New(db)
	if err := st.Init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("game: init schema: %w", err)
	}

	rasters, err := canvas.NewFileStore(cfg.CanvasDir, cfg.LevelDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	scorer := scoring.New(rasters, st)
	coord := schedule.New(scorer, st, schedule.Config{
		Quiescence: time.Duration(cfg.Scoring.Quiescence),
		Workers:    cfg.Scoring.Workers,
		QueueSize:  cfg.Scoring.QueueSize,
		Logger:     logger,
	})
	eng := engine.New(cfg.Engine, st, rasters, scorer, coord, logger)

	return &App{
		Config:      cfg,
		DB:          db,
		Store:       st,
		Rasters:     rasters,
		Scorer:      scorer,
		Coordinator: coord,
		Engine:      eng,
		logger:      logger,
	}, nil
}

// Start runs the scoring coordinator until ctx is cancelled. One-shot
// tools that score synchronously can skip it.
func (a *App) Start(ctx context.Context) {
	go a.Coordinator.Run(ctx)
	a.logger.Info("game: scoring coordinator running", "db", a.Config.DBPath)
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}
