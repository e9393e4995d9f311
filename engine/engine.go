// Package engine resolves paint shots end to end: validation, the color
// debit, the ballistic trajectory, canvas compositing, counters, and the
// debounced scoring hand-off.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/paintshot/ballistics"
	"github.com/hazyhaar/paintshot/canvas"
	"github.com/hazyhaar/paintshot/hexcolor"
	"github.com/hazyhaar/paintshot/idgen"
	"github.com/hazyhaar/paintshot/scoring"
	"github.com/hazyhaar/paintshot/store"
)

// Config holds the gameplay limits and canvas geometry.
type Config struct {
	CanvasWidth  int     `yaml:"canvas_width"`
	CanvasHeight int     `yaml:"canvas_height"`
	MaxColors    int     `yaml:"max_colors"`
	MaxPower     float64 `yaml:"max_power"`
}

func (c *Config) defaults() {
	if c.CanvasWidth <= 0 {
		c.CanvasWidth = 800
	}
	if c.CanvasHeight <= 0 {
		c.CanvasHeight = 600
	}
	if c.MaxColors <= 0 {
		c.MaxColors = 100
	}
	if c.MaxPower <= 0 {
		c.MaxPower = 1_000_000
	}
}

// ValidationError reports a malformed shot request. No state was touched.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("engine: invalid %s: %s", e.Field, e.Msg)
}

// Scheduler receives the fire-and-forget scoring request after each shot.
// *schedule.Coordinator satisfies it.
type Scheduler interface {
	Schedule(userID, level int64)
}

// ShotRequest is one attempt to fire owned colors at the canvas. UserID
// and Level come from the caller's identity resolution, which is a
// precondition here.
type ShotRequest struct {
	UserID int64
	Level  int64
	Colors []string
	Power  float64
	AngleX float64
	AngleY float64
}

// ShotResult is the outcome of a resolved shot. Raster carries the updated
// canvas PNG on a hit and is nil on a miss.
type ShotResult struct {
	Hit     bool
	TargetX float64
	TargetY float64
	Raster  []byte
}

// Engine is the shot-resolution pipeline. All fields are required except
// Scheduler and Logger.
type Engine struct {
	cfg        Config
	store      *store.Store
	compositor *canvas.Compositor
	scorer     *scoring.Engine
	sched      Scheduler
	logger     *slog.Logger
	newShotID  idgen.Generator
}

// New assembles an Engine. A nil scorer creates one over rasters; pass a
// shared instance when the schedule coordinator uses the same one, so
// both see a single reference cache. A nil sched disables scoring
// dispatch (used in tests and one-shot tools that score synchronously).
func New(cfg Config, st *store.Store, rasters canvas.Store, scorer *scoring.Engine, sched Scheduler, logger *slog.Logger) *Engine {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	if scorer == nil {
		scorer = scoring.New(rasters, st)
	}
	return &Engine{
		cfg:        cfg,
		store:      st,
		compositor: canvas.NewCompositor(rasters, cfg.CanvasWidth, cfg.CanvasHeight, logger),
		scorer:     scorer,
		sched:      sched,
		logger:     logger,
		newShotID:  idgen.Prefixed("shot_", idgen.UUIDv7()),
	}
}

// Config returns the effective configuration after defaults.
func (e *Engine) Config() Config { return e.cfg }

// Scorer exposes the scoring engine, for wiring the schedule coordinator.
func (e *Engine) Scorer() *scoring.Engine { return e.scorer }

// ResolveShot runs the full pipeline for one shot.
//
// Outcomes, in order of checking:
//   - *ValidationError: malformed request, nothing touched.
//   - *store.InsufficientError: the user lacks tokens, nothing touched.
//   - miss: tokens consumed, shot and miss counters incremented, canvas
//     untouched, Hit false.
//   - hit: tokens consumed, canvas painted and persisted, shot counter
//     incremented, a debounced scoring pass scheduled, Hit true with the
//     updated PNG.
func (e *Engine) ResolveShot(ctx context.Context, req ShotRequest) (*ShotResult, error) {
	if err := e.validate(req); err != nil {
		return nil, err
	}
	shotID := e.newShotID()
	log := e.logger.With("shot_id", shotID, "user_id", req.UserID, "level", req.Level)

	if err := e.store.DebitColors(ctx, req.UserID, req.Colors); err != nil {
		return nil, err
	}

	impact := ballistics.Compute(ballistics.Shot{
		Power:      req.Power,
		AngleX:     req.AngleX,
		AngleY:     req.AngleY,
		ColorCount: len(req.Colors),
	}, e.cfg.CanvasWidth, e.cfg.CanvasHeight)

	res := &ShotResult{TargetX: impact.X, TargetY: impact.Y}

	if !impact.Hit(e.cfg.CanvasWidth, e.cfg.CanvasHeight) {
		if err := e.store.RecordShot(ctx, req.UserID, req.Level, true); err != nil {
			return nil, err
		}
		log.Info("shot missed", "x", impact.X, "y", impact.Y)
		e.scheduleScoring(req.UserID, req.Level)
		return res, nil
	}

	png, err := e.compositor.Paint(req.UserID, req.Level, impact.X, impact.Y, req.Colors)
	if err != nil {
		return nil, err
	}
	if err := e.store.RecordShot(ctx, req.UserID, req.Level, false); err != nil {
		return nil, err
	}
	log.Info("shot hit", "x", impact.X, "y", impact.Y, "colors", len(req.Colors))

	res.Hit = true
	res.Raster = png
	e.scheduleScoring(req.UserID, req.Level)
	return res, nil
}

// ScheduleScoring requests a debounced scoring pass. Fire and forget.
func (e *Engine) ScheduleScoring(userID, level int64) {
	e.scheduleScoring(userID, level)
}

func (e *Engine) scheduleScoring(userID, level int64) {
	if e.sched != nil {
		e.sched.Schedule(userID, level)
	}
}

// ComputeScore scores (user, level) synchronously and persists the result,
// bypassing the debounce scheduler.
func (e *Engine) ComputeScore(ctx context.Context, userID, level int64) (float64, error) {
	return e.scorer.ComputeAndStore(ctx, userID, level)
}

func (e *Engine) validate(req ShotRequest) error {
	if len(req.Colors) == 0 {
		return &ValidationError{Field: "colors", Msg: "at least one color required"}
	}
	if len(req.Colors) > e.cfg.MaxColors {
		return &ValidationError{Field: "colors",
			Msg: fmt.Sprintf("at most %d colors per shot", e.cfg.MaxColors)}
	}
	for _, c := range req.Colors {
		if _, err := hexcolor.Parse(c); err != nil {
			return &ValidationError{Field: "colors", Msg: err.Error()}
		}
	}
	if req.Power < 0 || req.Power > e.cfg.MaxPower {
		return &ValidationError{Field: "power",
			Msg: fmt.Sprintf("must be between 0 and %g", e.cfg.MaxPower)}
	}
	if req.AngleX < -90 || req.AngleX > 90 {
		return &ValidationError{Field: "angleX", Msg: "must be between -90 and 90 degrees"}
	}
	if req.AngleY < 0 || req.AngleY > 90 {
		return &ValidationError{Field: "angleY", Msg: "must be between 0 and 90 degrees"}
	}
	return nil
}
