package game_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/paintshot/engine"
	"github.com/hazyhaar/paintshot/game"
)

func newApp(t *testing.T, mutate func(*game.Config)) *game.App {
	t.Helper()
	dir := t.TempDir()
	cfg := game.Config{
		DBPath:    filepath.Join(dir, "paintshot.db"),
		CanvasDir: filepath.Join(dir, "canvases"),
		LevelDir:  filepath.Join(dir, "levels"),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	app, err := game.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func TestConfigFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paintshot.yaml")
	doc := `db_path: /var/lib/paintshot/game.db
canvas_dir: /var/lib/paintshot/canvases
level_dir: /usr/share/paintshot/levels
max_level: 12
trace_sql: true
engine:
  canvas_width: 1024
  canvas_height: 768
  max_colors: 50
scoring:
  quiescence: 250ms
  workers: 4
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := game.LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/var/lib/paintshot/game.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.MaxLevel != 12 || !cfg.TraceSQL {
		t.Errorf("MaxLevel = %d TraceSQL = %v", cfg.MaxLevel, cfg.TraceSQL)
	}
	if cfg.Engine.CanvasWidth != 1024 || cfg.Engine.CanvasHeight != 768 {
		t.Errorf("engine dims = %dx%d", cfg.Engine.CanvasWidth, cfg.Engine.CanvasHeight)
	}
	if cfg.Scoring.Quiescence != game.Duration(250*time.Millisecond) || cfg.Scoring.Workers != 4 {
		t.Errorf("scoring = %+v", cfg.Scoring)
	}
}

func TestAppWiring(t *testing.T) {
	app := newApp(t, nil)
	ctx := context.Background()

	userID, token, err := app.Store.CreateUser(ctx, "wirecheck")
	if err != nil {
		t.Fatal(err)
	}
	if token == "" {
		t.Error("empty auth token")
	}
	if err := app.Store.GrantColors(ctx, userID, []string{"#336699"}); err != nil {
		t.Fatal(err)
	}

	res, err := app.Engine.ResolveShot(ctx, engine.ShotRequest{
		UserID: userID, Level: 1,
		Colors: []string{"#336699"},
		Power:  1000, AngleY: 45,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Hit {
		t.Fatalf("expected hit, impact (%v, %v)", res.TargetX, res.TargetY)
	}
	if _, err := app.Rasters.Load(userID, 1); err != nil {
		t.Fatalf("canvas not persisted: %v", err)
	}
}

func TestAppTracedDriver(t *testing.T) {
	app := newApp(t, func(cfg *game.Config) { cfg.TraceSQL = true })

	// Schema init already ran through the traced driver; a plain query
	// proves the wiring works end to end.
	if _, _, err := app.Store.CreateUser(context.Background(), "traced"); err != nil {
		t.Fatal(err)
	}
}
