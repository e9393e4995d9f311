// Command paintshot administers the paint-shooting game from the shell.
//
// Usage:
//
//	paintshot -db game.db -adduser alice
//	paintshot -db game.db -user 1 -grant "#ff0000,#ff0000,#0000ff"
//	paintshot -db game.db -user 1 -level 1 -shoot -colors "#ff0000" -power 1000 -angley 45 -out canvas.png
//	paintshot -db game.db -user 1 -level 1 -score
//	paintshot -db game.db -user 1 -level 1 -progress
//	paintshot -config paintshot.yaml -user 1 -inventory
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hazyhaar/paintshot/canvas"
	"github.com/hazyhaar/paintshot/engine"
	"github.com/hazyhaar/paintshot/game"
	"github.com/hazyhaar/paintshot/store"
)

func main() {
	configPath := flag.String("config", "", "path to paintshot.yaml config file")
	dbPath := flag.String("db", "", "path to SQLite database")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	traceSQL := flag.Bool("trace-sql", false, "log every SQL statement with timing")

	userID := flag.Int64("user", 0, "user id for the operation")
	level := flag.Int64("level", 1, "level for the operation")

	addUser := flag.String("adduser", "", "create a user with this nickname and exit")
	grant := flag.String("grant", "", "grant comma-separated colors to -user and exit")
	shoot := flag.Bool("shoot", false, "fire a shot for -user on -level and exit")
	colors := flag.String("colors", "", "comma-separated colors for -shoot")
	power := flag.Float64("power", 0, "shot power")
	angleX := flag.Float64("anglex", 0, "horizontal angle, degrees")
	angleY := flag.Float64("angley", 0, "vertical angle, degrees")
	out := flag.String("out", "", "write the updated canvas PNG here after a hit")
	score := flag.Bool("score", false, "score -user on -level synchronously and exit")
	progress := flag.Bool("progress", false, "show progress for -user on -level and exit")
	inventory := flag.Bool("inventory", false, "show color counts for -user and exit")
	advance := flag.Bool("advance", false, "advance -user to the next level and exit")
	flag.Parse()

	var lv slog.Level
	switch *logLevel {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := resolveConfig(*configPath, *dbPath, *traceSQL)
	if err != nil {
		logger.Error("paintshot: config", "error", err)
		os.Exit(1)
	}

	app, err := game.New(ctx, *cfg, logger)
	if err != nil {
		logger.Error("paintshot: init", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	err = run(ctx, app, ops{
		userID: *userID, level: *level,
		addUser: *addUser, grant: *grant,
		shoot: *shoot, colors: *colors,
		power: *power, angleX: *angleX, angleY: *angleY, out: *out,
		score: *score, progress: *progress,
		inventory: *inventory, advance: *advance,
	})
	if err != nil {
		logger.Error("paintshot: fatal", "error", err)
		os.Exit(1)
	}
}

type ops struct {
	userID, level               int64
	addUser, grant, colors, out string
	power, angleX, angleY       float64
	shoot, score, progress      bool
	inventory, advance          bool
}

func run(ctx context.Context, app *game.App, o ops) error {
	switch {
	case o.addUser != "":
		id, token, err := app.Store.CreateUser(ctx, o.addUser)
		if err != nil {
			return fmt.Errorf("adduser: %w", err)
		}
		return emit(map[string]any{"id": id, "nickname": o.addUser, "token": token})

	case o.grant != "":
		cs := splitColors(o.grant)
		if err := app.Store.GrantColors(ctx, o.userID, cs); err != nil {
			return fmt.Errorf("grant: %w", err)
		}
		counts, err := app.Store.ColorCounts(ctx, o.userID)
		if err != nil {
			return err
		}
		return emit(counts)

	case o.shoot:
		res, err := app.Engine.ResolveShot(ctx, engine.ShotRequest{
			UserID: o.userID,
			Level:  o.level,
			Colors: splitColors(o.colors),
			Power:  o.power,
			AngleX: o.angleX,
			AngleY: o.angleY,
		})
		var insufficient *store.InsufficientError
		if errors.As(err, &insufficient) {
			return emit(map[string]any{"error": "insufficient colors", "missing": insufficient.Colors})
		}
		if err != nil {
			return fmt.Errorf("shoot: %w", err)
		}
		if res.Hit && o.out != "" {
			if err := os.WriteFile(o.out, res.Raster, 0o644); err != nil {
				return fmt.Errorf("shoot: write canvas: %w", err)
			}
		}
		return emit(map[string]any{"hit": res.Hit, "x": res.TargetX, "y": res.TargetY})

	case o.score:
		val, err := app.Engine.ComputeScore(ctx, o.userID, o.level)
		if errors.Is(err, canvas.ErrNotFound) {
			return fmt.Errorf("score: no reference image for level %d", o.level)
		}
		if err != nil {
			return fmt.Errorf("score: %w", err)
		}
		return emit(map[string]any{"user": o.userID, "level": o.level, "score": val})

	case o.progress:
		p, err := app.Store.Progress(ctx, o.userID, o.level)
		if err != nil {
			return fmt.Errorf("progress: %w", err)
		}
		return emit(p)

	case o.inventory:
		counts, err := app.Store.ColorCounts(ctx, o.userID)
		if err != nil {
			return fmt.Errorf("inventory: %w", err)
		}
		return emit(counts)

	case o.advance:
		next, err := app.Store.AdvanceLevel(ctx, o.userID, app.Config.MaxLevel)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		return emit(map[string]any{"user": o.userID, "level": next})
	}

	flag.Usage()
	return errors.New("no operation given")
}

func resolveConfig(configPath, dbPath string, traceSQL bool) (*game.Config, error) {
	cfg := &game.Config{}
	if configPath != "" {
		loaded, err := game.LoadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if traceSQL {
		cfg.TraceSQL = true
	}
	if cfg.DBPath == "" && configPath == "" {
		return nil, errors.New("need -config <file> or -db <path>")
	}
	return cfg, nil
}

func splitColors(csv string) []string {
	var out []string
	for _, c := range strings.Split(csv, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func emit(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
