package game

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/paintshot/engine"
)

// Config holds the full application configuration.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`
	// CanvasDir holds painted canvases, one PNG per (user, level).
	CanvasDir string `yaml:"canvas_dir"`
	// LevelDir holds the level reference images.
	LevelDir string `yaml:"level_dir"`
	// MaxLevel caps level advancement.
	MaxLevel int64 `yaml:"max_level"`
	// TraceSQL routes database access through the timing driver.
	TraceSQL bool `yaml:"trace_sql"`

	Engine  engine.Config  `yaml:"engine"`
	Scoring ScheduleConfig `yaml:"scoring"`
}

// ScheduleConfig tunes the debounced scoring coordinator.
type ScheduleConfig struct {
	Quiescence Duration `yaml:"quiescence"`
	Workers    int      `yaml:"workers"`
	QueueSize  int      `yaml:"queue_size"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "250ms" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "paintshot.db"
	}
	if c.CanvasDir == "" {
		c.CanvasDir = "canvases"
	}
	if c.LevelDir == "" {
		c.LevelDir = "levels"
	}
	if c.MaxLevel <= 0 {
		c.MaxLevel = 50
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
