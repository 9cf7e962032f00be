package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Scene      SceneConfig      `toml:"scene"`
	Perception PerceptionConfig `toml:"perception"`
	Logging    LoggingConfig    `toml:"logging"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	SceneID   string `toml:"scene_id"` // key the fog ledger is stored under
	StartTime int64  // set at boot, not from config
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty keeps fog in memory
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type SceneConfig struct {
	Path      string `toml:"path"`       // scene YAML
	Watch     bool   `toml:"watch"`      // reload the scene when the file changes
	ScriptDir string `toml:"script_dir"` // Lua scripts; empty disables scripting
}

type PerceptionConfig struct {
	TickRate             time.Duration `toml:"tick_rate"`
	Tolerance            float64       `toml:"tolerance"` // visibility sampling offset in px
	UnrestrictedObserver bool          `toml:"unrestricted_observer"`
	FogExploration       bool          `toml:"fog_exploration"`
	FogCommitThreshold   int           `toml:"fog_commit_threshold"` // explorations per commit
	FogSaveDebounce      time.Duration `toml:"fog_save_debounce"`
	FogMaxImageSize      int           `toml:"fog_max_image_size"` // saved image side cap
	FogResolution        int           `toml:"fog_resolution"`     // in-memory image side cap
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config { return defaults() }

func (c *Config) validate() error {
	switch {
	case c.Server.SceneID == "":
		return fmt.Errorf("server.scene_id is empty")
	case c.Perception.TickRate <= 0:
		return fmt.Errorf("perception.tick_rate must be positive")
	case c.Perception.Tolerance < 0:
		return fmt.Errorf("perception.tolerance must not be negative")
	case c.Perception.FogCommitThreshold <= 0:
		return fmt.Errorf("perception.fog_commit_threshold must be positive")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    "visiond",
			SceneID: "default",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Scene: SceneConfig{
			Path:      "data/scene.yaml",
			Watch:     true,
			ScriptDir: "scripts",
		},
		Perception: PerceptionConfig{
			TickRate:           100 * time.Millisecond,
			Tolerance:          2,
			FogExploration:     true,
			FogCommitThreshold: 10,
			FogSaveDebounce:    2 * time.Second,
			FogMaxImageSize:    2048,
			FogResolution:      4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled:     false,
			BindAddress: "127.0.0.1:9464",
		},
	}
}
