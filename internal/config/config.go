// Package config provides the configuration system for sketchpad.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← SKETCHPAD_HISTORY_MAX_ENTRIES=200
//	├─────────────────────────────┤
//	│  2. Config File (TOML)      │  ← ~/.config/sketchpad/config.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Command line flags are applied by the caller after Load.
//
// A Watcher reloads the file when it changes on disk and hands the new
// Config to its subscribers.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete sketchpad configuration.
type Config struct {
	Canvas  CanvasConfig  `toml:"canvas"`
	History HistoryConfig `toml:"history"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
	UI      UIConfig      `toml:"ui"`
}

// CanvasConfig sizes the drawing surface.
type CanvasConfig struct {
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
	// Grid is the spacing of the dashed background guides; 0 hides them.
	Grid float64 `toml:"grid"`
	// Snap is the step moved objects snap to; 0 disables snapping.
	Snap float64 `toml:"snap"`
}

// HistoryConfig configures the undo/redo history.
type HistoryConfig struct {
	MaxEntries int `toml:"max_entries"`
	// ClearPolicy is "reseed" or "empty".
	ClearPolicy string `toml:"clear_policy"`
}

// StorageConfig configures document persistence.
type StorageConfig struct {
	Dir string `toml:"dir"`
	// Format is "json" or "yaml".
	Format string `toml:"format"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// File receives log output; empty means stderr.
	File string `toml:"file"`
}

// UIConfig configures the terminal front-end.
type UIConfig struct {
	StatusTimeoutMS int    `toml:"status_timeout_ms"`
	Stroke          string `toml:"stroke"`
	Brush           string `toml:"brush"`
}

// StatusTimeout returns how long a status message stays visible.
func (u UIConfig) StatusTimeout() time.Duration {
	return time.Duration(u.StatusTimeoutMS) * time.Millisecond
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Canvas: CanvasConfig{
			Width:  800,
			Height: 600,
			Grid:   50,
			Snap:   10,
		},
		History: HistoryConfig{
			MaxEntries:  1000,
			ClearPolicy: "reseed",
		},
		Storage: StorageConfig{
			Dir:    defaultDataDir(),
			Format: "json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		UI: UIConfig{
			StatusTimeoutMS: 3000,
			Stroke:          "#000000",
			Brush:           "pencil",
		},
	}
}

// Clone returns a copy of c.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// DefaultPath returns the user configuration file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sketchpad", "config.toml")
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "sketchpad")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "sketchpad-data"
	}
	return filepath.Join(home, ".local", "share", "sketchpad")
}
