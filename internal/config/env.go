package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix is prepended to every environment override.
// SKETCHPAD_HISTORY_MAX_ENTRIES sets history.max_entries.
const EnvPrefix = "SKETCHPAD_"

type envSetter func(c *Config, value string) error

var envBindings = map[string]envSetter{
	"CANVAS_WIDTH":         floatVar(func(c *Config) *float64 { return &c.Canvas.Width }),
	"CANVAS_HEIGHT":        floatVar(func(c *Config) *float64 { return &c.Canvas.Height }),
	"CANVAS_GRID":          floatVar(func(c *Config) *float64 { return &c.Canvas.Grid }),
	"CANVAS_SNAP":          floatVar(func(c *Config) *float64 { return &c.Canvas.Snap }),
	"HISTORY_MAX_ENTRIES":  intVar(func(c *Config) *int { return &c.History.MaxEntries }),
	"HISTORY_CLEAR_POLICY": stringVar(func(c *Config) *string { return &c.History.ClearPolicy }),
	"STORAGE_DIR":          stringVar(func(c *Config) *string { return &c.Storage.Dir }),
	"STORAGE_FORMAT":       stringVar(func(c *Config) *string { return &c.Storage.Format }),
	"LOGGING_LEVEL":        stringVar(func(c *Config) *string { return &c.Logging.Level }),
	"LOGGING_FORMAT":       stringVar(func(c *Config) *string { return &c.Logging.Format }),
	"LOGGING_FILE":         stringVar(func(c *Config) *string { return &c.Logging.File }),
	"UI_STATUS_TIMEOUT_MS": intVar(func(c *Config) *int { return &c.UI.StatusTimeoutMS }),
	"UI_STROKE":            stringVar(func(c *Config) *string { return &c.UI.Stroke }),
	"UI_BRUSH":             stringVar(func(c *Config) *string { return &c.UI.Brush }),
}

// applyEnv overlays SKETCHPAD_* variables from environ ("KEY=value" form).
// Unknown SKETCHPAD_ keys are ignored.
func (c *Config) applyEnv(environ []string) error {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		set, ok := envBindings[strings.TrimPrefix(key, EnvPrefix)]
		if !ok {
			continue
		}
		if err := set(c, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("environment %s: %w", key, err)
		}
	}
	return nil
}

func stringVar(field func(*Config) *string) envSetter {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func intVar(field func(*Config) *int) envSetter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatVar(field func(*Config) *float64) envSetter {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}
