package config

import (
	"fmt"
	"slices"
)

var (
	clearPolicies = []string{"reseed", "empty"}
	formats       = []string{"json", "yaml"}
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"text", "json"}
	brushes       = []string{"pencil", "marker", "calligraphy", "spray"}
)

// Validate reports every out-of-range or unknown setting.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		add("canvas size must be positive, got %gx%g", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Canvas.Grid < 0 {
		add("canvas.grid must not be negative")
	}
	if c.Canvas.Snap < 0 {
		add("canvas.snap must not be negative")
	}
	if c.History.MaxEntries < 0 {
		add("history.max_entries must not be negative")
	}
	if !slices.Contains(clearPolicies, c.History.ClearPolicy) {
		add("history.clear_policy %q: want one of %v", c.History.ClearPolicy, clearPolicies)
	}
	if !slices.Contains(formats, c.Storage.Format) {
		add("storage.format %q: want one of %v", c.Storage.Format, formats)
	}
	if !slices.Contains(logLevels, c.Logging.Level) {
		add("logging.level %q: want one of %v", c.Logging.Level, logLevels)
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		add("logging.format %q: want one of %v", c.Logging.Format, logFormats)
	}
	if c.UI.StatusTimeoutMS < 0 {
		add("ui.status_timeout_ms must not be negative")
	}
	if c.UI.Brush != "" && !slices.Contains(brushes, c.UI.Brush) {
		add("ui.brush %q: want one of %v", c.UI.Brush, brushes)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
