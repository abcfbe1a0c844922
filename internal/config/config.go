// Package config handles configuration loading and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

// Config holds all configuration for the daemon.
type Config struct {
	// Observation pipeline
	CadenceSeconds      int     `yaml:"cadence_seconds"`      // how often sources sample
	MinSustainSamples   int     `yaml:"min_sustain_samples"`  // consecutive samples before a label flip is confirmed
	ConfidenceThreshold float64 `yaml:"confidence_threshold"` // below this a sample is inconclusive
	IdleAfterSeconds    int     `yaml:"idle_after_seconds"`   // idle source: away after this much inactivity

	// Alerts
	AlertThresholdSeconds []int          `yaml:"alert_threshold_seconds"` // staged consecutive-unfocused thresholds, ascending
	TickSeconds           int            `yaml:"tick_seconds"`            // scheduler evaluation interval
	UnfocusedLabels       []string       `yaml:"unfocused_labels"`
	DesktopNotifications  bool           `yaml:"desktop_notifications"`
	PopupSeconds          int            `yaml:"popup_seconds"` // notification expiry
	Alerts                []AlertMessage `yaml:"alerts"`        // one entry per stage; the last one repeats

	// Session limits
	MaxSessionMinutes     int `yaml:"max_session_minutes"`     // 0 = unlimited
	UsageLimitSeconds     int `yaml:"usage_limit_seconds"`     // tracked-time allowance across sessions, 0 = unlimited
	UsageExtensionSeconds int `yaml:"usage_extension_seconds"` // granted per successful unlock

	DataDir string `yaml:"data_dir"`
}

// AlertMessage is the text shown for one alert stage.
type AlertMessage struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}

	return &Config{
		CadenceSeconds:      3,
		MinSustainSamples:   2,
		ConfidenceThreshold: 0.6,
		IdleAfterSeconds:    30,

		AlertThresholdSeconds: []int{20, 60, 120},
		TickSeconds:           1,
		UnfocusedLabels: []string{
			string(timeline.LabelAway),
			string(timeline.LabelGadgetSuspected),
			string(timeline.LabelScreenDistraction),
		},
		DesktopNotifications: true,
		PopupSeconds:         10,
		Alerts: []AlertMessage{
			{Title: "Focus paused", Body: "We noticed you stepped away!"},
			{Title: "Quick check-in", Body: "We are waiting for you :)"},
			{Title: "Reminder", Body: "Don't forget to come back ;)"},
		},

		MaxSessionMinutes:     0,
		UsageLimitSeconds:     7200,
		UsageExtensionSeconds: 7200,

		DataDir: filepath.Join(home, ".local", "share", "vigil"),
	}
}

// Load loads configuration from the default paths, falling back to defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}

	configPaths := []string{
		filepath.Join(home, ".config", "vigil", "config.yaml"),
		filepath.Join(home, ".local", "share", "vigil", "config.yaml"),
	}

	for _, path := range configPaths {
		if err := loadFromFile(cfg, path); err == nil {
			return cfg, nil
		}
	}

	return cfg, nil
}

// LoadPath loads configuration from an explicit file. Unlike Load, a
// missing or broken file is an error here: the user asked for this one.
func LoadPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadFromFile(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// loadFromFile reads a YAML config file and merges it into cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	// Expand ~ in the data dir
	cfg.DataDir = expandTilde(cfg.DataDir)
	return nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Save writes the current config to disk.
func (c *Config) Save() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".config", "vigil")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0600)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0700)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.CadenceSeconds <= 0 {
		return fmt.Errorf("cadence_seconds must be positive, got %d", c.CadenceSeconds)
	}
	if c.MinSustainSamples < 1 {
		return fmt.Errorf("min_sustain_samples must be at least 1, got %d", c.MinSustainSamples)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0, 1], got %g", c.ConfidenceThreshold)
	}
	if c.IdleAfterSeconds <= 0 {
		return fmt.Errorf("idle_after_seconds must be positive, got %d", c.IdleAfterSeconds)
	}
	if c.TickSeconds <= 0 {
		return fmt.Errorf("tick_seconds must be positive, got %d", c.TickSeconds)
	}
	if c.PopupSeconds < 0 {
		return fmt.Errorf("popup_seconds must not be negative, got %d", c.PopupSeconds)
	}

	prev := 0
	for _, s := range c.AlertThresholdSeconds {
		if s <= prev {
			return fmt.Errorf("alert_threshold_seconds must be positive and ascending, got %v", c.AlertThresholdSeconds)
		}
		prev = s
	}

	if len(c.UnfocusedLabels) == 0 {
		return fmt.Errorf("unfocused_labels must not be empty")
	}
	for _, l := range c.UnfocusedLabels {
		label := timeline.Label(l)
		if !label.Valid() {
			return fmt.Errorf("unknown unfocused label %q", l)
		}
		if label == timeline.LabelPresent || label == timeline.LabelPaused {
			return fmt.Errorf("label %q cannot count as unfocused", l)
		}
	}

	if c.MaxSessionMinutes < 0 {
		return fmt.Errorf("max_session_minutes must not be negative, got %d", c.MaxSessionMinutes)
	}
	if c.UsageLimitSeconds < 0 || c.UsageExtensionSeconds < 0 {
		return fmt.Errorf("usage limits must not be negative")
	}
	return nil
}

// Cadence returns the observation sampling interval.
func (c *Config) Cadence() time.Duration {
	return time.Duration(c.CadenceSeconds) * time.Second
}

// Tick returns the alert scheduler's evaluation interval.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// IdleAfter returns how long without input counts as away.
func (c *Config) IdleAfter() time.Duration {
	return time.Duration(c.IdleAfterSeconds) * time.Second
}

// Thresholds returns the staged alert thresholds as durations.
func (c *Config) Thresholds() []time.Duration {
	out := make([]time.Duration, len(c.AlertThresholdSeconds))
	for i, s := range c.AlertThresholdSeconds {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

// UnfocusedSet returns the unfocused labels as a set.
func (c *Config) UnfocusedSet() map[timeline.Label]bool {
	set := make(map[timeline.Label]bool, len(c.UnfocusedLabels))
	for _, l := range c.UnfocusedLabels {
		set[timeline.Label(l)] = true
	}
	return set
}

// PopupTimeoutMs returns the notification expiry in milliseconds.
func (c *Config) PopupTimeoutMs() int {
	return c.PopupSeconds * 1000
}

// MaxSession returns the per-session duration cap, 0 for unlimited.
func (c *Config) MaxSession() time.Duration {
	return time.Duration(c.MaxSessionMinutes) * time.Minute
}

// UsageLimit returns the cross-session tracked-time allowance, 0 for
// unlimited.
func (c *Config) UsageLimit() time.Duration {
	return time.Duration(c.UsageLimitSeconds) * time.Second
}

// UsageExtension returns the extra allowance granted per unlock.
func (c *Config) UsageExtension() time.Duration {
	return time.Duration(c.UsageExtensionSeconds) * time.Second
}

// MessageForStage returns the alert text for a stage. Stages past the end
// of the table reuse its last entry.
func (c *Config) MessageForStage(stage int) AlertMessage {
	if len(c.Alerts) == 0 {
		return AlertMessage{Title: "Focus check", Body: "Still with us?"}
	}
	if stage < 0 {
		stage = 0
	}
	if stage >= len(c.Alerts) {
		stage = len(c.Alerts) - 1
	}
	return c.Alerts[stage]
}
