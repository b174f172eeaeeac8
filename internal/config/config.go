package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stigoleg/idle-suppressor/internal/event"
	"github.com/stigoleg/idle-suppressor/internal/logging"
	"github.com/stigoleg/idle-suppressor/internal/target"
	"github.com/stigoleg/idle-suppressor/internal/util"
)

// DefaultInterval is the period of both synthetic event timers (900000 ms).
const DefaultInterval = 15 * time.Minute

const envPrefix = "IDLE_SUPPRESSOR_"

// Config holds all configuration for idle-suppressor.
type Config struct {
	// Interval between synthetic events of each kind.
	Interval time.Duration `yaml:"interval"`

	// Event kinds to dispatch
	Mouse    bool `yaml:"mouse"`
	Keyboard bool `yaml:"keyboard"`

	Target   string        `yaml:"target"`
	Browser  BrowserConfig `yaml:"browser"`
	Headless bool          `yaml:"headless"`
	Log      LogConfig     `yaml:"log"`

	// Session length; set from flags only. Zero means indefinite.
	Duration time.Duration `yaml:"-"`
	Until    time.Time     `yaml:"-"`
}

// BrowserConfig configures the browser target.
type BrowserConfig struct {
	RemoteURL string `yaml:"url"`
	PageURL   string `yaml:"page"`
	MatchURL  string `yaml:"match"`
	Headless  bool   `yaml:"headless"`
	NoSandbox bool   `yaml:"no_sandbox"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval: DefaultInterval,
		Mouse:    true,
		Keyboard: true,
		Target:   target.NameAuto,
		Browser: BrowserConfig{
			PageURL: "about:blank",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			File:   "debug.log",
		},
	}
}

// DefaultPath returns the config file location, or "" if no config
// directory can be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "idle-suppressor", "config.yaml")
}

// Load builds a configuration from defaults, the file at path and the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config) error {
	if v, ok := lookupEnv("INTERVAL"); ok {
		d, err := util.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sINTERVAL: %w", envPrefix, err)
		}
		cfg.Interval = d
	}

	for name, dst := range map[string]*bool{
		"MOUSE":              &cfg.Mouse,
		"KEYBOARD":           &cfg.Keyboard,
		"HEADLESS":           &cfg.Headless,
		"BROWSER_HEADLESS":   &cfg.Browser.Headless,
		"BROWSER_NO_SANDBOX": &cfg.Browser.NoSandbox,
	} {
		if v, ok := lookupEnv(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = b
		}
	}

	for name, dst := range map[string]*string{
		"TARGET":      &cfg.Target,
		"BROWSER_URL": &cfg.Browser.RemoteURL,
		"PAGE":        &cfg.Browser.PageURL,
		"MATCH":       &cfg.Browser.MatchURL,
		"LOG_LEVEL":   &cfg.Log.Level,
		"LOG_FILE":    &cfg.Log.File,
	} {
		if v, ok := lookupEnv(name); ok {
			*dst = v
		}
	}

	return nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Kinds returns the enabled event kinds in registration order.
func (c *Config) Kinds() []event.Kind {
	var kinds []event.Kind
	if c.Mouse {
		kinds = append(kinds, event.KindMouseMove)
	}
	if c.Keyboard {
		kinds = append(kinds, event.KindKeyDown)
	}
	return kinds
}

// TargetOptions converts the configuration into dispatcher options.
func (c *Config) TargetOptions() target.Options {
	return target.Options{
		Name: c.Target,
		Browser: target.BrowserOptions{
			RemoteURL: c.Browser.RemoteURL,
			PageURL:   c.Browser.PageURL,
			MatchURL:  c.Browser.MatchURL,
			Headless:  c.Browser.Headless,
			NoSandbox: c.Browser.NoSandbox,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if !c.Mouse && !c.Keyboard {
		return errors.New("at least one of mouse or keyboard events must be enabled")
	}

	known := false
	for _, name := range target.Names {
		if strings.EqualFold(c.Target, name) {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w %q (valid: %s)", target.ErrUnknownTarget, c.Target, strings.Join(target.Names, ", "))
	}

	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %v", c.Duration)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
