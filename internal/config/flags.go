// Package config loads idle-suppressor settings from defaults, a YAML file,
// the environment and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/stigoleg/idle-suppressor/internal/util"
)

// Flags holds the raw command-line values before they are merged.
type Flags struct {
	fs *pflag.FlagSet

	ConfigPath      string
	Interval        string
	Mouse           bool
	Keyboard        bool
	Target          string
	BrowserURL      string
	PageURL         string
	MatchURL        string
	Duration        string
	Clock           string
	Headless        bool
	BrowserHeadless bool
	NoSandbox       bool
	LogLevel        string
	LogFormat       string
	LogFile         string
}

// RegisterFlags defines every flag on fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	def := DefaultConfig()
	f := &Flags{fs: fs}

	fs.StringVar(&f.ConfigPath, "config", DefaultPath(), "Path to the YAML config file")
	fs.StringVarP(&f.Interval, "interval", "i", def.Interval.String(), "Time between synthetic events (e.g., \"15m\", \"900000ms\" or \"15\")")
	fs.BoolVar(&f.Mouse, "mouse", def.Mouse, "Dispatch mousemove events")
	fs.BoolVar(&f.Keyboard, "keyboard", def.Keyboard, "Dispatch Shift keydown events")
	fs.StringVarP(&f.Target, "target", "t", def.Target, "Where to dispatch events: auto, browser, uinput, ydotool, xdotool or macos")
	fs.StringVar(&f.BrowserURL, "browser-url", "", "DevTools endpoint of a running browser (e.g., \"ws://127.0.0.1:9222\")")
	fs.StringVar(&f.PageURL, "page", def.Browser.PageURL, "Page to open when no existing tab matches")
	fs.StringVar(&f.MatchURL, "match", "", "Attach to the first tab whose URL contains this text")
	fs.BoolVar(&f.BrowserHeadless, "browser-headless", def.Browser.Headless, "Launch the browser without a window")
	fs.BoolVar(&f.NoSandbox, "browser-no-sandbox", def.Browser.NoSandbox, "Launch the browser without its sandbox (needed when running as root)")
	fs.StringVarP(&f.Duration, "duration", "d", "", "How long to suppress idle (e.g., \"2h30m\" or \"150\")")
	fs.StringVarP(&f.Clock, "clock", "c", "", "Suppress idle until this time (e.g., \"22:00\" or \"10:00PM\")")
	fs.BoolVar(&f.Headless, "headless", def.Headless, "Run without the terminal UI")
	fs.StringVar(&f.LogLevel, "log-level", def.Log.Level, "Log level: debug, info, warn or error")
	fs.StringVar(&f.LogFormat, "log-format", def.Log.Format, "Log format: json or console")
	fs.StringVar(&f.LogFile, "log-file", def.Log.File, "Log file used by the terminal UI")

	return f
}

// Resolve loads the config file and environment, then applies every flag the
// user set explicitly. now anchors --clock.
func (f *Flags) Resolve(now time.Time) (*Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := f.apply(cfg, now); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (f *Flags) changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}

func (f *Flags) apply(cfg *Config, now time.Time) error {
	if f.changed("interval") {
		d, err := util.ParseDuration(f.Interval)
		if err != nil {
			return err
		}
		cfg.Interval = d
	}
	if f.changed("mouse") {
		cfg.Mouse = f.Mouse
	}
	if f.changed("keyboard") {
		cfg.Keyboard = f.Keyboard
	}
	if f.changed("target") {
		cfg.Target = f.Target
	}
	if f.changed("browser-url") {
		cfg.Browser.RemoteURL = f.BrowserURL
	}
	if f.changed("page") {
		cfg.Browser.PageURL = f.PageURL
	}
	if f.changed("match") {
		cfg.Browser.MatchURL = f.MatchURL
	}
	if f.changed("headless") {
		cfg.Headless = f.Headless
	}
	if f.changed("browser-headless") {
		cfg.Browser.Headless = f.BrowserHeadless
	}
	if f.changed("browser-no-sandbox") {
		cfg.Browser.NoSandbox = f.NoSandbox
	}
	if f.changed("log-level") {
		cfg.Log.Level = f.LogLevel
	}
	if f.changed("log-format") {
		cfg.Log.Format = f.LogFormat
	}
	if f.changed("log-file") {
		cfg.Log.File = f.LogFile
	}

	if f.Duration != "" {
		d, err := util.ParseDuration(f.Duration)
		if err != nil {
			return err
		}
		cfg.Duration = d
	}
	if f.Clock != "" {
		if f.Duration != "" {
			return fmt.Errorf("--duration and --clock cannot be used together")
		}
		until, err := util.NextClockTime(f.Clock, now)
		if err != nil {
			return err
		}
		cfg.Until = until
		cfg.Duration = until.Sub(now)
	}
	return nil
}
