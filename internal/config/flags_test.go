package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *Flags {
	t.Helper()
	fs := pflag.NewFlagSet("idlesuppressor", pflag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return f
}

func TestResolveFlags(t *testing.T) {
	// Use a fixed time for consistent testing
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local) // 10:00 AM
	noFile := filepath.Join(t.TempDir(), "missing.yaml")

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "no flags",
			args: nil,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultInterval, cfg.Interval)
				assert.Equal(t, 900000*time.Millisecond, cfg.Interval)
				assert.True(t, cfg.Mouse)
				assert.True(t, cfg.Keyboard)
				assert.Equal(t, "auto", cfg.Target)
				assert.Zero(t, cfg.Duration)
				assert.False(t, cfg.Headless)
				assert.False(t, cfg.Browser.Headless)
			},
		},
		{
			name: "interval in milliseconds",
			args: []string{"--interval", "1800000ms"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30*time.Minute, cfg.Interval)
			},
		},
		{
			name: "interval short flag in minutes",
			args: []string{"-i", "5"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5*time.Minute, cfg.Interval)
			},
		},
		{
			name: "valid duration flag",
			args: []string{"-d", "2h30m"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 150*time.Minute, cfg.Duration)
			},
		},
		{
			name: "valid clock 24h format",
			args: []string{"-c", "12:00"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2*time.Hour, cfg.Duration)
				assert.Equal(t, 12, cfg.Until.Hour())
			},
		},
		{
			name: "valid clock 12h format PM",
			args: []string{"-c", "10:30PM"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 12*time.Hour+30*time.Minute, cfg.Duration)
				assert.True(t, cfg.Until.After(now))
			},
		},
		{
			name: "keyboard only on browser target",
			args: []string{"--mouse=false", "-t", "browser", "--browser-url", "ws://127.0.0.1:9222", "--match", "app.example.com"},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Mouse)
				assert.True(t, cfg.Keyboard)
				opts := cfg.TargetOptions()
				assert.Equal(t, "browser", opts.Name)
				assert.Equal(t, "ws://127.0.0.1:9222", opts.Browser.RemoteURL)
				assert.Equal(t, "app.example.com", opts.Browser.MatchURL)
			},
		},
		{name: "invalid clock format", args: []string{"-c", "25:00"}, wantErr: true},
		{name: "both duration and clock flags", args: []string{"-d", "2h30m", "-c", "22:30"}, wantErr: true},
		{name: "invalid interval", args: []string{"-i", "soon"}, wantErr: true},
		{name: "zero interval", args: []string{"-i", "0"}, wantErr: true},
		{name: "no kinds enabled", args: []string{"--mouse=false", "--keyboard=false"}, wantErr: true},
		{name: "unknown target", args: []string{"-t", "window"}, wantErr: true},
		{name: "unknown log level", args: []string{"--log-level", "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parse(t, append([]string{"--config", noFile}, tt.args...)...)

			cfg, err := f.Resolve(now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
interval: 30m
keyboard: false
target: browser
browser:
  url: ws://127.0.0.1:9222
log:
  level: debug
`), 0o600))

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := parse(t, "--config", path).Resolve(time.Now())
		require.NoError(t, err)
		assert.Equal(t, 30*time.Minute, cfg.Interval)
		assert.False(t, cfg.Keyboard)
		assert.True(t, cfg.Mouse)
		assert.Equal(t, "browser", cfg.Target)
		assert.Equal(t, "ws://127.0.0.1:9222", cfg.Browser.RemoteURL)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("environment over file", func(t *testing.T) {
		t.Setenv("IDLE_SUPPRESSOR_INTERVAL", "20m")
		t.Setenv("IDLE_SUPPRESSOR_KEYBOARD", "true")

		cfg, err := parse(t, "--config", path).Resolve(time.Now())
		require.NoError(t, err)
		assert.Equal(t, 20*time.Minute, cfg.Interval)
		assert.True(t, cfg.Keyboard)
	})

	t.Run("flags over environment", func(t *testing.T) {
		t.Setenv("IDLE_SUPPRESSOR_INTERVAL", "20m")

		cfg, err := parse(t, "--config", path, "--interval", "10m", "-t", "document").Resolve(time.Now())
		require.NoError(t, err)
		assert.Equal(t, 10*time.Minute, cfg.Interval)
		assert.Equal(t, "document", cfg.Target)
	})

	t.Run("bad environment value", func(t *testing.T) {
		t.Setenv("IDLE_SUPPRESSOR_MOUSE", "sometimes")

		_, err := parse(t, "--config", path).Resolve(time.Now())
		assert.Error(t, err)
	})
}

func TestBrowserHeadlessIsIndependentOfHeadless(t *testing.T) {
	noFile := filepath.Join(t.TempDir(), "missing.yaml")

	yamlPath := func(t *testing.T, body string) string {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	tests := []struct {
		name                string
		env                 map[string]string
		args                []string
		wantHeadless        bool
		wantBrowserHeadless bool
	}{
		{name: "headless flag", args: []string{"--config", noFile, "--headless"}, wantHeadless: true},
		{name: "headless env", env: map[string]string{"IDLE_SUPPRESSOR_HEADLESS": "true"}, args: []string{"--config", noFile}, wantHeadless: true},
		{name: "browser-headless flag", args: []string{"--config", noFile, "--browser-headless"}, wantBrowserHeadless: true},
		{name: "browser-headless env", env: map[string]string{"IDLE_SUPPRESSOR_BROWSER_HEADLESS": "true"}, args: []string{"--config", noFile}, wantBrowserHeadless: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := parse(t, tt.args...).Resolve(time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeadless, cfg.Headless)
			assert.Equal(t, tt.wantBrowserHeadless, cfg.Browser.Headless)
			assert.Equal(t, tt.wantBrowserHeadless, cfg.TargetOptions().Browser.Headless)
		})
	}

	t.Run("yaml keys", func(t *testing.T) {
		path := yamlPath(t, "headless: true\n")
		cfg, err := parse(t, "--config", path).Resolve(time.Now())
		require.NoError(t, err)
		assert.True(t, cfg.Headless)
		assert.False(t, cfg.Browser.Headless)

		path = yamlPath(t, "browser:\n  headless: true\n  no_sandbox: true\n")
		cfg, err = parse(t, "--config", path).Resolve(time.Now())
		require.NoError(t, err)
		assert.False(t, cfg.Headless)
		assert.True(t, cfg.Browser.Headless)
		assert.True(t, cfg.TargetOptions().Browser.NoSandbox)
	})
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interval: [not a duration"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestKinds(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []string{"mousemove", "keydown"}, []string{cfg.Kinds()[0].String(), cfg.Kinds()[1].String()})

	cfg.Mouse = false
	require.Len(t, cfg.Kinds(), 1)
	assert.Equal(t, "keydown", cfg.Kinds()[0].String())
}
