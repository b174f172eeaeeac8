package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stigoleg/idle-suppressor/internal/config"
	"github.com/stigoleg/idle-suppressor/internal/logging"
	"github.com/stigoleg/idle-suppressor/internal/suppressor"
	"github.com/stigoleg/idle-suppressor/internal/target"
	"github.com/stigoleg/idle-suppressor/internal/ui"
)

// newDispatcher builds the dispatch target; tests replace it.
var newDispatcher = target.New

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idlesuppressor",
		Short: "Keep idle detection from firing by sending synthetic input",
		Long: `idlesuppressor dispatches a synthetic mousemove and a Shift keydown
on a fixed interval (15 minutes by default). Events go to the OS input
stack (uinput, ydotool or xdotool on Linux, Quartz on macOS) or to a
browser page over DevTools.`,
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}

	flags := config.RegisterFlags(cmd.Flags())
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := flags.Resolve(time.Now())
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg, cmd.ErrOrStderr())
	}

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "idlesuppressor %s\n", appVersion)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Target), target.NameDocument) {
		return fmt.Errorf("the %s target only reaches in-process listeners; use auto, browser, uinput, ydotool, xdotool or macos", target.NameDocument)
	}

	// The TUI owns the terminal, so it logs to a file.
	out := stderr
	if !cfg.Headless && cfg.Log.File != "" {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	log, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: zerolog.SyncWriter(out),
	})
	if err != nil {
		return err
	}

	dispatcher, err := newDispatcher(ctx, cfg.TargetOptions(), log)
	if err != nil {
		return fmt.Errorf("create %s target: %w", cfg.Target, err)
	}

	s, err := suppressor.New(dispatcher, suppressor.Options{
		Interval: cfg.Interval,
		Kinds:    cfg.Kinds(),
		Logger:   log,
	})
	if err != nil {
		_ = dispatcher.Close()
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Msg("shutdown incomplete")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, getSignalsForPlatform()...)
	defer signal.Stop(sigChan)

	if cfg.Headless {
		return runHeadless(ctx, cfg, s, sigChan, log)
	}
	return runTUI(cfg, s, sigChan, log)
}

func runHeadless(ctx context.Context, cfg *config.Config, s *suppressor.Suppressor, sigChan <-chan os.Signal, log zerolog.Logger) error {
	var err error
	switch {
	case !cfg.Until.IsZero():
		err = s.StartUntil(cfg.Until)
	case cfg.Duration > 0:
		err = s.StartTimed(cfg.Duration)
	default:
		err = s.StartIndefinite()
	}
	if err != nil {
		return err
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("received signal")
			return nil
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.IsRunning() {
				return nil
			}
		}
	}
}

func runTUI(cfg *config.Config, s *suppressor.Suppressor, sigChan <-chan os.Signal, log zerolog.Logger) error {
	// Suppression starts with the process; the menu is reached by stopping.
	model := ui.InitialModelWithDuration(s, cfg.Duration)
	model.SetVersion(appVersion)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("received signal")
			p.Quit()
		case <-done:
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}
	return nil
}
