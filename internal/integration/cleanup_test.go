package integration

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stigoleg/idle-suppressor/internal/suppressor"
	"github.com/stigoleg/idle-suppressor/internal/target"
)

const helperEnv = "IDLE_SUPPRESSOR_SIGNAL_HELPER"

// TestCleanupOnSignal verifies that a process running a suppressor shuts
// down cleanly on each termination signal.
func TestCleanupOnSignal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping cleanup test in short mode")
	}
	if !canSignalProcess {
		t.Skip("signals cannot be delivered to processes on this platform")
	}

	for _, sig := range getTermSignals() {
		t.Run(sig.String(), func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=^TestSignalHelper$")
			cmd.Env = append(os.Environ(), helperEnv+"=1")
			stdout, err := cmd.StdoutPipe()
			require.NoError(t, err)
			require.NoError(t, cmd.Start(), "helper process should start")

			ready := make(chan struct{})
			go func() {
				sc := bufio.NewScanner(stdout)
				for sc.Scan() {
					if strings.Contains(sc.Text(), "ready") {
						close(ready)
						break
					}
				}
				// Keep draining so the helper never blocks on a full pipe.
				for sc.Scan() {
				}
			}()

			select {
			case <-ready:
			case <-time.After(5 * time.Second):
				_ = cmd.Process.Kill()
				t.Fatal("helper process never became ready")
			}

			require.NoError(t, cmd.Process.Signal(sig), "should send %v", sig)

			done := make(chan error, 1)
			go func() {
				done <- cmd.Wait()
			}()

			select {
			case err := <-done:
				assert.NoError(t, err, "process should exit cleanly after %v", sig)
			case <-time.After(5 * time.Second):
				_ = cmd.Process.Kill()
				t.Fatal("process did not exit within timeout")
			}
		})
	}
}

// TestSignalHelper runs inside the child process started by
// TestCleanupOnSignal.
func TestSignalHelper(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	d, err := target.New(context.Background(), target.Options{Name: target.NameDocument}, zerolog.Nop())
	if err != nil {
		os.Exit(1)
	}
	s, err := suppressor.New(d, suppressor.Options{Interval: testInterval, Logger: zerolog.Nop()})
	if err != nil {
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, getTermSignals()...)

	if err := s.StartIndefinite(); err != nil {
		os.Exit(1)
	}
	fmt.Println("ready")

	select {
	case <-sigChan:
	case <-time.After(10 * time.Second):
		os.Exit(2)
	}

	if err := s.Close(); err != nil || s.IsRunning() {
		os.Exit(1)
	}
	os.Exit(0)
}
