//go:build windows

package integration

import (
	"os"
	"syscall"
)

func getTermSignals() []os.Signal {
	return []os.Signal{
		syscall.SIGINT,
		syscall.SIGTERM,
	}
}

// os.Process.Signal only supports Kill on Windows.
const canSignalProcess = false
