//go:build !windows

package integration

import (
	"os"
	"syscall"
)

func getTermSignals() []os.Signal {
	return []os.Signal{
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		syscall.SIGHUP,
	}
}

const canSignalProcess = true
