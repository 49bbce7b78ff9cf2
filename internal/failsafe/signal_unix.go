//go:build !windows

// File: internal/failsafe/signal_unix.go
package failsafe

import (
	"os"
	"syscall"
)

var signalsByName = map[string]os.Signal{
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
	"SIGHUP":  syscall.SIGHUP,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGINT":  syscall.SIGINT,
}
