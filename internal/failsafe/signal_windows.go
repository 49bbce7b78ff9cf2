//go:build windows

// File: internal/failsafe/signal_windows.go
package failsafe

import "os"

var signalsByName = map[string]os.Signal{
	"SIGINT": os.Interrupt,
}
