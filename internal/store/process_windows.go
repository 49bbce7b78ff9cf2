//go:build windows

// internal/store/process_windows.go
package store

import "os"

// processAlive reports whether a handle to pid can still be opened.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
