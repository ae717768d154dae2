// Package ports enumerates serial port device nodes that may carry an SO-101
// arm. Detection is by path pattern only; no probing is attempted, since an
// open would disturb a port already in use by a calibration session.
package ports

import (
	"path/filepath"
	"sort"
)

// patterns covers the USB serial adapters the arms ship with, on Linux and
// macOS.
var patterns = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/tty.usbmodem*",
	"/dev/tty.usbserial*",
}

// List returns the candidate serial port paths, sorted.
func List() []string {
	var out []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		out = append(out, matches...)
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}
