package calibration

import (
	"errors"
	"io"
)

// State identifies where a calibration session is in its lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var (
	// ErrAlreadyActive is returned by Start while a session is live.
	ErrAlreadyActive = errors.New("calibration already active")

	// ErrNoActiveSession is returned by Stop and SubmitInput when no
	// session is live.
	ErrNoActiveSession = errors.New("no calibration active")
)

// Status is a point-in-time snapshot of the active (or last) session.
// It is a value copy and safe to read without further synchronization.
type Status struct {
	Active     bool   `json:"active"`
	State      State  `json:"state"`
	SessionID  string `json:"session_id,omitempty"`
	DeviceKind string `json:"device_type,omitempty"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message"`
	Display    string `json:"console_output"`
}

// Request describes a session start.
type Request struct {
	DeviceKind string `json:"device_type" binding:"required"`
	Port       string `json:"port" binding:"required"`
	ConfigID   string `json:"config_file" binding:"required"`
}

// Terminal is the capability pair injected into a driver's calibrate call:
// a write sink for its terminal output and a read-line source for its
// prompts. It replaces any process-global stream substitution.
type Terminal interface {
	io.Writer

	// Flush forces a display snapshot publish.
	Flush()

	// ReadLine blocks until one line of input is available and returns it
	// without a trailing line terminator. A non-empty prompt is echoed to
	// the output sink before waiting. Returns io.EOF once the session is
	// cancelled, so the routine's own input loop terminates naturally.
	ReadLine(prompt string) (string, error)
}

// Device is the external calibration driver contract. All three calls are
// synchronous and may block for a long time.
type Device interface {
	Connect() error
	Calibrate(term Terminal) error
	Disconnect() error
}

// Factory creates the driver variant for a start request.
type Factory func(req Request) (Device, error)
