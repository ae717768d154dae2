package driver

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/nicolas-rabault/lelab/internal/calibration"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/logging"
)

// eot is the end-of-transmission byte; at the start of a line a cooked-mode
// PTY delivers it as end of input to the child.
const eot = 0x04

// procDevice drives the vendor calibration CLI under a PTY. Connect starts
// the process, Calibrate pumps terminal I/O until it exits, Disconnect tears
// the process down.
type procDevice struct {
	command string
	args    []string
	port    string
	log     *logging.Logger

	cmd  *exec.Cmd
	ptmx *os.File
}

func newProcDevice(command string, args []string, port string, log *logging.Logger) *procDevice {
	if log == nil {
		log = logging.NewDefault()
	}
	return &procDevice{
		command: command,
		args:    args,
		port:    port,
		log:     log,
	}
}

// Connect validates the serial port path and starts the calibration CLI
// under a pseudo-terminal.
func (d *procDevice) Connect() error {
	if d.port != "" {
		if _, err := os.Stat(d.port); err != nil {
			return fmt.Errorf("serial port %s: %w", d.port, err)
		}
	}

	cmd := exec.Command(d.command, d.args...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 80})
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", d.command, err)
	}

	d.cmd = cmd
	d.ptmx = ptmx
	d.log.Info("calibration process started",
		zap.String("command", d.command),
		zap.Int("pid", cmd.Process.Pid),
	)
	return nil
}

// Calibrate bridges the process's terminal to the injected capability pair
// until the process exits. It blocks for the whole calibration, exactly like
// a native driver call would.
func (d *procDevice) Calibrate(term calibration.Terminal) error {
	if d.ptmx == nil {
		return errors.New("device not connected")
	}

	done := make(chan error, 1)
	go d.pumpOutput(term, done)
	go d.pumpInput(term)

	if err := <-done; err != nil {
		return fmt.Errorf("calibration process: %w", err)
	}
	return nil
}

// pumpOutput copies raw PTY output into the terminal sink until the child
// closes its side, then reaps the process.
func (d *procDevice) pumpOutput(term calibration.Terminal, done chan<- error) {
	buf := make([]byte, 4096)
	for {
		n, err := d.ptmx.Read(buf)
		if n > 0 {
			term.Write(buf[:n])
		}
		if err != nil {
			// EOF or EIO once the child exits.
			break
		}
	}
	term.Flush()
	done <- d.cmd.Wait()
}

// pumpInput forwards submitted lines into the PTY. ReadLine returns io.EOF
// when the session is cancelled or finished; that is forwarded as EOT so the
// child's own input loop ends.
func (d *procDevice) pumpInput(term calibration.Terminal) {
	for {
		line, err := term.ReadLine("")
		if err != nil {
			d.ptmx.Write([]byte{eot})
			return
		}
		if _, err := d.ptmx.Write([]byte(line + "\n")); err != nil {
			return
		}
	}
}

// Disconnect kills the process if it is still alive and closes the PTY.
// Errors are reported so the session controller can log them; they never
// change the session outcome.
func (d *procDevice) Disconnect() error {
	var errs []error
	if d.cmd != nil && d.cmd.Process != nil {
		if err := d.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("kill: %w", err))
		}
	}
	if d.ptmx != nil {
		if err := d.ptmx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pty: %w", err))
		}
		d.ptmx = nil
	}
	return errors.Join(errs...)
}
