package calibration

import (
	"io"
	"strings"
	"sync/atomic"
	"time"
)

// defaultPollInterval bounds the read emulation's worst-case wake latency.
const defaultPollInterval = 10 * time.Millisecond

// lineReader emulates a blocking read of standard input for the calibration
// routine. It rendezvouses with input submitted asynchronously through the
// mailbox: non-blocking pop first, then a short wait on the wake signal, with
// a cancellation check on every iteration. The short timeout plus the
// cancellation check guarantee bounded termination even if no input ever
// arrives.
type lineReader struct {
	mailbox   *Mailbox
	echo      io.Writer
	cancelled func() bool
	poll      time.Duration
	closed    atomic.Bool
}

func newLineReader(mailbox *Mailbox, echo io.Writer, cancelled func() bool, poll time.Duration) *lineReader {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &lineReader{
		mailbox:   mailbox,
		echo:      echo,
		cancelled: cancelled,
		poll:      poll,
	}
}

// ReadLine returns one submitted line without its trailing terminator, or
// io.EOF once the session is cancelled or closed.
func (r *lineReader) ReadLine(prompt string) (string, error) {
	if prompt != "" && r.echo != nil {
		io.WriteString(r.echo, prompt)
		if f, ok := r.echo.(interface{ Flush() }); ok {
			f.Flush()
		}
	}

	for {
		if text, ok := r.mailbox.TryPop(); ok {
			return strings.TrimRight(text, "\r\n"), nil
		}
		if r.closed.Load() || r.cancelled() {
			return "", io.EOF
		}
		select {
		case <-r.mailbox.Wake():
		case <-time.After(r.poll):
		}
	}
}

// close ends the reader once the session is over, releasing any goroutine a
// driver may still have blocked in ReadLine.
func (r *lineReader) close() {
	r.closed.Store(true)
	r.mailbox.Kick()
}
