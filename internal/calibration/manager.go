package calibration

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nicolas-rabault/lelab/internal/infrastructure/logging"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/monitoring"
)

// DefaultStopGrace bounds how long Stop waits for the worker to exit.
const DefaultStopGrace = 5 * time.Second

// Options tunes the session controller. Zero values select the defaults.
type Options struct {
	MailboxCapacity int
	StopGrace       time.Duration
	PollInterval    time.Duration
}

// Manager is the single-slot session controller. At most one calibration
// session exists at a time; starting another while one is connecting,
// running, or stopping fails with ErrAlreadyActive.
//
// Exactly two goroutines matter per session: the callers servicing
// start/stop/submit/status requests and the one worker goroutine running the
// driver calls. The status fields are guarded by mu, held only for the
// duration of a copy or update, never across a blocking call. The mailbox
// has its own smaller critical section so input submission is never blocked
// behind a slow status read.
type Manager struct {
	factory Factory
	log     *logging.Logger
	metrics *monitoring.Metrics

	grace time.Duration
	poll  time.Duration

	mailbox *Mailbox
	cancel  atomic.Bool

	mu     sync.Mutex
	status Status
	done   chan struct{}
}

// NewManager creates a session controller using factory to build driver
// variants.
func NewManager(factory Factory, log *logging.Logger, opts Options) *Manager {
	if log == nil {
		log = logging.NewDefault()
	}
	grace := opts.StopGrace
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	return &Manager{
		factory: factory,
		log:     log,
		grace:   grace,
		poll:    opts.PollInterval,
		mailbox: NewMailbox(opts.MailboxCapacity),
		status:  Status{State: StateIdle},
	}
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Start launches the worker goroutine for a new session and returns
// immediately; progress is observed via Status. Fails with ErrAlreadyActive
// while a session is connecting, running, or stopping.
func (m *Manager) Start(req Request) error {
	m.mu.Lock()
	switch m.status.State {
	case StateConnecting, StateRunning, StateStopping:
		m.mu.Unlock()
		return ErrAlreadyActive
	}
	done := make(chan struct{})
	m.done = done
	m.status = Status{
		Active:     true,
		State:      StateConnecting,
		SessionID:  uuid.NewString(),
		DeviceKind: req.DeviceKind,
		Message:    fmt.Sprintf("starting calibration for %s", req.DeviceKind),
	}
	m.mu.Unlock()

	m.cancel.Store(false)
	m.mailbox.Drain()
	if m.metrics != nil {
		m.metrics.CalibrationsStarted.Inc()
		m.metrics.CalibrationsActive.Set(1)
	}
	m.log.Info("starting calibration worker",
		zap.String("device", req.DeviceKind),
		zap.String("port", req.Port),
	)

	go m.run(req, done)
	return nil
}

// Stop requests cooperative cancellation and waits up to the grace period
// for the worker to exit. The worker is never killed: cancellation is
// observed at the read emulation's poll points and at checkpoints between
// driver calls. On timeout an error is returned; the worker still finalizes
// the session whenever it eventually exits.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.status.State != StateConnecting && m.status.State != StateRunning {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	m.status.State = StateStopping
	m.status.Message = "stopping calibration"
	done := m.done
	m.mu.Unlock()

	m.cancel.Store(true)
	m.mailbox.Kick()

	select {
	case <-done:
		return nil
	case <-time.After(m.grace):
		return fmt.Errorf("calibration worker did not exit within %s", m.grace)
	}
}

// SubmitInput queues one line of input for the blocked read emulation. An
// empty or newline-only submission is normalized to a bare line terminator,
// the "press Enter to accept the default" gesture.
func (m *Manager) SubmitInput(text string) error {
	m.mu.Lock()
	state := m.status.State
	m.mu.Unlock()
	if state != StateConnecting && state != StateRunning {
		return ErrNoActiveSession
	}

	if text == "" || text == "\n" {
		text = "\n"
	}
	m.mailbox.Push(text)
	if m.metrics != nil {
		m.metrics.InputsSubmitted.Inc()
	}
	m.log.Debug("input queued", zap.Int("pending", m.mailbox.Len()))
	return nil
}

// Status returns a thread-safe snapshot copy.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// run is the worker goroutine body: connect, calibrate with redirected
// terminal I/O, then funnel every outcome through one finalize step so the
// device always gets a chance to release resources.
func (m *Manager) run(req Request, done chan struct{}) {
	defer close(done)

	dev, err := m.factory(req)
	if err != nil {
		m.finish(nil, StateFailed, "failed to start calibration", err)
		return
	}

	m.setProgress(StateConnecting, "connecting to device")
	if err := dev.Connect(); err != nil {
		m.finish(dev, StateFailed, "calibration failed", fmt.Errorf("connect: %w", err))
		return
	}

	if m.cancel.Load() {
		m.finish(dev, StateCompleted, "calibration cancelled", nil)
		return
	}

	m.setProgress(StateRunning, "calibrating device, move all joints through their full range of motion")

	console := NewConsole(m.publishDisplay)
	fmt.Fprintln(console, "Starting calibration...")
	term := &sessionTerminal{
		Console: console,
		reader:  newLineReader(m.mailbox, console, m.cancel.Load, m.poll),
	}

	err = dev.Calibrate(term)
	term.reader.close()
	console.Flush()

	switch {
	case m.cancel.Load():
		m.finish(dev, StateCompleted, "calibration cancelled", nil)
	case err != nil:
		m.finish(dev, StateFailed, "calibration failed", fmt.Errorf("calibrate: %w", err))
	default:
		m.finish(dev, StateCompleted, "calibration completed successfully", nil)
	}
}

// finish disconnects the device, drains pending input, and lands the session
// in a terminal state so a subsequent Start is always possible. Disconnect
// errors are logged but never override the outcome.
func (m *Manager) finish(dev Device, state State, message string, err error) {
	if dev != nil {
		if derr := dev.Disconnect(); derr != nil {
			m.log.Error("failed to disconnect device", zap.Error(derr))
		}
	}
	m.mailbox.Drain()

	m.mu.Lock()
	m.status.Active = false
	m.status.State = state
	m.status.Message = message
	if err != nil {
		m.status.Error = err.Error()
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.CalibrationsActive.Set(0)
	}
	if err != nil {
		m.log.Error("calibration failed", zap.Error(err))
	} else {
		m.log.Info(message)
	}
}

// setProgress advances state and message unless a stop is already pending.
func (m *Manager) setProgress(state State, message string) {
	m.mu.Lock()
	if m.status.State != StateStopping {
		m.status.State = state
	}
	m.status.Message = message
	m.mu.Unlock()
}

// publishDisplay is the console's snapshot sink. Snapshots are idempotent
// full copies, so ordering between overlapping publishes only needs
// "the most recently enqueued eventually wins".
func (m *Manager) publishDisplay(text string) {
	m.mu.Lock()
	m.status.Display = text
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SnapshotPublishes.Inc()
	}
}

// sessionTerminal bundles the console sink and read emulation into the
// Terminal capability pair handed to the driver.
type sessionTerminal struct {
	*Console
	reader *lineReader
}

func (t *sessionTerminal) ReadLine(prompt string) (string, error) {
	return t.reader.ReadLine(prompt)
}
