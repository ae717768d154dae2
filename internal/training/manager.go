// Package training supervises the external training process: a simple
// spawn-and-poll job with log capture and metric scraping, no interactive
// emulation involved.
package training

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nicolas-rabault/lelab/internal/infrastructure/config"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/logging"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/monitoring"
)

const (
	// maxLogEntries bounds the captured log ring.
	maxLogEntries = 1000

	// stopGrace is how long Stop waits after SIGTERM before killing.
	stopGrace = 10 * time.Second
)

var (
	// ErrAlreadyRunning is returned by Start while a job is live.
	ErrAlreadyRunning = errors.New("training is already active")

	// ErrNotRunning is returned by Stop when no job is live.
	ErrNotRunning = errors.New("no training session is active")
)

// Manager runs at most one training job at a time.
type Manager struct {
	cfg     config.TrainingConfig
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu     sync.Mutex
	cmd    *exec.Cmd
	done   chan struct{}
	status Status
	logs   []LogEntry
}

// NewManager creates a training job supervisor.
func NewManager(cfg config.TrainingConfig, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Manager{
		cfg: cfg,
		log: log,
		status: Status{
			Controls: map[string]bool{"stop_training": false},
		},
	}
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Start spawns the trainer process and begins monitoring its output.
func (m *Manager) Start(req Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.Active {
		return ErrAlreadyRunning
	}

	req = req.withDefaults(m.cfg.OutputDir)
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	cmd := exec.Command(m.cfg.Command, req.args()...)
	cmd.Env = os.Environ()

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create log pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("failed to start training: %w", err)
	}
	pw.Close()

	m.cmd = cmd
	m.done = make(chan struct{})
	m.logs = nil
	m.status = Status{
		Active:     true,
		TotalSteps: req.Steps,
		Controls:   map[string]bool{"stop_training": true},
	}
	if m.metrics != nil {
		m.metrics.TrainingsStarted.Inc()
		m.metrics.TrainingActive.Set(1)
	}
	m.log.Info("training started",
		zap.String("command", m.cfg.Command),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("steps", req.Steps),
	)

	go m.monitor(cmd, pr, m.done)
	return nil
}

// Stop terminates the trainer: SIGTERM first, SIGKILL after the grace
// period.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.status.Active || m.cmd == nil {
		m.mu.Unlock()
		return ErrNotRunning
	}
	cmd := m.cmd
	done := m.done
	m.mu.Unlock()

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to signal training process: %w", err)
	}

	select {
	case <-done:
	case <-time.After(stopGrace):
		m.log.Warn("training process ignored SIGTERM, killing")
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to kill training process: %w", err)
		}
		<-done
	}
	return nil
}

// Status returns a snapshot of the job.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := m.status
	status.Controls = map[string]bool{"stop_training": m.status.Controls["stop_training"]}
	return status
}

// Logs drains and returns the captured log entries.
func (m *Manager) Logs() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	logs := m.logs
	m.logs = nil
	return logs
}

// monitor scans trainer output line-by-line until the process exits, then
// finalizes the status.
func (m *Manager) monitor(cmd *exec.Cmd, out *os.File, done chan struct{}) {
	defer close(done)
	defer out.Close()

	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m.record(line)
	}

	err := cmd.Wait()

	m.mu.Lock()
	m.status.Active = false
	m.status.Controls = map[string]bool{"stop_training": false}
	m.cmd = nil
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.TrainingActive.Set(0)
	}
	if err != nil {
		m.log.Warn("training process exited", zap.Error(err))
	} else {
		m.log.Info("training process completed")
	}
}

// record appends one log line to the bounded ring and scrapes any training
// metrics it carries.
func (m *Manager) record(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.logs) >= maxLogEntries {
		m.logs = m.logs[1:]
	}
	m.logs = append(m.logs, LogEntry{Timestamp: time.Now(), Message: line})
	m.parseLine(line)
}

// parseLine scrapes step/loss/lr/grad-norm values from a trainer progress
// line of the form "... step:1,200 loss:0.034 lr:1e-05 grdn:12.3 ...".
// Callers hold mu.
func (m *Manager) parseLine(line string) {
	lower := strings.ToLower(line)
	if !strings.Contains(lower, "step:") || !strings.Contains(lower, "loss:") {
		return
	}

	if tok := tokenAfter(line, "step:"); tok != "" {
		if step, err := strconv.Atoi(strings.ReplaceAll(tok, ",", "")); err == nil {
			m.status.CurrentStep = step
		}
	}
	if tok := tokenAfter(line, "loss:"); tok != "" {
		if loss, err := strconv.ParseFloat(tok, 64); err == nil {
			m.status.CurrentLoss = &loss
		}
	}
	if tok := tokenAfter(line, "lr:"); tok != "" {
		if lr, err := strconv.ParseFloat(tok, 64); err == nil {
			m.status.CurrentLR = &lr
		}
	}
	if tok := tokenAfter(line, "grdn:"); tok != "" {
		if grdn, err := strconv.ParseFloat(tok, 64); err == nil {
			m.status.GradNorm = &grdn
		}
	}

	if m.status.CurrentStep > 0 && m.status.TotalSteps > 0 {
		// Rough ETA assuming half a second per remaining step.
		eta := float64(m.status.TotalSteps-m.status.CurrentStep) * 0.5
		m.status.ETASeconds = &eta
	}
}

// tokenAfter returns the whitespace-delimited token following key in line.
func tokenAfter(line, key string) string {
	i := strings.Index(line, key)
	if i < 0 {
		return ""
	}
	rest := strings.TrimLeft(line[i+len(key):], " ")
	if j := strings.IndexAny(rest, " \t"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
