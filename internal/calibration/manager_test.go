package calibration

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicolas-rabault/lelab/internal/infrastructure/logging"
)

// stubDevice scripts the driver side of a session.
type stubDevice struct {
	connectErr   error
	calibrate    func(term Terminal) error
	disconnects  int
	disconnected chan struct{}
}

func newStubDevice(calibrate func(term Terminal) error) *stubDevice {
	return &stubDevice{
		calibrate:    calibrate,
		disconnected: make(chan struct{}),
	}
}

func (d *stubDevice) Connect() error { return d.connectErr }

func (d *stubDevice) Calibrate(term Terminal) error {
	if d.calibrate == nil {
		return nil
	}
	return d.calibrate(term)
}

func (d *stubDevice) Disconnect() error {
	d.disconnects++
	close(d.disconnected)
	return nil
}

func stubFactory(dev Device) Factory {
	return func(Request) (Device, error) { return dev, nil }
}

func testManager(dev Device) *Manager {
	return NewManager(stubFactory(dev), logging.NewNop(), Options{
		StopGrace:    2 * time.Second,
		PollInterval: time.Millisecond,
	})
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.Status().State == want
	}, 3*time.Second, time.Millisecond, "never reached state %q, last %q", want, m.Status().State)
}

var testRequest = Request{DeviceKind: "robot", Port: "/dev/ttyUSB0", ConfigID: "arm.json"}

func TestManagerHappyPath(t *testing.T) {
	dev := newStubDevice(func(term Terminal) error {
		fmt.Fprintln(term, "Calibrating joint 1...")
		return nil
	})
	m := testManager(dev)

	require.NoError(t, m.Start(testRequest))
	waitForState(t, m, StateCompleted)

	status := m.Status()
	assert.False(t, status.Active)
	assert.Empty(t, status.Error)
	assert.Equal(t, "robot", status.DeviceKind)
	assert.NotEmpty(t, status.SessionID)
	assert.Contains(t, status.Display, "Calibrating joint 1...")
	assert.Equal(t, 1, dev.disconnects)
}

func TestManagerRejectsSecondStart(t *testing.T) {
	release := make(chan struct{})
	dev := newStubDevice(func(Terminal) error {
		<-release
		return nil
	})
	m := testManager(dev)

	require.NoError(t, m.Start(testRequest))
	assert.ErrorIs(t, m.Start(testRequest), ErrAlreadyActive)

	close(release)
	waitForState(t, m, StateCompleted)

	// A finished session frees the slot.
	dev2 := newStubDevice(nil)
	m.factory = stubFactory(dev2)
	assert.NoError(t, m.Start(testRequest))
	waitForState(t, m, StateCompleted)
}

func TestManagerStopCancelsBlockedRead(t *testing.T) {
	dev := newStubDevice(func(term Terminal) error {
		// Block in the read emulation like a real prompt would.
		for {
			if _, err := term.ReadLine("Press Enter: "); err != nil {
				return nil
			}
		}
	})
	m := testManager(dev)

	require.NoError(t, m.Start(testRequest))
	waitForState(t, m, StateRunning)

	require.NoError(t, m.Stop())
	waitForState(t, m, StateCompleted)

	status := m.Status()
	assert.False(t, status.Active)
	assert.Contains(t, status.Message, "cancelled")
	assert.Equal(t, 1, dev.disconnects)
}

func TestManagerStopWithoutSession(t *testing.T) {
	m := testManager(newStubDevice(nil))
	assert.ErrorIs(t, m.Stop(), ErrNoActiveSession)
}

func TestManagerSubmitInputWithoutSession(t *testing.T) {
	m := testManager(newStubDevice(nil))
	assert.ErrorIs(t, m.SubmitInput("anything"), ErrNoActiveSession)
}

func TestManagerInputRoundTrip(t *testing.T) {
	answers := make(chan string, 2)
	dev := newStubDevice(func(term Terminal) error {
		for i := 0; i < 2; i++ {
			line, err := term.ReadLine("> ")
			if err != nil {
				return err
			}
			answers <- line
		}
		return nil
	})
	m := testManager(dev)

	require.NoError(t, m.Start(testRequest))
	waitForState(t, m, StateRunning)

	require.NoError(t, m.SubmitInput("first answer"))
	// Empty submission means "press Enter": delivered as an empty line.
	require.NoError(t, m.SubmitInput(""))

	waitForState(t, m, StateCompleted)
	assert.Equal(t, "first answer", <-answers)
	assert.Equal(t, "", <-answers)
}

func TestManagerConnectFailure(t *testing.T) {
	dev := newStubDevice(nil)
	dev.connectErr = errors.New("no such port")
	m := testManager(dev)

	require.NoError(t, m.Start(testRequest))
	waitForState(t, m, StateFailed)

	status := m.Status()
	assert.False(t, status.Active)
	assert.Contains(t, status.Error, "no such port")
	// Connect failed, but the device still gets its release call.
	assert.Equal(t, 1, dev.disconnects)
}

func TestManagerCalibrateFailure(t *testing.T) {
	dev := newStubDevice(func(Terminal) error {
		return errors.New("motor 3 not responding")
	})
	m := testManager(dev)

	require.NoError(t, m.Start(testRequest))
	waitForState(t, m, StateFailed)

	assert.Contains(t, m.Status().Error, "motor 3 not responding")
}

func TestManagerFactoryFailure(t *testing.T) {
	m := NewManager(func(Request) (Device, error) {
		return nil, errors.New("unknown device type")
	}, logging.NewNop(), Options{})

	require.NoError(t, m.Start(testRequest))
	waitForState(t, m, StateFailed)
	assert.Contains(t, m.Status().Error, "unknown device type")
}

func TestManagerDrainsStaleInputBetweenSessions(t *testing.T) {
	got := make(chan string, 1)
	release := make(chan struct{})
	blocked := newStubDevice(func(Terminal) error {
		<-release
		return nil
	})
	m := testManager(blocked)

	require.NoError(t, m.Start(testRequest))
	waitForState(t, m, StateRunning)
	require.NoError(t, m.SubmitInput("stale line"))
	close(release)
	waitForState(t, m, StateCompleted)

	// Input from the first session must not leak into the second.
	dev := newStubDevice(func(term Terminal) error {
		line, err := term.ReadLine("")
		if err != nil {
			return err
		}
		got <- line
		return nil
	})
	m.factory = stubFactory(dev)

	require.NoError(t, m.Start(testRequest))
	waitForState(t, m, StateRunning)
	require.NoError(t, m.SubmitInput("for session two"))
	waitForState(t, m, StateCompleted)

	assert.Equal(t, "for session two", <-got)
}

func TestManagerStatusIsACopy(t *testing.T) {
	m := testManager(newStubDevice(nil))

	status := m.Status()
	status.Message = "mutated"

	assert.NotEqual(t, "mutated", m.Status().Message)
	assert.Equal(t, StateIdle, m.Status().State)
}
