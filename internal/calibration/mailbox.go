package calibration

import "sync"

// DefaultMailboxCapacity bounds the number of pending input lines.
const DefaultMailboxCapacity = 100

// Mailbox is a bounded FIFO of pending input lines plus a wake signal.
//
// The slice is the data channel; the wake channel exists only to bound the
// consumer's polling latency and must never be treated as the source of
// truth for "input available". When the mailbox is full, a push drains the
// whole backlog and keeps only the newest entry: once a client submits
// again, anything still queued is considered stale.
type Mailbox struct {
	mu       sync.Mutex
	items    []string
	capacity int
	wake     chan struct{}
}

// NewMailbox creates a mailbox holding at most capacity entries.
func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultMailboxCapacity
	}
	return &Mailbox{
		capacity: capacity,
		wake:     make(chan struct{}, 1),
	}
}

// Push queues one input line and sets the wake signal. Latest-input-wins on
// overflow. Never blocks.
func (m *Mailbox) Push(text string) {
	m.mu.Lock()
	if len(m.items) >= m.capacity {
		m.items = m.items[:0]
	}
	m.items = append(m.items, text)
	m.mu.Unlock()
	m.Kick()
}

// TryPop removes and returns the oldest pending line, if any.
func (m *Mailbox) TryPop() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return "", false
	}
	text := m.items[0]
	m.items = m.items[1:]
	return text, true
}

// Len reports the number of pending lines.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Wake exposes the wake signal. Receiving from it clears the signal; the
// single consumer must re-check the mailbox afterwards.
func (m *Mailbox) Wake() <-chan struct{} {
	return m.wake
}

// Kick force-refreshes the wake signal without queueing input, so a blocked
// consumer re-checks its cancellation flag promptly.
func (m *Mailbox) Kick() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Drain discards all pending lines and clears the wake signal. Called when a
// session starts or ends.
func (m *Mailbox) Drain() {
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
	select {
	case <-m.wake:
	default:
	}
}
