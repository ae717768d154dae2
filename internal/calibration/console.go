package calibration

import (
	"strings"
	"sync"
	"time"
)

const (
	// publishInterval caps snapshot frequency for chatty output.
	publishInterval = 20 * time.Millisecond

	// publishThreshold forces a snapshot for any substantial chunk.
	publishThreshold = 5
)

// Console reconstructs a stable, line-oriented view of the calibration
// routine's terminal output. It implements io.Writer over raw chunks that may
// contain control characters and escape sequences, keeps a buffer of
// completed lines plus one in-progress line, and publishes flattened
// snapshots through the publish callback.
//
// Only the handful of constructs the calibration routines actually emit is
// interpreted (carriage return, newline, backspace, cursor-up, absolute
// cursor position, erase-line); every other escape sequence is stripped.
type Console struct {
	publish func(text string)

	mu    sync.Mutex
	lines []string
	cur   []rune

	// crPending defers a carriage return's discard until the next
	// printable byte, so CRLF commits the line instead of erasing it.
	crPending bool

	// skipNL swallows the newline that follows a cursor reposition: the
	// "cursor up, CRLF, rewrite" redraw idiom moves back to the line it is
	// about to overwrite and must not commit an empty one.
	skipNL bool

	lastPublish time.Time
}

// NewConsole creates a console publishing snapshots through publish, which
// may be nil. Write-path publishes are dispatched on their own goroutine so
// the worker's output call never blocks behind a slow status update.
func NewConsole(publish func(text string)) *Console {
	if publish == nil {
		publish = func(string) {}
	}
	return &Console{publish: publish}
}

// Write consumes one raw output chunk.
func (c *Console) Write(p []byte) (int, error) {
	text := string(p)

	c.mu.Lock()
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		switch r := rs[i]; r {
		case 0x1b:
			i += c.escape(rs[i:]) - 1
		case '\r':
			c.crPending = true
		case '\n':
			if c.skipNL {
				c.skipNL = false
				c.crPending = false
				continue
			}
			c.commit()
		case '\b':
			c.applyCR()
			if len(c.cur) > 0 {
				c.cur = c.cur[:len(c.cur)-1]
			}
		default:
			c.applyCR()
			c.skipNL = false
			c.cur = append(c.cur, r)
		}
	}

	snap, due := c.snapshotIfDue(text)
	c.mu.Unlock()

	if due {
		go c.publish(snap)
	}
	return len(p), nil
}

// Flush forces a synchronous snapshot publish.
func (c *Console) Flush() {
	c.mu.Lock()
	snap := c.render()
	c.lastPublish = time.Now()
	c.mu.Unlock()
	c.publish(snap)
}

// Snapshot returns the current flattened display.
func (c *Console) Snapshot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.render()
}

// Lines returns a copy of the completed-lines buffer.
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// escape interprets one sequence starting at rs[0] == ESC and returns the
// number of runes consumed (at least 1).
func (c *Console) escape(rs []rune) int {
	if len(rs) < 2 {
		return 1
	}
	if rs[1] != '[' {
		// Two-byte sequence (ESC 7, ESC 8, ...): strip.
		return 2
	}
	j := 2
	for j < len(rs) && (rs[j] == ';' || rs[j] == '?' || (rs[j] >= '0' && rs[j] <= '9')) {
		j++
	}
	if j >= len(rs) {
		// Sequence truncated at chunk boundary: strip what we have.
		return len(rs)
	}
	params := string(rs[2:j])
	switch rs[j] {
	case 'A':
		c.cursorUp(parseCount(params))
	case 'H', 'f':
		c.cursorTo(parseRow(params))
	case 'K':
		c.cur = c.cur[:0]
		c.crPending = false
	}
	return j + 1
}

// cursorUp treats "up n" as "the next n lines are about to be overwritten".
// A non-empty in-progress line counts as the first of them; the rest are
// popped from the tail of the completed lines, clamped at zero.
func (c *Console) cursorUp(n int) {
	if n < 1 {
		n = 1
	}
	if len(c.cur) > 0 {
		c.cur = c.cur[:0]
		n--
	}
	if n > len(c.lines) {
		n = len(c.lines)
	}
	c.lines = c.lines[:len(c.lines)-n]
	c.crPending = false
	c.skipNL = true
}

// cursorTo emulates "output continues from this absolute row": completed
// lines past row-1 are truncated. A row beyond the buffer is a no-op.
func (c *Console) cursorTo(row int) {
	if row < 1 || row-1 >= len(c.lines) {
		return
	}
	c.lines = c.lines[:row-1]
	c.cur = c.cur[:0]
	c.crPending = false
	c.skipNL = true
}

func (c *Console) applyCR() {
	if c.crPending {
		c.cur = c.cur[:0]
		c.crPending = false
	}
}

func (c *Console) commit() {
	c.lines = append(c.lines, string(c.cur))
	c.cur = c.cur[:0]
	c.crPending = false
	c.skipNL = false
}

func (c *Console) render() string {
	out := strings.Join(c.lines, "\n")
	if len(c.cur) > 0 {
		if out != "" {
			out += "\n"
		}
		out += string(c.cur)
	}
	return out
}

// snapshotIfDue decides whether the chunk warrants a publish: always on line
// breaks or substantial text, otherwise at most once per publishInterval.
func (c *Console) snapshotIfDue(chunk string) (string, bool) {
	due := strings.ContainsAny(chunk, "\r\n") ||
		len(chunk) > publishThreshold ||
		time.Since(c.lastPublish) >= publishInterval
	if !due {
		return "", false
	}
	c.lastPublish = time.Now()
	return c.render(), true
}

func parseCount(params string) int {
	if params == "" {
		return 1
	}
	n := 0
	for _, r := range params {
		if r < '0' || r > '9' {
			return 1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func parseRow(params string) int {
	row := params
	if i := strings.IndexByte(params, ';'); i >= 0 {
		row = params[:i]
	}
	return parseCount(row)
}
