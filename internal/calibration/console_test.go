package calibration

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink collects published snapshots for assertions.
type captureSink struct {
	mu    sync.Mutex
	snaps []string
}

func (s *captureSink) publish(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, text)
}

func (s *captureSink) last() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snaps) == 0 {
		return "", false
	}
	return s.snaps[len(s.snaps)-1], true
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

func TestConsolePlainText(t *testing.T) {
	c := NewConsole(nil)

	fmt.Fprint(c, "line one\nline two\npartial")

	assert.Equal(t, []string{"line one", "line two"}, c.Lines())
	assert.Equal(t, "line one\nline two\npartial", c.Snapshot())
}

func TestConsoleCRLFCommitsLine(t *testing.T) {
	c := NewConsole(nil)

	// Windows-style terminators must not erase the line they end.
	fmt.Fprint(c, "hello\r\nworld\r\n")

	assert.Equal(t, []string{"hello", "world"}, c.Lines())
}

func TestConsoleCarriageReturnOverwrites(t *testing.T) {
	c := NewConsole(nil)

	// Progress-bar idiom: repeated CR redraws of the in-progress line.
	fmt.Fprint(c, "progress: 10%\rprogress: 50%\rprogress: 100%")

	assert.Equal(t, "progress: 100%", c.Snapshot())
	assert.Empty(t, c.Lines())

	fmt.Fprint(c, "\n")
	assert.Equal(t, []string{"progress: 100%"}, c.Lines())
}

func TestConsoleBackspace(t *testing.T) {
	c := NewConsole(nil)

	fmt.Fprint(c, "abcd\b\bC\n")

	assert.Equal(t, []string{"abC"}, c.Lines())
}

func TestConsoleBackspaceOnEmptyLine(t *testing.T) {
	c := NewConsole(nil)

	fmt.Fprint(c, "\b\bok\n")

	assert.Equal(t, []string{"ok"}, c.Lines())
}

func TestConsoleEraseLine(t *testing.T) {
	c := NewConsole(nil)

	fmt.Fprint(c, "typo\x1b[Kfixed\n")

	assert.Equal(t, []string{"fixed"}, c.Lines())
}

func TestConsoleCursorUpOverwritesInProgressLine(t *testing.T) {
	c := NewConsole(nil)

	// "up one, return, rewrite" redraw of the line being typed.
	fmt.Fprint(c, "Move joint 1\n100%\x1b[1A\rdone\n")

	assert.Equal(t, []string{"Move joint 1", "done"}, c.Lines())
}

func TestConsoleCursorUpPopsCompletedLines(t *testing.T) {
	c := NewConsole(nil)

	fmt.Fprint(c, "keep\nold one\nold two\n")
	fmt.Fprint(c, "\x1b[2A\rnew one\nnew two\n")

	assert.Equal(t, []string{"keep", "new one", "new two"}, c.Lines())
}

func TestConsoleCursorUpClampsAtTop(t *testing.T) {
	c := NewConsole(nil)

	fmt.Fprint(c, "only\n\x1b[99A\rfresh\n")

	assert.Equal(t, []string{"fresh"}, c.Lines())
}

func TestConsoleCursorUpSwallowsFollowingNewline(t *testing.T) {
	c := NewConsole(nil)

	// The redraw idiom emits CRLF right after the cursor move; that newline
	// repositions, it must not commit an empty line.
	fmt.Fprint(c, "a\nb\x1b[1A\r\nrewritten\n")

	assert.Equal(t, []string{"a", "rewritten"}, c.Lines())
}

func TestConsoleCursorPosition(t *testing.T) {
	c := NewConsole(nil)

	fmt.Fprint(c, "one\ntwo\nthree\n")
	fmt.Fprint(c, "\x1b[2;1Hresumed\n")

	assert.Equal(t, []string{"one", "resumed"}, c.Lines())
}

func TestConsoleCursorPositionBeyondBufferIsNoop(t *testing.T) {
	c := NewConsole(nil)

	fmt.Fprint(c, "one\n\x1b[40;1Htwo\n")

	assert.Equal(t, []string{"one", "two"}, c.Lines())
}

func TestConsoleStripsUnknownEscapes(t *testing.T) {
	c := NewConsole(nil)

	// Colors, cursor hide/show, and bare two-byte sequences all disappear.
	fmt.Fprint(c, "\x1b[31mred\x1b[0m \x1b[?25lplain\x1b7\n")

	assert.Equal(t, []string{"red plain"}, c.Lines())
}

func TestConsoleEscapeSplitAcrossChunks(t *testing.T) {
	c := NewConsole(nil)

	// A sequence truncated at a chunk boundary is stripped, not rendered.
	fmt.Fprint(c, "before\x1b[3")
	fmt.Fprint(c, "ok\n")

	assert.Equal(t, []string{"beforeok"}, c.Lines())
}

func TestConsoleFlushPublishesSynchronously(t *testing.T) {
	sink := &captureSink{}
	c := NewConsole(sink.publish)

	fmt.Fprint(c, "partial")
	c.Flush()

	snap, ok := sink.last()
	require.True(t, ok)
	assert.Equal(t, "partial", snap)
}

func TestConsolePublishesOnLineBreak(t *testing.T) {
	sink := &captureSink{}
	c := NewConsole(sink.publish)

	fmt.Fprint(c, "a complete line\n")

	require.Eventually(t, func() bool {
		snap, ok := sink.last()
		return ok && snap == "a complete line"
	}, time.Second, 5*time.Millisecond)
}

func TestConsoleThrottlesTinyChunks(t *testing.T) {
	sink := &captureSink{}
	c := NewConsole(sink.publish)

	// Burst of single characters with no line breaks: snapshots are rate
	// limited, not one per byte.
	for i := 0; i < 50; i++ {
		fmt.Fprint(c, "x")
	}

	time.Sleep(50 * time.Millisecond)
	assert.Less(t, sink.count(), 10)
	assert.Equal(t, 50, len(c.Snapshot()))
}
