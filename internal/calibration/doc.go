// Package calibration bridges the blocking, terminal-interactive device
// calibration routine to asynchronous web clients.
//
// The device driver's calibrate call is fully synchronous: it writes free-form
// text (including cursor-control escape sequences) to an output sink and
// periodically blocks reading a line of input, exactly as if a human were
// driving it at a terminal. Remote clients can only poll a status snapshot and
// post input text. This package owns the pieces that reconcile the two worlds:
//
//   - Manager: single-slot session controller. Owns the worker goroutine,
//     the state machine (idle, connecting, running, stopping, completed,
//     failed), start/stop/cancel semantics, and a lock-guarded status
//     snapshot.
//   - Mailbox: bounded input queue plus wake signal. Lets a web request hand
//     a line of text to the blocked read emulation with bounded latency.
//   - Console: minimal terminal reconstructor. Interprets carriage returns,
//     backspaces, cursor-up, absolute cursor position and erase-line escapes
//     so progress displays render as stable text instead of raw control
//     bytes.
//   - lineReader: the blocking-read emulation handed to the driver. Polls
//     the mailbox, waits on the wake signal with a short timeout, and
//     returns an empty line when the session is cancelled.
//
// Cancellation is cooperative: a worker stuck inside an opaque driver call
// cannot be preempted, only observed at the read emulation's poll points and
// at checkpoints between driver calls.
package calibration
