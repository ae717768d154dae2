// Package driver provides the concrete calibration device variants.
//
// Two variants exist: the SO-101 follower arm ("robot") and the SO-101
// leader arm ("teleop"). Both run the vendor calibration CLI under a
// pseudo-terminal so the routine behaves exactly as it would for a human at
// a real terminal: raw output (escape sequences included) flows into the
// injected terminal sink, and submitted input lines are written back to the
// PTY.
package driver
