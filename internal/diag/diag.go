// Package diag collects the non-fatal warning log carried by analysis
// result objects — spec §7: waveform/limit clamps "never fail the
// simulation" but must "emit a warning in the result's diagnostic log".
//
// The teacher has no equivalent package; it simply drops out-of-range
// PWL lookups on the floor. Grounded on the shape of the teacher's
// pkg/analysis result structs (plain exported slices, no logging
// framework) rather than any one file — this is ambient-stack scope per
// SPEC_FULL.md, kept on the standard library because none of the pack
// repos shows a log/diagnostics library free functions could wrap more
// idiomatically than a plain slice-backed collector.
package diag

import "fmt"

// Entry is one collected warning.
type Entry struct {
	Message string
}

// Collector accumulates Entry values during a single analysis run. It is
// not safe for concurrent use; each analysis call owns its own Collector.
type Collector struct {
	entries []Entry
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{}
}

// Warnf records a formatted warning.
func (c *Collector) Warnf(format string, args ...any) {
	c.entries = append(c.entries, Entry{Message: fmt.Sprintf(format, args...)})
}

// Entries returns the warnings collected so far, in order.
func (c *Collector) Entries() []Entry {
	return c.entries
}

// Empty reports whether no warnings were collected.
func (c *Collector) Empty() bool {
	return len(c.entries) == 0
}
