package vm

import "time"

// ---------------------------------------------------------------------------
// Monotonic clock source
// ---------------------------------------------------------------------------

// Clock supplies monotonic milliseconds for the SLP gate. It must be
// non-decreasing and unaffected by wall-clock adjustments; the gate
// subtracts with uint32 wraparound, so overflow is harmless.
type Clock func() uint32

var processStart = time.Now()

// NowMS is the default Clock: milliseconds elapsed since process start,
// derived from Go's monotonic reading.
func NowMS() uint32 {
	return uint32(time.Since(processStart).Milliseconds())
}
