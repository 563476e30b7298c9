package tsreplay

import "time"

// clockTicksPerSecond is the 27 MHz clock PCR/OPCR values are derived from:
// a 33-bit 90 kHz base multiplied by 300 plus a 9-bit extension.
const clockTicksPerSecond = 27000000

// ClockReference represents a 42-bit MPEG Program Clock Reference, split
// into its 90 kHz base and 27 MHz extension as it is packed on the wire.
type ClockReference struct {
	Base      int64
	Extension int64
}

// newClockReference builds a ClockReference from its wire components.
func newClockReference(base, extension int) ClockReference {
	return ClockReference{Base: int64(base), Extension: int64(extension)}
}

// value returns the full 42-bit tick count: base*300 + extension.
func (c ClockReference) value() int64 {
	return c.Base*300 + c.Extension
}

// Duration returns the clock reference expressed as a duration since the
// 27 MHz clock's epoch. 1 tick is 1e9/27e6 = 1000/27 ns; multiplying by
// 1000 before dividing by 27 stays within int64 range for any 42-bit PCR.
func (c ClockReference) Duration() time.Duration {
	return time.Duration(c.value() * 1000 / 27)
}

// Time returns the clock reference as a wall-clock time, anchored at the
// Unix epoch. This is only meaningful for comparing two references against
// each other, not as an absolute timestamp.
func (c ClockReference) Time() time.Time {
	return time.Unix(0, 0).Add(c.Duration())
}

// sub returns the signed tick delta c - o.
func (c ClockReference) sub(o ClockReference) int64 {
	return c.value() - o.value()
}

// deltaToMS converts a delta of 27 MHz clock ticks into milliseconds,
// matching the 90 kHz-base/300 + 27 MHz-extension split convention.
func deltaToMS(deltaTicks int64) float64 {
	ticksPerMS := float64(clockTicksPerSecond) / 1000.0
	return float64(deltaTicks/300)/90.0 + float64(deltaTicks%300)/ticksPerMS
}
