package timing

import "github.com/sarchlab/solclock/marstime"

// Temporal is implemented by anything that changes as simulated time passes.
//
// TimePassing is called once per pulse from the clock goroutine. It must not
// keep the pulse beyond the call's needs, must return quickly and must not
// block. Returning false reports that the pulse was ignored, for example by
// a dormant entity; the clock only uses it for diagnostics.
type Temporal interface {
	TimePassing(pulse Pulse) bool
}

// TemporalFunc adapts a function to the Temporal interface.
type TemporalFunc func(pulse Pulse) bool

// TimePassing calls f(pulse).
func (f TemporalFunc) TimePassing(pulse Pulse) bool { return f(pulse) }

// TimeTeller tells the current simulated time.
type TimeTeller interface {
	MarsTime() marstime.MarsTime
}

// A named listener reports its own name for logs and diagnostics.
type named interface {
	Name() string
}
