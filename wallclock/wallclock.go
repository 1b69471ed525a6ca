// Package wallclock names the real-world clock that paces the simulation.
// Production code uses Real; tests use Fake and move time with Advance.
package wallclock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock tells the wall time and creates tickers.
type Clock = clockwork.Clock

// Ticker delivers ticks on Chan. Ticks are dropped when the receiver falls
// behind.
type Ticker = clockwork.Ticker

// FakeClock is a deterministic Clock. Time only moves when Advance is
// called. BlockUntilContext waits until a goroutine has created its ticker.
type FakeClock = clockwork.FakeClock

// Real returns a Clock backed by the time package.
func Real() Clock { return clockwork.NewRealClock() }

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return clockwork.NewFakeClockAt(initial)
}
