package timing

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/solclock/hooking"
	"github.com/sarchlab/solclock/idgen"
	"github.com/sarchlab/solclock/logging"
	"github.com/sarchlab/solclock/marstime"
	"github.com/sarchlab/solclock/wallclock"
)

// Defaults used by MakeClockBuilder.
const (
	DefaultTimeRatio    = 1000.0
	DefaultTickInterval = 100 * time.Millisecond
)

// DefaultStartTime is the first instant of orbit 1.
var DefaultStartTime = marstime.MustNew(1, 1, 1, 0, 1)

// ClockBuilder builds Clocks.
type ClockBuilder struct {
	start        marstime.MarsTime
	ratio        float64
	tickInterval time.Duration
	maxElapsed   float64
	wall         wallclock.Clock
	logger       logrus.FieldLogger
	failureRate  float64
	failureBurst int
	lastPulseID  uint64
}

// MakeClockBuilder creates a builder with default parameters.
func MakeClockBuilder() ClockBuilder {
	return ClockBuilder{
		start:        DefaultStartTime,
		ratio:        DefaultTimeRatio,
		tickInterval: DefaultTickInterval,
		failureRate:  1,
		failureBurst: 10,
	}
}

// WithStartTime sets the simulated time before the first pulse.
func (b ClockBuilder) WithStartTime(t marstime.MarsTime) ClockBuilder {
	b.start = t
	return b
}

// WithTimeRatio sets how many simulated seconds pass per real second.
func (b ClockBuilder) WithTimeRatio(ratio float64) ClockBuilder {
	b.ratio = ratio
	return b
}

// WithTickInterval sets the real time between two paced pulses.
func (b ClockBuilder) WithTickInterval(d time.Duration) ClockBuilder {
	b.tickInterval = d
	return b
}

// WithMaxElapsedPerPulse caps the millisols a paced pulse may carry after the
// process fell behind. Zero disables the cap.
func (b ClockBuilder) WithMaxElapsedPerPulse(millisols float64) ClockBuilder {
	b.maxElapsed = millisols
	return b
}

// WithWallClock sets the clock used for pacing.
func (b ClockBuilder) WithWallClock(w wallclock.Clock) ClockBuilder {
	b.wall = w
	return b
}

// WithLogger sets the logger.
func (b ClockBuilder) WithLogger(l logrus.FieldLogger) ClockBuilder {
	b.logger = l
	return b
}

// WithFailureLogRate limits how many listener failures are logged per second.
func (b ClockBuilder) WithFailureLogRate(perSecond float64, burst int) ClockBuilder {
	b.failureRate = perSecond
	b.failureBurst = burst
	return b
}

// WithLastPulseID makes the first pulse use id+1.
func (b ClockBuilder) WithLastPulseID(id uint64) ClockBuilder {
	b.lastPulseID = id
	return b
}

func (b ClockBuilder) parametersMustBeValid() {
	if math.IsNaN(b.ratio) || math.IsInf(b.ratio, 0) || b.ratio <= 0 {
		panic("time ratio must be finite and positive")
	}

	if b.tickInterval <= 0 {
		panic("tick interval must be positive")
	}

	if math.IsNaN(b.maxElapsed) || b.maxElapsed < 0 {
		panic("max elapsed per pulse cannot be negative")
	}

	if b.start.MissionSol() < 1 {
		panic("start time is not set")
	}
}

// Build creates the Clock. It panics on invalid parameters.
func (b ClockBuilder) Build() *Clock {
	b.parametersMustBeValid()

	wall := b.wall
	if wall == nil {
		wall = wallclock.Real()
	}

	log := logging.Component(b.logger, "clock")

	c := &Clock{
		HookableBase: hooking.NewHookableBase(),
		log:          log,
		failures:     logging.NewFailureReporter(log, b.failureRate, b.failureBurst),
		wall:         wall,
		ids:          idgen.StartingAfter(b.lastPulseID),
		tickInterval: b.tickInterval,
		maxElapsed:   b.maxElapsed,
		tracker:      NewBoundaryTracker(b.start),
		now:          b.start,
		ratio:        b.ratio,
		state:        Stopped,
	}
	c.SetPanicHandler(c.hookFailed)

	return c
}
