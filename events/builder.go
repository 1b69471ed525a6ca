package events

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/solclock/hooking"
	"github.com/sarchlab/solclock/logging"
	"github.com/sarchlab/solclock/timing"
)

// ManagerBuilder builds Managers.
type ManagerBuilder struct {
	clock        timing.TimeTeller
	logger       logrus.FieldLogger
	maxFirings   int
	failureRate  float64
	failureBurst int
}

// MakeManagerBuilder creates a builder with default parameters. By default
// there is no cap on the firings per pulse.
func MakeManagerBuilder() ManagerBuilder {
	return ManagerBuilder{
		failureRate:  1,
		failureBurst: 10,
	}
}

// WithTimeTeller sets where the manager reads the current time. Usually the
// clock that delivers pulses to the manager.
func (b ManagerBuilder) WithTimeTeller(t timing.TimeTeller) ManagerBuilder {
	b.clock = t
	return b
}

// WithLogger sets the logger.
func (b ManagerBuilder) WithLogger(l logrus.FieldLogger) ManagerBuilder {
	b.logger = l
	return b
}

// WithMaxFiringsPerPulse limits how many events fire during one pulse. Due
// events over the limit fire on later pulses, in order. Zero means no limit.
func (b ManagerBuilder) WithMaxFiringsPerPulse(n int) ManagerBuilder {
	b.maxFirings = n
	return b
}

// WithFailureLogRate limits how many handler failures are logged per second.
func (b ManagerBuilder) WithFailureLogRate(
	perSecond float64,
	burst int,
) ManagerBuilder {
	b.failureRate = perSecond
	b.failureBurst = burst

	return b
}

// Build creates the Manager. It panics without a time teller or with a
// negative firing cap.
func (b ManagerBuilder) Build() *Manager {
	if b.clock == nil {
		panic("events: time teller is not set")
	}

	if b.maxFirings < 0 {
		panic("events: max firings per pulse cannot be negative")
	}

	log := logging.Component(b.logger, "events")

	m := &Manager{
		HookableBase:       hooking.NewHookableBase(),
		log:                log,
		failures:           logging.NewFailureReporter(log, b.failureRate, b.failureBurst),
		clock:              b.clock,
		maxFiringsPerPulse: b.maxFirings,
	}
	m.SetPanicHandler(m.hookFailed)

	return m
}
