package timing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/solclock/hooking"
	"github.com/sarchlab/solclock/idgen"
	"github.com/sarchlab/solclock/logging"
	"github.com/sarchlab/solclock/marstime"
	"github.com/sarchlab/solclock/wallclock"
)

// A Clock is the master clock of a simulation. It owns the simulated time,
// the pulse id sequence and the boundary bookkeeping of the pulse lineage.
//
// Pulses are produced one at a time, either by Tick or by the pacing loop in
// Run, and are delivered synchronously to the listeners in registration
// order. Listeners can be registered and removed from any goroutine; a
// change takes effect from the next pulse.
type Clock struct {
	*hooking.HookableBase

	log      *logrus.Entry
	failures *logging.FailureReporter
	wall     wallclock.Clock
	ids      idgen.Generator

	tickInterval time.Duration
	maxElapsed   float64

	tickLock sync.Mutex
	tracker  *BoundaryTracker

	timeLock  sync.RWMutex
	now       marstime.MarsTime
	lastPulse Pulse
	hasPulse  bool
	ratio     float64

	stateLock sync.Mutex
	state     State
	stopRun   context.CancelFunc

	singleRunLock sync.Mutex

	listenersLock sync.Mutex
	listeners     []listenerEntry
}

type listenerEntry struct {
	name     string
	temporal Temporal
}

// MarsTime returns the current simulated time.
func (c *Clock) MarsTime() marstime.MarsTime {
	c.timeLock.RLock()
	defer c.timeLock.RUnlock()

	return c.now
}

// LastPulse returns the most recently delivered pulse. The second value is
// false before the first pulse.
func (c *Clock) LastPulse() (Pulse, bool) {
	c.timeLock.RLock()
	defer c.timeLock.RUnlock()

	return c.lastPulse, c.hasPulse
}

// TimeRatio returns the simulated seconds that pass per real second.
func (c *Clock) TimeRatio() float64 {
	c.timeLock.RLock()
	defer c.timeLock.RUnlock()

	return c.ratio
}

// SetTimeRatio changes how fast simulated time runs in Run.
func (c *Clock) SetTimeRatio(ratio float64) error {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeRatio, ratio)
	}

	c.timeLock.Lock()
	old := c.ratio
	c.ratio = ratio
	c.timeLock.Unlock()

	c.log.WithFields(logrus.Fields{
		"from": old,
		"to":   ratio,
	}).Info("time ratio changed")

	return nil
}

// RegisterListener adds a listener. Listeners are called in the order they
// are registered. Registering the same listener twice panics. Listeners of
// non-comparable types, such as TemporalFunc, can be registered but not
// removed.
func (c *Clock) RegisterListener(t Temporal) {
	if t == nil {
		panic("timing: nil listener")
	}

	c.listenersLock.Lock()
	defer c.listenersLock.Unlock()

	for _, l := range c.listeners {
		if sameListener(l.temporal, t) {
			panic("timing: duplicated listener " + listenerName(t))
		}
	}

	next := make([]listenerEntry, len(c.listeners), len(c.listeners)+1)
	copy(next, c.listeners)
	c.listeners = append(next, listenerEntry{
		name:     listenerName(t),
		temporal: t,
	})
}

// RemoveListener removes a listener. It returns false if the listener is not
// registered.
func (c *Clock) RemoveListener(t Temporal) bool {
	c.listenersLock.Lock()
	defer c.listenersLock.Unlock()

	for i, l := range c.listeners {
		if sameListener(l.temporal, t) {
			next := make([]listenerEntry, 0, len(c.listeners)-1)
			next = append(next, c.listeners[:i]...)
			next = append(next, c.listeners[i+1:]...)
			c.listeners = next

			return true
		}
	}

	return false
}

// ListenerNames returns the names of the listeners in delivery order.
func (c *Clock) ListenerNames() []string {
	listeners := c.snapshotListeners()

	names := make([]string, len(listeners))
	for i, l := range listeners {
		names[i] = l.name
	}

	return names
}

// Listener finds a registered listener by name.
func (c *Clock) Listener(name string) (Temporal, bool) {
	for _, l := range c.snapshotListeners() {
		if l.name == name {
			return l.temporal, true
		}
	}

	return nil, false
}

func (c *Clock) snapshotListeners() []listenerEntry {
	c.listenersLock.Lock()
	defer c.listenersLock.Unlock()

	return c.listeners
}

func sameListener(a, b Temporal) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	return ta.Comparable() && a == b
}

func listenerName(t Temporal) string {
	if n, ok := t.(named); ok {
		return n.Name()
	}

	return fmt.Sprintf("%T", t)
}

// Tick moves simulated time forward by elapsed millisols and delivers the
// resulting pulse. It returns ErrInvalidElapsed for an elapsed time that is
// not finite and positive or too small to move the time forward, and
// ErrClockPaused while the clock is paused. In both cases no pulse is
// produced.
func (c *Clock) Tick(elapsed float64) (Pulse, error) {
	if err := validateElapsed(elapsed); err != nil {
		return Pulse{}, err
	}

	if c.State() == Paused {
		return Pulse{}, ErrClockPaused
	}

	c.tickLock.Lock()
	defer c.tickLock.Unlock()

	pulse, err := c.buildPulse(elapsed)
	if err != nil {
		return Pulse{}, err
	}

	c.deliver(pulse)

	return pulse, nil
}

func (c *Clock) buildPulse(elapsed float64) (Pulse, error) {
	oldTime := c.MarsTime()
	newTime := oldTime.Add(elapsed)
	if err := mustMoveForward(oldTime, newTime, elapsed); err != nil {
		return Pulse{}, err
	}

	newSol, newHalfSol, newMSol := c.tracker.Observe(newTime)

	pulse, err := NewPulse(
		c.ids.Next(), elapsed, newTime, newSol, newHalfSol, newMSol)
	if err != nil {
		return Pulse{}, err
	}

	c.timeLock.Lock()
	c.now = newTime
	c.lastPulse = pulse
	c.hasPulse = true
	c.timeLock.Unlock()

	if newSol {
		c.log.WithFields(logrus.Fields{
			"mission_sol": newTime.MissionSol(),
			"date":        newTime.Date().String(),
		}).Info("new sol")
	}

	return pulse, nil
}

func (c *Clock) deliver(pulse Pulse) {
	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosBeforePulse,
		Item:   pulse,
	})

	report := DeliveryReport{}
	for _, l := range c.snapshotListeners() {
		accepted, ok := c.notify(l, pulse)

		report.Delivered++
		if !ok {
			report.Failed++
		} else if accepted {
			report.Accepted++
		}
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosAfterPulse,
		Item:   pulse,
		Detail: report,
	})
}

func (c *Clock) notify(l listenerEntry, pulse Pulse) (accepted, ok bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		accepted, ok = false, false

		c.failures.Report(logrus.Fields{
			"listener": l.name,
			"pulse":    pulse.ID(),
			"time":     pulse.MarsTime().String(),
			"reason":   fmt.Sprint(r),
		}, "listener failed while handling pulse")

		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosListenerFailure,
			Item:   pulse,
			Detail: ListenerFailure{Listener: l.name, Reason: r},
		})
	}()

	accepted = l.temporal.TimePassing(pulse)
	if !accepted {
		c.log.WithFields(logrus.Fields{
			"listener": l.name,
			"pulse":    pulse.ID(),
		}).Trace("pulse ignored")
	}

	return accepted, true
}

// hookFailed logs a panicking hook. The pulse goes on to the remaining
// hooks and listeners.
func (c *Clock) hookFailed(hook hooking.Hook, ctx hooking.HookCtx, r any) {
	c.failures.Report(logrus.Fields{
		"hook":   fmt.Sprintf("%T", hook),
		"pos":    ctx.PosName(),
		"reason": fmt.Sprint(r),
	}, "hook failed")
}

// State returns the run state.
func (c *Clock) State() State {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.state
}

func (c *Clock) transition(from []State, to State) bool {
	c.stateLock.Lock()

	old := c.state
	allowed := false
	for _, s := range from {
		if s == old {
			allowed = true
		}
	}

	if !allowed {
		c.stateLock.Unlock()
		return false
	}

	c.state = to
	c.stateLock.Unlock()

	c.log.WithFields(logrus.Fields{
		"from": old.String(),
		"to":   to.String(),
	}).Debug("clock state changed")

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosStateChange,
		Item:   to,
		Detail: old,
	})

	return true
}

// Pause suspends pulse generation. Listeners and their state are kept. A
// pulse that is being delivered completes. Pausing a clock that is not
// running does nothing.
func (c *Clock) Pause() {
	c.transition([]State{Running}, Paused)
}

// Resume continues pulse generation after Pause.
func (c *Clock) Resume() {
	c.transition([]State{Paused}, Running)
}

// Stop ends Run. It does not wait for Run to return.
func (c *Clock) Stop() {
	c.stateLock.Lock()
	cancel := c.stopRun
	c.stopRun = nil
	c.stateLock.Unlock()

	if cancel != nil {
		cancel()
	}

	c.transition([]State{Running, Paused}, Stopped)
}

// Run paces the clock against the wall clock until ctx is done or Stop is
// called. Every tick of the wall clock turns the real time passed since the
// previous tick into millisols using the time ratio. Real time that passes
// while paused is dropped. Only one Run may be active; a second call returns
// ErrClockRunning.
func (c *Clock) Run(ctx context.Context) error {
	if !c.singleRunLock.TryLock() {
		return ErrClockRunning
	}
	defer c.singleRunLock.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.start(cancel); err != nil {
		return err
	}
	defer c.Stop()

	last := c.wall.Now()
	ticker := c.wall.NewTicker(c.tickInterval)
	defer ticker.Stop()

	c.log.WithFields(logrus.Fields{
		"time":          c.MarsTime().String(),
		"ratio":         c.TimeRatio(),
		"tick_interval": c.tickInterval.String(),
	}).Info("clock started")

	for {
		select {
		case <-runCtx.Done():
			c.log.WithField("time", c.MarsTime().String()).Info("clock stopped")
			return ctx.Err()
		case now := <-ticker.Chan():
			wallElapsed := now.Sub(last)
			last = now

			err := c.step(wallElapsed)
			if err != nil && !errors.Is(err, ErrClockPaused) {
				return err
			}
		}
	}
}

func (c *Clock) start(cancel context.CancelFunc) error {
	c.stateLock.Lock()
	if c.state != Stopped {
		c.stateLock.Unlock()
		return ErrClockRunning
	}
	c.stopRun = cancel
	c.stateLock.Unlock()

	c.transition([]State{Stopped}, Running)

	return nil
}

func (c *Clock) step(wallElapsed time.Duration) error {
	if c.State() != Running {
		return ErrClockPaused
	}

	elapsed := c.elapsedFor(wallElapsed)
	if elapsed <= 0 {
		return nil
	}

	_, err := c.Tick(elapsed)

	return err
}

func (c *Clock) elapsedFor(wallElapsed time.Duration) float64 {
	elapsed := marstime.FromEarthDuration(wallElapsed) * c.TimeRatio()

	if c.maxElapsed > 0 && elapsed > c.maxElapsed {
		c.log.WithFields(logrus.Fields{
			"wanted": elapsed,
			"cap":    c.maxElapsed,
		}).Debug("capping pulse elapsed time")

		elapsed = c.maxElapsed
	}

	return elapsed
}
