package events

import (
	"container/heap"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/solclock/hooking"
	"github.com/sarchlab/solclock/logging"
	"github.com/sarchlab/solclock/marstime"
	"github.com/sarchlab/solclock/timing"
)

// A Manager keeps the pending events of a simulation and fires them as
// simulated time passes.
//
// Events can be added and removed from any goroutine. One lock guards the
// queue. Handlers run on the goroutine that delivers the pulse, outside of
// the lock, so a handler may schedule or cancel events itself.
type Manager struct {
	*hooking.HookableBase

	log      *logrus.Entry
	failures *logging.FailureReporter
	clock    timing.TimeTeller

	maxFiringsPerPulse int

	lock  sync.Mutex
	queue eventHeap
	seq   uint64
}

// Name identifies the manager among the clock listeners.
func (m *Manager) Name() string { return "events" }

// AddEventIn schedules handler to run the given millisols after the current
// time.
func (m *Manager) AddEventIn(
	millisols float64,
	handler Handler,
) *ScheduledEvent {
	return m.AddEvent(m.clock.MarsTime().Add(millisols), handler)
}

// AddEvent schedules handler to run at when. A time that has already passed
// is moved to the current time, so the event fires on the next pulse.
func (m *Manager) AddEvent(
	when marstime.MarsTime,
	handler Handler,
) *ScheduledEvent {
	if handler == nil {
		panic("events: nil handler")
	}

	now := m.clock.MarsTime()
	if when.Before(now) {
		m.log.WithFields(logrus.Fields{
			"event":     handler.EventDescription(),
			"requested": when.String(),
			"now":       now.String(),
		}).Debug("past-due event moved to now")

		when = now
	}

	evt := &ScheduledEvent{
		id:      xid.New(),
		handler: handler,
		owner:   m,
		when:    when,
	}

	m.lock.Lock()
	m.seq++
	evt.seq = m.seq
	heap.Push(&m.queue, evt)
	m.lock.Unlock()

	m.log.WithFields(logrus.Fields{
		"id":    evt.ID(),
		"event": handler.EventDescription(),
		"when":  when.String(),
	}).Trace("event scheduled")

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosEventScheduled,
		Item:   evt,
	})

	return evt
}

// RemoveEvent cancels the earliest pending event bound to handler. Only one
// event is cancelled per call. It returns false if no pending event uses
// the handler. Handlers of non-comparable types can only be cancelled
// through Cancel.
func (m *Manager) RemoveEvent(handler Handler) bool {
	m.lock.Lock()

	var found *ScheduledEvent
	for _, evt := range m.queue {
		if !sameHandler(evt.handler, handler) {
			continue
		}

		if found == nil || earlier(evt, found) {
			found = evt
		}
	}

	if found == nil {
		m.lock.Unlock()
		return false
	}

	m.removeLocked(found)
	m.lock.Unlock()

	m.cancelled(found)

	return true
}

// Cancel cancels a specific event. Cancelling an event whose handler is
// running does not stop that run but prevents it from repeating. It returns
// false if the event already fired or was cancelled.
func (m *Manager) Cancel(evt *ScheduledEvent) bool {
	if evt == nil || evt.owner != m {
		return false
	}

	m.lock.Lock()

	switch evt.status {
	case statusPending:
		m.removeLocked(evt)
	case statusFiring:
		evt.status = statusCancelled
	default:
		m.lock.Unlock()
		return false
	}

	m.lock.Unlock()

	m.cancelled(evt)

	return true
}

func (m *Manager) removeLocked(evt *ScheduledEvent) {
	heap.Remove(&m.queue, evt.index)
	evt.status = statusCancelled
}

func (m *Manager) cancelled(evt *ScheduledEvent) {
	m.log.WithFields(logrus.Fields{
		"id":    evt.ID(),
		"event": evt.Description(),
	}).Trace("event cancelled")

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosEventCancelled,
		Item:   evt,
	})
}

// Events returns the pending events in the order they will fire.
func (m *Manager) Events() []EventInfo {
	m.lock.Lock()
	defer m.lock.Unlock()

	pending := slices.Clone(m.queue)
	slices.SortFunc(pending, func(a, b *ScheduledEvent) int {
		if earlier(a, b) {
			return -1
		}

		return 1
	})

	infos := make([]EventInfo, len(pending))
	for i, evt := range pending {
		infos[i] = evt.info()
	}

	return infos
}

// Len returns the number of pending events.
func (m *Manager) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.queue)
}

// NextDue returns the time of the earliest pending event. The second value
// is false when nothing is pending.
func (m *Manager) NextDue() (marstime.MarsTime, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(m.queue) == 0 {
		return marstime.MarsTime{}, false
	}

	return m.queue[0].when, true
}

// Clear cancels every pending event and returns how many were cancelled.
func (m *Manager) Clear() int {
	m.lock.Lock()
	dropped := m.queue
	m.queue = nil
	for _, evt := range dropped {
		evt.status = statusCancelled
		evt.index = -1
	}
	m.lock.Unlock()

	for _, evt := range dropped {
		m.cancelled(evt)
	}

	if len(dropped) > 0 {
		m.log.WithField("count", len(dropped)).Debug("pending events cleared")
	}

	return len(dropped)
}

// TimePassing fires the events that are due at the pulse time, earliest
// first. A repeating event that is still due after it is moved forward fires
// again in the same pulse. When a firing cap is set, due events beyond the
// cap wait for the next pulse. The manager never ignores a pulse.
func (m *Manager) TimePassing(pulse timing.Pulse) bool {
	now := pulse.MarsTime()

	fired := 0
	for {
		if m.maxFiringsPerPulse > 0 && fired >= m.maxFiringsPerPulse {
			m.logDeferred(pulse, fired)
			break
		}

		evt, ok := m.popDue(now)
		if !ok {
			break
		}

		m.fire(evt, now)
		fired++
	}

	return true
}

func (m *Manager) logDeferred(pulse timing.Pulse, fired int) {
	m.lock.Lock()
	waiting := 0
	for _, evt := range m.queue {
		if !evt.when.After(pulse.MarsTime()) {
			waiting++
		}
	}
	m.lock.Unlock()

	if waiting == 0 {
		return
	}

	m.log.WithFields(logrus.Fields{
		"pulse":    pulse.ID(),
		"fired":    fired,
		"deferred": waiting,
	}).Debug("firing cap reached")
}

func (m *Manager) popDue(now marstime.MarsTime) (*ScheduledEvent, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(m.queue) == 0 || m.queue[0].when.After(now) {
		return nil, false
	}

	evt := heap.Pop(&m.queue).(*ScheduledEvent)
	evt.status = statusFiring

	return evt, true
}

func (m *Manager) fire(evt *ScheduledEvent, now marstime.MarsTime) {
	due := evt.when
	repeat, reason, ok := m.execute(evt, now)

	firing := Firing{Now: now, Due: due, Repeat: repeat, Reason: reason}
	if !ok {
		m.finish(evt)
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosEventFailed,
			Item:   evt,
			Detail: firing,
		})

		return
	}

	if m.repeats(evt, due, repeat) {
		if next, rescheduled := m.reschedule(evt, due.Add(repeat)); rescheduled {
			firing.Next = &next
		}
	} else {
		m.finish(evt)
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosEventFired,
		Item:   evt,
		Detail: firing,
	})
}

func (m *Manager) execute(
	evt *ScheduledEvent,
	now marstime.MarsTime,
) (repeat float64, reason any, ok bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		repeat, reason, ok = 0, r, false

		m.failures.Report(logrus.Fields{
			"id":     evt.ID(),
			"event":  evt.Description(),
			"time":   now.String(),
			"reason": fmt.Sprint(r),
		}, "event handler failed")
	}()

	return evt.handler.Execute(now), nil, true
}

// repeats tells if a repeat interval moves the event strictly forward.
func (m *Manager) repeats(
	evt *ScheduledEvent,
	due marstime.MarsTime,
	repeat float64,
) bool {
	if math.IsNaN(repeat) || repeat <= 0 {
		return false
	}

	if math.IsInf(repeat, 0) || !due.Add(repeat).After(due) {
		m.log.WithFields(logrus.Fields{
			"id":     evt.ID(),
			"event":  evt.Description(),
			"repeat": repeat,
		}).Warn("unusable repeat interval, not repeating")

		return false
	}

	return true
}

// reschedule puts a repeating event back in the queue unless it was
// cancelled while firing.
func (m *Manager) reschedule(
	evt *ScheduledEvent,
	next marstime.MarsTime,
) (marstime.MarsTime, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if evt.status != statusFiring {
		return marstime.MarsTime{}, false
	}

	m.seq++
	evt.seq = m.seq
	evt.when = next
	evt.status = statusPending
	heap.Push(&m.queue, evt)

	return next, true
}

func (m *Manager) hookFailed(hook hooking.Hook, ctx hooking.HookCtx, r any) {
	fields := logrus.Fields{
		"hook":   fmt.Sprintf("%T", hook),
		"pos":    ctx.PosName(),
		"reason": fmt.Sprint(r),
	}
	if evt, ok := ctx.Item.(*ScheduledEvent); ok {
		fields["id"] = evt.ID()
		fields["event"] = evt.Description()
	}

	m.failures.Report(fields, "hook failed")
}

func (m *Manager) finish(evt *ScheduledEvent) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if evt.status == statusFiring {
		evt.status = statusDone
	}
}
