package events

import (
	"github.com/sarchlab/solclock/hooking"
	"github.com/sarchlab/solclock/marstime"
)

// HookPosEventScheduled fires after an event is queued. Item is the
// *ScheduledEvent.
var HookPosEventScheduled = &hooking.HookPos{Name: "EventScheduled"}

// HookPosEventFired fires after a handler returns. Item is the
// *ScheduledEvent and Detail a Firing.
var HookPosEventFired = &hooking.HookPos{Name: "EventFired"}

// HookPosEventFailed fires when a handler panics. Item is the
// *ScheduledEvent and Detail a Firing with the recovered value.
var HookPosEventFailed = &hooking.HookPos{Name: "EventFailed"}

// HookPosEventCancelled fires when a pending event is removed before firing.
// Item is the *ScheduledEvent.
var HookPosEventCancelled = &hooking.HookPos{Name: "EventCancelled"}

// A Firing describes one execution of a handler.
type Firing struct {
	// Now is the pulse time the handler was called with.
	Now marstime.MarsTime

	// Due is the time the event was scheduled for.
	Due marstime.MarsTime

	// Repeat is the interval the handler returned, if any.
	Repeat float64

	// Next is the new due time of a repeating event.
	Next *marstime.MarsTime

	// Reason is the value recovered from a failed handler.
	Reason any
}
