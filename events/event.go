package events

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/rs/xid"

	"github.com/sarchlab/solclock/marstime"
)

type eventStatus int

const (
	statusPending eventStatus = iota
	statusFiring
	statusDone
	statusCancelled
)

// A ScheduledEvent is a handler bound to the simulated time it is due.
type ScheduledEvent struct {
	id      xid.ID
	seq     uint64
	handler Handler
	owner   *Manager

	// Guarded by owner.lock.
	when   marstime.MarsTime
	index  int
	status eventStatus
}

// ID identifies the event in logs and traces.
func (e *ScheduledEvent) ID() string { return e.id.String() }

// Handler returns the handler the event calls.
func (e *ScheduledEvent) Handler() Handler { return e.handler }

// Description returns the handler description.
func (e *ScheduledEvent) Description() string {
	return e.handler.EventDescription()
}

// When returns the time the event is due. A repeating event moves forward
// every time it fires.
func (e *ScheduledEvent) When() marstime.MarsTime {
	e.owner.lock.Lock()
	defer e.owner.lock.Unlock()

	return e.when
}

// Pending tells if the event is still waiting to fire.
func (e *ScheduledEvent) Pending() bool {
	e.owner.lock.Lock()
	defer e.owner.lock.Unlock()

	return e.status == statusPending
}

// Equal tells if two events are bound to the same handler at the same time.
func (e *ScheduledEvent) Equal(other *ScheduledEvent) bool {
	if other == nil {
		return false
	}

	return e.When().Equal(other.When()) && sameHandler(e.handler, other.handler)
}

func (e *ScheduledEvent) String() string {
	return fmt.Sprintf("%s @ %s", e.Description(), e.When())
}

func sameHandler(a, b Handler) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	return ta.Comparable() && a == b
}

// EventInfo is a copy of the state of a pending event, safe to keep and to
// serialize.
type EventInfo struct {
	ID          string            `json:"id"`
	When        marstime.MarsTime `json:"when"`
	Description string            `json:"description"`
}

func (e *ScheduledEvent) info() EventInfo {
	return EventInfo{
		ID:          e.id.String(),
		When:        e.when,
		Description: e.handler.EventDescription(),
	}
}

// MarshalJSON encodes the event for diagnostics.
func (e *ScheduledEvent) MarshalJSON() ([]byte, error) {
	e.owner.lock.Lock()
	info := e.info()
	e.owner.lock.Unlock()

	return json.Marshal(info)
}
