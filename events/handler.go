// Package events keeps the future work of a simulation. A Manager holds the
// pending events ordered by simulated time and, as a timing.Temporal, fires
// the ones that are due on every pulse.
package events

import "github.com/sarchlab/solclock/marstime"

// A Handler is called when a scheduled event is due.
//
// Execute runs on the clock goroutine and must not block. It returns the
// repeat interval in millisols; zero or less makes the event one-shot.
type Handler interface {
	Execute(now marstime.MarsTime) float64
	EventDescription() string
}

type funcHandler struct {
	description string
	fn          func(now marstime.MarsTime) float64
}

// HandlerFunc wraps a function into a Handler. Each call returns a distinct
// handler, so it can be passed to RemoveEvent.
func HandlerFunc(
	description string,
	fn func(now marstime.MarsTime) float64,
) Handler {
	if fn == nil {
		panic("events: nil handler function")
	}

	return &funcHandler{description: description, fn: fn}
}

func (h *funcHandler) Execute(now marstime.MarsTime) float64 {
	return h.fn(now)
}

func (h *funcHandler) EventDescription() string {
	return h.description
}
