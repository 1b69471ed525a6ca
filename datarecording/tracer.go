package datarecording

import (
	"fmt"

	"github.com/sarchlab/solclock/events"
	"github.com/sarchlab/solclock/hooking"
	"github.com/sarchlab/solclock/timing"
)

// Table names used by the Tracer.
const (
	PulseTable           = "pulses"
	EventTable           = "events"
	ListenerFailureTable = "listener_failures"
)

// PulseEntry is a row of the pulses table.
type PulseEntry struct {
	ID         uint64
	Elapsed    float64
	Time       string
	MissionSol int
	Millisol   float64
	NewSol     bool
	NewHalfSol bool
	Delivered  int
	Accepted   int
	Failed     int
}

// EventEntry is a row of the events table. It records every change of a
// scheduled event.
type EventEntry struct {
	EventID     string
	Description string
	Outcome     string
	When        string
	Now         string
	Repeat      float64
	Next        string
	Reason      string
}

// ListenerFailureEntry is a row of the listener_failures table.
type ListenerFailureEntry struct {
	Pulse    uint64
	Time     string
	Listener string
	Reason   string
}

// A Tracer is a hook that records pulses and event activity.
type Tracer struct {
	recorder DataRecorder
}

// NewTracer creates the tracer tables in the recorder.
func NewTracer(recorder DataRecorder) *Tracer {
	recorder.CreateTable(PulseTable, PulseEntry{})
	recorder.CreateTable(EventTable, EventEntry{})
	recorder.CreateTable(ListenerFailureTable, ListenerFailureEntry{})

	return &Tracer{recorder: recorder}
}

// Func records the hook site.
func (t *Tracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosAfterPulse:
		t.recordPulse(ctx)
	case timing.HookPosListenerFailure:
		t.recordListenerFailure(ctx)
	case events.HookPosEventScheduled:
		t.recordEvent(ctx, "scheduled")
	case events.HookPosEventFired:
		t.recordEvent(ctx, "fired")
	case events.HookPosEventFailed:
		t.recordEvent(ctx, "failed")
	case events.HookPosEventCancelled:
		t.recordEvent(ctx, "cancelled")
	}
}

func (t *Tracer) recordPulse(ctx hooking.HookCtx) {
	pulse := ctx.Item.(timing.Pulse)
	report, _ := ctx.Detail.(timing.DeliveryReport)

	t.recorder.InsertData(PulseTable, PulseEntry{
		ID:         pulse.ID(),
		Elapsed:    pulse.Elapsed(),
		Time:       pulse.MarsTime().String(),
		MissionSol: pulse.MarsTime().MissionSol(),
		Millisol:   pulse.MarsTime().Millisol(),
		NewSol:     pulse.IsNewSol(),
		NewHalfSol: pulse.IsNewHalfSol(),
		Delivered:  report.Delivered,
		Accepted:   report.Accepted,
		Failed:     report.Failed,
	})
}

func (t *Tracer) recordListenerFailure(ctx hooking.HookCtx) {
	pulse := ctx.Item.(timing.Pulse)
	failure := ctx.Detail.(timing.ListenerFailure)

	t.recorder.InsertData(ListenerFailureTable, ListenerFailureEntry{
		Pulse:    pulse.ID(),
		Time:     pulse.MarsTime().String(),
		Listener: failure.Listener,
		Reason:   fmt.Sprint(failure.Reason),
	})
}

func (t *Tracer) recordEvent(ctx hooking.HookCtx, outcome string) {
	evt := ctx.Item.(*events.ScheduledEvent)

	entry := EventEntry{
		EventID:     evt.ID(),
		Description: evt.Description(),
		Outcome:     outcome,
		When:        evt.When().String(),
	}

	if firing, ok := ctx.Detail.(events.Firing); ok {
		entry.When = firing.Due.String()
		entry.Now = firing.Now.String()
		entry.Repeat = firing.Repeat

		if firing.Next != nil {
			entry.Next = firing.Next.String()
		}

		if firing.Reason != nil {
			entry.Reason = fmt.Sprint(firing.Reason)
		}
	}

	t.recorder.InsertData(EventTable, entry)
}
