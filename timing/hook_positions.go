package timing

import "github.com/sarchlab/solclock/hooking"

// HookPosBeforePulse fires after a pulse is built and before any listener
// sees it. Item is the Pulse.
var HookPosBeforePulse = &hooking.HookPos{Name: "BeforePulse"}

// HookPosAfterPulse fires after every listener handled the pulse. Item is the
// Pulse and Detail is a DeliveryReport.
var HookPosAfterPulse = &hooking.HookPos{Name: "AfterPulse"}

// HookPosListenerFailure fires when a listener panics. Item is the Pulse and
// Detail is a ListenerFailure.
var HookPosListenerFailure = &hooking.HookPos{Name: "ListenerFailure"}

// HookPosStateChange fires when the clock changes state. Item is the new
// State and Detail the previous one.
var HookPosStateChange = &hooking.HookPos{Name: "StateChange"}

// ListenerFailure describes a listener that panicked while handling a pulse.
type ListenerFailure struct {
	Listener string
	Reason   any
}

// DeliveryReport summarizes how the listeners handled one pulse.
type DeliveryReport struct {
	Delivered int
	Accepted  int
	Failed    int
}
