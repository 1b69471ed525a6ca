// Package hooking lets observers attach to the clock and the event manager
// without those types knowing about metrics, tracing or recording.
package hooking

import (
	"reflect"
	"sync"
)

// HookPos names a point in the clock or the event manager where hooks run.
// Positions are compared by pointer.
type HookPos struct {
	Name string
}

// HookCtx describes one hook invocation.
type HookCtx struct {
	// Domain raised the hook.
	Domain Hookable

	// Pos identifies where the hook is firing from.
	Pos *HookPos

	// Item carries the primary subject (a pulse, a scheduled event).
	Item any

	// Detail depends on Pos and may be nil.
	Detail any
}

// Hookable is implemented by the types that raise hooks.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
	InvokeHook(ctx HookCtx)
}

// A Hook observes a Hookable. Func runs synchronously on the goroutine that
// raised the hook and must not block.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) { f(ctx) }

// A PanicHandler receives the value a hook panicked with.
type PanicHandler func(hook Hook, ctx HookCtx, reason any)

// HookableBase implements Hookable and is meant to be embedded.
//
// Hooks may be added while the domain is running. The hook list is replaced,
// never modified in place, so InvokeHook iterates a stable snapshot.
type HookableBase struct {
	lock     sync.Mutex
	hookList []Hook
	onPanic  PanicHandler
}

// NewHookableBase returns a HookableBase without hooks.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// SetPanicHandler makes InvokeHook recover a panicking hook, pass the panic
// to f and go on with the next hook. Without a handler the panic reaches
// the caller of InvokeHook.
func (h *HookableBase) SetPanicHandler(f PanicHandler) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.onPanic = f
}

// NumHooks counts the attached hooks.
func (h *HookableBase) NumHooks() int {
	hooks, _ := h.snapshot()
	return len(hooks)
}

// Hooks returns a copy of the attached hooks in the order they run.
func (h *HookableBase) Hooks() []Hook {
	hooks, _ := h.snapshot()
	out := make([]Hook, len(hooks))
	copy(out, hooks)

	return out
}

// AcceptHook attaches a hook after the existing ones. Attaching the same
// hook twice panics. Function hooks cannot be compared and are never
// treated as duplicates.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if reflect.TypeOf(hook).Comparable() {
		for _, existing := range h.hookList {
			if reflect.TypeOf(existing).Comparable() && existing == hook {
				panic("duplicated hook")
			}
		}
	}

	next := make([]Hook, len(h.hookList), len(h.hookList)+1)
	copy(next, h.hookList)
	h.hookList = append(next, hook)
}

// InvokeHook runs every attached hook with ctx.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	hooks, onPanic := h.snapshot()

	for _, hook := range hooks {
		if onPanic == nil {
			hook.Func(ctx)
			continue
		}

		invokeRecovering(hook, ctx, onPanic)
	}
}

func invokeRecovering(hook Hook, ctx HookCtx, onPanic PanicHandler) {
	defer func() {
		if r := recover(); r != nil {
			onPanic(hook, ctx, r)
		}
	}()

	hook.Func(ctx)
}

func (h *HookableBase) snapshot() ([]Hook, PanicHandler) {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.hookList, h.onPanic
}

// PosName returns the name of the position of ctx, or an empty string.
func (ctx HookCtx) PosName() string {
	if ctx.Pos == nil {
		return ""
	}

	return ctx.Pos.Name
}

var _ Hookable = (*HookableBase)(nil)
