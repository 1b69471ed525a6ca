package events

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/solclock/hooking"
	"github.com/sarchlab/solclock/logging"
	"github.com/sarchlab/solclock/marstime"
	"github.com/sarchlab/solclock/timing"
)

var _ = Describe("Manager", func() {
	var (
		mockCtrl *gomock.Controller
		teller   *MockTimeTeller
		nowLock  sync.Mutex
		now      marstime.MarsTime
		pulseID  uint64
		manager  *Manager
	)

	setNow := func(t marstime.MarsTime) {
		nowLock.Lock()
		defer nowLock.Unlock()
		now = t
	}

	currentTime := func() marstime.MarsTime {
		nowLock.Lock()
		defer nowLock.Unlock()
		return now
	}

	// advance moves the time teller forward and delivers the pulse.
	advance := func(millisols float64) timing.Pulse {
		t := currentTime().Add(millisols)
		setNow(t)
		pulseID++

		pulse, err := timing.NewPulse(pulseID, millisols, t, false, false, false)
		Expect(err).NotTo(HaveOccurred())

		Expect(manager.TimePassing(pulse)).To(BeTrue())

		return pulse
	}

	recorder := func(name string, log *[]string, repeat float64) Handler {
		return HandlerFunc(name, func(marstime.MarsTime) float64 {
			*log = append(*log, name)
			return repeat
		})
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		teller = NewMockTimeTeller(mockCtrl)
		teller.EXPECT().MarsTime().DoAndReturn(currentTime).AnyTimes()

		setNow(marstime.MustNew(2, 3, 10, 100, 700))
		pulseID = 0

		manager = MakeManagerBuilder().
			WithTimeTeller(teller).
			WithLogger(logging.Discard()).
			WithFailureLogRate(0, 1).
			Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should panic without a time teller", func() {
		Expect(func() { MakeManagerBuilder().Build() }).To(Panic())
	})

	It("should panic on a nil handler", func() {
		Expect(func() { manager.AddEventIn(1, nil) }).To(Panic())
	})

	It("should fire due events in time order", func() {
		a := NewMockHandler(mockCtrl)
		b := NewMockHandler(mockCtrl)
		a.EXPECT().EventDescription().Return("a").AnyTimes()
		b.EXPECT().EventDescription().Return("b").AnyTimes()

		manager.AddEventIn(10, a)
		manager.AddEventIn(5, b)

		gomock.InOrder(
			b.EXPECT().Execute(gomock.Any()).Return(0.0),
			a.EXPECT().Execute(gomock.Any()).Return(0.0),
		)

		advance(20)

		Expect(manager.Len()).To(Equal(0))
	})

	It("should call handlers with the pulse time", func() {
		h := NewMockHandler(mockCtrl)
		h.EXPECT().EventDescription().Return("h").AnyTimes()
		manager.AddEventIn(1, h)

		target := currentTime().Add(3)
		h.EXPECT().Execute(target).Return(0.0)

		advance(3)
	})

	It("should not fire events that are not due", func() {
		var fired []string
		manager.AddEventIn(50, recorder("later", &fired, 0))

		advance(49.9)
		Expect(fired).To(BeEmpty())

		advance(0.1)
		Expect(fired).To(Equal([]string{"later"}))
	})

	It("should fire events due at the same time in scheduling order", func() {
		var fired []string
		when := currentTime().Add(5)
		manager.AddEvent(when, recorder("first", &fired, 0))
		manager.AddEvent(when, recorder("second", &fired, 0))
		manager.AddEvent(when, recorder("third", &fired, 0))

		advance(5)

		Expect(fired).To(Equal([]string{"first", "second", "third"}))
	})

	It("should repeat on a fixed schedule", func() {
		var fired []string
		start := currentTime()
		evt := manager.AddEvent(start, recorder("repeat", &fired, 100))

		advance(3)

		Expect(fired).To(HaveLen(1))
		Expect(evt.Pending()).To(BeTrue())
		Expect(evt.When()).To(Equal(start.Add(100)))
		Expect(evt.When().Diff(start)).To(Equal(100.0))
	})

	It("should catch up a repeating event within one pulse", func() {
		var fired []string
		start := currentTime()
		evt := manager.AddEvent(start, recorder("tick", &fired, 10))

		advance(35)

		Expect(fired).To(HaveLen(4))
		Expect(evt.When().Diff(start)).To(Equal(40.0))
	})

	It("should defer firings over the cap to later pulses", func() {
		manager = MakeManagerBuilder().
			WithTimeTeller(teller).
			WithLogger(logging.Discard()).
			WithMaxFiringsPerPulse(2).
			Build()

		var fired []string
		manager.AddEventIn(1, recorder("a", &fired, 0))
		manager.AddEventIn(2, recorder("b", &fired, 0))
		manager.AddEventIn(3, recorder("c", &fired, 0))

		advance(10)
		Expect(fired).To(Equal([]string{"a", "b"}))
		Expect(manager.Len()).To(Equal(1))

		advance(1)
		Expect(fired).To(Equal([]string{"a", "b", "c"}))
	})

	It("should bound a catching up repeat with the cap", func() {
		manager = MakeManagerBuilder().
			WithTimeTeller(teller).
			WithLogger(logging.Discard()).
			WithMaxFiringsPerPulse(3).
			Build()

		var fired []string
		start := currentTime()
		evt := manager.AddEvent(start, recorder("tick", &fired, 1))

		advance(1000)

		Expect(fired).To(HaveLen(3))
		Expect(evt.When().Diff(start)).To(Equal(3.0))
	})

	It("should not fire a removed event", func() {
		h := NewMockHandler(mockCtrl)
		h.EXPECT().EventDescription().Return("h").AnyTimes()
		manager.AddEventIn(1000, h)

		advance(500)
		Expect(manager.RemoveEvent(h)).To(BeTrue())
		advance(600)

		Expect(manager.RemoveEvent(h)).To(BeFalse())
	})

	It("should remove only the earliest event of a handler", func() {
		var fired []string
		h := recorder("shared", &fired, 0)
		second := manager.AddEventIn(20, h)
		first := manager.AddEventIn(10, h)

		Expect(manager.RemoveEvent(h)).To(BeTrue())

		Expect(first.Pending()).To(BeFalse())
		Expect(second.Pending()).To(BeTrue())

		advance(30)
		Expect(fired).To(Equal([]string{"shared"}))
	})

	It("should cancel a specific event", func() {
		var fired []string
		h := recorder("shared", &fired, 0)
		first := manager.AddEventIn(10, h)
		manager.AddEventIn(20, h)

		Expect(manager.Cancel(first)).To(BeTrue())
		Expect(manager.Cancel(first)).To(BeFalse())

		advance(30)
		Expect(fired).To(HaveLen(1))
		Expect(manager.Cancel(first)).To(BeFalse())
	})

	It("should stop a repeating event cancelled while firing", func() {
		var evt *ScheduledEvent
		count := 0
		evt = manager.AddEventIn(1, HandlerFunc("self", func(marstime.MarsTime) float64 {
			count++
			Expect(manager.Cancel(evt)).To(BeTrue())
			return 5
		}))

		advance(100)

		Expect(count).To(Equal(1))
		Expect(evt.Pending()).To(BeFalse())
		Expect(manager.Len()).To(Equal(0))
	})

	It("should move a past-due event to now", func() {
		var fired []string
		evt := manager.AddEvent(currentTime().Add(-500), recorder("late", &fired, 0))

		Expect(evt.When()).To(Equal(currentTime()))

		advance(0.01)
		Expect(fired).To(HaveLen(1))

		advance(0.01)
		Expect(fired).To(HaveLen(1))
	})

	It("should isolate a failing handler", func() {
		var fired []string
		var failures []Firing
		manager.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosEventFailed {
				failures = append(failures, ctx.Detail.(Firing))
			}
		}))

		broken := manager.AddEventIn(1, HandlerFunc("broken", func(marstime.MarsTime) float64 {
			panic("no power")
		}))
		manager.AddEventIn(2, recorder("healthy", &fired, 0))

		advance(5)

		Expect(fired).To(Equal([]string{"healthy"}))
		Expect(broken.Pending()).To(BeFalse())
		Expect(failures).To(HaveLen(1))
		Expect(failures[0].Reason).To(Equal("no power"))
		Expect(manager.Len()).To(Equal(0))
	})

	It("should not repeat a failing handler", func() {
		calls := 0
		manager.AddEventIn(1, HandlerFunc("flaky", func(marstime.MarsTime) float64 {
			calls++
			if calls == 1 {
				panic("first run fails")
			}
			return 10
		}))

		advance(100)

		Expect(calls).To(Equal(1))
		Expect(manager.Len()).To(Equal(0))
	})

	It("should not repeat with an unusable interval", func() {
		var fired []string
		manager.AddEventIn(1, recorder("tiny", &fired, 1e-300))

		advance(10)

		Expect(fired).To(HaveLen(1))
		Expect(manager.Len()).To(Equal(0))
	})

	It("should let a handler schedule new events", func() {
		var fired []string
		manager.AddEventIn(1, HandlerFunc("parent", func(marstime.MarsTime) float64 {
			manager.AddEventIn(50, recorder("child", &fired, 0))
			return 0
		}))

		advance(2)
		Expect(manager.Len()).To(Equal(1))

		advance(50)
		Expect(fired).To(Equal([]string{"child"}))
	})

	It("should list pending events in firing order", func() {
		var fired []string
		manager.AddEventIn(30, recorder("c", &fired, 0))
		manager.AddEventIn(10, recorder("a", &fired, 0))
		manager.AddEventIn(20, recorder("b", &fired, 0))

		infos := manager.Events()

		Expect(infos).To(HaveLen(3))
		Expect(infos[0].Description).To(Equal("a"))
		Expect(infos[1].Description).To(Equal("b"))
		Expect(infos[2].Description).To(Equal("c"))

		infos[0].Description = "changed"
		Expect(manager.Events()[0].Description).To(Equal("a"))

		next, ok := manager.NextDue()
		Expect(ok).To(BeTrue())
		Expect(next).To(Equal(currentTime().Add(10)))
	})

	It("should compare events by time and handler", func() {
		var fired []string
		h := recorder("h", &fired, 0)
		when := currentTime().Add(10)

		a := manager.AddEvent(when, h)
		b := manager.AddEvent(when, h)
		c := manager.AddEvent(when.Add(1), h)

		Expect(a.Equal(b)).To(BeTrue())
		Expect(a.Equal(c)).To(BeFalse())
		Expect(a.ID()).NotTo(Equal(b.ID()))
	})

	It("should clear all events", func() {
		var fired []string
		var cancelled int
		manager.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosEventCancelled {
				cancelled++
			}
		}))

		evt := manager.AddEventIn(10, recorder("a", &fired, 0))
		manager.AddEventIn(20, recorder("b", &fired, 0))

		Expect(manager.Clear()).To(Equal(2))
		Expect(manager.Len()).To(Equal(0))
		Expect(evt.Pending()).To(BeFalse())
		Expect(cancelled).To(Equal(2))

		advance(100)
		Expect(fired).To(BeEmpty())
	})

	It("should report scheduled and fired events", func() {
		var positions []string
		manager.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos.Name)
		}))

		var fired []string
		evt := manager.AddEventIn(1, recorder("r", &fired, 5))

		var firing Firing
		manager.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosEventFired {
				firing = ctx.Detail.(Firing)
			}
		}))

		advance(2)

		Expect(positions).To(Equal([]string{"EventScheduled", "EventFired"}))
		Expect(firing.Repeat).To(Equal(5.0))
		Expect(firing.Next).NotTo(BeNil())
		Expect(*firing.Next).To(Equal(evt.When()))
	})

	It("should keep firing due events when a hook panics", func() {
		manager.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosEventFired {
				panic("disk full")
			}
		}))

		var fired []string
		manager.AddEventIn(1, recorder("a", &fired, 0))
		manager.AddEventIn(2, recorder("b", &fired, 10))

		Expect(func() { advance(3) }).NotTo(Panic())
		Expect(fired).To(Equal([]string{"a", "b"}))
		Expect(manager.Len()).To(Equal(1))

		advance(10)
		Expect(fired).To(Equal([]string{"a", "b", "b"}))
	})

	It("should accept events from many goroutines", func() {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()

				for j := 0; j < 100; j++ {
					manager.AddEventIn(1e6, HandlerFunc("far", func(marstime.MarsTime) float64 {
						return 0
					}))
				}
			}()
		}

		for i := 0; i < 20; i++ {
			advance(1)
		}

		wg.Wait()

		Expect(manager.Len()).To(Equal(800))
	})
})
