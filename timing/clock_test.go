package timing

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/solclock/hooking"
	"github.com/sarchlab/solclock/logging"
	"github.com/sarchlab/solclock/marstime"
	"github.com/sarchlab/solclock/wallclock"
)

type namedListener struct {
	name   string
	record func(name string, p Pulse)
}

func (l *namedListener) Name() string { return l.name }

func (l *namedListener) TimePassing(p Pulse) bool {
	l.record(l.name, p)
	return true
}

var _ = Describe("Clock", func() {
	var (
		mockCtrl *gomock.Controller
		wall     *wallclock.FakeClock
		start    marstime.MarsTime
		clock    *Clock
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		wall = wallclock.Fake(time.Unix(0, 0))
		start = marstime.MustNew(1, 1, 1, 999, 1)
		clock = MakeClockBuilder().
			WithStartTime(start).
			WithWallClock(wall).
			WithLogger(logging.Discard()).
			WithFailureLogRate(0, 1).
			Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start stopped at the start time", func() {
		Expect(clock.State()).To(Equal(Stopped))
		Expect(clock.MarsTime()).To(Equal(start))

		_, ok := clock.LastPulse()
		Expect(ok).To(BeFalse())
	})

	It("should deliver pulses in registration order", func() {
		var order []string
		record := func(name string, _ Pulse) { order = append(order, name) }

		clock.RegisterListener(&namedListener{name: "a", record: record})
		clock.RegisterListener(&namedListener{name: "b", record: record})
		clock.RegisterListener(&namedListener{name: "c", record: record})

		_, err := clock.Tick(1)

		Expect(err).NotTo(HaveOccurred())
		Expect(order).To(Equal([]string{"a", "b", "c"}))
		Expect(clock.ListenerNames()).To(Equal([]string{"a", "b", "c"}))
	})

	It("should number pulses in increasing order", func() {
		var ids []uint64
		clock.RegisterListener(TemporalFunc(func(p Pulse) bool {
			ids = append(ids, p.ID())
			return true
		}))

		for i := 0; i < 5; i++ {
			_, err := clock.Tick(0.5)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(ids).To(Equal([]uint64{1, 2, 3, 4, 5}))
	})

	It("should continue the id sequence after the last pulse id", func() {
		clock = MakeClockBuilder().
			WithWallClock(wall).
			WithLogger(logging.Discard()).
			WithLastPulseID(41).
			Build()

		p, err := clock.Tick(1)

		Expect(err).NotTo(HaveOccurred())
		Expect(p.ID()).To(Equal(uint64(42)))
	})

	It("should move time and flag boundaries", func() {
		p, err := clock.Tick(2)

		Expect(err).NotTo(HaveOccurred())
		Expect(p.IsNewSol()).To(BeTrue())
		Expect(p.MarsTime().MissionSol()).To(Equal(2))
		Expect(p.MarsTime().Millisol()).To(BeNumerically("~", 1.0, 1e-9))
		Expect(clock.MarsTime()).To(Equal(p.MarsTime()))

		last, ok := clock.LastPulse()
		Expect(ok).To(BeTrue())
		Expect(last.ID()).To(Equal(p.ID()))

		p, err = clock.Tick(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.IsNewSol()).To(BeFalse())
	})

	It("should not deliver a pulse with invalid elapsed time", func() {
		listener := NewMockTemporal(mockCtrl)
		clock.RegisterListener(listener)

		_, err := clock.Tick(0)
		Expect(err).To(MatchError(ErrInvalidElapsed))

		_, err = clock.Tick(-1)
		Expect(err).To(MatchError(ErrInvalidElapsed))

		Expect(clock.MarsTime()).To(Equal(start))
	})

	It("should not deliver a pulse that does not move the time", func() {
		listener := NewMockTemporal(mockCtrl)
		clock.RegisterListener(listener)

		_, err := clock.Tick(1e-14)
		Expect(err).To(MatchError(ErrInvalidElapsed))

		_, ok := clock.LastPulse()
		Expect(ok).To(BeFalse())
		Expect(clock.MarsTime()).To(Equal(start))

		listener.EXPECT().TimePassing(gomock.Any()).Return(true)
		p, err := clock.Tick(0.5)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.ID()).To(Equal(uint64(1)))
		Expect(p.MarsTime().After(start)).To(BeTrue())
	})

	It("should isolate a panicking listener", func() {
		failing := NewMockTemporal(mockCtrl)
		healthy := NewMockTemporal(mockCtrl)
		clock.RegisterListener(failing)
		clock.RegisterListener(healthy)

		var failures []ListenerFailure
		var reports []DeliveryReport
		clock.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			switch ctx.Pos {
			case HookPosListenerFailure:
				failures = append(failures, ctx.Detail.(ListenerFailure))
			case HookPosAfterPulse:
				reports = append(reports, ctx.Detail.(DeliveryReport))
			}
		}))

		failing.EXPECT().TimePassing(gomock.Any()).
			DoAndReturn(func(Pulse) bool { panic("boom") }).
			Times(2)
		healthy.EXPECT().TimePassing(gomock.Any()).Return(true).Times(2)

		p1, err := clock.Tick(1)
		Expect(err).NotTo(HaveOccurred())
		p2, err := clock.Tick(1)
		Expect(err).NotTo(HaveOccurred())

		Expect(p2.ID()).To(Equal(p1.ID() + 1))
		Expect(failures).To(HaveLen(2))
		Expect(failures[0].Reason).To(Equal("boom"))
		Expect(reports[0]).To(Equal(DeliveryReport{
			Delivered: 2, Accepted: 1, Failed: 1,
		}))
	})

	It("should keep ticking when a hook panics", func() {
		listener := NewMockTemporal(mockCtrl)
		clock.RegisterListener(listener)

		var reports []DeliveryReport
		clock.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosAfterPulse {
				panic("disk full")
			}
		}))
		clock.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosAfterPulse {
				reports = append(reports, ctx.Detail.(DeliveryReport))
			}
		}))

		listener.EXPECT().TimePassing(gomock.Any()).Return(true).Times(2)

		var p1, p2 Pulse
		Expect(func() {
			var err error
			p1, err = clock.Tick(1)
			Expect(err).NotTo(HaveOccurred())
			p2, err = clock.Tick(1)
			Expect(err).NotTo(HaveOccurred())
		}).NotTo(Panic())

		Expect(p2.ID()).To(Equal(p1.ID() + 1))
		Expect(reports).To(HaveLen(2))
	})

	It("should invoke hooks around the listeners", func() {
		listener := NewMockTemporal(mockCtrl)
		hook := NewMockHook(mockCtrl)
		clock.RegisterListener(listener)
		clock.AcceptHook(hook)

		isPos := func(pos *hooking.HookPos) gomock.Matcher {
			return gomock.Cond(func(x any) bool {
				return x.(hooking.HookCtx).Pos == pos
			})
		}

		gomock.InOrder(
			hook.EXPECT().Func(isPos(HookPosBeforePulse)),
			listener.EXPECT().TimePassing(gomock.Any()).Return(false),
			hook.EXPECT().Func(isPos(HookPosAfterPulse)).
				Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Detail).To(Equal(DeliveryReport{Delivered: 1}))
				}),
		)

		_, err := clock.Tick(1)

		Expect(err).NotTo(HaveOccurred())
	})

	It("should give a listener added during delivery the next pulse", func() {
		var late []uint64
		lateListener := TemporalFunc(func(p Pulse) bool {
			late = append(late, p.ID())
			return true
		})

		registered := false
		clock.RegisterListener(TemporalFunc(func(p Pulse) bool {
			if !registered {
				registered = true
				clock.RegisterListener(lateListener)
			}
			return true
		}))

		_, _ = clock.Tick(1)
		_, _ = clock.Tick(1)

		Expect(late).To(Equal([]uint64{2}))
	})

	It("should remove listeners", func() {
		listener := NewMockTemporal(mockCtrl)
		clock.RegisterListener(listener)

		Expect(clock.RemoveListener(listener)).To(BeTrue())
		Expect(clock.RemoveListener(listener)).To(BeFalse())

		_, err := clock.Tick(1)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should find a listener by name", func() {
		l := &namedListener{name: "rover", record: func(string, Pulse) {}}
		clock.RegisterListener(l)

		found, ok := clock.Listener("rover")
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(l))

		_, ok = clock.Listener("lander")
		Expect(ok).To(BeFalse())
	})

	It("should panic on a duplicated listener", func() {
		listener := NewMockTemporal(mockCtrl)
		clock.RegisterListener(listener)

		Expect(func() { clock.RegisterListener(listener) }).To(Panic())
		Expect(func() { clock.RegisterListener(nil) }).To(Panic())
	})

	It("should reject invalid time ratios", func() {
		Expect(clock.SetTimeRatio(0)).To(MatchError(ErrInvalidTimeRatio))
		Expect(clock.SetTimeRatio(-3)).To(MatchError(ErrInvalidTimeRatio))
		Expect(clock.SetTimeRatio(250)).To(Succeed())
		Expect(clock.TimeRatio()).To(Equal(250.0))
	})

	It("should cap the elapsed time of a paced pulse", func() {
		clock = MakeClockBuilder().
			WithWallClock(wall).
			WithLogger(logging.Discard()).
			WithMaxElapsedPerPulse(5).
			Build()

		Expect(clock.elapsedFor(time.Hour)).To(Equal(5.0))
		Expect(clock.elapsedFor(100 * time.Millisecond)).
			To(BeNumerically("~", 0.1/marstime.SecondsPerMillisol*1000, 1e-9))
	})

	Context("when running", func() {
		var (
			ctx    context.Context
			cancel context.CancelFunc
			done   chan error
			pulses chan Pulse
		)

		BeforeEach(func() {
			pulses = make(chan Pulse, 16)
			clock.RegisterListener(TemporalFunc(func(p Pulse) bool {
				pulses <- p
				return true
			}))

			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan error, 1)
			go func() { done <- clock.Run(ctx) }()

			blockCtx, stopBlocking := context.WithTimeout(ctx, 5*time.Second)
			defer stopBlocking()
			Expect(wall.BlockUntilContext(blockCtx, 1)).To(Succeed())
			Expect(clock.State()).To(Equal(Running))
		})

		AfterEach(func() {
			cancel()
			Eventually(done).Should(Receive())
		})

		It("should pace pulses against the wall clock", func() {
			wall.Advance(DefaultTickInterval)

			var p Pulse
			Eventually(pulses).Should(Receive(&p))
			Expect(p.ID()).To(Equal(uint64(1)))

			want := marstime.FromEarthDuration(DefaultTickInterval) *
				DefaultTimeRatio
			Expect(p.Elapsed()).To(BeNumerically("~", want, 1e-9))
		})

		It("should refuse a second run", func() {
			Expect(clock.Run(context.Background())).
				To(MatchError(ErrClockRunning))
		})

		It("should not produce pulses while paused", func() {
			clock.Pause()
			Expect(clock.State()).To(Equal(Paused))

			_, err := clock.Tick(1)
			Expect(err).To(MatchError(ErrClockPaused))

			wall.Advance(DefaultTickInterval)
			Consistently(pulses, 50*time.Millisecond).ShouldNot(Receive())

			clock.Resume()
			Expect(clock.State()).To(Equal(Running))

			wall.Advance(DefaultTickInterval)
			Eventually(pulses).Should(Receive())
		})

		It("should return nil when stopped", func() {
			clock.Stop()

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(err).NotTo(HaveOccurred())
			Expect(clock.State()).To(Equal(Stopped))

			done <- nil
		})

		It("should return the context error when cancelled", func() {
			cancel()

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(err).To(MatchError(context.Canceled))

			done <- err
		})

		It("should report state changes", func() {
			var mu sync.Mutex
			var changes []State
			clock.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos != HookPosStateChange {
					return
				}
				mu.Lock()
				changes = append(changes, ctx.Item.(State))
				mu.Unlock()
			}))

			clock.Pause()
			clock.Resume()
			clock.Stop()

			Eventually(func() []State {
				mu.Lock()
				defer mu.Unlock()
				return append([]State(nil), changes...)
			}).Should(Equal([]State{Paused, Running, Stopped}))
		})
	})
})
