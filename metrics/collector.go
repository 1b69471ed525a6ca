// Package metrics exposes the clock and the event manager as Prometheus
// metrics. A Collector is a hook; attach it to the hookables to observe.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sarchlab/solclock/events"
	"github.com/sarchlab/solclock/hooking"
	"github.com/sarchlab/solclock/timing"
)

const namespace = "solclock"

// Collector counts pulses and event activity.
type Collector struct {
	registry *prometheus.Registry

	pulses           prometheus.Counter
	pulseElapsed     prometheus.Histogram
	listenerFailures *prometheus.CounterVec
	missionSol       prometheus.Gauge
	millisol         prometheus.Gauge
	events           *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry. The registry also
// carries the Go runtime and process collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		registry: registry,
		pulses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pulses_total",
			Help:      "Number of pulses delivered.",
		}),
		pulseElapsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pulse_elapsed_millisols",
			Help:      "Simulated time carried by each pulse.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 50, 100, 1000},
		}),
		listenerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_failures_total",
			Help:      "Number of pulses a listener failed to handle.",
		}, []string{"listener"}),
		missionSol: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mission_sol",
			Help:      "Sols since the start of the mission.",
		}),
		millisol: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "millisol",
			Help:      "Millisol of the current sol.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Scheduled event activity by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		c.pulses,
		c.pulseElapsed,
		c.listenerFailures,
		c.missionSol,
		c.millisol,
		c.events,
	)

	return c
}

// Registry returns the registry the metrics are registered to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WatchPending publishes the number of pending events of a manager.
func (c *Collector) WatchPending(m *events.Manager) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_events",
		Help:      "Number of events waiting to fire.",
	}, func() float64 {
		return float64(m.Len())
	}))
}

// Func records the hook site.
func (c *Collector) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosAfterPulse:
		pulse := ctx.Item.(timing.Pulse)
		c.pulses.Inc()
		c.pulseElapsed.Observe(pulse.Elapsed())
		c.missionSol.Set(float64(pulse.MarsTime().MissionSol()))
		c.millisol.Set(pulse.MarsTime().Millisol())
	case timing.HookPosListenerFailure:
		failure := ctx.Detail.(timing.ListenerFailure)
		c.listenerFailures.WithLabelValues(failure.Listener).Inc()
	case events.HookPosEventScheduled:
		c.events.WithLabelValues("scheduled").Inc()
	case events.HookPosEventFired:
		c.events.WithLabelValues("fired").Inc()
	case events.HookPosEventFailed:
		c.events.WithLabelValues("failed").Inc()
	case events.HookPosEventCancelled:
		c.events.WithLabelValues("cancelled").Inc()
	}
}
