// Package simulation wires a clock, an event manager and the optional
// diagnostics into one object that is passed to everything that needs
// simulated time.
package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/solclock/datarecording"
	"github.com/sarchlab/solclock/events"
	"github.com/sarchlab/solclock/metrics"
	"github.com/sarchlab/solclock/monitoring"
	"github.com/sarchlab/solclock/timing"
)

// A Simulation owns the services of one simulated mission.
type Simulation struct {
	id  string
	log *logrus.Entry

	clock  *timing.Clock
	events *events.Manager

	metrics      *metrics.Collector
	dataRecorder datarecording.DataRecorder
	tracer       *datarecording.Tracer
	monitor      *monitoring.Monitor
	monitorURL   string
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Clock returns the master clock.
func (s *Simulation) Clock() *timing.Clock {
	return s.clock
}

// Events returns the event manager.
func (s *Simulation) Events() *events.Manager {
	return s.events
}

// Metrics returns the metrics collector, or nil if metrics are off.
func (s *Simulation) Metrics() *metrics.Collector {
	return s.metrics
}

// DataRecorder returns the recorder, or nil if recording is off.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Monitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitor, if it is serving.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// RegisterListener registers an object that follows simulated time. It is
// called after the event manager and after the listeners registered before
// it.
func (s *Simulation) RegisterListener(t timing.Temporal) {
	s.clock.RegisterListener(t)
}

// GetListenerByName returns a registered listener.
func (s *Simulation) GetListenerByName(name string) (timing.Temporal, bool) {
	return s.clock.Listener(name)
}

// Run runs the clock until ctx is done or the clock is stopped. Reaching the
// end of ctx is a normal end of the run.
func (s *Simulation) Run(ctx context.Context) error {
	err := s.clock.Run(ctx)
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return nil
	}

	return err
}

// Terminate stops the clock and releases the diagnostics. Pending events
// are dropped.
func (s *Simulation) Terminate() error {
	s.clock.Stop()

	dropped := s.events.Clear()

	var errs []error

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, s.monitor.Shutdown(ctx))
		cancel()
	}

	if s.dataRecorder != nil {
		errs = append(errs, s.dataRecorder.Close())
	}

	s.log.WithFields(logrus.Fields{
		"time":           s.clock.MarsTime().String(),
		"dropped_events": dropped,
	}).Info("simulation terminated")

	return errors.Join(errs...)
}
