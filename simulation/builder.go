package simulation

import (
	"fmt"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/solclock/config"
	"github.com/sarchlab/solclock/datarecording"
	"github.com/sarchlab/solclock/events"
	"github.com/sarchlab/solclock/logging"
	"github.com/sarchlab/solclock/metrics"
	"github.com/sarchlab/solclock/monitoring"
	"github.com/sarchlab/solclock/timing"
	"github.com/sarchlab/solclock/wallclock"
)

// Builder can be used to build a simulation.
type Builder struct {
	cfg    config.Config
	logger *logrus.Logger
	wall   wallclock.Clock
}

// MakeBuilder creates a new builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{cfg: config.Default()}
}

// WithConfig sets the configuration.
func (b Builder) WithConfig(cfg config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithLogger sets the logger. Without it, a logger is created from the log
// configuration.
func (b Builder) WithLogger(l *logrus.Logger) Builder {
	b.logger = l
	return b
}

// WithWallClock sets the clock that paces the simulation.
func (b Builder) WithWallClock(w wallclock.Clock) Builder {
	b.wall = w
	return b
}

// WithoutMonitoring turns the monitor off.
func (b Builder) WithoutMonitoring() Builder {
	b.cfg.Monitor.Enabled = false
	return b
}

// WithMonitorPort turns the monitor on at a port.
func (b Builder) WithMonitorPort(port int) Builder {
	b.cfg.Monitor.Enabled = true
	b.cfg.Monitor.Port = port

	return b
}

// WithOutputFileName turns recording on, writing to filename.sqlite3.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.cfg.Recording.Enabled = true
	b.cfg.Recording.Path = filename

	return b
}

// Build builds the simulation. The event manager is the first listener of
// the clock, so events fire before other listeners see a pulse.
func (b Builder) Build() (*Simulation, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		var err error

		logger, err = logging.New(b.cfg.Log.Level, b.cfg.Log.Format)
		if err != nil {
			return nil, err
		}
	}

	s := &Simulation{id: xid.New().String()}
	s.log = logging.Component(logger, "simulation").WithField("simulation", s.id)

	if err := b.buildCore(s, logger); err != nil {
		return nil, err
	}

	if err := b.buildDiagnostics(s, logger); err != nil {
		return nil, err
	}

	s.log.WithField("time", s.clock.MarsTime().String()).Info("simulation built")

	return s, nil
}

func (b Builder) buildCore(s *Simulation, logger *logrus.Logger) error {
	start, err := b.cfg.Clock.StartTime()
	if err != nil {
		return err
	}

	clockBuilder := timing.MakeClockBuilder().
		WithStartTime(start).
		WithTimeRatio(b.cfg.Clock.TimeRatio).
		WithTickInterval(b.cfg.Clock.TickInterval).
		WithMaxElapsedPerPulse(b.cfg.Clock.MaxElapsedPerPulse).
		WithFailureLogRate(b.cfg.Clock.FailureLogRate, b.cfg.Clock.FailureLogBurst).
		WithLogger(logger)
	if b.wall != nil {
		clockBuilder = clockBuilder.WithWallClock(b.wall)
	}

	s.clock = clockBuilder.Build()

	s.events = events.MakeManagerBuilder().
		WithTimeTeller(s.clock).
		WithMaxFiringsPerPulse(b.cfg.Events.MaxFiringsPerPulse).
		WithFailureLogRate(b.cfg.Clock.FailureLogRate, b.cfg.Clock.FailureLogBurst).
		WithLogger(logger).
		Build()
	s.clock.RegisterListener(s.events)

	return nil
}

func (b Builder) buildDiagnostics(s *Simulation, logger *logrus.Logger) error {
	if b.cfg.Metrics.Enabled {
		s.metrics = metrics.NewCollector()
		s.metrics.WatchPending(s.events)
		s.clock.AcceptHook(s.metrics)
		s.events.AcceptHook(s.metrics)
	}

	if b.cfg.Recording.Enabled {
		path := b.cfg.Recording.Path
		if path == "" {
			path = "solclock_sim_" + s.id
		}

		recorder, err := datarecording.New(path, b.cfg.Recording.BatchSize)
		if err != nil {
			return fmt.Errorf("creating recorder: %w", err)
		}

		s.dataRecorder = recorder
		s.tracer = datarecording.NewTracer(recorder)
		s.clock.AcceptHook(s.tracer)
		s.events.AcceptHook(s.tracer)

		s.log.WithField("file", recorder.Filename()).Info("recording simulation")
	}

	if b.cfg.Monitor.Enabled {
		s.monitor = monitoring.NewMonitor().
			WithLogger(logger).
			WithPortNumber(b.cfg.Monitor.Port)
		s.monitor.RegisterClock(s.clock)
		s.monitor.RegisterEventManager(s.events)

		if s.metrics != nil {
			s.monitor.RegisterMetrics(s.metrics.Handler())
		}

		url, err := s.monitor.StartServer()
		if err != nil {
			return b.abort(s, fmt.Errorf("starting monitor: %w", err))
		}

		s.monitorURL = url

		if b.cfg.Monitor.OpenBrowser {
			if err := s.monitor.OpenBrowser(); err != nil {
				s.log.WithError(err).Warn("cannot open browser")
			}
		}
	}

	return nil
}

func (b Builder) abort(s *Simulation, err error) error {
	if s.dataRecorder != nil {
		_ = s.dataRecorder.Close()
	}

	return err
}
