package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/solclock/config"
	"github.com/sarchlab/solclock/events"
	"github.com/sarchlab/solclock/logging"
	"github.com/sarchlab/solclock/marstime"
	"github.com/sarchlab/solclock/simulation"
)

type runParams struct {
	configFile string
	envFile    string
	sols       float64
}

// flagKeys maps run flags to configuration keys.
var flagKeys = map[string]string{
	"start":             "clock.start",
	"mission-sol":       "clock.mission_sol",
	"time-ratio":        "clock.time_ratio",
	"tick-interval":     "clock.tick_interval",
	"max-elapsed":       "clock.max_elapsed_per_pulse",
	"max-firings":       "events.max_firings_per_pulse",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"monitor":           "monitor.enabled",
	"monitor-port":      "monitor.port",
	"open-browser":      "monitor.open_browser",
	"record":            "recording.enabled",
	"record-path":       "recording.path",
	"record-batch-size": "recording.batch_size",
	"metrics":           "metrics.enabled",
}

func newRunCommand() *cobra.Command {
	params := runParams{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clock",
		Long: `Run the clock against the wall clock until interrupted.

Settings are read from the config file, SOLCLOCK_* environment variables
(for example SOLCLOCK_CLOCK_TIME_RATIO) and flags, the later overriding the
earlier.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, params)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(
				cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runSimulation(ctx, cfg, params.sols, nil)
		},
	}

	d := config.Default()
	flags := cmd.Flags()
	flags.StringVarP(&params.configFile, "config", "c", "", "config file (yaml, json or toml)")
	flags.StringVar(&params.envFile, "env-file", ".env", "dotenv file to load, empty to skip")
	flags.Float64Var(&params.sols, "sols", 0, "stop after this many simulated sols, 0 runs until interrupted")
	flags.String("start", d.Clock.Start, "simulated start time, such as 01-Adir-01:000.000")
	flags.Int("mission-sol", d.Clock.MissionSol, "mission sol of the start time")
	flags.Float64("time-ratio", d.Clock.TimeRatio, "simulated seconds per real second")
	flags.Duration("tick-interval", d.Clock.TickInterval, "real time between pulses")
	flags.Float64("max-elapsed", d.Clock.MaxElapsedPerPulse, "cap of millisols per pulse, 0 for none")
	flags.Int("max-firings", d.Events.MaxFiringsPerPulse, "cap of event firings per pulse, 0 for none")
	flags.String("log-level", d.Log.Level, "trace, debug, info, warn or error")
	flags.String("log-format", d.Log.Format, "text, json or json-pretty")
	flags.Bool("monitor", d.Monitor.Enabled, "serve the web monitor")
	flags.Int("monitor-port", d.Monitor.Port, "monitor port, 0 for a random port")
	flags.Bool("open-browser", d.Monitor.OpenBrowser, "open the monitor in a browser")
	flags.Bool("record", d.Recording.Enabled, "record pulses and events to SQLite")
	flags.String("record-path", d.Recording.Path, "recording file name without extension")
	flags.Int("record-batch-size", d.Recording.BatchSize, "entries buffered before writing")
	flags.Bool("metrics", d.Metrics.Enabled, "collect Prometheus metrics")

	return cmd
}

func loadConfig(cmd *cobra.Command, params runParams) (config.Config, error) {
	loader := config.NewLoader().WithEnvFile(params.envFile)

	for flag, key := range flagKeys {
		if err := loader.BindFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return config.Config{}, err
		}
	}

	return loader.Load(params.configFile)
}

func runSimulation(
	ctx context.Context,
	cfg config.Config,
	sols float64,
	logger *logrus.Logger,
) error {
	if logger == nil {
		var err error

		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
	}

	log := logging.Component(logger, "run")

	sim, err := simulation.MakeBuilder().
		WithConfig(cfg).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}

	if sols > 0 {
		sim.Events().AddEventIn(sols*marstime.MillisolsPerSol, events.HandlerFunc(
			"end of run",
			func(now marstime.MarsTime) float64 {
				log.WithField("time", now.String()).Info("run length reached")
				sim.Clock().Stop()

				return 0
			}))
	}

	runErr := sim.Run(ctx)
	if err := sim.Terminate(); err != nil {
		log.WithError(err).Warn("terminate failed")
	}

	if runErr != nil {
		return fmt.Errorf("running simulation: %w", runErr)
	}

	return nil
}
