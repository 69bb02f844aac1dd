package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"streamrelay/config"
	"streamrelay/internal/admin"
	"streamrelay/internal/app"
	"streamrelay/internal/logger"
	"streamrelay/internal/metrics"
	"streamrelay/internal/stats"
)

var runFlags struct {
	configPath string
	envFile    string
	adminAddr  string
	logLevel   string
	sinkType   string
	workers    int
	watch      bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.configPath, "config", "c", "", "path to config file (default ./config.yml or ./configs/config.yml)")
	f.StringVar(&runFlags.envFile, "env-file", ".env", "dotenv file loaded before the config")
	f.StringVar(&runFlags.adminAddr, "admin-addr", "", "override admin server address")
	f.StringVar(&runFlags.logLevel, "log-level", "", "override log level")
	f.StringVar(&runFlags.sinkType, "sink", "", "override sink type (log, nats, mqtt)")
	f.IntVar(&runFlags.workers, "workers", 0, "override number of dispatch workers (0 = use config)")
	f.BoolVar(&runFlags.watch, "watch", true, "reload actions when the config file changes")
}

func run() error {
	// a missing dotenv file is fine, the environment may already be set
	_ = godotenv.Load(runFlags.envFile)

	cfg, err := config.Load(runFlags.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyOverrides(runFlags.adminAddr, runFlags.logLevel, runFlags.sinkType, runFlags.workers); err != nil {
		return fmt.Errorf("invalid flag override: %w", err)
	}

	fxApp := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			newRegistry,
			newMetrics,
			stats.NewStatsCollector,
			newApp,
		),
		fx.Invoke(
			startAdmin,
			watchConfig,
			handleSignals,
		),
		fx.NopLogger,
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	fxApp.Run()
	return nil
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

func newRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// newMetrics returns nil when metrics are disabled, which every consumer
// accepts.
func newMetrics(cfg *config.Config, reg *prometheus.Registry) (*metrics.Metrics, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	return metrics.NewMetrics(reg)
}

func newApp(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger, m *metrics.Metrics, st *stats.StatsCollector) (*app.App, error) {
	a, err := app.New(app.Options{
		Config:  cfg,
		Logger:  log,
		Metrics: m,
		Stats:   st,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("streamrelay starting",
				"config", cfg.Path(),
				"source", cfg.Source.Type,
				"sink", cfg.Sink.Type,
				"workers", cfg.Processing.Workers,
				"metricsEnabled", cfg.Metrics.Enabled)
			return a.Start(ctx)
		},
		OnStop: a.Stop,
	})
	return a, nil
}

func startAdmin(lc fx.Lifecycle, cfg *config.Config, a *app.App, reg *prometheus.Registry, log *logger.Logger) {
	if !cfg.Admin.Enabled && !cfg.Metrics.Enabled {
		return
	}

	srv := admin.NewServer(cfg, a, reg, log)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return srv.Start()
		},
		OnStop: srv.Shutdown,
	})
}

func watchConfig(lc fx.Lifecycle, cfg *config.Config, a *app.App, log *logger.Logger) {
	if !runFlags.watch || cfg.Path() == "" {
		return
	}

	// the watcher must stay referenced for the lifetime of the process
	var watcher *viper.Viper
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			v, err := config.Watch(cfg.Path(), func() {
				log.Info("config file changed, reloading", "path", cfg.Path())
				if err := a.Reload(); err != nil {
					log.Error("reload failed, keeping previous actions", "error", err)
				}
			})
			if err != nil {
				return err
			}
			watcher = v
			return nil
		},
		OnStop: func(context.Context) error {
			if watcher != nil {
				log.Debug("config watch stopped", "path", watcher.ConfigFileUsed())
			}
			return nil
		},
	})
}

// handleSignals reloads on SIGHUP. fx handles SIGINT and SIGTERM itself.
func handleSignals(lc fx.Lifecycle, a *app.App, log *logger.Logger) {
	sigChan := make(chan os.Signal, 1)
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			signal.Notify(sigChan, syscall.SIGHUP)
			go func() {
				for {
					select {
					case <-sigChan:
						log.Info("received SIGHUP, reloading configuration")
						_ = log.Sync()
						if err := a.Reload(); err != nil {
							log.Error("reload failed, keeping previous actions", "error", err)
						}
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			signal.Stop(sigChan)
			close(done)
			return nil
		},
	})
}
