package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/sidecar/cmd"
	"github.com/smazurov/sidecar/internal/api"
	"github.com/smazurov/sidecar/internal/config"
	"github.com/smazurov/sidecar/internal/events"
	"github.com/smazurov/sidecar/internal/logging"
	"github.com/smazurov/sidecar/internal/metrics"
	"github.com/smazurov/sidecar/internal/notifier"
	"github.com/smazurov/sidecar/internal/portcell"
	"github.com/smazurov/sidecar/internal/process"
	"github.com/smazurov/sidecar/internal/query"
	"github.com/smazurov/sidecar/internal/readiness"
	"github.com/smazurov/sidecar/internal/supervisor"
	"github.com/smazurov/sidecar/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"sidecar.toml"`

	// Backend server settings
	ServerCommand         string `help:"Backend command line" toml:"server.command" env:"SERVER_COMMAND"`
	ServerEnv             string `help:"Extra backend environment (KEY=VALUE,KEY=VALUE)" toml:"server.env" env:"SERVER_ENV"`
	ServerLogEnv          string `help:"Variable that sets the backend log level" default:"RUST_LOG" toml:"server.log_env" env:"SERVER_LOG_ENV"`
	ServerLogLevel        string `help:"Backend log level" default:"info" toml:"server.log_level" env:"SERVER_LOG_LEVEL"`
	ServerBrowserEnv      string `help:"Variable that disables the backend's browser launch" default:"DISABLE_BROWSER_OPEN" toml:"server.browser_env" env:"SERVER_BROWSER_ENV"`
	ServerGracefulTimeout string `help:"Time between SIGINT and SIGKILL on shutdown" default:"5s" toml:"server.graceful_timeout" env:"SERVER_GRACEFUL_TIMEOUT"`

	// Readiness and navigation
	ReadinessMarker       string `help:"Text that marks the readiness line" default:"Server running on" toml:"readiness.marker" env:"READINESS_MARKER"`
	NotifierSettleDelayMs int    `help:"Delay between readiness and UI navigation in milliseconds" default:"300" toml:"notifier.settle_delay_ms" env:"NOTIFIER_SETTLE_DELAY_MS"`

	// Shell bridge
	BridgeAddr     string `help:"Bridge listen address" default:"127.0.0.1:8091" toml:"bridge.addr" env:"BRIDGE_ADDR"`
	BridgeEnabled  bool   `help:"Serve the shell bridge" default:"true" toml:"bridge.enabled" env:"BRIDGE_ENABLED"`
	MetricsEnabled bool   `help:"Expose Prometheus metrics on the bridge" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingServer     string `help:"Backend output logging level" default:"info" toml:"logging.server" env:"LOGGING_SERVER"`
	LoggingNotifier   string `help:"Notifier logging level" default:"info" toml:"logging.notifier" env:"LOGGING_NOTIFIER"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		configErr := config.LoadConfig(opts, cli.Root())

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"supervisor": opts.LoggingSupervisor,
				"server":     opts.LoggingServer,
				"notifier":   opts.LoggingNotifier,
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingHTTP,
			},
		})

		logger := logging.GetLogger("main")
		if configErr != nil {
			logger.Warn("Failed to load config", "path", opts.Config, "error", configErr)
		}

		spec, err := cmd.ServerSpec(cmd.ServerOptions{
			Command:    opts.ServerCommand,
			ExtraEnv:   opts.ServerEnv,
			BrowserEnv: opts.ServerBrowserEnv,
			LogEnv:     opts.ServerLogEnv,
			LogLevel:   opts.ServerLogLevel,
		})

		gracefulTimeout, durErr := time.ParseDuration(opts.ServerGracefulTimeout)
		if durErr != nil || gracefulTimeout <= 0 {
			gracefulTimeout = 5 * time.Second
		}

		// Event bus shared by the supervisor, the notifier target and the bridge
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.LogEntryToEvent(entry))
		})

		cell := portcell.New()
		ui := notifier.New(time.Duration(opts.NotifierSettleDelayMs)*time.Millisecond, logging.GetLogger("notifier"))

		sup := supervisor.New(supervisor.Options{
			Spec:           spec,
			ProcessOptions: []process.Option{process.WithGracefulTimeout(gracefulTimeout)},
			Cell:           cell,
			Parser:         readiness.NewParser(opts.ReadinessMarker),
			Notifier:       ui,
			EventBus:       eventBus,
			Logger:         logging.GetLogger("supervisor"),
			OutputLogger:   logging.GetLogger("server"),
			OutputParser:   supervisor.ParseRustLogLevel(slog.LevelInfo),
			NotifySystemd:  true,
		})

		var server *api.Server
		if opts.BridgeEnabled {
			apiOpts := &api.Options{
				EventBus:   eventBus,
				Query:      query.NewEndpoint(cell, notifier.LoopbackHost),
				Supervisor: sup,
				Notifier:   ui,
				ServeUI:    true,
			}
			if opts.MetricsEnabled {
				apiOpts.MetricsHandler = metrics.HTTPHandler()
			}
			server = api.NewServer(apiOpts)
		}

		// Reload log levels when the config file changes
		watcher := config.NewConfigWatcher(opts.Config, config.ReadLoggingConfig, logging.GetLogger("config"),
			config.WithErrorHandler[logging.Config](func(err error) {
				logger.Warn("Failed to reload logging config", "error", err)
			}))
		watcher.OnReload(func(cfg logging.Config) {
			logging.SetLevels(cfg.Level, cfg.Modules)
			logger.Info("Logging levels reloaded", "level", cfg.Level)
		})

		ctx, cancel := context.WithCancel(context.Background())
		var stopping atomic.Bool

		hooks.OnStart(func() {
			if err != nil {
				logger.Error("Invalid server configuration", "error", err)
				os.Exit(1)
			}

			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Config watcher disabled", "path", opts.Config, "error", watchErr)
			}

			if server != nil {
				ln, listenErr := net.Listen("tcp", opts.BridgeAddr)
				if listenErr != nil {
					logger.Error("Failed to start bridge", "addr", opts.BridgeAddr, "error", listenErr)
					os.Exit(1)
				}
				logger.Info("Starting bridge", "addr", ln.Addr().String())
				go func() {
					if serveErr := server.Serve(ln); serveErr != nil {
						logger.Error("Bridge stopped", "error", serveErr)
					}
				}()
			}

			if startErr := sup.Start(ctx); startErr != nil {
				var spawnErr *process.SpawnError
				if errors.As(startErr, &spawnErr) {
					logger.Error("Cannot launch backend", "path", spawnErr.Path, "error", spawnErr.Err)
				}
				os.Exit(1)
			}

			res := sup.Wait()
			if stopping.Load() {
				return
			}

			shutdown(server, watcher, logger)
			switch {
			case res.ExitCode < 0:
				os.Exit(1)
			case res.ExitCode > 0:
				os.Exit(res.ExitCode)
			}
		})

		hooks.OnStop(func() {
			stopping.Store(true)
			logger.Info("Shutting down")
			cancel()

			select {
			case <-sup.Done():
			case <-time.After(gracefulTimeout + 2*time.Second):
				logger.Warn("Backend did not exit in time")
			}

			shutdown(server, watcher, logger)
		})
	})

	cli.Root().Use = "sidecar"
	cli.Root().Short = "Desktop sidecar host for a local backend server"
	cli.Root().Version = version.Long()
	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateHeadlessCmd())

	cli.Run()
}

func shutdown(server *api.Server, watcher *config.Watcher[logging.Config], logger logging.Logger) {
	if server != nil {
		if err := server.Stop(); err != nil {
			logger.Error("Error stopping bridge", "error", err)
		}
	}
	if err := watcher.Stop(); err != nil {
		logger.Debug("Error stopping config watcher", "error", err)
	}
}
