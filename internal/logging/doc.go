// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Keeps the last entries in a ring buffer for the bridge's log stream
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"server": "debug", // backend output
//			"api":    "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("supervisor")
//	logger.Info("Backend server ready", "port", port)
//
// Levels can be changed later without restarting, for example when the
// config file is edited:
//
//	logging.SetLevels("debug", map[string]string{"http": "warn"})
//
// # Modules
//
//	main        startup and shutdown
//	supervisor  child lifecycle and readiness
//	server      lines the backend wrote to stdout and stderr
//	notifier    UI navigation
//	api         shell bridge
//	http        bridge request log
//	config      configuration loading and reload
//
// # Viewing Logs
//
// When running under systemd or on a system with journald:
//
//	journalctl -t sidecar -f
//	journalctl -t sidecar MODULE=server
//	journalctl -t sidecar -p err
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	server = "debug"
//	http = "warn"
package logging
