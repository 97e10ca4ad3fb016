// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout (text or JSON), to the systemd journal when journald
// is reachable, and to an in-memory history served by the HTTP API.
//
// Initialize once at startup, then ask for a module logger:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"engine": "debug",
//		},
//	})
//
//	logger := logging.GetLogger("engine")
//	logger.Debug("Run started", "pattern", "blink")
//
// Calling Initialize again re-applies levels to loggers that already exist,
// which is how the config watcher changes levels without a restart.
//
// On a Raspberry Pi running under systemd:
//
//	journalctl -t lightnode -f
//	journalctl -t lightnode MODULE=engine
//
// Example TOML:
//
//	[logging]
//	level = "info"
//	format = "text"
//	engine = "debug"
//	nats = "warn"
package logging
