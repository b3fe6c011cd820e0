package supervisor

import (
	"log/slog"
	"strings"
)

// LogParser maps a line of backend output to a log level and message.
type LogParser func(line string) (level slog.Level, msg string)

// levelTokens are the level names used by env_logger and tracing.
var levelTokens = map[string]slog.Level{
	"ERROR": slog.LevelError,
	"WARN":  slog.LevelWarn,
	"INFO":  slog.LevelInfo,
	"DEBUG": slog.LevelDebug,
	"TRACE": slog.LevelDebug,
}

// ParseRustLogLevel picks up the level from env_logger / tracing formatted
// lines, e.g. "[2025-01-27T10:30:00Z ERROR server] boom" or
// "2025-01-27T10:30:00.123Z  WARN server: slow". Lines without a level token
// are reported at fallback.
func ParseRustLogLevel(fallback slog.Level) LogParser {
	return func(line string) (slog.Level, string) {
		fields := strings.Fields(line)
		for i := 0; i < len(fields) && i < 3; i++ {
			token := strings.Trim(fields[i], "[]:")
			if level, ok := levelTokens[token]; ok {
				return level, line
			}
		}
		return fallback, line
	}
}
