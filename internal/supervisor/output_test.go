package supervisor

import (
	"log/slog"
	"testing"
)

func TestParseRustLogLevel(t *testing.T) {
	parse := ParseRustLogLevel(slog.LevelInfo)

	tests := []struct {
		line string
		want slog.Level
	}{
		{"[2025-01-27T10:30:00Z ERROR server] bind failed", slog.LevelError},
		{"2025-01-27T10:30:00.123Z  WARN server::db: slow query", slog.LevelWarn},
		{"DEBUG hyper: connection closed", slog.LevelDebug},
		{"TRACE tokio: poll", slog.LevelDebug},
		{"Server running on http://127.0.0.1:54231", slog.LevelInfo},
		{"this line mentions ERROR too late to count as a level", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		level, msg := parse(tt.line)
		if level != tt.want {
			t.Errorf("level(%q) = %v, want %v", tt.line, level, tt.want)
		}
		if msg != tt.line {
			t.Errorf("msg(%q) = %q, want unchanged line", tt.line, msg)
		}
	}
}
