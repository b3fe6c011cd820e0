package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/sidecar/internal/logging"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startWatcher(t *testing.T, w *Watcher[logging.Config]) {
	t.Helper()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	// let the watcher settle
	time.Sleep(50 * time.Millisecond)
}

func TestConfigWatcher_ReloadsLogging(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")

	received := make(chan logging.Config, 1)
	w := NewConfigWatcher(path, ReadLoggingConfig, newTestLogger(),
		WithDebounce[logging.Config](50*time.Millisecond))
	w.OnReload(func(cfg logging.Config) { received <- cfg })
	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\nserver = \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Level != "debug" || cfg.Modules["server"] != "warn" {
			t.Errorf("got %+v", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_AtomicReplace(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")

	received := make(chan logging.Config, 1)
	w := NewConfigWatcher(path, ReadLoggingConfig, newTestLogger(),
		WithDebounce[logging.Config](50*time.Millisecond))
	w.OnReload(func(cfg logging.Config) {
		select {
		case received <- cfg:
		default:
		}
	})
	startWatcher(t, w)

	tmp := filepath.Join(filepath.Dir(path), ".sidecar.toml.swp")
	if err := os.WriteFile(tmp, []byte("[logging]\nlevel = \"error\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Level != "error" {
			t.Errorf("Level = %q, want error", cfg.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestConfigWatcher_IgnoresSiblings(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")

	var calls atomic.Int32
	w := NewConfigWatcher(path, ReadLoggingConfig, newTestLogger(),
		WithDebounce[logging.Config](20*time.Millisecond))
	w.OnReload(func(logging.Config) { calls.Add(1) })
	startWatcher(t, w)

	sibling := filepath.Join(filepath.Dir(path), "other.toml")
	if err := os.WriteFile(sibling, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("handler called %d times for a sibling file", n)
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")

	var calls atomic.Int32
	last := make(chan logging.Config, 10)
	w := NewConfigWatcher(path, ReadLoggingConfig, newTestLogger(),
		WithDebounce[logging.Config](150*time.Millisecond))
	w.OnReload(func(cfg logging.Config) {
		calls.Add(1)
		last <- cfg
	})
	startWatcher(t, w)

	for _, level := range []string{"debug", "warn", "error"} {
		if err := os.WriteFile(path, []byte("[logging]\nlevel = \""+level+"\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case cfg := <-last:
		if cfg.Level != "error" {
			t.Errorf("Level = %q, want the last write", cfg.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced reload")
	}
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
}

func TestConfigWatcher_ErrorHandlerAndUnsubscribe(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")

	errs := make(chan error, 1)
	var calls atomic.Int32
	w := NewConfigWatcher(path, ReadLoggingConfig, newTestLogger(),
		WithDebounce[logging.Config](50*time.Millisecond),
		WithErrorHandler[logging.Config](func(err error) { errs <- err }))
	unsubscribe := w.OnReload(func(logging.Config) { calls.Add(1) })
	unsubscribe()
	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("[logging\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected a parse error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
	if calls.Load() != 0 {
		t.Error("unsubscribed handler should not be called")
	}
}

func TestConfigWatcher_StartMissingDir(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "nope", "sidecar.toml"), ReadLoggingConfig, newTestLogger())
	if err := w.Start(); err == nil {
		t.Error("Start() should fail when the directory does not exist")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() after failed Start = %v", err)
	}
}

func TestConfigWatcher_StopIdempotentLoader(t *testing.T) {
	loader := func(string) (logging.Config, error) { return logging.Config{}, errors.New("unused") }
	w := NewConfigWatcher(writeConfig(t, ""), loader, newTestLogger())
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() = %v", err)
	}
}
