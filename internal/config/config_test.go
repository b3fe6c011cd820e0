package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string `help:"Config file path"`

	Command  string            `toml:"server.command" env:"SERVER_COMMAND"`
	Args     []string          `toml:"server.args" env:"SERVER_ARGS"`
	Env      map[string]string `toml:"server.env" env:"SERVER_ENV"`
	Graceful time.Duration     `toml:"server.graceful_timeout" env:"SERVER_GRACEFUL_TIMEOUT"`
	SettleMS int               `toml:"notifier.settle_delay_ms" env:"NOTIFIER_SETTLE_DELAY_MS"`
	Port     uint16            `toml:"bridge.port" env:"BRIDGE_PORT"`
	Enabled  bool              `toml:"bridge.enabled" env:"BRIDGE_ENABLED"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sidecar.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[server]
command = "./backend --serve"
args = ["-v", 2]
graceful_timeout = "3s"

[server.env]
RUST_BACKTRACE = "1"
WORKERS = 4

[notifier]
settle_delay_ms = 150

[bridge]
port = 8091
enabled = true
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Command != "./backend --serve" {
		t.Errorf("Command = %q", opts.Command)
	}
	if !reflect.DeepEqual(opts.Args, []string{"-v", "2"}) {
		t.Errorf("Args = %v", opts.Args)
	}
	if want := map[string]string{"RUST_BACKTRACE": "1", "WORKERS": "4"}; !reflect.DeepEqual(opts.Env, want) {
		t.Errorf("Env = %v, want %v", opts.Env, want)
	}
	if opts.Graceful != 3*time.Second {
		t.Errorf("Graceful = %v", opts.Graceful)
	}
	if opts.SettleMS != 150 {
		t.Errorf("SettleMS = %d", opts.SettleMS)
	}
	if opts.Port != 8091 || !opts.Enabled {
		t.Errorf("bridge = %d %v", opts.Port, opts.Enabled)
	}
}

func TestLoadConfigDurationAsMilliseconds(t *testing.T) {
	path := writeConfig(t, "[server]\ngraceful_timeout = 250\n")
	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.Graceful != 250*time.Millisecond {
		t.Errorf("Graceful = %v, want 250ms", opts.Graceful)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("SIDECAR_SERVER_COMMAND", "env-backend")
	t.Setenv("SIDECAR_SERVER_ARGS", "a, b ,c")
	t.Setenv("SIDECAR_SERVER_ENV", "A=1, B=x=y")
	t.Setenv("SIDECAR_SERVER_GRACEFUL_TIMEOUT", "1500ms")
	t.Setenv("SIDECAR_BRIDGE_PORT", "9000")
	t.Setenv("SIDECAR_BRIDGE_ENABLED", "true")

	opts := &testOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Command != "env-backend" {
		t.Errorf("Command = %q", opts.Command)
	}
	if !reflect.DeepEqual(opts.Args, []string{"a", "b", "c"}) {
		t.Errorf("Args = %v", opts.Args)
	}
	if want := map[string]string{"A": "1", "B": "x=y"}; !reflect.DeepEqual(opts.Env, want) {
		t.Errorf("Env = %v, want %v", opts.Env, want)
	}
	if opts.Graceful != 1500*time.Millisecond {
		t.Errorf("Graceful = %v", opts.Graceful)
	}
	if opts.Port != 9000 || !opts.Enabled {
		t.Errorf("bridge = %d %v", opts.Port, opts.Enabled)
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	path := writeConfig(t, "[server]\ncommand = \"toml-backend\"\n[bridge]\nport = 8091\n")
	t.Setenv("SIDECAR_SERVER_COMMAND", "env-backend")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Command != "env-backend" {
		t.Errorf("Command = %q, want env to win", opts.Command)
	}
	if opts.Port != 8091 {
		t.Errorf("Port = %d, want TOML value", opts.Port)
	}
}

func TestLoadConfigCLIOverridesAll(t *testing.T) {
	path := writeConfig(t, "[server]\ncommand = \"toml-backend\"\n")
	t.Setenv("SIDECAR_SERVER_COMMAND", "env-backend")

	opts := &testOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.Command, "command", "", "")
	if err := cmd.Flags().Set("command", "cli-backend"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.Command != "cli-backend" {
		t.Errorf("Command = %q, want CLI value", opts.Command)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Command: "default"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if opts.Command != "default" {
		t.Errorf("Command = %q, defaults should survive", opts.Command)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     [2]string
	}{
		{"invalid toml", "[server\ncommand = 1", [2]string{}},
		{"bad duration", "[server]\ngraceful_timeout = \"soon\"\n", [2]string{}},
		{"port overflow", "[bridge]\nport = 70000\n", [2]string{}},
		{"bad env port", "", [2]string{"SIDECAR_BRIDGE_PORT", "http"}},
		{"bad env pairs", "", [2]string{"SIDECAR_SERVER_ENV", "NOVALUE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env[0] != "" {
				t.Setenv(tt.env[0], tt.env[1])
			}
			opts := &testOptions{Config: writeConfig(t, tt.content)}
			if err := LoadConfig(opts, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":           "port",
		"LoggingLevel":   "logging-level",
		"ServerCommand":  "server-command",
		"BridgeAddr":     "bridge-addr",
		"BridgeDisabled": "bridge-disabled",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseEnvPairs(t *testing.T) {
	got, err := ParseEnvPairs(" RUST_LOG=debug ,,EMPTY=")
	if err != nil {
		t.Fatalf("ParseEnvPairs() error = %v", err)
	}
	if want := map[string]string{"RUST_LOG": "debug", "EMPTY": ""}; !reflect.DeepEqual(got, want) {
		t.Errorf("ParseEnvPairs() = %v, want %v", got, want)
	}

	if _, err := ParseEnvPairs("=1"); err == nil {
		t.Error("empty key should be rejected")
	}
}

func TestParseEnvPairsCommaInValue(t *testing.T) {
	tests := []struct {
		in   string
		want map[string]string
	}{
		{"RUST_LOG=info,hyper=warn", map[string]string{"RUST_LOG": "info,hyper=warn"}},
		{"RUST_LOG=info,hyper=warn,tower=debug,RUST_BACKTRACE=1", map[string]string{
			"RUST_LOG":       "info,hyper=warn,tower=debug",
			"RUST_BACKTRACE": "1",
		}},
		{"PATHS=a,b,c", map[string]string{"PATHS": "a,b,c"}},
		{"lower=1", map[string]string{"lower": "1"}},
	}
	for _, tt := range tests {
		got, err := ParseEnvPairs(tt.in)
		if err != nil {
			t.Errorf("ParseEnvPairs(%q) error = %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseEnvPairs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "json"
http = "warn"

[logging.modules]
server = "error"
`)

	cfg, err := ReadLoggingConfig(path)
	if err != nil {
		t.Fatalf("ReadLoggingConfig() error = %v", err)
	}
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
	if want := map[string]string{"http": "warn", "server": "error"}; !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.toml")} {
		cfg := LoadLoggingConfig(path)
		if cfg.Level != "info" || cfg.Format != "text" || cfg.Modules == nil {
			t.Errorf("LoadLoggingConfig(%q) = %+v", path, cfg)
		}
	}

	bad := writeConfig(t, "[logging\n")
	if _, err := ReadLoggingConfig(bad); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("ReadLoggingConfig(bad) error = %v", err)
	}
}

func TestLoadConfigTablesIntoStrings(t *testing.T) {
	type flatOptions struct {
		Config  string
		EnvFlat string `toml:"server.env"`
		Tags    string `toml:"server.tags"`
	}
	path := writeConfig(t, "[server]\ntags = [\"a\", \"b\"]\n\n[server.env]\nZ = \"last\"\nA = 1\nRUST_LOG = \"info,hyper=warn\"\n")

	opts := &flatOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.EnvFlat != "A=1,RUST_LOG=info,hyper=warn,Z=last" {
		t.Errorf("EnvFlat = %q", opts.EnvFlat)
	}
	if opts.Tags != "a,b" {
		t.Errorf("Tags = %q", opts.Tags)
	}

	pairs, err := ParseEnvPairs(opts.EnvFlat)
	if err != nil || pairs["Z"] != "last" || pairs["RUST_LOG"] != "info,hyper=warn" {
		t.Errorf("round trip = %v, %v", pairs, err)
	}
}
