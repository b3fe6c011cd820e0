package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/sidecar/internal/process"
)

func TestServerSpec(t *testing.T) {
	spec, err := ServerSpec(ServerOptions{
		Command:  `"./my server" --data ./data`,
		Args:     []string{"--verbose"},
		ExtraEnv: "RUST_BACKTRACE=1,RUST_LOG=trace",
	})
	if err != nil {
		t.Fatalf("ServerSpec() error = %v", err)
	}

	if spec.Path != "./my server" {
		t.Errorf("Path = %q", spec.Path)
	}
	if got := strings.Join(spec.Args, " "); got != "--data ./data --verbose" {
		t.Errorf("Args = %q", got)
	}

	want := map[string]string{
		"DISABLE_BROWSER_OPEN": "1",
		"RUST_LOG":             "info",
		"RUST_BACKTRACE":       "1",
	}
	for k, v := range want {
		if spec.Env[k] != v {
			t.Errorf("Env[%s] = %q, want %q", k, spec.Env[k], v)
		}
	}
}

func TestServerSpecCustomNames(t *testing.T) {
	spec, err := ServerSpec(ServerOptions{
		Args:       []string{"./backend", "serve"},
		BrowserEnv: "NO_BROWSER",
		LogEnv:     "LOG_LEVEL",
		LogLevel:   "debug",
	})
	if err != nil {
		t.Fatalf("ServerSpec() error = %v", err)
	}
	if spec.Path != "./backend" || len(spec.Args) != 1 || spec.Args[0] != "serve" {
		t.Errorf("spec = %+v", spec)
	}
	if spec.Env["NO_BROWSER"] != "1" || spec.Env["LOG_LEVEL"] != "debug" {
		t.Errorf("Env = %v", spec.Env)
	}
	if _, ok := spec.Env["RUST_LOG"]; ok {
		t.Error("default log variable should not be set when renamed")
	}
}

func TestServerSpecErrors(t *testing.T) {
	tests := []ServerOptions{
		{},
		{Command: `"unterminated`},
		{Command: "./server", ExtraEnv: "NOEQUALS"},
	}
	for _, o := range tests {
		if _, err := ServerSpec(o); err == nil {
			t.Errorf("ServerSpec(%+v) should fail", o)
		}
	}
}

func TestProbeCmd(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		want    string
		wantErr bool
	}{
		{"arg", []string{"Server running on http://127.0.0.1:54231"}, "", "54231", false},
		{"url", []string{"--url", "Server running on http://127.0.0.1:54231"}, "", "http://127.0.0.1:54231", false},
		{"stdin first match", nil, "Starting up...\r\nServer running on :80\r\nServer running on :81\n", "80", false},
		{"custom marker", []string{"--marker", "Listening on", "Listening on 0.0.0.0:9000"}, "", "9000", false},
		{"no match", []string{"Starting up..."}, "", "", true},
		{"malformed", nil, "Server running on http://127.0.0.1:99999\n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CreateProbeCmd()
			var out bytes.Buffer
			c.SetOut(&out)
			c.SetErr(&bytes.Buffer{})
			c.SetIn(strings.NewReader(tt.stdin))
			c.SetArgs(tt.args)

			err := c.Execute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := strings.TrimSpace(out.String()); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestRunHeadless(t *testing.T) {
	var out syncBuffer
	res, err := RunHeadless(context.Background(), HeadlessOptions{
		Server: ServerOptions{
			Args: []string{"sh", "-c", `echo "browser=$DISABLE_BROWSER_OPEN log=$RUST_LOG" >&2; echo "Server running on http://127.0.0.1:54231"; sleep 0.2`},
		},
		SettleDelay: 10 * time.Millisecond,
	}, &out)
	if err != nil {
		t.Fatalf("RunHeadless() error = %v", err)
	}

	if !res.PortKnown || res.Port != 54231 || res.ExitCode != 0 {
		t.Errorf("result = %+v", res)
	}
	if got := strings.TrimSpace(out.String()); got != "http://127.0.0.1:54231" {
		t.Errorf("output = %q", got)
	}
}

func TestRunHeadlessSpawnError(t *testing.T) {
	_, err := RunHeadless(context.Background(), HeadlessOptions{
		Server: ServerOptions{Command: "/nonexistent/server"},
	}, &bytes.Buffer{})

	var spawnErr *process.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("error = %v, want *process.SpawnError", err)
	}
}

func TestRunHeadlessCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := RunHeadless(ctx, HeadlessOptions{
			Server:          ServerOptions{Args: []string{"sh", "-c", "sleep 10"}},
			GracefulTimeout: 200 * time.Millisecond,
		}, &bytes.Buffer{})
		if err != nil {
			t.Errorf("RunHeadless() error = %v", err)
		}
		if res.PortKnown {
			t.Errorf("result = %+v", res)
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("cancellation did not stop the backend")
	}
}
