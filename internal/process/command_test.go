package process

import (
	"reflect"
	"testing"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"./server", []string{"./server"}},
		{"./server --port 0", []string{"./server", "--port", "0"}},
		{`sh -c "echo hello world"`, []string{"sh", "-c", "echo hello world"}},
		{`sh -c 'echo "quoted"'`, []string{"sh", "-c", `echo "quoted"`}},
		{`echo hello\ world`, []string{"echo", "hello world"}},
		{`C:\Apps\server.exe --quiet`, []string{`C:\Apps\server.exe`, "--quiet"}},
		{`server ""`, []string{"server", ""}},
		{"  server\t-v  ", []string{"server", "-v"}},
		{"", nil},
	}

	for _, tt := range tests {
		got, err := SplitCommand(tt.in)
		if err != nil {
			t.Errorf("SplitCommand(%q) error = %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitCommandUnclosedQuote(t *testing.T) {
	if _, err := SplitCommand(`echo "unclosed`); err == nil {
		t.Error("expected error for unclosed quote")
	}
}

func TestParseSpec(t *testing.T) {
	env := map[string]string{"RUST_LOG": "info"}
	spec, err := ParseSpec("./server --flag", env)
	if err != nil {
		t.Fatalf("ParseSpec() error = %v", err)
	}
	if spec.Path != "./server" || !reflect.DeepEqual(spec.Args, []string{"--flag"}) {
		t.Errorf("spec = %+v", spec)
	}
	if spec.Env["RUST_LOG"] != "info" {
		t.Errorf("Env = %v", spec.Env)
	}

	if _, err := ParseSpec("   ", nil); err == nil {
		t.Error("expected error for empty command")
	}
}
