package process

import "fmt"

// Stream identifies one of the child's output streams.
type Stream string

// Output streams.
const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Event is one observation of the child process.
// It is one of OutputLine, ProcessError or Terminated.
type Event interface {
	isEvent()
}

// OutputLine is a single line of child output without its line terminator.
type OutputLine struct {
	Stream Stream
	Text   string
}

// ProcessError reports a failure observing the child.
type ProcessError struct {
	Stream Stream // empty when not tied to a stream
	Err    error
}

// Terminated is the last event of every handle.
type Terminated struct {
	ExitCode int    // -1 when the process was killed by a signal
	Status   string // e.g. "exit status 1", "signal: killed"
}

func (OutputLine) isEvent()   {}
func (ProcessError) isEvent() {}
func (Terminated) isEvent()   {}

func (e ProcessError) Error() string {
	if e.Stream == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Stream, e.Err)
}

// Unwrap returns the underlying error.
func (e ProcessError) Unwrap() error { return e.Err }

// Success reports whether the process exited with status 0.
func (t Terminated) Success() bool { return t.ExitCode == 0 }
