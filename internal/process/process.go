package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultGracefulTimeout = 5 * time.Second
	defaultKillTimeout     = 5 * time.Second

	// Longer output lines are skipped and reported as bufio.ErrTooLong.
	maxLineSize = 1024 * 1024

	eventBufferSize = 256
)

// Spec describes the child to launch.
type Spec struct {
	Path string
	Args []string
	// Env is added on top of the parent environment; entries here win.
	Env map[string]string
	Dir string
}

// Option configures a Handle.
type Option func(*Handle)

// WithGracefulTimeout sets how long Terminate waits after SIGINT before SIGKILL.
func WithGracefulTimeout(d time.Duration) Option {
	return func(h *Handle) {
		if d > 0 {
			h.gracefulTimeout = d
		}
	}
}

// WithKillTimeout sets how long to wait for the process to disappear after SIGKILL.
func WithKillTimeout(d time.Duration) Option {
	return func(h *Handle) {
		if d > 0 {
			h.killTimeout = d
		}
	}
}

// Handle is a running child process.
type Handle struct {
	cmd             *exec.Cmd
	events          chan Event
	done            chan struct{}
	terminating     atomic.Bool
	logger          *slog.Logger
	gracefulTimeout time.Duration
	killTimeout     time.Duration
}

// Spawn starts the child described by spec. If the executable cannot be
// located or started it returns a *SpawnError and no process exists.
//
// The caller must drain Events until it is closed.
func Spawn(spec Spec, logger *slog.Logger, opts ...Option) (*Handle, error) {
	if strings.TrimSpace(spec.Path) == "" {
		return nil, &SpawnError{Path: spec.Path, Err: errors.New("empty command")}
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = buildEnv(os.Environ(), spec.Env)
	setProcGroupAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: err}
	}

	h := &Handle{
		cmd:             cmd,
		events:          make(chan Event, eventBufferSize),
		done:            make(chan struct{}),
		logger:          logger,
		gracefulTimeout: defaultGracefulTimeout,
		killTimeout:     defaultKillTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}

	logger.Info("Process started", "pid", cmd.Process.Pid, "path", spec.Path, "args", spec.Args)

	var streams sync.WaitGroup
	streams.Add(2)
	go func() {
		defer streams.Done()
		h.scan(stdout, Stdout)
	}()
	go func() {
		defer streams.Done()
		h.scan(stderr, Stderr)
	}()
	go h.reap(&streams)

	return h, nil
}

// Events returns the event channel. Terminated is always the final event.
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Pid returns the child's process ID.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Terminate asks the child to exit and force-kills it if it has not exited
// within the graceful timeout. It returns immediately. Calling it more than
// once, or after exit, is a no-op.
func (h *Handle) Terminate() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	if !h.terminating.CompareAndSwap(false, true) {
		return nil
	}

	h.logger.Info("Sending SIGINT to process", "pid", h.Pid())
	if err := interruptGroup(h.cmd.Process); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		h.logger.Warn("Failed to send SIGINT, killing", "error", err)
		go h.forceKill()
		return err
	}

	go h.escalate()
	return nil
}

// escalate force-kills the child if it outlives the graceful timeout.
func (h *Handle) escalate() {
	timer := time.NewTimer(h.gracefulTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return
	case <-timer.C:
	}

	h.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", h.gracefulTimeout)
	h.forceKill()
}

func (h *Handle) forceKill() {
	if err := killGroup(h.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		h.logger.Error("Failed to kill process", "error", err)
	}

	select {
	case <-h.done:
	case <-time.After(h.killTimeout):
		h.logger.Error("Process did not exit after kill signal", "pid", h.Pid())
	}
}

// scan forwards every line of r as an OutputLine. A line longer than
// maxLineSize is reported as a ProcessError and skipped; scanning resumes
// at the next line.
func (h *Handle) scan(r io.Reader, stream Stream) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	tooLong := false

	for {
		frag, isPrefix, err := reader.ReadLine()
		if err != nil {
			if len(line) > 0 && !tooLong {
				h.events <- OutputLine{Stream: stream, Text: string(line)}
			}
			if !errors.Is(err, io.EOF) {
				h.events <- ProcessError{Stream: stream, Err: err}
				// Keep the pipe drained so the child never blocks writing to it.
				_, _ = io.Copy(io.Discard, r)
			}
			return
		}

		if !tooLong {
			if len(line)+len(frag) > maxLineSize {
				tooLong = true
				line = line[:0]
				h.events <- ProcessError{
					Stream: stream,
					Err:    fmt.Errorf("line exceeds %d bytes, skipped: %w", maxLineSize, bufio.ErrTooLong),
				}
			} else {
				line = append(line, frag...)
			}
		}
		if isPrefix {
			continue
		}

		if !tooLong {
			h.events <- OutputLine{Stream: stream, Text: strings.TrimSuffix(string(line), "\r")}
		}
		line = line[:0]
		tooLong = false
	}
}

// reap waits for both streams to hit EOF, then collects the exit status.
// os/exec requires all pipe reads to finish before Wait.
func (h *Handle) reap(streams *sync.WaitGroup) {
	streams.Wait()
	waitErr := h.cmd.Wait()

	term := Terminated{ExitCode: -1}
	if ps := h.cmd.ProcessState; ps != nil {
		term.ExitCode = ps.ExitCode()
		term.Status = ps.String()
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		h.events <- ProcessError{Err: waitErr}
		if term.Status == "" {
			term.Status = waitErr.Error()
		}
	}

	close(h.done)
	h.events <- term
	close(h.events)
}

// buildEnv returns base with overrides applied in a stable order.
func buildEnv(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := overrides[key]; overridden {
			continue
		}
		env = append(env, kv)
	}
	for _, key := range slices.Sorted(maps.Keys(overrides)) {
		env = append(env, key+"="+overrides[key])
	}
	return env
}
