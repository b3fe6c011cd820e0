// Package supervisor runs the backend sidecar and publishes its port.
//
// A Supervisor owns one child process for its whole life:
//
//	starting -> running -> ready -> terminated
//	                \_________________/^
//
// Start spawns the child synchronously, so a missing or unlaunchable
// executable is reported to the caller and no loop goroutine is started.
// The loop then reads every event from the child. Standard output is logged
// and fed to the readiness parser; the first announcement writes the shared
// port cell, moves to ready and fires the UI notifier. Later announcements are
// logged and ignored. Standard error is logged only. ProcessError events are
// logged and supervision continues. The loop keeps draining output after the
// port is known and ends only on Terminated.
//
// There is no restart policy. To stop early, cancel the Start context or
// call Stop; the child's exit arrives as a normal Terminated event.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/smazurov/sidecar/internal/events"
	"github.com/smazurov/sidecar/internal/metrics"
	"github.com/smazurov/sidecar/internal/notifier"
	"github.com/smazurov/sidecar/internal/portcell"
	"github.com/smazurov/sidecar/internal/process"
	"github.com/smazurov/sidecar/internal/readiness"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("supervisor already started")

// Notifier is told once when the port becomes known.
type Notifier interface {
	Notify(ctx context.Context, port uint16) bool
}

// Options configures a Supervisor.
type Options struct {
	Spec           process.Spec
	ProcessOptions []process.Option

	// Cell receives the discovered port. The supervisor is its only writer.
	Cell *portcell.Cell

	Parser   *readiness.Parser // nil uses the default marker
	Notifier Notifier          // nil disables UI navigation
	EventBus events.Publisher  // optional

	Logger       *slog.Logger // supervisor messages
	OutputLogger *slog.Logger // backend output, nil uses Logger
	OutputParser LogParser    // nil logs every output line at info

	// OnStateChange is called synchronously on every transition.
	OnStateChange func(from, to State)

	// NotifySystemd sends READY=1 to systemd once the port is known.
	NotifySystemd bool
}

// Supervisor manages one backend process instance.
type Supervisor struct {
	opts   Options
	id     string
	logger *slog.Logger
	output *slog.Logger

	mu     sync.RWMutex
	state  State
	handle *process.Handle

	started   atomic.Bool
	spawnedAt time.Time
	notifyWG  sync.WaitGroup
	done      chan struct{}
	result    Result
}

// New creates a supervisor. Nothing runs until Start.
func New(opts Options) *Supervisor {
	if opts.Cell == nil {
		opts.Cell = portcell.New()
	}
	if opts.Parser == nil {
		opts.Parser = readiness.NewParser(readiness.Marker)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OutputLogger == nil {
		opts.OutputLogger = opts.Logger
	}
	if opts.OutputParser == nil {
		opts.OutputParser = func(line string) (slog.Level, string) { return slog.LevelInfo, line }
	}

	id := uuid.NewString()
	return &Supervisor{
		opts:   opts,
		id:     id,
		logger: opts.Logger.With("instance_id", id),
		output: opts.OutputLogger.With("instance_id", id),
		state:  StateStarting,
		done:   make(chan struct{}),
		result: Result{InstanceID: id, ExitCode: -1},
	}
}

// ID returns the instance identifier attached to logs and events.
func (s *Supervisor) ID() string {
	return s.id
}

// Cell returns the port cell this supervisor writes.
func (s *Supervisor) Cell() *portcell.Cell {
	return s.opts.Cell
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start spawns the backend and begins supervising it in the background.
// Spawn failures are returned here, wrapped around *process.SpawnError.
// Cancelling ctx terminates the backend.
func (s *Supervisor) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.logger.Info("Starting server", "path", s.opts.Spec.Path, "args", s.opts.Spec.Args)
	s.spawnedAt = time.Now()
	h, err := process.Spawn(s.opts.Spec, s.logger, s.opts.ProcessOptions...)
	if err != nil {
		s.logger.Error("Failed to start server", "error", err)
		s.result.Err = err
		s.setState(StateTerminated)
		close(s.done)
		return fmt.Errorf("start server: %w", err)
	}

	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()

	s.setState(StateRunning)

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info("Context cancelled, stopping server")
			_ = h.Terminate()
		case <-h.Done():
		}
	}()
	go s.loop(ctx, h)

	return nil
}

// Stop terminates the backend. The loop ends once its exit is observed.
func (s *Supervisor) Stop() error {
	s.mu.RLock()
	h := s.handle
	s.mu.RUnlock()
	if h == nil {
		return nil
	}
	return h.Terminate()
}

// Done is closed when supervision has finished.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until supervision has finished and returns its result.
func (s *Supervisor) Wait() Result {
	<-s.done
	return s.result
}

// loop drains the child's events until the channel closes.
func (s *Supervisor) loop(ctx context.Context, h *process.Handle) {
	defer close(s.done)

	for ev := range h.Events() {
		switch e := ev.(type) {
		case process.OutputLine:
			s.handleOutput(ctx, e)

		case process.ProcessError:
			// Only Terminated ends supervision.
			s.logger.Error("Server process error", "error", e)
			metrics.IncProcessError(string(e.Stream))
			if s.result.Err == nil {
				s.result.Err = e
			}

		case process.Terminated:
			s.handleTerminated(e)
		}
	}

	s.notifyWG.Wait()

	if port, ok := s.opts.Cell.Get(); ok {
		s.result.Port = port
		s.result.PortKnown = true
	}
}

func (s *Supervisor) handleOutput(ctx context.Context, line process.OutputLine) {
	metrics.IncOutputLine(string(line.Stream))

	level, msg := s.opts.OutputParser(line.Text)
	s.output.Log(ctx, level, msg, "stream", string(line.Stream))

	// Readiness is only ever announced on stdout.
	if line.Stream != process.Stdout {
		return
	}

	port, ok := s.opts.Parser.Parse(line.Text)
	if !ok {
		return
	}

	switch s.State() {
	case StateRunning:
		s.markReady(ctx, port)
	case StateReady:
		known, _ := s.opts.Cell.Get()
		s.logger.Warn("Ignoring repeated readiness announcement", "port", port, "known_port", known)
	default:
		s.logger.Debug("Ignoring readiness announcement after supervision ended", "port", port)
	}
}

// markReady performs the running -> ready transition. Only the loop goroutine calls it.
func (s *Supervisor) markReady(ctx context.Context, port uint16) {
	if !s.opts.Cell.Set(port) {
		existing, _ := s.opts.Cell.Get()
		s.logger.Error("Port cell already holds a port, not publishing", "port", port, "existing", existing)
		return
	}

	elapsed := time.Since(s.spawnedAt)
	url := notifier.URL(port)
	s.logger.Info("Backend server ready", "port", port, "url", url, "startup", elapsed)

	metrics.SetPort(port)
	metrics.ObserveReadiness(elapsed)
	s.setState(StateReady)

	s.publish(events.PortReadyEvent{
		InstanceID: s.id,
		Port:       port,
		URL:        url,
		Timestamp:  time.Now().Format(time.RFC3339),
	})

	if s.opts.NotifySystemd {
		s.notifySystemd(port)
	}

	if s.opts.Notifier != nil {
		s.notifyWG.Add(1)
		go func() {
			defer s.notifyWG.Done()
			metrics.IncNavigation(s.opts.Notifier.Notify(ctx, port))
		}()
	}
}

func (s *Supervisor) handleTerminated(t process.Terminated) {
	s.result.ExitCode = t.ExitCode
	s.result.Status = t.Status
	metrics.IncExit(t.ExitCode)

	_, portKnown := s.opts.Cell.Get()
	switch {
	case !portKnown:
		s.logger.Warn("Server exited before announcing a port", "exit_code", t.ExitCode, "status", t.Status)
	case t.Success():
		s.logger.Info("Server exited", "exit_code", t.ExitCode, "status", t.Status)
	default:
		s.logger.Error("Server terminated", "exit_code", t.ExitCode, "status", t.Status)
	}

	exited := events.ProcessExitedEvent{
		InstanceID: s.id,
		ExitCode:   t.ExitCode,
		Status:     t.Status,
		Timestamp:  time.Now().Format(time.RFC3339),
	}
	if s.result.Err != nil {
		exited.Error = s.result.Err.Error()
	}
	s.publish(exited)

	s.setState(StateTerminated)
}

func (s *Supervisor) setState(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	s.logger.Debug("State changed", "from", from, "to", to)
	metrics.SetState(string(to), allStates)

	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(from, to)
	}
	s.publish(events.StateChangedEvent{
		InstanceID: s.id,
		From:       string(from),
		To:         string(to),
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

func (s *Supervisor) publish(ev events.Event) {
	if s.opts.EventBus != nil {
		s.opts.EventBus.Publish(ev)
	}
}

// notifySystemd reports readiness when running under a Type=notify unit.
func (s *Supervisor) notifySystemd(port uint16) {
	state := fmt.Sprintf("%s\nSTATUS=Backend listening on port %d", daemon.SdNotifyReady, port)
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		s.logger.Warn("Failed to notify systemd", "error", err)
	case sent:
		s.logger.Debug("Notified systemd of readiness")
	}
}
