package events

// Event type constants for kelindar/event.
const (
	TypeStateChanged uint32 = iota + 1
	TypePortReady
	TypeNavigate
	TypeProcessExited
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StateChangedEvent is published on every supervisor state transition.
type StateChangedEvent struct {
	InstanceID string `json:"instance_id" example:"3f1c2d4e-8a7b-4c1d-9e2f-0a1b2c3d4e5f" doc:"Supervised process instance"`
	From       string `json:"from" example:"running" doc:"Previous state"`
	To         string `json:"to" example:"ready" doc:"New state"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// PortReadyEvent is published once when the backend announces its port.
type PortReadyEvent struct {
	InstanceID string `json:"instance_id" doc:"Supervised process instance"`
	Port       uint16 `json:"port" example:"54231" doc:"Discovered backend port"`
	URL        string `json:"url" example:"http://127.0.0.1:54231" doc:"Backend base URL"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Discovery timestamp"`
}

// Type returns the event type identifier for PortReadyEvent.
func (e PortReadyEvent) Type() uint32 { return TypePortReady }

// NavigateEvent tells the UI to load URL.
type NavigateEvent struct {
	URL       string `json:"url" example:"http://127.0.0.1:54231" doc:"Address the UI should load"`
	Script    string `json:"script" example:"window.location.href = 'http://127.0.0.1:54231'" doc:"Equivalent script for webview shells"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Directive timestamp"`
}

// Type returns the event type identifier for NavigateEvent.
func (e NavigateEvent) Type() uint32 { return TypeNavigate }

// ProcessExitedEvent is published when the supervised backend terminates.
type ProcessExitedEvent struct {
	InstanceID string `json:"instance_id" doc:"Supervised process instance"`
	ExitCode   int    `json:"exit_code" example:"1" doc:"Exit code, -1 when killed by a signal"`
	Status     string `json:"status" example:"exit status 1" doc:"Human readable exit status"`
	Error      string `json:"error,omitempty" doc:"Runtime error that ended supervision"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Exit timestamp"`
}

// Type returns the event type identifier for ProcessExitedEvent.
func (e ProcessExitedEvent) Type() uint32 { return TypeProcessExited }

// LogEntryEvent carries one log record to SSE clients.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"server" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
