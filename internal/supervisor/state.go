package supervisor

// State is the lifecycle state of one supervised backend.
type State string

// Supervisor states.
const (
	StateStarting   State = "starting"   // Spawning the backend
	StateRunning    State = "running"    // Running, port not yet announced
	StateReady      State = "ready"      // Running, port known
	StateTerminated State = "terminated" // Exited, killed, or failed to start
)

var allStates = []string{
	string(StateStarting),
	string(StateRunning),
	string(StateReady),
	string(StateTerminated),
}

// Result summarizes a finished supervision.
type Result struct {
	InstanceID string
	Port       uint16
	PortKnown  bool
	ExitCode   int
	Status     string
	// Err is the spawn failure, or the first process error observed while running.
	Err error
}
