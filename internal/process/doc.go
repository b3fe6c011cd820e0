// Package process spawns and observes a single child process.
//
// Spawn starts the executable with the configured environment and returns a
// Handle. Everything the child does is reported on one channel as a tagged
// event:
//
//   - OutputLine for each line on stdout or stderr, in order per stream
//   - ProcessError when reading output or reaping fails; an over-long line is
//     skipped and the stream keeps going
//   - Terminated exactly once, last, after which the channel is closed
//
// There is no ordering between the two output streams.
//
// Terminate stops the child gracefully (SIGINT to its process group) and
// escalates to SIGKILL after a timeout. It does not block; the exit shows up
// as Terminated like any other exit.
//
// Example:
//
//	h, err := process.Spawn(process.Spec{
//	    Path: "./server",
//	    Env:  map[string]string{"DISABLE_BROWSER_OPEN": "1"},
//	}, logger)
//	if err != nil {
//	    return err // *process.SpawnError
//	}
//	for ev := range h.Events() {
//	    switch e := ev.(type) {
//	    case process.OutputLine:
//	        fmt.Println(e.Stream, e.Text)
//	    case process.Terminated:
//	        fmt.Println("exit", e.ExitCode)
//	    }
//	}
package process
