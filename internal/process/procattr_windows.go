//go:build windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcGroupAttr starts the child in a new process group.
func setProcGroupAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// Windows has no SIGINT for arbitrary processes; go straight to Kill.
func interruptGroup(p *os.Process) error { return p.Kill() }

func killGroup(p *os.Process) error { return p.Kill() }
