//go:build !windows

package executor

import (
	"os/exec"
	"syscall"
)

// setProcAttr enables process group creation so agent child processes can
// be killed together.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup signals the entire process group. Negative PID targets
// the group on Unix.
func killProcessGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	return syscall.Kill(-pid, syscall.SIGKILL)
}
