//go:build windows

package executor

import "os/exec"

// setProcAttr is a no-op on Windows; job objects replace POSIX process
// groups there.
func setProcAttr(cmd *exec.Cmd) {
}

// killProcessGroup kills only the direct child on Windows.
func killProcessGroup(pid int) error {
	return nil
}
