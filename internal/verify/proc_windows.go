//go:build windows

package verify

import "os/exec"

// setProcAttr is a no-op on Windows.
// Windows uses job objects instead of POSIX process groups.
func setProcAttr(cmd *exec.Cmd) {
}

// killProcessGroup kills only the direct child on Windows.
func killProcessGroup(pid int) error {
	return nil
}
