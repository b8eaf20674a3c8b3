//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup configures the command to run in its own process group
// so that killing it also reaches children the command spawns.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// afterStart is a no-op on Unix: the process group assigned by
// setupProcessGroup's Setpgid is already in effect once the process exists,
// with nothing further to attach post-Start (unlike Windows, where a job
// object must be bound to the process handle after it exists).
func afterStart(cmd *exec.Cmd) {}

// releaseJobHandle is a no-op on Unix; there is no job-object handle to
// release (see the Windows implementation).
func releaseJobHandle(cmd *exec.Cmd) {}

func killProcessGroup(pgid int, sig syscall.Signal) error {
	return syscall.Kill(-pgid, sig)
}

func getProcessGroupID(pid int) (int, error) {
	return syscall.Getpgid(pid)
}

// terminateProcess sends SIGTERM to the process group (graceful shutdown).
func terminateProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if pgid, err := getProcessGroupID(cmd.Process.Pid); err == nil {
		_ = killProcessGroup(pgid, syscall.SIGTERM)
	} else {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
}

// forceKillProcess sends SIGKILL to the process group.
func forceKillProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if pgid, err := getProcessGroupID(cmd.Process.Pid); err == nil {
		_ = killProcessGroup(pgid, syscall.SIGKILL)
	}
	_ = cmd.Process.Kill()
}
