//go:build windows

package process

import (
	"os/exec"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// jobHandles tracks the Windows job object created for each running *exec.Cmd
// so that terminateProcess/forceKillProcess can tear down the whole process
// tree the step spawned, not just the direct child — the Windows analogue of
// the process-group kill setupProcessGroup/killProcessGroup give Unix.
var (
	jobMu      sync.Mutex
	jobHandles = map[*exec.Cmd]windows.Handle{}
)

// setupProcessGroup creates a job object with JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE
// set, so that closing the job's handle terminates every process still
// assigned to it. The process itself is assigned once it exists, in
// afterStart.
func setupProcessGroup(cmd *exec.Cmd) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	_, err = windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	)
	if err != nil {
		windows.CloseHandle(job) //nolint:errcheck
		return
	}

	jobMu.Lock()
	jobHandles[cmd] = job
	jobMu.Unlock()
}

// afterStart assigns the now-running process to the job object setupProcessGroup
// created for it. Must run after cmd.Start() so the process handle exists.
func afterStart(cmd *exec.Cmd) {
	jobMu.Lock()
	job, ok := jobHandles[cmd]
	jobMu.Unlock()
	if !ok || cmd.Process == nil {
		return
	}

	handle, err := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(cmd.Process.Pid))
	if err != nil {
		return
	}
	defer windows.CloseHandle(handle) //nolint:errcheck

	_ = windows.AssignProcessToJobObject(job, handle)
}

// terminateProcess tears down the whole job (and so the whole process tree)
// by closing its handle; JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE converts that
// into an immediate kill of everything still assigned to the job.
func terminateProcess(cmd *exec.Cmd) {
	if closeJob(cmd) {
		return
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// forceKillProcess is terminateProcess's escalation. Job-object teardown is
// already unconditional, so it falls back to the same path; kept distinct
// from terminateProcess so a future difference in escalation behavior has
// somewhere to go.
func forceKillProcess(cmd *exec.Cmd) {
	if closeJob(cmd) {
		return
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// releaseJobHandle closes cmd's job object once the process has already
// exited on its own, so the handle (and the map entry) don't leak across
// invocations. Safe to call after terminateProcess/forceKillProcess already
// closed it — closeJob is idempotent.
func releaseJobHandle(cmd *exec.Cmd) {
	closeJob(cmd)
}

// closeJob closes the job object registered for cmd, if any, reporting
// whether one was found.
func closeJob(cmd *exec.Cmd) bool {
	jobMu.Lock()
	job, ok := jobHandles[cmd]
	if ok {
		delete(jobHandles, cmd)
	}
	jobMu.Unlock()
	if !ok {
		return false
	}
	windows.CloseHandle(job) //nolint:errcheck
	return true
}
