// Package debug is a process-wide, mutex-guarded line logger used by the
// job runners and the run command to record decisions and lifecycle events
// without requiring a caller to thread a logger through every constructor.
//
// Adapted from the teacher's apps/go-cli/internal/debug/debug.go: same
// lock-guarded package-level file handle, same Init/Log/Close shape,
// retargeted to a workspace-rooted .pdk-debug.log and gated by an
// explicit enabled flag (the CLI sets it for --debug or PDK_DEBUG=1)
// rather than being unconditionally created on every Init call.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

// Init opens <workspace>/.pdk-debug.log for appending if enabled is true.
// Calling Init again before Close is a no-op. Init(..., false) never
// creates a file, so callers can call it unconditionally at startup.
func Init(workspace string, enabled bool) error {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || logFile != nil {
		return nil
	}

	path := filepath.Clean(filepath.Join(workspace, ".pdk-debug.log"))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // path is constructed from trusted workspace
	if err != nil {
		return fmt.Errorf("debug: opening log file: %w", err)
	}
	logFile = f
	return nil
}

// Log writes a formatted debug line. Silently dropped if Init was never
// called or was called with enabled=false.
func Log(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return
	}
	_, _ = fmt.Fprintf(logFile, format+"\n", args...)
}

// Close closes the debug log file, if open.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
