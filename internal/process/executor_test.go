package process

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestRunRejectsEmptyCommand(t *testing.T) {
	_, err := Run(context.Background(), Config{Command: "", WorkDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestRunRejectsEmptyWorkDir(t *testing.T) {
	_, err := Run(context.Background(), Config{Command: "echo", WorkDir: ""})
	if err == nil {
		t.Fatal("expected error for empty working directory")
	}
}

func TestRunEchoHelloWorld(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a unix echo binary")
	}
	res, err := Run(context.Background(), Config{
		Command: "echo",
		Args:    []string{"Hello World"},
		WorkDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "Hello World") {
		t.Fatalf("stdout = %q, want to contain Hello World", res.Stdout)
	}
	if res.Duration <= 0 {
		t.Fatal("expected positive duration")
	}
}

func TestRunTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a unix sleep binary")
	}
	res, err := Run(context.Background(), Config{
		Command: "sleep",
		Args:    []string{"5"},
		WorkDir: t.TempDir(),
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != -1 {
		t.Fatalf("exit code = %d, want -1", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "timed out") {
		t.Fatalf("stderr = %q, want to contain 'timed out'", res.Stderr)
	}
}

func TestRunCancellation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a unix sleep binary")
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	res, err := Run(ctx, Config{
		Command: "sleep",
		Args:    []string{"5"},
		WorkDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != -2 {
		t.Fatalf("exit code = %d, want -2", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "cancelled") {
		t.Fatalf("stderr = %q, want to contain 'cancelled'", res.Stderr)
	}
}

func TestIsToolAvailable(t *testing.T) {
	if !IsToolAvailable(context.Background(), "echo") {
		t.Fatal("expected echo to be available")
	}
	if IsToolAvailable(context.Background(), "pdk-tool-that-does-not-exist") {
		t.Fatal("expected fake tool to be unavailable")
	}
}

func TestDetectPlatform(t *testing.T) {
	p := DetectPlatform()
	if p == "" {
		t.Fatal("expected non-empty platform tag")
	}
}
