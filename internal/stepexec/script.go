package stepexec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/process"
)

// scriptShell validates and defaults a script step's shell to bash, per
// spec.md §4.3 "Shell must be bash or sh; pwsh|powershell is rejected with
// a pointer to the PowerShell executor."
func scriptShell(step *model.Step) (model.Shell, error) {
	shell := step.Shell
	if shell == "" {
		shell = model.ShellBash
	}
	switch shell {
	case model.ShellBash, model.ShellSh:
		return shell, nil
	case model.ShellPwsh, model.ShellPowerShell:
		return "", fmt.Errorf("stepexec: script step cannot use shell %q — use the pwsh step kind instead", shell)
	default:
		return "", fmt.Errorf("stepexec: unsupported shell %q for script step", shell)
	}
}

type scriptContainer struct{}

func (scriptContainer) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.ExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	shell, err := scriptShell(step)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	workDir := containerWorkingDir(ec.ContainerWorkspace, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)
	scriptPath := fmt.Sprintf("/tmp/pdk-script-%s.sh", uuid.NewString())
	delimiter := "PDK_EOF_" + uuid.NewString()

	write := shellQuotedHeredoc(scriptPath, delimiter, step.Script)
	writeCmd := []string{"sh", "-c", write + "; chmod +x " + scriptPath}
	if res, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, writeCmd, "", env); err != nil || res.ExitCode != 0 {
		msg := "writing script into container"
		if err != nil {
			msg = err.Error()
		} else {
			msg = res.Stderr
		}
		return failedResult(step.Name, msg, start, svc.Masker), nil
	}

	res, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, []string{string(shell), scriptPath}, workDir, env)
	svc.Containers.ExecuteCommand(ctx, ec.ContainerID, []string{"rm", "-f", scriptPath}, "", env) //nolint:errcheck
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	return maskedResult(step.Name, res.ExitCode == 0, res.ExitCode, res.Stdout, res.Stderr, start, time.Now(), svc.Masker), nil
}

type scriptHost struct{}

func (scriptHost) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.HostExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	shell, err := scriptShell(step)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	if !process.IsToolAvailable(ctx, string(shell)) {
		return failedResult(step.Name, fmt.Sprintf("%s is not available on the host", shell), start, svc.Masker), nil
	}

	workDir := hostWorkingDir(ec.WorkspacePath, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)
	scriptPath := filepath.Join(os.TempDir(), fmt.Sprintf("pdk-script-%s.sh", uuid.NewString()))

	if err := os.WriteFile(scriptPath, []byte(step.Script), 0o700); err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	defer os.Remove(scriptPath) //nolint:errcheck

	res, err := process.Run(ctx, process.Config{Command: string(shell), Args: []string{scriptPath}, WorkDir: workDir, Env: env})
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	return maskedResult(step.Name, res.ExitCode == 0, res.ExitCode, res.Stdout, res.Stderr, start, time.Now(), svc.Masker), nil
}
