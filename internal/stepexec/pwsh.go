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

// pwshShell defaults an unset shell to pwsh; any other shell is returned
// unchanged, without validation.
func pwshShell(step *model.Step) model.Shell {
	if step.Shell == "" {
		return model.ShellPwsh
	}
	return step.Shell
}

func shellExtension(shell model.Shell) string {
	switch shell {
	case model.ShellPwsh, model.ShellPowerShell:
		return ".ps1"
	case model.ShellCmd:
		return ".cmd"
	default:
		return ".sh"
	}
}

func invokeArgs(shell model.Shell, scriptPath string) []string {
	switch shell {
	case model.ShellPwsh, model.ShellPowerShell:
		return []string{string(shell), "-File", scriptPath}
	default:
		return []string{scriptPath}
	}
}

type pwshContainer struct{}

func (pwshContainer) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.ExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	shell := pwshShell(step)
	workDir := containerWorkingDir(ec.ContainerWorkspace, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)

	if !probeContainerTool(ctx, svc, ec.ContainerID, string(shell)) {
		return failedResult(step.Name, fmt.Sprintf("%s is not available in the target image", shell), start, svc.Masker), nil
	}

	scriptPath := fmt.Sprintf("/tmp/pdk-script-%s%s", uuid.NewString(), shellExtension(shell))
	delimiter := "PDK_EOF_" + uuid.NewString()
	write := shellQuotedHeredoc(scriptPath, delimiter, step.Script)
	if res, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, []string{"sh", "-c", write}, "", env); err != nil || res.ExitCode != 0 {
		msg := "writing script into container"
		if err != nil {
			msg = err.Error()
		} else if res.Stderr != "" {
			msg = res.Stderr
		}
		return failedResult(step.Name, msg, start, svc.Masker), nil
	}

	res, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, invokeArgs(shell, scriptPath), workDir, env)
	svc.Containers.ExecuteCommand(ctx, ec.ContainerID, []string{"rm", "-f", scriptPath}, "", env) //nolint:errcheck
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	return maskedResult(step.Name, res.ExitCode == 0, res.ExitCode, res.Stdout, res.Stderr, start, time.Now(), svc.Masker), nil
}

type pwshHost struct{}

func (pwshHost) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.HostExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	shell := pwshShell(step)
	workDir := hostWorkingDir(ec.WorkspacePath, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)

	if shell != model.ShellCmd && !process.IsToolAvailable(ctx, string(shell)) {
		return failedResult(step.Name, fmt.Sprintf("%s is not available on the host", shell), start, svc.Masker), nil
	}

	body := step.Script
	switch shell {
	case model.ShellBash:
		body = "#!/bin/bash\nset -e\n" + body
	case model.ShellSh:
		body = "#!/bin/sh\nset -e\n" + body
	}

	scriptPath := filepath.Join(os.TempDir(), fmt.Sprintf("pdk-script-%s%s", uuid.NewString(), shellExtension(shell)))
	if err := os.WriteFile(scriptPath, []byte(body), 0o700); err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	defer os.Remove(scriptPath) //nolint:errcheck

	var cfg process.Config
	args := invokeArgs(shell, scriptPath)
	cfg = process.Config{Command: args[0], Args: args[1:], WorkDir: workDir, Env: env}

	res, err := process.Run(ctx, cfg)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	return maskedResult(step.Name, res.ExitCode == 0, res.ExitCode, res.Stdout, res.Stderr, start, time.Now(), svc.Masker), nil
}
