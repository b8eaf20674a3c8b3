package stepexec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/process"
)

var npmAllowedCommands = map[string]bool{
	"install": true, "ci": true, "build": true, "test": true, "run": true, "start": true, "publish": true,
}

// npmCommandLine builds the argv for an npm step, per spec.md §4.3 "npm":
// build->"npm run build", start->"npm start", run requires a non-empty
// script, others pass through as "npm <cmd>". Trailing arguments become
// "-- <arguments>" for run-like commands (run/build/test/start) and raw
// for the rest.
func npmCommandLine(command, script, arguments string) ([]string, error) {
	var args []string
	runLike := false

	switch command {
	case "build":
		args = []string{"npm", "run", "build"}
		runLike = true
	case "start":
		args = []string{"npm", "start"}
		runLike = true
	case "run":
		if strings.TrimSpace(script) == "" {
			return nil, fmt.Errorf("stepexec: npm run requires a non-empty script input")
		}
		args = []string{"npm", "run", script}
		runLike = true
	case "test":
		args = []string{"npm", "test"}
		runLike = true
	default:
		args = []string{"npm", command}
	}

	if arguments == "" {
		return args, nil
	}
	if runLike {
		return append(append(args, "--"), strings.Fields(arguments)...), nil
	}
	return append(args, strings.Fields(arguments)...), nil
}

func npmInputs(step *model.Step) (command, script, arguments string) {
	command, _ = step.WithValue("command")
	if command == "" {
		command = "install"
	}
	script, _ = step.WithValue("script")
	arguments, _ = step.WithValue("arguments")
	return
}

type npmContainer struct{}

func (npmContainer) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.ExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	command, script, arguments := npmInputs(step)
	if !npmAllowedCommands[command] {
		return failedResult(step.Name, fmt.Sprintf("unsupported npm command %q", command), start, svc.Masker), nil
	}
	workDir := containerWorkingDir(ec.ContainerWorkspace, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)

	if !probeContainerTool(ctx, svc, ec.ContainerID, "npm") {
		return failedResult(step.Name, "npm is not available in the target image", start, svc.Masker), nil
	}
	if !probeContainerTool(ctx, svc, ec.ContainerID, "node") {
		return failedResult(step.Name, "node is not available in the target image", start, svc.Masker), nil
	}

	args, err := npmCommandLine(command, script, arguments)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	res, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, args, workDir, env)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	return maskedResult(step.Name, res.ExitCode == 0, res.ExitCode, res.Stdout, res.Stderr, start, time.Now(), svc.Masker), nil
}

type npmHost struct{}

func (npmHost) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.HostExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	command, script, arguments := npmInputs(step)
	if !npmAllowedCommands[command] {
		return failedResult(step.Name, fmt.Sprintf("unsupported npm command %q", command), start, svc.Masker), nil
	}
	workDir := hostWorkingDir(ec.WorkspacePath, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)

	if !process.IsToolAvailable(ctx, "npm") {
		return failedResult(step.Name, "npm is not available on the host", start, svc.Masker), nil
	}

	args, err := npmCommandLine(command, script, arguments)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	res, err := process.Run(ctx, process.Config{Command: args[0], Args: args[1:], WorkDir: workDir, Env: env})
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	return maskedResult(step.Name, res.ExitCode == 0, res.ExitCode, res.Stdout, res.Stderr, start, time.Now(), svc.Masker), nil
}
