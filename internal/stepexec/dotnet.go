package stepexec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/process"
)

var dotnetContainerCommands = map[string]bool{
	"restore": true, "build": true, "test": true, "publish": true, "run": true, "pack": true,
}

var dotnetHostCommands = map[string]bool{
	"restore": true, "build": true, "test": true, "publish": true, "run": true, "pack": true, "clean": true,
}

func dotnetConfigurationAllowed(cmd string) bool {
	switch cmd {
	case "build", "test", "publish", "pack", "run":
		return true
	default:
		return false
	}
}

func dotnetOutputAllowed(cmd string) bool {
	return cmd == "publish" || cmd == "pack"
}

// dotnetCommandLine builds `dotnet <cmd> [project] [--configuration X]
// [--output Y] [arguments]`, per spec.md §4.3 "dotnet".
func dotnetCommandLine(cmd, project, configuration, outputPath, arguments string) []string {
	args := []string{"dotnet", cmd}
	if project != "" {
		args = append(args, project)
	}
	if configuration != "" && dotnetConfigurationAllowed(cmd) {
		args = append(args, "--configuration", configuration)
	}
	if outputPath != "" && dotnetOutputAllowed(cmd) {
		args = append(args, "--output", outputPath)
	}
	if arguments != "" {
		args = append(args, strings.Fields(arguments)...)
	}
	return args
}

func hasGlobChars(s string) bool {
	return strings.ContainsAny(s, "*?")
}

func dotnetInputs(step *model.Step) (command, projects, configuration, arguments, outputPath string) {
	command, _ = step.WithValue("command")
	if command == "" {
		command = "build"
	}
	projects, _ = step.WithValue("projects")
	configuration, _ = step.WithValue("configuration")
	arguments, _ = step.WithValue("arguments")
	outputPath, _ = step.WithValue("outputpath")
	return
}

type dotnetContainer struct{}

func (dotnetContainer) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.ExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	command, projects, configuration, arguments, outputPath := dotnetInputs(step)
	if !dotnetContainerCommands[command] {
		return failedResult(step.Name, fmt.Sprintf("unsupported dotnet command %q", command), start, svc.Masker), nil
	}

	workDir := containerWorkingDir(ec.ContainerWorkspace, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)

	if !probeContainerTool(ctx, svc, ec.ContainerID, "dotnet") {
		return failedResult(step.Name, "dotnet is not available in the target image", start, svc.Masker), nil
	}

	matched := []string{projects}
	if projects != "" && hasGlobChars(projects) {
		findCmd := buildFindCommand(workDir, projects)
		res, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, []string{"sh", "-c", findCmd}, "", env)
		if err != nil {
			return failedResult(step.Name, err.Error(), start, svc.Masker), nil
		}
		matched = splitNonEmptyLines(res.Stdout)
		if len(matched) == 0 {
			return failedResult(step.Name, fmt.Sprintf("no projects matched pattern %q", projects), start, svc.Masker), nil
		}
	}

	var out, errOut string
	exitCode := 0
	for _, proj := range matched {
		args := dotnetCommandLine(command, proj, configuration, outputPath, arguments)
		res, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, args, workDir, env)
		if err != nil {
			return failedResult(step.Name, err.Error(), start, svc.Masker), nil
		}
		out += res.Stdout
		errOut += res.Stderr
		if res.ExitCode != 0 {
			exitCode = res.ExitCode
			break
		}
	}
	return maskedResult(step.Name, exitCode == 0, exitCode, out, errOut, start, time.Now(), svc.Masker), nil
}

type dotnetHost struct{}

func (dotnetHost) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.HostExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	command, projects, configuration, arguments, outputPath := dotnetInputs(step)
	if !dotnetHostCommands[command] {
		return failedResult(step.Name, fmt.Sprintf("unsupported dotnet command %q", command), start, svc.Masker), nil
	}

	workDir := hostWorkingDir(ec.WorkspacePath, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)

	if !process.IsToolAvailable(ctx, "dotnet") {
		return failedResult(step.Name, "dotnet is not available on the host", start, svc.Masker), nil
	}

	matched := []string{projects}
	if projects != "" && hasGlobChars(projects) {
		found, err := doublestar.Glob(os.DirFS(workDir), projects)
		if err != nil {
			return failedResult(step.Name, err.Error(), start, svc.Masker), nil
		}
		sort.Strings(found)
		matched = found
		if len(matched) == 0 {
			return failedResult(step.Name, fmt.Sprintf("no projects matched pattern %q", projects), start, svc.Masker), nil
		}
		for i, m := range matched {
			matched[i] = filepath.Join(workDir, m)
		}
	}

	var out, errOut string
	exitCode := 0
	for _, proj := range matched {
		args := dotnetCommandLine(command, proj, configuration, outputPath, arguments)
		res, err := process.Run(ctx, process.Config{Command: args[0], Args: args[1:], WorkDir: workDir, Env: env})
		if err != nil {
			return failedResult(step.Name, err.Error(), start, svc.Masker), nil
		}
		out += res.Stdout
		errOut += res.Stderr
		if res.ExitCode != 0 {
			exitCode = res.ExitCode
			break
		}
	}
	return maskedResult(step.Name, exitCode == 0, exitCode, out, errOut, start, time.Now(), svc.Masker), nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
