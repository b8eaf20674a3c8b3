package stepexec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/process"
)

// dockerCommandLine builds the argv for a docker step from its named
// inputs, per spec.md §4.3 "docker (step)".
func dockerCommandLine(command string, with map[string]string) ([]string, error) {
	get := func(key string) string { return with[key] }

	switch command {
	case "build":
		dockerContext := get("context")
		if dockerContext == "" {
			dockerContext = "."
		}
		args := []string{"docker", "build"}
		if dockerfile := get("dockerfile"); dockerfile != "" {
			args = append(args, "-f", dockerfile)
		}
		if tags := get("tags"); tags != "" {
			for _, tag := range strings.Split(tags, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					args = append(args, "-t", tag)
				}
			}
		}
		if buildArgs := get("buildargs"); buildArgs != "" {
			for _, kv := range strings.Split(buildArgs, ",") {
				if kv = strings.TrimSpace(kv); kv != "" {
					args = append(args, "--build-arg", kv)
				}
			}
		}
		if target := get("target"); target != "" {
			args = append(args, "--target", target)
		}
		return append(args, dockerContext), nil

	case "tag":
		source := get("sourceimage")
		target := get("targettag")
		if source == "" || target == "" {
			return nil, fmt.Errorf("stepexec: docker tag requires sourceImage and targetTag")
		}
		return []string{"docker", "tag", source, target}, nil

	case "run":
		image := get("image")
		if image == "" {
			return nil, fmt.Errorf("stepexec: docker run requires image")
		}
		args := []string{"docker", "run", image}
		if arguments := get("arguments"); arguments != "" {
			args = append(args, strings.Fields(arguments)...)
		}
		return args, nil

	case "push":
		image := get("image")
		if image == "" {
			return nil, fmt.Errorf("stepexec: docker push requires image")
		}
		return []string{"docker", "push", image}, nil

	default:
		return nil, fmt.Errorf("stepexec: unsupported docker command %q", command)
	}
}

func lowercasedWith(step *model.Step) map[string]string {
	out := make(map[string]string, len(step.With))
	for k, v := range step.With {
		out[strings.ToLower(k)] = v
	}
	return out
}

// dockerDisplayOutput merges stderr into stdout on success, per spec.md §9
// "Docker stderr": docker writes progress there even on success.
func dockerDisplayOutput(success bool, stdout, stderr string) string {
	if success && stderr != "" {
		return stdout + stderr
	}
	return stdout
}

type dockerContainer struct{}

func (dockerContainer) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.ExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	command, _ := step.WithValue("command")
	workDir := containerWorkingDir(ec.ContainerWorkspace, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)

	if !probeContainerTool(ctx, svc, ec.ContainerID, "docker") {
		return failedResult(step.Name, "docker is not available in the target image", start, svc.Masker), nil
	}

	args, err := dockerCommandLine(command, lowercasedWith(step))
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	res, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, args, workDir, env)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	success := res.ExitCode == 0
	return maskedResult(step.Name, success, res.ExitCode, dockerDisplayOutput(success, res.Stdout, res.Stderr), res.Stderr, start, time.Now(), svc.Masker), nil
}

type dockerHost struct{}

func (dockerHost) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.HostExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	command, _ := step.WithValue("command")
	workDir := hostWorkingDir(ec.WorkspacePath, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)

	if !process.IsToolAvailable(ctx, "docker") {
		return failedResult(step.Name, "docker is not available on the host", start, svc.Masker), nil
	}

	args, err := dockerCommandLine(command, lowercasedWith(step))
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	res, err := process.Run(ctx, process.Config{Command: args[0], Args: args[1:], WorkDir: workDir, Env: env})
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	success := res.ExitCode == 0
	return maskedResult(step.Name, success, res.ExitCode, dockerDisplayOutput(success, res.Stdout, res.Stderr), res.Stderr, start, time.Now(), svc.Masker), nil
}
