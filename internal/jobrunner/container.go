// Package jobrunner implements the two Job Runners of spec.md §4.5/§4.6:
// a container-backed runner that creates one ephemeral container per job,
// and a host-backed runner that drives steps as direct child processes.
// Both share the step ordering, continue-on-error, and masking rules of
// §4.5 step 4 and the job-level timeout of SPEC_FULL.md §4 (a single
// context.WithTimeout owned by the job runner, grounded on the teacher's
// internal/runner/timeout.go single-owner style).
package jobrunner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/localpdk/pdk/internal/container"
	"github.com/localpdk/pdk/internal/debug"
	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdkconfig"
	"github.com/localpdk/pdk/internal/progress"
	"github.com/localpdk/pdk/internal/stepexec"
)

// ContainerRunner runs a Job's steps inside one ephemeral container, per
// spec.md §4.5.
type ContainerRunner struct {
	Services *stepexec.Services
	Config   *pdkconfig.Config
	Reporter progress.Reporter
}

const defaultContainerWorkspace = "/workspace"

// RunJob executes job against hostWorkspace, pulling the job's image if
// needed, creating a container, running steps in order, and always
// removing the container on the way out.
func (r *ContainerRunner) RunJob(ctx context.Context, job *model.Job, hostWorkspace string) (*model.JobExecutionResult, error) {
	start := time.Now()
	result := &model.JobExecutionResult{JobName: job.Name, StartTime: start}

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	image, ok := r.Config.ImageFor(job.RunsOn)
	if !ok {
		result.Error = fmt.Sprintf("no image mapping for runner label %q", job.RunsOn)
		result.EndTime = time.Now()
		return result, nil
	}

	if r.Reporter != nil {
		r.Reporter.OnJobStart(job.Name)
	}
	debug.Log("jobrunner(container): job %s runner=%s image=%s", job.Name, job.RunsOn, image)

	if err := r.Services.Containers.PullImageIfNeeded(ctx, image, func(line string) {
		if r.Reporter != nil {
			r.Reporter.OnPullProgress(image, line)
		}
	}); err != nil {
		result.Error = err.Error()
		result.EndTime = time.Now()
		return result, nil
	}

	builtinEnv := map[string]string{
		"WORKSPACE": defaultContainerWorkspace,
		"JOB_NAME":  job.Name,
		"RUNNER":    job.RunsOn,
	}
	jobEnv := mergeMaps(builtinEnv, job.Env)

	containerID, err := r.Services.Containers.CreateContainer(ctx, containerName(job), image, container.CreateOptions{
		Mounts:      map[string]string{hostWorkspace: defaultContainerWorkspace},
		Env:         jobEnv,
		MemoryLimit: r.Config.Container.MemoryLimitMB * 1024 * 1024,
		CPULimit:    r.Config.Container.CPULimit,
		NetworkMode: r.Config.Container.NetworkMode,
	})
	if err != nil {
		result.Error = err.Error()
		result.EndTime = time.Now()
		return result, nil
	}
	defer func() {
		if rmErr := r.Services.Containers.RemoveContainer(context.Background(), containerID); rmErr != nil {
			debug.Log("jobrunner(container): removing container %s: %v", containerID, rmErr)
		}
	}()

	jobMeta := model.JobMetadata{JobName: job.Name, JobID: job.ID, Runner: job.RunsOn}

	success := true
	for _, step := range job.Steps {
		stepStart := time.Now()
		if r.Reporter != nil {
			r.Reporter.OnStepStart(job.Name, step.Name)
		}

		executor, err := stepexec.ContainerExecutorFor(step.Kind)
		if err != nil {
			stepResult := &model.StepExecutionResult{
				StepName: step.Name, Success: false, ExitCode: model.ExitInternalFailure,
				ErrOutput: err.Error(), StartTime: stepStart, EndTime: time.Now(),
			}
			result.Steps = append(result.Steps, stepResult)
			success = false
			if result.Error == "" {
				result.Error = failureMessage(step.Name, stepResult)
			}
			if !step.ContinueOnError {
				break
			}
			continue
		}

		ec := &model.ExecutionContext{
			ContainerID:        containerID,
			HostWorkspacePath:  hostWorkspace,
			ContainerWorkspace: defaultContainerWorkspace,
			WorkingDirectory:   ".",
			Env:                jobEnv,
			Job:                jobMeta,
		}

		stepResult, err := executor.Execute(ctx, r.Services, step, ec)
		if err != nil {
			stepResult = &model.StepExecutionResult{
				StepName: step.Name, Success: false, ExitCode: model.ExitInternalFailure,
				ErrOutput: err.Error(), StartTime: stepStart, EndTime: time.Now(),
			}
		}
		result.Steps = append(result.Steps, stepResult)

		if r.Reporter != nil {
			r.Reporter.OnStepComplete(job.Name, step.Name, stepResult.Success, stepResult.Duration())
		}

		if !stepResult.Success {
			success = false
			if result.Error == "" {
				result.Error = failureMessage(step.Name, stepResult)
			}
			if !step.ContinueOnError {
				break
			}
		}
	}

	result.Success = success
	result.EndTime = time.Now()
	if r.Reporter != nil {
		r.Reporter.OnJobComplete(job.Name, result.Success, result.Duration())
	}
	return result, nil
}

func containerName(job *model.Job) string {
	return fmt.Sprintf("pdk-%s-%s", job.ID, uuid.NewString()[:8])
}

// failureMessage renders the message recorded on JobExecutionResult.Error
// when a step fails, per spec.md §8 scenario 3 ("result.error-message is
// non-empty"). Prefers the step's own stderr/diagnostic output; falls back
// to a generic exit-code message when the step produced none.
func failureMessage(stepName string, sr *model.StepExecutionResult) string {
	if sr.ErrOutput != "" {
		return fmt.Sprintf("step %q failed: %s", stepName, sr.ErrOutput)
	}
	return fmt.Sprintf("step %q failed with exit code %d", stepName, sr.ExitCode)
}

func mergeMaps(base, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
