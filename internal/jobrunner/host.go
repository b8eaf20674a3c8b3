package jobrunner

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/localpdk/pdk/internal/debug"
	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdkconfig"
	"github.com/localpdk/pdk/internal/process"
	"github.com/localpdk/pdk/internal/progress"
	"github.com/localpdk/pdk/internal/stepexec"
	"github.com/localpdk/pdk/internal/variables"
)

// hostWarningOnce gates the one-time host-mode security banner across the
// whole process, per spec.md §4.6 "prints a one-time security warning
// unless config.HostModeAcknowledged is set".
var hostWarningOnce sync.Once

const hostModeWarning = `WARNING: running this job's steps directly on the host. Host mode gives
pipeline steps the same privileges as this process; no container sandbox
isolates them. Set host-mode-acknowledged in config to silence this.`

// HostRunner runs a Job's steps as direct child processes on the host, per
// spec.md §4.6.
type HostRunner struct {
	Services *stepexec.Services
	Config   *pdkconfig.Config
	Reporter progress.Reporter
}

// RunJob executes job's steps against hostWorkspace without a container.
func (r *HostRunner) RunJob(ctx context.Context, job *model.Job, hostWorkspace string) (*model.JobExecutionResult, error) {
	start := time.Now()
	result := &model.JobExecutionResult{JobName: job.Name, StartTime: start}

	if !r.Config.HostModeAcknowledged {
		hostWarningOnce.Do(func() {
			fmt.Fprintln(os.Stderr, hostModeWarning)
		})
	}

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	if r.Reporter != nil {
		r.Reporter.OnJobStart(job.Name)
	}
	debug.Log("jobrunner(host): job %s runner=%s", job.Name, job.RunsOn)

	builtinEnv := map[string]string{
		"PDK_HOST_MODE": "true",
		"PDK_JOB":       job.Name,
		"PDK_RUNNER":    job.RunsOn,
		"PDK_WORKSPACE": hostWorkspace,
	}
	jobEnv := mergeMaps(builtinEnv, job.Env)

	jobMeta := model.JobMetadata{JobName: job.Name, JobID: job.ID, Runner: job.RunsOn}

	success := true
	for _, step := range job.Steps {
		stepStart := time.Now()
		if r.Reporter != nil {
			r.Reporter.OnStepStart(job.Name, step.Name)
		}

		stepEnv := mergeMaps(jobEnv, map[string]string{"PDK_STEP": step.Name})

		executor, err := stepexec.HostExecutorFor(step.Kind)
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

		expandedStep := *step
		if expandedStep.Script != "" {
			expanded, expandErr := variables.Expand(expandedStep.Script, r.Services.Resolver)
			if expandErr != nil {
				stepResult := &model.StepExecutionResult{
					StepName: step.Name, Success: false, ExitCode: model.ExitInternalFailure,
					ErrOutput: expandErr.Error(), StartTime: stepStart, EndTime: time.Now(),
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
			expandedStep.Script = expanded
		}

		ec := &model.HostExecutionContext{
			WorkspacePath: hostWorkspace,
			Platform:      process.DetectPlatform(),
			Env:           stepEnv,
			Job:           jobMeta,
		}

		stepResult, err := executor.Execute(ctx, r.Services, &expandedStep, ec)
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
