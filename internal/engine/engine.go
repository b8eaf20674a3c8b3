// Package engine schedules a Pipeline's jobs across the two Job Runners,
// per spec.md §5 "Scheduling model": job execution inside a single runner
// is sequential step-by-step, but independent jobs may run concurrently
// (DAG-parallel) up to a configured maximum fan-out, with dependent jobs
// waiting for all predecessors to finish successfully.
//
// Grounded on golang.org/x/sync/errgroup, the same bounded-fan-out
// primitive internal/validate uses for its phase groups, applied here at
// job granularity instead of validation-phase granularity.
package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdkconfig"
	"github.com/localpdk/pdk/internal/selector"
)

// JobRunner is the common surface both jobrunner.ContainerRunner and
// jobrunner.HostRunner implement.
type JobRunner interface {
	RunJob(ctx context.Context, job *model.Job, hostWorkspace string) (*model.JobExecutionResult, error)
}

// Engine runs a Pipeline's job DAG, selecting a runner per job via
// Selector and dispatching to the matching JobRunner.
type Engine struct {
	Selector         *selector.Selector
	ContainerRunner  JobRunner
	HostRunner       JobRunner
	Config           *pdkconfig.Config
	CLIRunnerType    selector.RunnerType
	MaxFanOut        int // 0 means unbounded
	HostWorkspace    string
}

// PipelineResult aggregates every job's execution result, keyed by job ID.
type PipelineResult struct {
	Jobs    map[string]*model.JobExecutionResult
	Success bool
}

// Run executes every job in pipeline, honoring DependsOn edges: a job
// starts only once all its dependencies have finished, and only if none
// of them failed (unless the caller pre-filters allowed failures into the
// job's own continue-on-error steps — a dependency itself always gates).
func (e *Engine) Run(ctx context.Context, pipeline *model.Pipeline) (*PipelineResult, error) {
	result := &PipelineResult{Jobs: make(map[string]*model.JobExecutionResult, len(pipeline.Jobs))}

	var mu sync.Mutex
	done := make(map[string]chan struct{}, len(pipeline.Jobs))
	for id := range pipeline.Jobs {
		done[id] = make(chan struct{})
	}

	// The fan-out limit is a semaphore acquired only around the actual
	// RunJob call, not around the dependency wait below — gating the
	// errgroup itself (via SetLimit) would risk a goroutine that's
	// admitted but blocked waiting on a dependency starving out the very
	// dependency it's waiting for, in a chain deeper than the limit.
	var sem chan struct{}
	if e.MaxFanOut > 0 {
		sem = make(chan struct{}, e.MaxFanOut)
	}

	g, gctx := errgroup.WithContext(ctx)

	for jobID, job := range pipeline.Jobs {
		jobID, job := jobID, job
		g.Go(func() error {
			defer close(done[jobID])

			for _, dep := range job.DependsOn {
				depDone, ok := done[dep]
				if !ok {
					return fmt.Errorf("engine: job %q depends on unknown job %q", jobID, dep)
				}
				select {
				case <-depDone:
				case <-gctx.Done():
					return gctx.Err()
				}
				mu.Lock()
				depResult := result.Jobs[dep]
				mu.Unlock()
				if depResult == nil || !depResult.Success {
					mu.Lock()
					result.Jobs[jobID] = &model.JobExecutionResult{
						JobName: job.Name,
						Success: false,
						Error:   fmt.Sprintf("dependency %q did not succeed", dep),
					}
					mu.Unlock()
					return nil
				}
			}

			runner, err := e.runnerFor(gctx, job)
			if err != nil {
				mu.Lock()
				result.Jobs[jobID] = &model.JobExecutionResult{JobName: job.Name, Success: false, Error: err.Error()}
				mu.Unlock()
				return nil
			}

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			jobResult, err := runner.RunJob(gctx, job, e.HostWorkspace)
			if err != nil {
				return err
			}
			mu.Lock()
			result.Jobs[jobID] = jobResult
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	success := true
	for _, jobResult := range result.Jobs {
		if jobResult == nil || !jobResult.Success {
			success = false
			break
		}
	}
	result.Success = success
	return result, nil
}

func (e *Engine) runnerFor(ctx context.Context, job *model.Job) (JobRunner, error) {
	selection, err := e.Selector.Select(ctx, e.CLIRunnerType, e.Config.RunnerDefault, job)
	if err != nil {
		return nil, err
	}
	if selection.Selected == pdkconfig.RunnerHost {
		return e.HostRunner, nil
	}
	return e.ContainerRunner, nil
}
