package validate

import (
	"context"
	"fmt"

	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdkerrors"
	"github.com/localpdk/pdk/internal/stepexec"
)

// SchemaPhase checks structural completeness: every job has a runner
// label and at least one step, every step has a name and a kind.
// Category "Schema", per spec.md §4.8.
type SchemaPhase struct{}

func (SchemaPhase) Order() int { return 0 }

func (SchemaPhase) Validate(_ context.Context, pipeline *model.Pipeline) []*pdkerrors.ValidationError {
	var errs []*pdkerrors.ValidationError
	for jobID, job := range pipeline.Jobs {
		if job.RunsOn == "" {
			errs = append(errs, &pdkerrors.ValidationError{
				Severity: pdkerrors.SeverityError, Category: "Schema", Code: "MissingRunsOn",
				Message: fmt.Sprintf("job %q has no runs-on label", job.Name), JobID: jobID,
			})
		}
		if len(job.Steps) == 0 {
			errs = append(errs, &pdkerrors.ValidationError{
				Severity: pdkerrors.SeverityWarning, Category: "Schema", Code: "EmptyJob",
				Message: fmt.Sprintf("job %q has no steps", job.Name), JobID: jobID,
			})
		}
		for i, step := range job.Steps {
			if step.Name == "" {
				errs = append(errs, &pdkerrors.ValidationError{
					Severity: pdkerrors.SeverityWarning, Category: "Schema", Code: "UnnamedStep",
					Message: "step has no name", JobID: jobID, StepIndex: i,
				})
			}
			if step.Kind == "" {
				errs = append(errs, &pdkerrors.ValidationError{
					Severity: pdkerrors.SeverityError, Category: "Schema", Code: "MissingStepKind",
					Message: fmt.Sprintf("step %q has no kind", step.Name), JobID: jobID, StepName: step.Name, StepIndex: i,
				})
			}
		}
	}
	return errs
}

// ExecutorsPhase checks that every step's Kind resolves to a container
// executor (the host family registers the same kinds) and that artifact
// steps carry an artifact definition. Category "Executors".
type ExecutorsPhase struct{}

func (ExecutorsPhase) Order() int { return 1 }

func (ExecutorsPhase) Validate(_ context.Context, pipeline *model.Pipeline) []*pdkerrors.ValidationError {
	var errs []*pdkerrors.ValidationError
	for jobID, job := range pipeline.Jobs {
		for i, step := range job.Steps {
			if _, err := stepexec.ContainerExecutorFor(step.Kind); err != nil {
				errs = append(errs, &pdkerrors.ValidationError{
					Severity: pdkerrors.SeverityError, Category: "Executors", Code: "UnsupportedStepKind",
					Message: fmt.Sprintf("step %q has unsupported kind %q", step.Name, step.Kind),
					JobID: jobID, StepName: step.Name, StepIndex: i,
					Suggestions: []string{"use one of: checkout, script, pwsh, dotnet, npm, docker, uploadartifact, downloadartifact"},
				})
			}
			if step.Kind == model.StepKindUploadArtifact || step.Kind == model.StepKindDownloadArtifact {
				if step.Artifact == nil {
					errs = append(errs, &pdkerrors.ValidationError{
						Severity: pdkerrors.SeverityError, Category: "Executors", Code: "MissingArtifactDefinition",
						Message: fmt.Sprintf("step %q is an artifact step but defines no artifact", step.Name),
						JobID: jobID, StepName: step.Name, StepIndex: i,
					})
				}
			}
		}
	}
	return errs
}

// RunnerPhase flags depends-on entries that name a job not in the
// pipeline. Runner-capability mismatches are caught at selection time, and
// an empty runs-on by SchemaPhase. Category "Runner".
type RunnerPhase struct{}

func (RunnerPhase) Order() int { return 1 }

func (RunnerPhase) Validate(_ context.Context, pipeline *model.Pipeline) []*pdkerrors.ValidationError {
	var errs []*pdkerrors.ValidationError
	for jobID, job := range pipeline.Jobs {
		for _, dep := range job.DependsOn {
			if _, ok := pipeline.Jobs[dep]; !ok {
				errs = append(errs, &pdkerrors.ValidationError{
					Severity: pdkerrors.SeverityError, Category: "Runner", Code: "UnknownDependency",
					Message: fmt.Sprintf("job %q depends on unknown job %q", job.Name, dep), JobID: jobID,
				})
			}
		}
	}
	return errs
}

// CyclePhase detects dependency cycles in the job DAG via depends-on
// edges. Category "Cycle". Runs last since a cycle makes upstream
// per-job checks moot but doesn't block them from also reporting.
type CyclePhase struct{}

func (CyclePhase) Order() int { return 2 }

func (CyclePhase) Validate(_ context.Context, pipeline *model.Pipeline) []*pdkerrors.ValidationError {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(pipeline.Jobs))
	var cyclic []string

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case done:
			return false
		case visiting:
			return true
		}
		state[id] = visiting
		job, ok := pipeline.Jobs[id]
		if ok {
			for _, dep := range job.DependsOn {
				if _, exists := pipeline.Jobs[dep]; !exists {
					continue // reported by RunnerPhase
				}
				if visit(dep) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for id := range pipeline.Jobs {
		if state[id] == unvisited && visit(id) {
			cyclic = append(cyclic, id)
		}
	}

	if len(cyclic) == 0 {
		return nil
	}
	return []*pdkerrors.ValidationError{{
		Severity: pdkerrors.SeverityError, Category: "Cycle", Code: "DependencyCycle",
		Message: fmt.Sprintf("dependency cycle detected, involving job(s): %v", cyclic),
	}}
}
