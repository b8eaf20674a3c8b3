// Package stepexec implements the Step Executor strategy layer of
// spec.md §4.3: one executor per step kind, in two parallel families
// (container-targeted, host-targeted) sharing the same factory contract,
// per spec.md §9 "Strategy family (step executors)".
//
// Grounded on the teacher's internal/act/runner.go for the general shape
// of "build a command line, run it, capture streams, turn the result into
// a typed outcome" and on internal/runner/config.go's explicit-services
// wiring (no IoC container) for how Services is threaded through.
package stepexec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/localpdk/pdk/internal/artifact"
	"github.com/localpdk/pdk/internal/container"
	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/secret"
	"github.com/localpdk/pdk/internal/variables"
)

// Services bundles the long-lived singletons every step executor needs,
// built once at process start and passed in, per spec.md §9 "Dependency
// injection": no IoC container, an explicit services record instead.
type Services struct {
	Containers *container.Manager
	Artifacts  *artifact.Engine
	Masker     *secret.Masker
	Resolver   *variables.Resolver
}

// ContainerExecutor runs one step kind inside a running container.
type ContainerExecutor interface {
	Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.ExecutionContext) (*model.StepExecutionResult, error)
}

// HostExecutor runs one step kind directly on the host.
type HostExecutor interface {
	Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.HostExecutionContext) (*model.StepExecutionResult, error)
}

// UnsupportedStepKind is raised by the factory when no executor is
// registered for a step's kind, per spec.md §4.3 "throws UnsupportedStepKind".
type UnsupportedStepKind struct {
	Kind model.StepKind
}

func (e *UnsupportedStepKind) Error() string {
	return fmt.Sprintf("stepexec: unsupported step kind %q", e.Kind)
}

var containerExecutors = map[model.StepKind]ContainerExecutor{
	model.StepKindCheckout:         checkoutContainer{},
	model.StepKindScript:           scriptContainer{},
	model.StepKindPwsh:             pwshContainer{},
	model.StepKindDotnet:           dotnetContainer{},
	model.StepKindNpm:              npmContainer{},
	model.StepKindDocker:           dockerContainer{},
	model.StepKindUploadArtifact:   uploadArtifactContainer{},
	model.StepKindDownloadArtifact: downloadArtifactContainer{},
}

var hostExecutors = map[model.StepKind]HostExecutor{
	model.StepKindCheckout:         checkoutHost{},
	model.StepKindScript:           scriptHost{},
	model.StepKindPwsh:             pwshHost{},
	model.StepKindDotnet:           dotnetHost{},
	model.StepKindNpm:              npmHost{},
	model.StepKindDocker:           dockerHost{},
	model.StepKindUploadArtifact:   uploadArtifactHost{},
	model.StepKindDownloadArtifact: downloadArtifactHost{},
}

func normalizeKind(kind model.StepKind) model.StepKind {
	return model.StepKind(strings.ToLower(string(kind)))
}

// ContainerExecutorFor resolves kind (case-insensitive) to a ContainerExecutor.
func ContainerExecutorFor(kind model.StepKind) (ContainerExecutor, error) {
	e, ok := containerExecutors[normalizeKind(kind)]
	if !ok {
		return nil, &UnsupportedStepKind{Kind: kind}
	}
	return e, nil
}

// HostExecutorFor resolves kind (case-insensitive) to a HostExecutor.
func HostExecutorFor(kind model.StepKind) (HostExecutor, error) {
	e, ok := hostExecutors[normalizeKind(kind)]
	if !ok {
		return nil, &UnsupportedStepKind{Kind: kind}
	}
	return e, nil
}

// mergeEnv merges step env over job env, step winning on conflicts, per
// spec.md §4.5 step 4 "merges step environment (step wins)".
func mergeEnv(jobEnv, stepEnv map[string]string) map[string]string {
	out := make(map[string]string, len(jobEnv)+len(stepEnv))
	for k, v := range jobEnv {
		out[k] = v
	}
	for k, v := range stepEnv {
		out[k] = v
	}
	return out
}

// maskedResult builds a StepExecutionResult with Output/ErrOutput passed
// through the masker, per spec.md §3 invariant "every string written to
// any result field passes through the masker".
func maskedResult(stepName string, success bool, exitCode int, stdout, stderr string, start, end time.Time, masker *secret.Masker) *model.StepExecutionResult {
	if masker == nil {
		masker = secret.NewMasker()
	}
	return &model.StepExecutionResult{
		StepName:  stepName,
		Success:   success,
		ExitCode:  exitCode,
		Output:    masker.Mask(stdout),
		ErrOutput: masker.Mask(stderr),
		StartTime: start,
		EndTime:   end,
	}
}

// failedResult builds a StepExecutionResult for a step that never reached
// the target (e.g. a missing tool or a malformed input), exit code -1 per
// spec.md §3 "internal failure".
func failedResult(stepName, message string, start time.Time, masker *secret.Masker) *model.StepExecutionResult {
	return maskedResult(stepName, false, model.ExitInternalFailure, "", message, start, time.Now(), masker)
}

// shellQuotedHeredoc wraps script in a single-quoted heredoc write
// targeting path, per spec.md §9 "Heredoc script delivery": the quoted
// delimiter means no expansion happens at write time, so the script body
// crosses the container boundary byte-for-byte.
func shellQuotedHeredoc(path, delimiter, script string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cat <<'%s' > %s\n", delimiter, path)
	b.WriteString(script)
	if !strings.HasSuffix(script, "\n") {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s\n", delimiter)
	return b.String()
}

// probeContainerTool checks whether name is on PATH inside containerID.
func probeContainerTool(ctx context.Context, svc *Services, containerID, name string) bool {
	res, err := svc.Containers.ExecuteCommand(ctx, containerID, []string{"sh", "-c", "command -v " + name}, "", nil)
	return err == nil && res.ExitCode == 0
}
