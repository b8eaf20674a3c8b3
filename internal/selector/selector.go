// Package selector implements the Runner Selector of spec.md §4.7: given a
// CLI override, an optional config default, daemon availability, and a
// job's capability requirements, it decides whether a job runs in a
// container or directly on the host.
//
// Grounded on the teacher's internal/runner/config.go decision style
// (explicit inputs, no hidden globals) and internal/container IsDaemonAvailable
// for the daemon probe this package consumes.
package selector

import (
	"context"
	"fmt"
	"strings"

	"github.com/localpdk/pdk/internal/container"
	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdkconfig"
	"github.com/localpdk/pdk/internal/pdkerrors"
)

// RunnerType is the CLI override, per spec.md §4.7.
type RunnerType string

const (
	RunnerTypeAuto      RunnerType = "auto"
	RunnerTypeContainer RunnerType = "container"
	RunnerTypeHost      RunnerType = "host"
)

const hostModeWarning = "HOST MODE: steps run directly on this machine with no container isolation."

// SelectionResult is the Runner Selector's decision object, per spec.md §4.7.
type SelectionResult struct {
	Selected      pdkconfig.RunnerKind
	Reason        string
	Warning       string
	DockerVersion string
	IsFallback    bool
}

// Selector decides container vs. host for a job.
type Selector struct {
	Containers *container.Manager
}

// Select runs the algorithm of spec.md §4.7 steps 1-4.
func (s *Selector) Select(ctx context.Context, cliOverride RunnerType, configDefault pdkconfig.RunnerKind, job *model.Job) (*SelectionResult, error) {
	result, err := s.tentative(ctx, cliOverride, configDefault)
	if err != nil {
		return nil, err
	}

	if result.Selected == pdkconfig.RunnerHost {
		if violations := capabilityViolations(job); len(violations) > 0 {
			return nil, &pdkerrors.CapabilityMismatch{Features: violations}
		}
	}

	return result, nil
}

func (s *Selector) tentative(ctx context.Context, cliOverride RunnerType, configDefault pdkconfig.RunnerKind) (*SelectionResult, error) {
	// Step 1: explicit CLI Host.
	if cliOverride == RunnerTypeHost {
		return &SelectionResult{
			Selected: pdkconfig.RunnerHost,
			Reason:   "explicit CLI flag",
			Warning:  hostModeWarning,
		}, nil
	}

	// Step 2: explicit CLI Container.
	if cliOverride == RunnerTypeContainer {
		status := s.Containers.IsDaemonAvailable(ctx)
		if !status.Available {
			return nil, &pdkerrors.ContainerUnavailable{
				Kind:    daemonErrorCode(status.ErrorKind),
				Message: fmt.Sprintf("container mode was requested but no daemon is reachable (%s)", status.ErrorKind),
			}
		}
		return &SelectionResult{
			Selected:      pdkconfig.RunnerContainer,
			Reason:        "explicit CLI flag",
			DockerVersion: status.Version,
		}, nil
	}

	// Step 3: Auto. Consult config default first, treating it as (1)/(2).
	switch configDefault {
	case pdkconfig.RunnerHost:
		return &SelectionResult{
			Selected: pdkconfig.RunnerHost,
			Reason:   "config default",
			Warning:  hostModeWarning,
		}, nil
	case pdkconfig.RunnerContainer:
		status := s.Containers.IsDaemonAvailable(ctx)
		if !status.Available {
			return nil, &pdkerrors.ContainerUnavailable{
				Kind:    daemonErrorCode(status.ErrorKind),
				Message: fmt.Sprintf("config default requires a container runner but no daemon is reachable (%s)", status.ErrorKind),
			}
		}
		return &SelectionResult{
			Selected:      pdkconfig.RunnerContainer,
			Reason:        "config default",
			DockerVersion: status.Version,
		}, nil
	}

	// configDefault is auto (or unset): probe the daemon ourselves.
	status := s.Containers.IsDaemonAvailable(ctx)
	if status.Available {
		return &SelectionResult{
			Selected:      pdkconfig.RunnerContainer,
			Reason:        "daemon available",
			DockerVersion: status.Version,
		}, nil
	}
	return &SelectionResult{
		Selected:   pdkconfig.RunnerHost,
		Reason:     "no CLI/config preference and no container daemon reachable",
		Warning:    fmt.Sprintf("%s (%s)", hostModeWarning, status.ErrorKind),
		IsFallback: true,
	}, nil
}

// capabilityViolations returns the feature tags a Host runner cannot
// satisfy for job, per spec.md §4.7 step 4.
func capabilityViolations(job *model.Job) []string {
	var violations []string
	if isCustomImage(job.RunsOn) {
		violations = append(violations, "custom-images")
	}
	for _, step := range job.Steps {
		if strings.EqualFold(string(step.Kind), string(model.StepKindDocker)) {
			violations = append(violations, "docker")
			break
		}
	}
	return violations
}

// isCustomImage reports whether label isn't one of the standard
// GitHub-Actions-style runner labels (ubuntu-*, windows-*, macos-*,
// self-hosted*),
// i.e. it names an arbitrary container image reference instead.
func isCustomImage(label string) bool {
	lower := strings.ToLower(label)
	for _, prefix := range []string{"ubuntu-", "windows-", "macos-", "self-hosted"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return label != ""
}

func daemonErrorCode(kind container.DaemonErrorKind) pdkerrors.ContainerErrorCode {
	switch kind {
	case container.DaemonErrorNotInstalled:
		return pdkerrors.DaemonNotInstalled
	case container.DaemonErrorPermissionDenied:
		return pdkerrors.PermissionDenied
	case container.DaemonErrorNotRunning:
		return pdkerrors.DaemonNotRunning
	default:
		return pdkerrors.DaemonNotRunning
	}
}
