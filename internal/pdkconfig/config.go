// Package pdkconfig is the typed configuration object spec.md §6 describes
// as external input: a merged, already-loaded config the core consumes. The
// loader and its merge policy live outside the core (spec.md §1 Non-goals);
// this package only defines the shape and its defaulting/validation rules.
//
// Grounded on the teacher's internal/runner/config.go Validate() idiom:
// defaulting, absolute-path resolution, and value checks folded into a
// single method the caller runs once after loading.
package pdkconfig

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RunnerKind is the CLI/config runner-default tag, per spec.md §6.
type RunnerKind string

const (
	RunnerAuto      RunnerKind = "auto"
	RunnerContainer RunnerKind = "container"
	RunnerHost      RunnerKind = "host"
)

// ContainerDefaults holds the per-runner-label image map and the resource
// limits applied to every job container, per spec.md §4.5 step 3.
type ContainerDefaults struct {
	// Images maps a runner label (e.g. "ubuntu-latest") to a base image
	// reference (e.g. "buildpack-deps:jammy").
	Images        map[string]string
	NetworkMode   string
	MemoryLimitMB int64
	CPULimit      float64
}

// Config is the executor's merged, typed configuration, per spec.md §6
// "Config input". All fields are optional; Validate fills in defaults.
type Config struct {
	RunnerDefault         RunnerKind
	Container             ContainerDefaults
	ArtifactBasePath      string
	ArtifactRetentionDays int
	LoggingLevel          string
	// HostModeAcknowledged suppresses the one-time host-mode security
	// warning of spec.md §4.6 when the user has already opted in.
	HostModeAcknowledged bool
}

// DefaultImages is the built-in runner-label -> image mapping applied when
// Container.Images doesn't override a label, per spec.md §4.5 step 1.
var DefaultImages = map[string]string{
	"ubuntu-latest":  "buildpack-deps:jammy",
	"ubuntu-22.04":   "buildpack-deps:jammy",
	"ubuntu-20.04":   "buildpack-deps:focal",
	"windows-latest": "mcr.microsoft.com/windows/servercore:ltsc2022",
}

// Validate applies defaults and rejects invalid values: it resolves
// ArtifactBasePath to an absolute path and rejects negative limits and
// unknown runner-default or logging-level values. It does not inspect the
// artifact path for symlinks, and it rejects out-of-range values rather
// than clamping them.
func (c *Config) Validate() error {
	switch c.RunnerDefault {
	case "":
		c.RunnerDefault = RunnerAuto
	case RunnerAuto, RunnerContainer, RunnerHost:
	default:
		return fmt.Errorf("pdkconfig: invalid runner default %q", c.RunnerDefault)
	}

	if c.Container.NetworkMode == "" {
		c.Container.NetworkMode = "bridge"
	}
	if c.Container.MemoryLimitMB < 0 {
		return fmt.Errorf("pdkconfig: container memory limit must not be negative")
	}
	if c.Container.CPULimit < 0 {
		return fmt.Errorf("pdkconfig: container CPU limit must not be negative")
	}
	if c.Container.Images == nil {
		c.Container.Images = map[string]string{}
	}

	if c.ArtifactBasePath == "" {
		c.ArtifactBasePath = filepath.Join(".pdk", "artifacts")
	}
	abs, err := filepath.Abs(c.ArtifactBasePath)
	if err != nil {
		return fmt.Errorf("pdkconfig: resolving artifact base path: %w", err)
	}
	c.ArtifactBasePath = abs

	if c.ArtifactRetentionDays == 0 {
		c.ArtifactRetentionDays = 30
	}
	if c.ArtifactRetentionDays < 0 {
		return fmt.Errorf("pdkconfig: artifact retention days must not be negative")
	}

	if c.LoggingLevel == "" {
		c.LoggingLevel = "info"
	}
	switch strings.ToLower(c.LoggingLevel) {
	case "debug", "info", "warn", "error":
		c.LoggingLevel = strings.ToLower(c.LoggingLevel)
	default:
		return fmt.Errorf("pdkconfig: invalid logging level %q", c.LoggingLevel)
	}

	return nil
}

// ImageFor resolves a job's runner label to a base image, per spec.md §4.5
// step 1: config override wins, then the built-in table, then — per
// spec.md §3 ("runner label ... or a container-image reference") and §4.5
// step 1 ("self-hosted or custom labels are resolvable to explicit image
// names") — the label itself, taken as a literal image reference. Only an
// empty label is unresolved.
func (c *Config) ImageFor(runnerLabel string) (string, bool) {
	if img, ok := c.Container.Images[runnerLabel]; ok {
		return img, true
	}
	if img, ok := DefaultImages[runnerLabel]; ok {
		return img, true
	}
	if runnerLabel == "" {
		return "", false
	}
	return runnerLabel, true
}
