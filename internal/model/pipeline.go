// Package model defines the provider-agnostic pipeline representation that
// the core executor consumes. Values of these types are built by an external
// parser (GitHub-style or Azure-style) and handed to the validator and the
// job runners; this package never reads YAML itself.
package model

import "time"

// Provider tags the YAML dialect a Pipeline was parsed from.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderAzure  Provider = "azure"
)

// Pipeline is the root of the in-memory model.
type Pipeline struct {
	ID       string
	Name     string
	Provider Provider
	Jobs     map[string]*Job
	Vars     map[string]string
}

// Job is a single unit of work with an ordered step list and a runner label.
type Job struct {
	ID        string
	Name      string
	RunsOn    string
	Steps     []*Step
	DependsOn []string
	Timeout   time.Duration // zero means no job-level timeout
	Env       map[string]string
	If        string
}

// Shell selects the interpreter a script/pwsh step is executed with.
type Shell string

const (
	ShellBash       Shell = "bash"
	ShellSh         Shell = "sh"
	ShellPwsh       Shell = "pwsh"
	ShellPowerShell Shell = "powershell"
	ShellCmd        Shell = "cmd"
)

// StepKind is the tag that selects which executor handles a Step.
type StepKind string

const (
	StepKindCheckout         StepKind = "checkout"
	StepKindScript           StepKind = "script"
	StepKindPwsh             StepKind = "pwsh"
	StepKindDotnet           StepKind = "dotnet"
	StepKindNpm              StepKind = "npm"
	StepKindDocker           StepKind = "docker"
	StepKindUploadArtifact   StepKind = "uploadartifact"
	StepKindDownloadArtifact StepKind = "downloadartifact"
)

// Step is a single action within a Job.
type Step struct {
	ID               string
	Name             string
	Kind             StepKind
	Script           string
	Shell            Shell
	With             map[string]string
	Env              map[string]string
	WorkingDirectory string
	ContinueOnError  bool
	Needs            []string
	Artifact         *ArtifactDefinition
	If               string
}

// WithValue looks up a `with` input case-insensitively, per spec.md §3
// ("keys lowercased on read").
func (s *Step) WithValue(key string) (string, bool) {
	if s.With == nil {
		return "", false
	}
	v, ok := s.With[lower(key)]
	return v, ok
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ArtifactOperation is upload or download.
type ArtifactOperation string

const (
	ArtifactUpload   ArtifactOperation = "upload"
	ArtifactDownload ArtifactOperation = "download"
)

// Compression selects how an artifact's files are archived at rest.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZip  Compression = "zip"
	CompressionGzip Compression = "gzip"
)

// IfNoFilesFoundPolicy controls how an empty upload match set is handled.
type IfNoFilesFoundPolicy string

const (
	IfNoFilesFoundError  IfNoFilesFoundPolicy = "error"
	IfNoFilesFoundWarn   IfNoFilesFoundPolicy = "warn"
	IfNoFilesFoundIgnore IfNoFilesFoundPolicy = "ignore"
)

// ArtifactOptions are the knobs on an ArtifactDefinition.
type ArtifactOptions struct {
	Compression       Compression
	RetentionDays     int
	OverwriteExisting bool
	IfNoFilesFound    IfNoFilesFoundPolicy
}

// ArtifactDefinition describes an upload or download step's artifact.
type ArtifactDefinition struct {
	Name       string
	Operation  ArtifactOperation
	Patterns   []string // leading "!" excludes
	TargetPath string
	Options    ArtifactOptions
}
