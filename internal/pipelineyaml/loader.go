package pipelineyaml

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/localpdk/pdk/internal/model"
)

// maxPipelineSizeBytes caps the size of a pipeline YAML file, per the
// teacher's packages/core/workflow/parser.go maxWorkflowSizeBytes guard.
const maxPipelineSizeBytes = 1 * 1024 * 1024

// ParseError is raised when a pipeline file cannot be read or parsed, per
// spec.md §6's parser contract "raise ParseError(path, details)".
type ParseError struct {
	Path    string
	Details string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pipelineyaml: %s: %s", e.Path, e.Details)
}

// LoadFile reads path and builds a model.Pipeline from its GitHub-Actions-
// shaped YAML content.
func LoadFile(path string) (*model.Pipeline, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path supplied by the caller (CLI argument or discovery, not untrusted input)
	if err != nil {
		return nil, &ParseError{Path: path, Details: err.Error()}
	}
	if err := validateContent(data); err != nil {
		return nil, &ParseError{Path: path, Details: err.Error()}
	}

	var raw rawWorkflow
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Details: fmt.Sprintf("parsing YAML: %v", err)}
	}

	return toPipeline(&raw)
}

// validateContent applies the teacher's defense-in-depth checks before
// handing bytes to the YAML parser: a size cap, a null-byte check, and an
// excessive-control-character check.
func validateContent(data []byte) error {
	if len(data) > maxPipelineSizeBytes {
		return fmt.Errorf("pipeline file exceeds maximum size of %d bytes", maxPipelineSizeBytes)
	}
	if bytes.Contains(data, []byte{0x00}) {
		return fmt.Errorf("pipeline file contains null bytes (binary content not allowed)")
	}
	controlCount := 0
	for _, b := range data {
		if b < 32 && b != '\n' && b != '\r' && b != '\t' {
			controlCount++
		}
	}
	if controlCount > 10 {
		return fmt.Errorf("pipeline file contains excessive control characters (%d found)", controlCount)
	}
	return nil
}

func toPipeline(raw *rawWorkflow) (*model.Pipeline, error) {
	pipeline := &model.Pipeline{
		ID:       uuid.NewString(),
		Name:     raw.Name,
		Provider: model.ProviderGitHub,
		Jobs:     make(map[string]*model.Job, len(raw.Jobs)),
		Vars:     raw.Env,
	}

	jobIDs := make([]string, 0, len(raw.Jobs))
	for id := range raw.Jobs {
		jobIDs = append(jobIDs, id)
	}
	sort.Strings(jobIDs)

	for _, id := range jobIDs {
		job, err := toJob(id, raw.Jobs[id])
		if err != nil {
			return nil, err
		}
		pipeline.Jobs[id] = job
	}

	return pipeline, nil
}

func toJob(id string, raw *rawJob) (*model.Job, error) {
	name := raw.Name
	if name == "" {
		name = id
	}

	job := &model.Job{
		ID:        id,
		Name:      name,
		RunsOn:    stringify(raw.RunsOn),
		DependsOn: stringSlice(raw.Needs),
		Env:       raw.Env,
		If:        raw.If,
		Timeout:   minutesToDuration(raw.TimeoutMinutes),
	}

	for i, rawStep := range raw.Steps {
		step, err := toStep(i, rawStep)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", id, err)
		}
		job.Steps = append(job.Steps, step)
	}

	return job, nil
}

func toStep(index int, raw *rawStep) (*model.Step, error) {
	step := &model.Step{
		ID:               raw.ID,
		Name:             raw.Name,
		Script:           raw.Run,
		Shell:            shellFromString(raw.Shell),
		With:             lowerKeys(raw.With),
		Env:              raw.Env,
		WorkingDirectory: raw.WorkingDirectory,
		ContinueOnError:  raw.ContinueOnError,
		If:               raw.If,
	}
	if step.Name == "" {
		step.Name = fmt.Sprintf("step-%d", index)
	}

	kind, err := inferKind(raw)
	if err != nil {
		return nil, err
	}
	step.Kind = kind

	if kind == model.StepKindUploadArtifact || kind == model.StepKindDownloadArtifact {
		step.Artifact = toArtifactDefinition(kind, step.With)
	}

	return step, nil
}

// inferKind classifies a raw step by its `uses` action reference, falling
// back to `script`/`pwsh` for a bare `run` step — this loader's one
// heuristic, since upstream GitHub Actions workflows name first-party
// step kinds through marketplace action references rather than an
// explicit "kind" field.
func inferKind(raw *rawStep) (model.StepKind, error) {
	uses := strings.ToLower(raw.Uses)
	switch {
	case strings.Contains(uses, "checkout"):
		return model.StepKindCheckout, nil
	case strings.Contains(uses, "upload-artifact"):
		return model.StepKindUploadArtifact, nil
	case strings.Contains(uses, "download-artifact"):
		return model.StepKindDownloadArtifact, nil
	case strings.Contains(uses, "dotnet"):
		return model.StepKindDotnet, nil
	case strings.Contains(uses, "npm") || strings.Contains(uses, "setup-node"):
		return model.StepKindNpm, nil
	case strings.Contains(uses, "docker"):
		return model.StepKindDocker, nil
	}

	if raw.Run != "" {
		switch shellFromString(raw.Shell) {
		case model.ShellPwsh, model.ShellPowerShell:
			return model.StepKindPwsh, nil
		default:
			return model.StepKindScript, nil
		}
	}

	return "", fmt.Errorf("step %q: cannot infer a step kind (no recognized `uses` and no `run`)", raw.Name)
}

func toArtifactDefinition(kind model.StepKind, with map[string]string) *model.ArtifactDefinition {
	def := &model.ArtifactDefinition{
		Name:       with["name"],
		TargetPath: with["path"],
		Options: model.ArtifactOptions{
			Compression:       model.Compression(with["compression"]),
			OverwriteExisting: with["overwrite"] == "true",
			IfNoFilesFound:    model.IfNoFilesFoundPolicy(with["if-no-files-found"]),
		},
	}
	if kind == model.StepKindUploadArtifact {
		def.Operation = model.ArtifactUpload
		if patterns := with["path"]; patterns != "" {
			def.Patterns = strings.Split(patterns, "\n")
			def.TargetPath = ""
		}
	} else {
		def.Operation = model.ArtifactDownload
	}
	if retention, err := strconv.Atoi(with["retention-days"]); err == nil {
		def.Options.RetentionDays = retention
	}
	return def
}

func shellFromString(s string) model.Shell {
	switch strings.ToLower(s) {
	case "pwsh":
		return model.ShellPwsh
	case "powershell":
		return model.ShellPowerShell
	case "cmd":
		return model.ShellCmd
	case "sh":
		return model.ShellSh
	default:
		return model.ShellBash
	}
}

func minutesToDuration(v any) time.Duration {
	switch t := v.(type) {
	case int:
		return time.Duration(t) * time.Minute
	case float64:
		return time.Duration(t) * time.Minute
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return time.Duration(n) * time.Minute
		}
	}
	return 0
}

// stringify renders a runs-on value (string, or a YAML-decoded []any for
// the `[self-hosted, linux]` label-list form) as a single string.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ",")
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// stringSlice renders a `needs` value (string or []any) as a string slice.
func stringSlice(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	default:
		return nil
	}
}

func lowerKeys(with map[string]any) map[string]string {
	if with == nil {
		return nil
	}
	out := make(map[string]string, len(with))
	for k, v := range with {
		out[strings.ToLower(k)] = fmt.Sprintf("%v", v)
	}
	return out
}
