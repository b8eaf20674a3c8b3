// Package pdkerrors carries the error taxonomy of spec.md §7: every kind
// that can stop a step, abort a job, or block execution before it starts
// is a concrete type here. ContainerError carries a stable code, a message,
// free-form context, and remediation suggestions; the other kinds carry
// only the fields their failure needs (e.g. ArtifactError a code and
// message, ToolNotFound computed suggestions). Grounded on the teacher's ExtractedError/severity split
// (internal/errors/types.go) but reshaped around the executor's own
// failure modes instead of log-scraped ones.
package pdkerrors

import "fmt"

// ContainerErrorCode enumerates container-manager failure modes.
type ContainerErrorCode string

const (
	DaemonNotRunning   ContainerErrorCode = "DaemonNotRunning"
	DaemonNotInstalled ContainerErrorCode = "DaemonNotInstalled"
	PermissionDenied   ContainerErrorCode = "PermissionDenied"
	ImageNotFound      ContainerErrorCode = "ImageNotFound"
	CreationFailed     ContainerErrorCode = "CreationFailed"
	ExecutionFailed    ContainerErrorCode = "ExecutionFailed"
)

// ContainerError is raised by the Container Manager and by any step executor
// that drives it.
type ContainerError struct {
	Code        ContainerErrorCode
	Message     string
	Context     map[string]string
	Suggestions []string
}

func (e *ContainerError) Error() string {
	return fmt.Sprintf("container error [%s]: %s", e.Code, e.Message)
}

// NewContainerError builds a ContainerError, attaching the standard
// remediation suggestions for its code. Exit-code-specific advice is not
// attached here; it comes from ExitCodeAdvice.
func NewContainerError(code ContainerErrorCode, message string, ctx map[string]string) *ContainerError {
	return &ContainerError{
		Code:        code,
		Message:     message,
		Context:     ctx,
		Suggestions: suggestionsFor(code),
	}
}

func suggestionsFor(code ContainerErrorCode) []string {
	switch code {
	case DaemonNotRunning:
		return []string{"start the container daemon (e.g. `systemctl start containerd` or start Docker Desktop)", "retry once the daemon reports ready"}
	case DaemonNotInstalled:
		return []string{"install a container runtime (containerd, Docker) and ensure it is on PATH"}
	case PermissionDenied:
		return []string{"add the current user to the docker/containerd group", "or run with elevated privileges"}
	case ImageNotFound:
		return []string{"run `docker pull <image>` (or the containerd equivalent) to fetch the image first", "check the image reference for typos"}
	case CreationFailed:
		return []string{"run `docker inspect <image>` to verify the image is valid", "prune idle containers and retry"}
	case ExecutionFailed:
		return []string{"re-run with verbose logging to capture the failing command", "check the step's working directory and shell selection"}
	default:
		return nil
	}
}

// ExitCodeAdvice returns exit-code specific remediation text for a failed
// in-container or host command, per spec.md §7.
func ExitCodeAdvice(exitCode int) string {
	switch exitCode {
	case 127:
		return "exit 127: command not found in the target image/host — check PATH or install the tool in an earlier step"
	case 137:
		return "exit 137: process was killed (SIGKILL), often an out-of-memory kill — raise the job's memory limit"
	case 143:
		return "exit 143: process was terminated (SIGTERM), usually a timeout or external cancellation"
	default:
		return ""
	}
}

// ToolNotFound is raised when a step requires a binary absent from the
// target (container or host).
type ToolNotFound struct {
	Name    string
	Image   string
	Context map[string]string
}

func (e *ToolNotFound) Error() string {
	if e.Image != "" {
		return fmt.Sprintf("tool %q not found in image %q", e.Name, e.Image)
	}
	return fmt.Sprintf("tool %q not found on host", e.Name)
}

// Suggestions returns curated install pointers for well-known tools, falling
// back to generic advice for anything else.
func (e *ToolNotFound) Suggestions() []string {
	if s, ok := toolSuggestions[e.Name]; ok {
		return s
	}
	return []string{
		"install " + e.Name + " in an earlier setup step",
		"choose a pre-provisioned runner image that already includes it",
	}
}

var toolSuggestions = map[string][]string{
	"dotnet": {"install the .NET SDK: https://dotnet.microsoft.com/download", "or use a runner image with dotnet pre-installed"},
	"node":   {"install Node.js via your platform's package manager or nvm"},
	"npm":    {"npm ships with Node.js — install Node.js first"},
	"python": {"install Python 3 via your platform's package manager"},
	"pip":    {"pip ships with Python — ensure `python -m ensurepip` has run"},
	"java":   {"install a JDK (Temurin, OpenJDK)"},
	"mvn":    {"install Maven: https://maven.apache.org/install.html"},
	"gradle": {"install Gradle or use the project's gradle wrapper (./gradlew)"},
	"go":     {"install Go: https://go.dev/dl/"},
	"cargo":  {"install Rust via rustup: https://rustup.rs"},
	"git":    {"install git via your platform's package manager"},
	"docker": {"install Docker: https://docs.docker.com/get-docker/"},
	"kubectl": {"install kubectl: https://kubernetes.io/docs/tasks/tools/"},
	"aws":    {"install the AWS CLI: https://aws.amazon.com/cli/"},
	"az":     {"install the Azure CLI: https://learn.microsoft.com/cli/azure/install-azure-cli"},
}

// ArtifactErrorCode enumerates artifact-engine failure modes.
type ArtifactErrorCode string

const (
	ArtifactNotFound         ArtifactErrorCode = "NotFound"
	ArtifactPatternEmpty     ArtifactErrorCode = "PatternEmpty"
	ArtifactChecksumMismatch ArtifactErrorCode = "ChecksumMismatch"
	ArtifactManifestInvalid  ArtifactErrorCode = "ManifestInvalid"
	ArtifactStorageIO        ArtifactErrorCode = "StorageIO"
)

// ArtifactError is raised by the Artifact Engine.
type ArtifactError struct {
	Code    ArtifactErrorCode
	Message string
	Name    string
}

func (e *ArtifactError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("artifact %q: %s", e.Name, e.Message)
	}
	return e.Message
}

// NewArtifactNotFound builds the "did you upload in an earlier step?" error
// from spec.md §4.3 downloadartifact.
func NewArtifactNotFound(name string) *ArtifactError {
	return &ArtifactError{
		Code:    ArtifactNotFound,
		Name:    name,
		Message: fmt.Sprintf("no artifact named %q has been uploaded — did you upload it in an earlier step?", name),
	}
}

// CapabilityMismatch is raised when the Host runner cannot satisfy a job's
// requirements (custom image runner label, or a docker step).
type CapabilityMismatch struct {
	Features []string
}

func (e *CapabilityMismatch) Error() string {
	return fmt.Sprintf("host runner cannot satisfy required features: %v", e.Features)
}

// VariableError is raised by the expander.
type VariableError struct {
	Name    string
	Message string
	Loop    bool
}

func (e *VariableError) Error() string {
	if e.Loop {
		return fmt.Sprintf("variable expansion loop detected at %q", e.Name)
	}
	return e.Message
}

// ContainerUnavailable is raised by the Runner Selector when the CLI forces
// container mode but no daemon can be reached.
type ContainerUnavailable struct {
	Kind    ContainerErrorCode
	Message string
}

func (e *ContainerUnavailable) Error() string {
	return fmt.Sprintf("container runner unavailable (%s): %s", e.Kind, e.Message)
}

// Severity is the level of a ValidationError.
type Severity string

const (
	SeverityError   Severity = "Error"
	SeverityWarning Severity = "Warning"
)

// ValidationError is surfaced by the Validation Harness; it is never thrown
// by the core — the core refuses to execute when errors are present.
type ValidationError struct {
	Severity    Severity
	Category    string
	Code        string
	Message     string
	JobID       string
	StepName    string
	StepIndex   int
	LineNumber  int
	Suggestions []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s/%s] %s", e.Category, e.Code, e.Message)
}
