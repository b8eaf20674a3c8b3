// Package pipelineyaml is a thin GitHub-Actions-shaped YAML loader: it
// reads a workflow file and builds a model.Pipeline, per spec.md §6's
// parser contract ("accept a file path, return a fully populated
// Pipeline, or raise ParseError"). It is deliberately not a full
// multi-provider parser — Azure Pipelines YAML and any other dialect are
// a Non-goal here; this loader only understands the GitHub shape.
//
// Grounded on the teacher's packages/core/workflow/{types,parser}.go: the
// raw YAML struct shape (any-typed fields for inputs this loader doesn't
// interpret) and the content-validation-before-parse idiom are carried
// over, then translated into model.Pipeline instead of kept as the
// teacher's own workflow.Workflow/Job/Step display types.
package pipelineyaml

// rawWorkflow mirrors the on-disk GitHub Actions workflow shape. Fields
// this loader has no use for (on, strategy, services, ...) are typed any
// and dropped after parsing; they exist so Unmarshal never fails on a
// real-world workflow file.
type rawWorkflow struct {
	Name string               `yaml:"name,omitempty"`
	On   any                  `yaml:"on,omitempty"`
	Env  map[string]string    `yaml:"env,omitempty"`
	Jobs map[string]*rawJob   `yaml:"jobs"`
}

type rawJob struct {
	Name            string            `yaml:"name,omitempty"`
	RunsOn          any               `yaml:"runs-on"`
	Steps           []*rawStep        `yaml:"steps"`
	Env             map[string]string `yaml:"env,omitempty"`
	If              string            `yaml:"if,omitempty"`
	Needs           any               `yaml:"needs,omitempty"`
	TimeoutMinutes  any               `yaml:"timeout-minutes,omitempty"`
	Strategy        any               `yaml:"strategy,omitempty"`
	Container       any               `yaml:"container,omitempty"`
	Services        any               `yaml:"services,omitempty"`
}

type rawStep struct {
	ID               string            `yaml:"id,omitempty"`
	Name             string            `yaml:"name,omitempty"`
	Uses             string            `yaml:"uses,omitempty"`
	Run              string            `yaml:"run,omitempty"`
	With             map[string]any    `yaml:"with,omitempty"`
	Env              map[string]string `yaml:"env,omitempty"`
	If               string            `yaml:"if,omitempty"`
	ContinueOnError  bool              `yaml:"continue-on-error,omitempty"`
	WorkingDirectory string            `yaml:"working-directory,omitempty"`
	Shell            string            `yaml:"shell,omitempty"`
}
