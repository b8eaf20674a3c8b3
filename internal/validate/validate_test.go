package validate

import (
	"context"
	"testing"

	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdkerrors"
)

func TestSchemaPhaseFlagsMissingRunsOn(t *testing.T) {
	pipeline := &model.Pipeline{Jobs: map[string]*model.Job{
		"build": {Name: "build", Steps: []*model.Step{{Name: "s", Kind: model.StepKindScript}}},
	}}
	errs := SchemaPhase{}.Validate(context.Background(), pipeline)
	if len(errs) != 1 || errs[0].Code != "MissingRunsOn" {
		t.Fatalf("errs = %v", errs)
	}
}

func TestExecutorsPhaseFlagsUnsupportedKind(t *testing.T) {
	pipeline := &model.Pipeline{Jobs: map[string]*model.Job{
		"build": {Name: "build", RunsOn: "ubuntu-latest", Steps: []*model.Step{{Name: "s", Kind: "bogus"}}},
	}}
	errs := ExecutorsPhase{}.Validate(context.Background(), pipeline)
	if len(errs) != 1 || errs[0].Code != "UnsupportedStepKind" {
		t.Fatalf("errs = %v", errs)
	}
}

func TestCyclePhaseDetectsCycle(t *testing.T) {
	pipeline := &model.Pipeline{Jobs: map[string]*model.Job{
		"a": {Name: "a", DependsOn: []string{"b"}},
		"b": {Name: "b", DependsOn: []string{"a"}},
	}}
	errs := CyclePhase{}.Validate(context.Background(), pipeline)
	if len(errs) != 1 || errs[0].Code != "DependencyCycle" {
		t.Fatalf("errs = %v", errs)
	}
}

func TestHarnessRunsPhasesAndAggregates(t *testing.T) {
	pipeline := &model.Pipeline{Jobs: map[string]*model.Job{
		"build": {Name: "build", RunsOn: "ubuntu-latest", Steps: []*model.Step{{Name: "s", Kind: model.StepKindScript}}},
	}}
	h := &Harness{Phases: []Phase{SchemaPhase{}, ExecutorsPhase{}, RunnerPhase{}, CyclePhase{}}}
	report, err := h.Run(context.Background(), pipeline)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.HasErrors() {
		t.Fatalf("unexpected errors: %v", report.Errors)
	}
	if len(report.Phases) != 4 {
		t.Fatalf("len(report.Phases) = %d, want 4", len(report.Phases))
	}
}

func TestReportHasErrorsIgnoresWarnings(t *testing.T) {
	report := &Report{Errors: []*pdkerrors.ValidationError{{Severity: pdkerrors.SeverityWarning}}}
	if report.HasErrors() {
		t.Fatal("warnings alone should not count as errors")
	}
}
