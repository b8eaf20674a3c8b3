package engine

import (
	"context"
	"testing"

	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdkconfig"
	"github.com/localpdk/pdk/internal/selector"
)

type stubRunner struct {
	results map[string]*model.JobExecutionResult
}

func (s *stubRunner) RunJob(_ context.Context, job *model.Job, _ string) (*model.JobExecutionResult, error) {
	if r, ok := s.results[job.ID]; ok {
		return r, nil
	}
	return &model.JobExecutionResult{JobName: job.Name, Success: true}, nil
}

func newTestEngine(runner JobRunner) *Engine {
	cfg := &pdkconfig.Config{}
	_ = cfg.Validate()
	return &Engine{
		Selector:        &selector.Selector{},
		ContainerRunner: runner,
		HostRunner:      runner,
		Config:          cfg,
		CLIRunnerType:   selector.RunnerTypeHost,
	}
}

func TestRunSkipsJobWhenDependencyFails(t *testing.T) {
	pipeline := &model.Pipeline{Jobs: map[string]*model.Job{
		"a": {ID: "a", Name: "a"},
		"b": {ID: "b", Name: "b", DependsOn: []string{"a"}},
	}}
	runner := &stubRunner{results: map[string]*model.JobExecutionResult{
		"a": {JobName: "a", Success: false},
	}}

	result, err := newTestEngine(runner).Run(context.Background(), pipeline)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Fatal("expected overall failure when a dependency fails")
	}
	if result.Jobs["b"].Success {
		t.Fatal("expected job b to be marked failed since its dependency failed")
	}
}

func TestRunSucceedsWithIndependentJobs(t *testing.T) {
	pipeline := &model.Pipeline{Jobs: map[string]*model.Job{
		"a": {ID: "a", Name: "a"},
		"b": {ID: "b", Name: "b"},
	}}
	runner := &stubRunner{results: map[string]*model.JobExecutionResult{}}

	result, err := newTestEngine(runner).Run(context.Background(), pipeline)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected overall success, got %+v", result)
	}
}

func TestRunFlagsUnknownDependency(t *testing.T) {
	pipeline := &model.Pipeline{Jobs: map[string]*model.Job{
		"a": {ID: "a", Name: "a", DependsOn: []string{"missing"}},
	}}
	runner := &stubRunner{results: map[string]*model.JobExecutionResult{}}

	if _, err := newTestEngine(runner).Run(context.Background(), pipeline); err == nil {
		t.Fatal("expected an error for a dependency on an unknown job")
	}
}
