package jobrunner

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/localpdk/pdk/internal/container"
	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdkconfig"
	"github.com/localpdk/pdk/internal/secret"
	"github.com/localpdk/pdk/internal/stepexec"
	"github.com/localpdk/pdk/internal/variables"
)

func threeStepJob(continueOnError bool) *model.Job {
	return &model.Job{
		ID: "j", Name: "j", RunsOn: "host",
		Steps: []*model.Step{
			{Name: "step-1", Kind: model.StepKindScript, Script: "echo Step 1"},
			{Name: "step-2", Kind: model.StepKindScript, Script: "exit 1", ContinueOnError: continueOnError},
			{Name: "step-3", Kind: model.StepKindScript, Script: "echo Step 3"},
		},
	}
}

func TestContainerNameIncludesJobID(t *testing.T) {
	job := &model.Job{ID: "build-1"}
	name := containerName(job)
	if !strings.HasPrefix(name, "pdk-build-1-") {
		t.Fatalf("containerName = %q, want prefix pdk-build-1-", name)
	}
}

func TestMergeMapsStepWins(t *testing.T) {
	base := map[string]string{"A": "1", "B": "2"}
	overlay := map[string]string{"B": "3", "C": "4"}
	out := mergeMaps(base, overlay)
	if out["A"] != "1" || out["B"] != "3" || out["C"] != "4" {
		t.Fatalf("mergeMaps = %v", out)
	}
}

// TestHostRunJobFailingStepStopsExecution reproduces spec.md §8 scenario 3:
// a failing middle step halts the job, records exactly two step results,
// and leaves a non-empty result.Error.
func TestHostRunJobFailingStepStopsExecution(t *testing.T) {
	r := &HostRunner{
		Services: &stepexec.Services{Masker: secret.NewMasker(), Resolver: variables.New()},
		Config:   &pdkconfig.Config{HostModeAcknowledged: true},
	}

	result, err := r.RunJob(context.Background(), threeStepJob(false), t.TempDir())
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if result.Success {
		t.Fatal("expected result.Success=false")
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(result.Steps))
	}
	if result.Error == "" {
		t.Fatal("expected a non-empty result.Error")
	}
}

// TestHostRunJobContinueOnError reproduces spec.md §8 scenario 4: the same
// job, but step 2 has continue-on-error set, so step 3 still runs and all
// three step results are recorded even though the job overall fails.
func TestHostRunJobContinueOnError(t *testing.T) {
	r := &HostRunner{
		Services: &stepexec.Services{Masker: secret.NewMasker(), Resolver: variables.New()},
		Config:   &pdkconfig.Config{HostModeAcknowledged: true},
	}

	result, err := r.RunJob(context.Background(), threeStepJob(true), t.TempDir())
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if result.Success {
		t.Fatal("expected result.Success=false")
	}
	if len(result.Steps) != 3 {
		t.Fatalf("expected 3 step results, got %d", len(result.Steps))
	}
	if !result.Steps[0].Success || !result.Steps[2].Success {
		t.Fatalf("expected steps 1 and 3 to succeed, got %+v", result.Steps)
	}
	if result.Error == "" {
		t.Fatal("expected a non-empty result.Error")
	}
}

// TestContainerRunJobResolvesCustomImageLabel reproduces the custom-image
// scenario internal/selector's tests already cover (RunsOn naming a literal
// image reference rather than a runner label, per spec.md §3/§4.5 step 1):
// it confirms ContainerRunner.RunJob resolves the image through
// Config.ImageFor's literal-reference fallback instead of bailing out with
// "no image mapping for runner label". Skips without a reachable containerd
// socket or if the image can't be pulled, matching internal/container's own
// environment-dependent test style.
func TestContainerRunJobResolvesCustomImageLabel(t *testing.T) {
	if _, err := os.Stat(container.DefaultSocketPath); err != nil {
		t.Skipf("containerd socket not present at %s", container.DefaultSocketPath)
	}

	mgr, err := container.New("")
	if err != nil {
		t.Fatalf("container.New: %v", err)
	}
	defer mgr.Close() //nolint:errcheck

	// Not present in Container.Images or DefaultImages: exercises the
	// literal-image-reference fallback, as internal/selector's
	// isCustomImage fixture does with a different image reference.
	const customImage = "docker.io/library/alpine:3.19"
	ctx := context.Background()
	if err := mgr.PullImageIfNeeded(ctx, customImage, nil); err != nil {
		t.Skipf("could not pull %s (offline sandbox?): %v", customImage, err)
	}

	r := &ContainerRunner{
		Services: &stepexec.Services{Masker: secret.NewMasker(), Resolver: variables.New(), Containers: mgr},
		Config:   &pdkconfig.Config{},
	}

	job := &model.Job{
		ID: "custom-image-job", Name: "custom-image-job", RunsOn: customImage,
		Steps: []*model.Step{
			{Name: "step-1", Kind: model.StepKindScript, Script: "echo hi"},
		},
	}

	result, err := r.RunJob(ctx, job, t.TempDir())
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	const noMapping = `no image mapping for runner label "docker.io/library/alpine:3.19"`
	if result.Error == noMapping {
		t.Fatalf("RunJob failed to resolve custom image label as a literal reference: %s", result.Error)
	}
	if !result.Success {
		t.Fatalf("expected job to succeed once image resolved, result.Error=%q", result.Error)
	}
}
