package selector

import (
	"testing"

	"github.com/localpdk/pdk/internal/model"
)

func TestIsCustomImageRecognizesStandardLabels(t *testing.T) {
	for _, label := range []string{"ubuntu-latest", "ubuntu-22.04", "windows-latest", "macos-14", "self-hosted"} {
		if isCustomImage(label) {
			t.Errorf("isCustomImage(%q) = true, want false", label)
		}
	}
}

func TestIsCustomImageFlagsArbitraryImages(t *testing.T) {
	if !isCustomImage("myregistry.example.com/builder:latest") {
		t.Error("expected a custom image reference to be flagged")
	}
}

func TestCapabilityViolationsFlagsDockerStep(t *testing.T) {
	job := &model.Job{
		RunsOn: "ubuntu-latest",
		Steps:  []*model.Step{{Kind: model.StepKindDocker}},
	}
	violations := capabilityViolations(job)
	if len(violations) != 1 || violations[0] != "docker" {
		t.Fatalf("capabilityViolations = %v", violations)
	}
}

func TestCapabilityViolationsFlagsCustomImage(t *testing.T) {
	job := &model.Job{RunsOn: "myregistry.example.com/builder:latest"}
	violations := capabilityViolations(job)
	if len(violations) != 1 || violations[0] != "custom-images" {
		t.Fatalf("capabilityViolations = %v", violations)
	}
}

func TestCapabilityViolationsNoneForStandardJob(t *testing.T) {
	job := &model.Job{
		RunsOn: "ubuntu-latest",
		Steps:  []*model.Step{{Kind: model.StepKindScript}},
	}
	if violations := capabilityViolations(job); len(violations) != 0 {
		t.Fatalf("capabilityViolations = %v, want none", violations)
	}
}
