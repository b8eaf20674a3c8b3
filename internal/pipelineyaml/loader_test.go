package pipelineyaml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/localpdk/pdk/internal/model"
)

const sampleYAML = `
name: sample
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - name: checkout
        uses: actions/checkout@v4
      - name: say hello
        run: echo Hello World
      - name: upload logs
        uses: actions/upload-artifact@v4
        with:
          name: logs
          path: "logs/**/*.txt"
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp pipeline: %v", err)
	}
	return path
}

func TestLoadFileBuildsPipeline(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	pipeline, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if pipeline.Provider != model.ProviderGitHub {
		t.Errorf("Provider = %q, want github", pipeline.Provider)
	}
	job, ok := pipeline.Jobs["build"]
	if !ok {
		t.Fatal("expected job \"build\"")
	}
	if job.RunsOn != "ubuntu-latest" {
		t.Errorf("RunsOn = %q", job.RunsOn)
	}
	if len(job.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(job.Steps))
	}
	if job.Steps[0].Kind != model.StepKindCheckout {
		t.Errorf("Steps[0].Kind = %q, want checkout", job.Steps[0].Kind)
	}
	if job.Steps[1].Kind != model.StepKindScript || job.Steps[1].Script != "echo Hello World" {
		t.Errorf("Steps[1] = %+v", job.Steps[1])
	}
	upload := job.Steps[2]
	if upload.Kind != model.StepKindUploadArtifact {
		t.Fatalf("Steps[2].Kind = %q, want uploadartifact", upload.Kind)
	}
	if upload.Artifact == nil || upload.Artifact.Name != "logs" {
		t.Fatalf("Artifact = %+v", upload.Artifact)
	}
}

func TestLoadFileRejectsMissingFile(t *testing.T) {
	if _, err := LoadFile("/nonexistent/pipeline.yml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadFileRejectsNullBytes(t *testing.T) {
	path := writeTemp(t, "name: x\x00\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for null bytes in content")
	}
}
