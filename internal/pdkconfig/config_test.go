package pdkconfig

import "testing"

func TestImageForConfigOverrideWins(t *testing.T) {
	cfg := &Config{Container: ContainerDefaults{Images: map[string]string{"ubuntu-latest": "my/base:1"}}}
	img, ok := cfg.ImageFor("ubuntu-latest")
	if !ok || img != "my/base:1" {
		t.Fatalf("ImageFor = %q, %v, want my/base:1, true", img, ok)
	}
}

func TestImageForDefaultTable(t *testing.T) {
	cfg := &Config{}
	img, ok := cfg.ImageFor("ubuntu-22.04")
	if !ok || img != "buildpack-deps:jammy" {
		t.Fatalf("ImageFor = %q, %v, want buildpack-deps:jammy, true", img, ok)
	}
}

// TestImageForCustomImageLabel uses the same custom-image label
// internal/selector's tests use, confirming a job whose RunsOn names a
// literal image reference (per spec.md §3/§4.5 step 1) resolves to that
// image instead of failing with "no image mapping for runner label".
func TestImageForCustomImageLabel(t *testing.T) {
	cfg := &Config{}
	const customImage = "myregistry.example.com/builder:latest"
	img, ok := cfg.ImageFor(customImage)
	if !ok || img != customImage {
		t.Fatalf("ImageFor = %q, %v, want %q, true", img, ok, customImage)
	}
}

func TestImageForEmptyLabelUnresolved(t *testing.T) {
	cfg := &Config{}
	if _, ok := cfg.ImageFor(""); ok {
		t.Fatal("expected an empty runner label to stay unresolved")
	}
}
