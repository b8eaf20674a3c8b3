package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/localpdk/pdk/internal/model"
)

func writeWorkspaceFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSelectFilesUnionAndExclusion(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "src/main.cs", "")
	writeWorkspaceFile(t, root, "src/test.cs", "")
	writeWorkspaceFile(t, root, "src/generated.cs", "")
	writeWorkspaceFile(t, root, "obj/temp.cs", "")

	got, err := SelectFiles(root, []string{"src/**/*.cs", "!**/generated.cs"})
	if err != nil {
		t.Fatalf("SelectFiles: %v", err)
	}
	want := []string{"src/main.cs", "src/test.cs"}
	if len(got) != len(want) {
		t.Fatalf("SelectFiles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SelectFiles = %v, want %v", got, want)
		}
	}
}

func TestUploadDownloadRoundTripNoCompression(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "data/file.txt", "content for the round trip test.")

	baseDir := t.TempDir()
	engine, err := Open(baseDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	result, err := engine.Upload(ctx, "build-output", root, []string{"data/file.txt"}, UploadOptions{Compression: model.CompressionNone}, nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.FileCount != 1 {
		t.Fatalf("FileCount = %d, want 1", result.FileCount)
	}

	targetDir := t.TempDir()
	if err := engine.Download(ctx, "build-output", targetDir, nil); err != nil {
		t.Fatalf("Download: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(targetDir, "data/file.txt"))
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(got) != "content for the round trip test." {
		t.Fatalf("downloaded content = %q", string(got))
	}
}

func TestUploadDownloadRoundTripGzip(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "data/file.txt", "content for gzip compression test.")

	baseDir := t.TempDir()
	engine, err := Open(baseDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	result, err := engine.Upload(ctx, "gzip-artifact", root, []string{"data/file.txt"}, UploadOptions{Compression: model.CompressionGzip}, nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.FileCount != 1 {
		t.Fatalf("FileCount = %d, want 1", result.FileCount)
	}
	if result.CompressedSizeBytes == 0 {
		t.Fatal("expected non-zero compressed size")
	}

	targetDir := t.TempDir()
	if err := engine.Download(ctx, "gzip-artifact", targetDir, nil); err != nil {
		t.Fatalf("Download: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(targetDir, "data/file.txt"))
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(got) != "content for gzip compression test." {
		t.Fatalf("downloaded content = %q", string(got))
	}
}

func TestUploadDownloadRoundTripZip(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "a.txt", "alpha")
	writeWorkspaceFile(t, root, "nested/b.txt", "beta")

	baseDir := t.TempDir()
	engine, err := Open(baseDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	_, err = engine.Upload(ctx, "zip-artifact", root, []string{"a.txt", "nested/b.txt"}, UploadOptions{Compression: model.CompressionZip}, nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	targetDir := t.TempDir()
	if err := engine.Download(ctx, "zip-artifact", targetDir, nil); err != nil {
		t.Fatalf("Download: %v", err)
	}
	a, err := os.ReadFile(filepath.Join(targetDir, "a.txt"))
	if err != nil || string(a) != "alpha" {
		t.Fatalf("a.txt = %q, %v", a, err)
	}
	b, err := os.ReadFile(filepath.Join(targetDir, "nested/b.txt"))
	if err != nil || string(b) != "beta" {
		t.Fatalf("nested/b.txt = %q, %v", b, err)
	}
}

func TestManifestSHA256IsStable(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "file.txt", "deterministic content")

	baseDir := t.TempDir()
	engine, err := Open(baseDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	if _, err := engine.Upload(ctx, "hashed", root, []string{"file.txt"}, UploadOptions{Compression: model.CompressionNone}, nil); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	m, err := readManifest(filepath.Join(baseDir, "hashed"))
	if err != nil {
		t.Fatalf("readManifest: %v", err)
	}
	if len(m.Files) != 1 || len(m.Files[0].SHA256) != 64 {
		t.Fatalf("manifest files = %+v", m.Files)
	}
}

func TestListExistsDeleteCleanup(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "f.txt", "x")

	baseDir := t.TempDir()
	engine, err := Open(baseDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	if _, err := engine.Upload(ctx, "one", root, []string{"f.txt"}, UploadOptions{Compression: model.CompressionNone}, nil); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if !engine.Exists(ctx, "one") {
		t.Fatal("expected artifact to exist")
	}
	names, err := engine.List(ctx)
	if err != nil || len(names) != 1 || names[0] != "one" {
		t.Fatalf("List = %v, %v", names, err)
	}

	if err := engine.Delete(ctx, "one"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if engine.Exists(ctx, "one") {
		t.Fatal("expected artifact to be gone after Delete")
	}

	if _, err := engine.Upload(ctx, "two", root, []string{"f.txt"}, UploadOptions{Compression: model.CompressionNone}, nil); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if removed, err := engine.Cleanup(ctx, 30); err != nil || removed != 0 {
		t.Fatalf("Cleanup(30) = %d, %v; want 0, nil", removed, err)
	}
	if removed, err := engine.Cleanup(ctx, -1); err != nil || removed != 1 {
		t.Fatalf("Cleanup(-1) = %d, %v; want 1, nil", removed, err)
	}
	if engine.Exists(ctx, "two") {
		t.Fatal("expected artifact to be gone after Cleanup")
	}
}

func TestUploadRejectsOverwriteWithoutFlag(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "f.txt", "x")

	baseDir := t.TempDir()
	engine, err := Open(baseDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	if _, err := engine.Upload(ctx, "dup", root, []string{"f.txt"}, UploadOptions{}, nil); err != nil {
		t.Fatalf("first Upload: %v", err)
	}
	if _, err := engine.Upload(ctx, "dup", root, []string{"f.txt"}, UploadOptions{}, nil); err == nil {
		t.Fatal("expected second Upload without OverwriteExisting to fail")
	}
}
