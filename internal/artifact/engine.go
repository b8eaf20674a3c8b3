package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdkerrors"
)

// UploadOptions configures Upload.
type UploadOptions struct {
	Compression       model.Compression
	OverwriteExisting bool
}

// UploadResult reports what Upload actually stored.
type UploadResult struct {
	StoragePath         string
	FileCount           int
	TotalSizeBytes      int64
	CompressedSizeBytes int64 // 0 when Compression is none
}

// ProgressUpdate is delivered to an optional progress callback during
// Upload/Download, per spec.md §4.4 "Progress".
type ProgressUpdate struct {
	Percent     float64
	Stage       string
	CurrentFile string
}

// ProgressFunc receives ProgressUpdate events. Implementers may batch.
type ProgressFunc func(ProgressUpdate)

// Engine is deterministic, content-addressed storage for workspace file
// sets, backed by a plain directory tree plus a SQLite catalog index for
// fast List/Exists/Cleanup.
type Engine struct {
	baseDir string
	catalog *catalog
}

// Open returns an Engine rooted at baseDir, creating it if necessary, and
// opens (or initializes) its catalog index.
func Open(baseDir string) (*Engine, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: creating base directory: %w", err)
	}
	cat, err := openCatalog(filepath.Join(baseDir, ".pdk-artifacts.db"))
	if err != nil {
		return nil, err
	}
	return &Engine{baseDir: baseDir, catalog: cat}, nil
}

// Close releases the catalog's database handle.
func (e *Engine) Close() error {
	if e.catalog == nil {
		return nil
	}
	return e.catalog.close()
}

// Upload stores the files at root-relative paths under name, per spec.md
// §4.4. root is the directory relPaths are resolved against (the host
// workspace, or a temp directory holding files copied out of a container).
func (e *Engine) Upload(ctx context.Context, name, root string, relPaths []string, opts UploadOptions, progress ProgressFunc) (*UploadResult, error) {
	if name == "" {
		return nil, &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactManifestInvalid, Message: "artifact name must not be empty"}
	}

	storageDir := filepath.Join(e.baseDir, name)
	if _, err := os.Stat(storageDir); err == nil && !opts.OverwriteExisting {
		return nil, &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactManifestInvalid, Message: fmt.Sprintf("artifact %q already exists and overwrite is not enabled", name)}
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactStorageIO, Message: err.Error()}
	}

	manifest := model.ArtifactManifest{
		Version:     model.ManifestVersion,
		Name:        name,
		CreatedAt:   time.Now().UTC(),
		Compression: opts.Compression,
	}

	var totalSize int64
	for i, rel := range relPaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src := filepath.Join(root, rel)
		sum, size, err := hashAndCopy(src, filepath.Join(storageDir, rel))
		if err != nil {
			return nil, &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactStorageIO, Message: fmt.Sprintf("storing %s: %v", rel, err)}
		}
		totalSize += size
		manifest.Files = append(manifest.Files, model.ManifestFile{Path: rel, Size: size, SHA256: sum})

		if progress != nil {
			progress(ProgressUpdate{
				Percent:     float64(i+1) / float64(len(relPaths)) * 100,
				Stage:       "copy",
				CurrentFile: rel,
			})
		}
	}
	manifest.FileCount = len(manifest.Files)
	manifest.TotalSizeBytes = totalSize

	var compressedSize int64
	switch opts.Compression {
	case model.CompressionZip:
		size, err := compressZip(storageDir, manifest.Files)
		if err != nil {
			return nil, &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactStorageIO, Message: err.Error()}
		}
		compressedSize = size
		manifest.CompressedBytes = compressedSize
	case model.CompressionGzip:
		size, err := compressTarGz(storageDir, manifest.Files)
		if err != nil {
			return nil, &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactStorageIO, Message: err.Error()}
		}
		compressedSize = size
		manifest.CompressedBytes = compressedSize
	case model.CompressionNone, "":
	default:
		return nil, &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactManifestInvalid, Message: fmt.Sprintf("unknown compression %q", opts.Compression)}
	}

	if err := writeManifest(storageDir, &manifest); err != nil {
		return nil, &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactManifestInvalid, Message: err.Error()}
	}

	if err := e.catalog.upsert(name, storageDir, manifest); err != nil {
		return nil, &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactStorageIO, Message: err.Error()}
	}

	return &UploadResult{
		StoragePath:         storageDir,
		FileCount:           manifest.FileCount,
		TotalSizeBytes:      totalSize,
		CompressedSizeBytes: compressedSize,
	}, nil
}

// Download restores name's files into targetDir, preserving relative
// structure and decompressing transparently.
func (e *Engine) Download(ctx context.Context, name, targetDir string, progress ProgressFunc) error {
	storageDir := filepath.Join(e.baseDir, name)
	manifest, err := readManifest(storageDir)
	if err != nil {
		return pdkerrors.NewArtifactNotFound(name)
	}

	if manifest.Compression == model.CompressionZip {
		if err := extractZip(filepath.Join(storageDir, zipArchiveName), targetDir); err != nil {
			return &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactStorageIO, Message: err.Error()}
		}
		return nil
	}
	if manifest.Compression == model.CompressionGzip {
		if err := extractTarGz(filepath.Join(storageDir, tarGzArchiveName), targetDir); err != nil {
			return &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactStorageIO, Message: err.Error()}
		}
		return nil
	}

	for i, f := range manifest.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyFile(filepath.Join(storageDir, f.Path), filepath.Join(targetDir, f.Path)); err != nil {
			return &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactStorageIO, Message: fmt.Sprintf("restoring %s: %v", f.Path, err)}
		}
		if progress != nil {
			progress(ProgressUpdate{Percent: float64(i+1) / float64(len(manifest.Files)) * 100, Stage: "restore", CurrentFile: f.Path})
		}
	}
	return nil
}

// List returns every artifact name currently in the catalog.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.catalog.list()
}

// Exists reports whether name has a stored manifest.
func (e *Engine) Exists(ctx context.Context, name string) bool {
	return e.catalog.exists(name)
}

// Delete removes an artifact's storage directory and catalog entry.
func (e *Engine) Delete(ctx context.Context, name string) error {
	storageDir := filepath.Join(e.baseDir, name)
	if err := os.RemoveAll(storageDir); err != nil {
		return &pdkerrors.ArtifactError{Code: pdkerrors.ArtifactStorageIO, Message: err.Error()}
	}
	return e.catalog.remove(name)
}

// Cleanup deletes every artifact whose manifest creation timestamp is
// older than retentionDays, returning the count removed.
func (e *Engine) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	stale, err := e.catalog.olderThan(cutoff)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range stale {
		if err := e.Delete(ctx, name); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func hashAndCopy(src, dst string) (sha256hex string, size int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", 0, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", 0, err
	}
	defer out.Close() //nolint:errcheck

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck
	_, err = io.Copy(out, in)
	return err
}

const manifestFileName = "artifact.metadata.json"

func writeManifest(storageDir string, m *model.ArtifactManifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(storageDir, manifestFileName), raw, 0o644)
}

func readManifest(storageDir string) (*model.ArtifactManifest, error) {
	raw, err := os.ReadFile(filepath.Join(storageDir, manifestFileName))
	if err != nil {
		return nil, err
	}
	var m model.ArtifactManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
