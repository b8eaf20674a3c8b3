package artifact

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	"github.com/localpdk/pdk/internal/model"
)

const (
	zipArchiveName   = "artifact.zip"
	tarGzArchiveName = "artifact.tar.gz"
)

// compressZip bundles every file in files (relative to storageDir) into a
// single zip archive alongside the manifest, per spec.md §6.
func compressZip(storageDir string, files []model.ManifestFile) (int64, error) {
	archivePath := filepath.Join(storageDir, zipArchiveName)
	out, err := os.Create(archivePath)
	if err != nil {
		return 0, err
	}
	defer out.Close() //nolint:errcheck

	zw := zip.NewWriter(out)
	for _, f := range files {
		if err := addFileToZip(zw, storageDir, f.Path); err != nil {
			zw.Close() //nolint:errcheck
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func addFileToZip(zw *zip.Writer, storageDir, relPath string) error {
	in, err := os.Open(filepath.Join(storageDir, relPath))
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	w, err := zw.Create(relPath)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

// extractZip restores every entry of the zip archive at archivePath into
// targetDir, preserving relative structure.
func extractZip(archivePath, targetDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		dst := filepath.Join(targetDir, f.Name)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			rc.Close() //nolint:errcheck
			return err
		}
		out, err := os.Create(dst)
		if err != nil {
			rc.Close() //nolint:errcheck
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()  //nolint:errcheck
		out.Close() //nolint:errcheck
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

// compressTarGz bundles every file in files into a single gzip-compressed
// tar archive alongside the manifest, per spec.md §6. A plain gzip stream
// can only hold one member, so a tar layer carries the directory structure
// the way spec.md §4.4's "original relative structure" requires.
func compressTarGz(storageDir string, files []model.ManifestFile) (int64, error) {
	archivePath := filepath.Join(storageDir, tarGzArchiveName)
	out, err := os.Create(archivePath)
	if err != nil {
		return 0, err
	}
	defer out.Close() //nolint:errcheck

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	for _, f := range files {
		if err := addFileToTar(tw, storageDir, f.Path, f.Size); err != nil {
			tw.Close() //nolint:errcheck
			gw.Close() //nolint:errcheck
			return 0, err
		}
	}
	if err := tw.Close(); err != nil {
		return 0, err
	}
	if err := gw.Close(); err != nil {
		return 0, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func addFileToTar(tw *tar.Writer, storageDir, relPath string, size int64) error {
	in, err := os.Open(filepath.Join(storageDir, relPath))
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	if err := tw.WriteHeader(&tar.Header{Name: relPath, Size: size, Mode: 0o644}); err != nil {
		return err
	}
	_, err = io.Copy(tw, in)
	return err
}

// extractTarGz restores a tar.gz archive's members into targetDir.
func extractTarGz(archivePath, targetDir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	gr, err := gzip.NewReader(in)
	if err != nil {
		return err
	}
	defer gr.Close() //nolint:errcheck

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		dst := filepath.Join(targetDir, hdr.Name)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		out, err := os.Create(dst)
		if err != nil {
			return err
		}
		_, copyErr := io.Copy(out, tr)
		out.Close() //nolint:errcheck
		if copyErr != nil {
			return copyErr
		}
	}
}
