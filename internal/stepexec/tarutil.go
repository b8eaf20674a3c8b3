package stepexec

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/localpdk/pdk/internal/container"
)

// copyOneFileFromContainer streams containerPath out of a container via
// GetArchiveFromContainer and writes its first regular-file entry to
// destPath, creating parent directories as needed. Used by uploadartifact's
// container family per spec.md §4.3: "copy each matching file out of the
// container as a tar stream, extract at the corresponding relative path."
func copyOneFileFromContainer(ctx context.Context, mgr *container.Manager, containerID, containerPath, destPath string) error {
	rc, err := mgr.GetArchiveFromContainer(ctx, containerID, containerPath)
	if err != nil {
		return fmt.Errorf("stepexec: fetching %s from container: %w", containerPath, err)
	}
	defer rc.Close() //nolint:errcheck

	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("stepexec: %s produced an empty archive", containerPath)
		}
		if err != nil {
			return fmt.Errorf("stepexec: reading archive for %s: %w", containerPath, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		out, err := os.Create(destPath)
		if err != nil {
			return err
		}
		_, copyErr := io.Copy(out, tr)
		out.Close() //nolint:errcheck
		return copyErr
	}
}

// tarDirectory builds a tar stream of root's contents with root-relative
// paths, for PutArchiveToContainer. Used by downloadartifact's container
// family per spec.md §4.3: "bundles as a tar stream ... PutArchiveToContainer."
func tarDirectory(root string) (io.Reader, error) {
	pr, pw := io.Pipe()
	go func() {
		tw := tar.NewWriter(pw)
		walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = filepath.ToSlash(rel)
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck
			_, err = io.Copy(tw, f)
			return err
		})
		if walkErr != nil {
			tw.Close()                                                           //nolint:errcheck
			pw.CloseWithError(fmt.Errorf("stepexec: archiving %s: %w", root, walkErr)) //nolint:errcheck
			return
		}
		tw.Close() //nolint:errcheck
		pw.Close() //nolint:errcheck
	}()
	return pr, nil
}
