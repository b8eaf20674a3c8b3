package stepexec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/localpdk/pdk/internal/artifact"
	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdkerrors"
)

// buildFindCommand translates one glob pattern into the `find` invocation
// run inside a container to select matching files, per spec.md §4.4's
// translation table.
func buildFindCommand(base, pattern string) string {
	pattern = strings.TrimPrefix(pattern, "!")
	segments := strings.Split(pattern, "/")
	last := segments[len(segments)-1]
	dirSegments := segments[:len(segments)-1]

	if len(dirSegments) == 0 {
		if pattern == "**" {
			return fmt.Sprintf("find %s -type f", shQuote(base))
		}
		return fmt.Sprintf("find %s -maxdepth 1 -name %s -type f", shQuote(base), shQuote(last))
	}

	starStar := -1
	for i, seg := range dirSegments {
		if seg == "**" {
			starStar = i
			break
		}
	}

	var dir string
	if starStar >= 0 {
		prefix := strings.Join(dirSegments[:starStar], "/")
		if prefix == "" {
			dir = base
		} else {
			dir = base + "/" + prefix
		}
	} else {
		dir = base + "/" + strings.Join(dirSegments, "/")
	}
	return fmt.Sprintf("find %s -name %s -type f", shQuote(dir), shQuote(last))
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// selectFilesInContainer mirrors artifact.SelectFiles's union/exclusion
// algorithm but resolves each pattern with `find` run inside the
// container, since the Go process has no direct filesystem view of it.
func selectFilesInContainer(ctx context.Context, svc *Services, containerID, base string, patterns []string) ([]string, error) {
	matched := make(map[string]struct{})

	for _, pattern := range patterns {
		exclude := strings.HasPrefix(pattern, "!")
		findCmd := buildFindCommand(base, pattern)

		res, err := svc.Containers.ExecuteCommand(ctx, containerID, []string{"sh", "-c", findCmd}, "", nil)
		if err != nil {
			return nil, err
		}
		for _, abs := range splitNonEmptyLines(res.Stdout) {
			rel := strings.TrimPrefix(abs, base+"/")
			if exclude {
				delete(matched, rel)
			} else {
				matched[rel] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(matched))
	for m := range matched {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func artifactTargetBase(workspace, targetPath string) string {
	if targetPath == "" {
		return workspace
	}
	return targetPath
}

func handleEmptySelection(policy model.IfNoFilesFoundPolicy, stepName string) (*model.StepExecutionResult, bool) {
	switch policy {
	case model.IfNoFilesFoundWarn:
		return maskedResult(stepName, true, 0, "no files matched artifact patterns", "", time.Now(), time.Now(), nil), true
	case model.IfNoFilesFoundIgnore, "":
		return maskedResult(stepName, true, 0, "", "", time.Now(), time.Now(), nil), true
	default: // model.IfNoFilesFoundError
		return nil, false
	}
}

type uploadArtifactContainer struct{}

func (uploadArtifactContainer) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.ExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	def := step.Artifact
	if def == nil || def.Operation != model.ArtifactUpload {
		return failedResult(step.Name, "uploadartifact step requires an upload ArtifactDefinition", start, svc.Masker), nil
	}

	base := artifactTargetBase(ec.ContainerWorkspace, def.TargetPath)
	relPaths, err := selectFilesInContainer(ctx, svc, ec.ContainerID, base, def.Patterns)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	if len(relPaths) == 0 {
		if res, handled := handleEmptySelection(def.Options.IfNoFilesFound, step.Name); handled {
			res.StartTime = start
			return res, nil
		}
		return failedResult(step.Name, fmt.Sprintf("artifact %q: no files matched the given patterns", def.Name), start, svc.Masker), nil
	}

	tempDir, err := os.MkdirTemp("", "pdk-artifact-upload-")
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	defer os.RemoveAll(tempDir) //nolint:errcheck

	for _, rel := range relPaths {
		if err := copyOneFileFromContainer(ctx, svc.Containers, ec.ContainerID, base+"/"+rel, filepath.Join(tempDir, rel)); err != nil {
			return failedResult(step.Name, err.Error(), start, svc.Masker), nil
		}
	}

	result, err := svc.Artifacts.Upload(ctx, def.Name, tempDir, relPaths, artifact.UploadOptions{
		Compression:       def.Options.Compression,
		OverwriteExisting: def.Options.OverwriteExisting,
	}, nil)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	return maskedResult(step.Name, true, 0, fmt.Sprintf("uploaded %d file(s) to %s", result.FileCount, result.StoragePath), "", start, time.Now(), svc.Masker), nil
}

type downloadArtifactContainer struct{}

func (downloadArtifactContainer) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.ExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	def := step.Artifact
	if def == nil || def.Operation != model.ArtifactDownload {
		return failedResult(step.Name, "downloadartifact step requires a download ArtifactDefinition", start, svc.Masker), nil
	}

	if !svc.Artifacts.Exists(ctx, def.Name) {
		return failedResult(step.Name, pdkerrors.NewArtifactNotFound(def.Name).Error(), start, svc.Masker), nil
	}

	tempDir, err := os.MkdirTemp("", "pdk-artifact-download-")
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	defer os.RemoveAll(tempDir) //nolint:errcheck

	if err := svc.Artifacts.Download(ctx, def.Name, tempDir, nil); err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	target := artifactTargetBase(ec.ContainerWorkspace, def.TargetPath)
	tarStream, err := tarDirectory(tempDir)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}
	if err := svc.Containers.PutArchiveToContainer(ctx, ec.ContainerID, target, tarStream); err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	return maskedResult(step.Name, true, 0, fmt.Sprintf("downloaded artifact %q to %s", def.Name, target), "", start, time.Now(), svc.Masker), nil
}

type uploadArtifactHost struct{}

func (uploadArtifactHost) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.HostExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	def := step.Artifact
	if def == nil || def.Operation != model.ArtifactUpload {
		return failedResult(step.Name, "uploadartifact step requires an upload ArtifactDefinition", start, svc.Masker), nil
	}

	root := artifactTargetBase(ec.WorkspacePath, def.TargetPath)
	relPaths, err := artifact.SelectFiles(root, def.Patterns)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	if len(relPaths) == 0 {
		if res, handled := handleEmptySelection(def.Options.IfNoFilesFound, step.Name); handled {
			res.StartTime = start
			return res, nil
		}
		return failedResult(step.Name, fmt.Sprintf("artifact %q: no files matched the given patterns", def.Name), start, svc.Masker), nil
	}

	result, err := svc.Artifacts.Upload(ctx, def.Name, root, relPaths, artifact.UploadOptions{
		Compression:       def.Options.Compression,
		OverwriteExisting: def.Options.OverwriteExisting,
	}, nil)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	return maskedResult(step.Name, true, 0, fmt.Sprintf("uploaded %d file(s) to %s", result.FileCount, result.StoragePath), "", start, time.Now(), svc.Masker), nil
}

type downloadArtifactHost struct{}

func (downloadArtifactHost) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.HostExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	def := step.Artifact
	if def == nil || def.Operation != model.ArtifactDownload {
		return failedResult(step.Name, "downloadartifact step requires a download ArtifactDefinition", start, svc.Masker), nil
	}

	if !svc.Artifacts.Exists(ctx, def.Name) {
		return failedResult(step.Name, pdkerrors.NewArtifactNotFound(def.Name).Error(), start, svc.Masker), nil
	}

	target := artifactTargetBase(ec.WorkspacePath, def.TargetPath)
	if err := svc.Artifacts.Download(ctx, def.Name, target, nil); err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	return maskedResult(step.Name, true, 0, fmt.Sprintf("downloaded artifact %q to %s", def.Name, target), "", start, time.Now(), svc.Masker), nil
}
