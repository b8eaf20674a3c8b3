package stepexec

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/process"
)

// checkout resolves the permissive variant from spec.md §9 Open Questions:
// empty/"self" repository means "use the workspace as-is"; a clone only
// happens when an explicit URL is given. When a repo is explicit, git pull
// runs first if a .git directory is already present, otherwise git clone;
// a supplied ref/branch/tag is checked out afterward.
func checkoutArgs(repository, ref string) (needsRepo bool) {
	return repository != "" && repository != "self"
}

func checkoutRef(step *model.Step) string {
	for _, key := range []string{"ref", "branch", "tag"} {
		if v, ok := step.WithValue(key); ok && v != "" {
			return v
		}
	}
	return ""
}

type checkoutContainer struct{}

func (checkoutContainer) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.ExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	repo, _ := step.WithValue("repository")
	ref := checkoutRef(step)
	workDir := containerWorkingDir(ec.ContainerWorkspace, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)

	if !probeContainerTool(ctx, svc, ec.ContainerID, "git") {
		return failedResult(step.Name, "git is not available in the target image — use a runner image with git pre-installed", start, svc.Masker), nil
	}

	if !checkoutArgs(repo, ref) {
		return maskedResult(step.Name, true, 0, "using existing workspace as-is", "", start, time.Now(), svc.Masker), nil
	}

	hasRepo, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, []string{"sh", "-c", "test -d " + workDir + "/.git"}, "", env)
	if err != nil {
		return failedResult(step.Name, err.Error(), start, svc.Masker), nil
	}

	var out, errOut string
	if hasRepo.ExitCode == 0 {
		res, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, []string{"git", "pull"}, workDir, env)
		if err != nil {
			return failedResult(step.Name, err.Error(), start, svc.Masker), nil
		}
		out, errOut = res.Stdout, res.Stderr
		if res.ExitCode != 0 {
			return maskedResult(step.Name, false, res.ExitCode, out, errOut, start, time.Now(), svc.Masker), nil
		}
	} else {
		res, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, []string{"git", "clone", repo, workDir}, "", env)
		if err != nil {
			return failedResult(step.Name, err.Error(), start, svc.Masker), nil
		}
		out, errOut = res.Stdout, res.Stderr
		if res.ExitCode != 0 {
			return maskedResult(step.Name, false, res.ExitCode, out, errOut, start, time.Now(), svc.Masker), nil
		}
	}

	if ref != "" {
		res, err := svc.Containers.ExecuteCommand(ctx, ec.ContainerID, []string{"git", "checkout", ref}, workDir, env)
		if err != nil {
			return failedResult(step.Name, err.Error(), start, svc.Masker), nil
		}
		out += res.Stdout
		errOut += res.Stderr
		if res.ExitCode != 0 {
			return maskedResult(step.Name, false, res.ExitCode, out, errOut, start, time.Now(), svc.Masker), nil
		}
	}

	return maskedResult(step.Name, true, 0, out, errOut, start, time.Now(), svc.Masker), nil
}

type checkoutHost struct{}

func (checkoutHost) Execute(ctx context.Context, svc *Services, step *model.Step, ec *model.HostExecutionContext) (*model.StepExecutionResult, error) {
	start := time.Now()
	repo, _ := step.WithValue("repository")
	ref := checkoutRef(step)
	workDir := hostWorkingDir(ec.WorkspacePath, step.WorkingDirectory)
	env := mergeEnv(ec.Env, step.Env)

	if !process.IsToolAvailable(ctx, "git") {
		return failedResult(step.Name, "git is not available on the host — install it first", start, svc.Masker), nil
	}

	if !checkoutArgs(repo, ref) {
		return maskedResult(step.Name, true, 0, "using existing workspace as-is", "", start, time.Now(), svc.Masker), nil
	}

	_, statErr := os.Stat(filepath.Join(workDir, ".git"))
	hasRepo := statErr == nil

	var out, errOut string
	if hasRepo {
		res, err := process.Run(ctx, process.Config{Command: "git", Args: []string{"pull"}, WorkDir: workDir, Env: env})
		if err != nil {
			return failedResult(step.Name, err.Error(), start, svc.Masker), nil
		}
		out, errOut = res.Stdout, res.Stderr
		if res.ExitCode != 0 {
			return maskedResult(step.Name, false, res.ExitCode, out, errOut, start, time.Now(), svc.Masker), nil
		}
	} else {
		res, err := process.Run(ctx, process.Config{Command: "git", Args: []string{"clone", repo, workDir}, WorkDir: filepath.Dir(workDir), Env: env})
		if err != nil {
			return failedResult(step.Name, err.Error(), start, svc.Masker), nil
		}
		out, errOut = res.Stdout, res.Stderr
		if res.ExitCode != 0 {
			return maskedResult(step.Name, false, res.ExitCode, out, errOut, start, time.Now(), svc.Masker), nil
		}
	}

	if ref != "" {
		res, err := process.Run(ctx, process.Config{Command: "git", Args: []string{"checkout", ref}, WorkDir: workDir, Env: env})
		if err != nil {
			return failedResult(step.Name, err.Error(), start, svc.Masker), nil
		}
		out += res.Stdout
		errOut += res.Stderr
		if res.ExitCode != 0 {
			return maskedResult(step.Name, false, res.ExitCode, out, errOut, start, time.Now(), svc.Masker), nil
		}
	}

	return maskedResult(step.Name, true, 0, out, errOut, start, time.Now(), svc.Masker), nil
}
