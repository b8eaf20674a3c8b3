// Package container implements the Container Manager of spec.md §4.2: an
// abstraction over a container runtime covering daemon health, image pull,
// container lifecycle, in-container exec with stream capture, and tar
// in/out for workspace and artifact transfer.
//
// Grounded on `cuemby-warren`'s pkg/runtime/containerd.go (the only repo in
// the pack driving containerd directly): namespace-scoped client calls,
// WithPullUnpack image pulls, task-based exec/start/stop, and the
// graceful-SIGTERM-then-SIGKILL-then-delete teardown sequence. Extended
// here with ExecuteCommand stream capture (cio.NewCreator over in-memory
// buffers) and GetArchiveFromContainer/PutArchiveToContainer (containerd's
// archive package) which cuemby-warren's orchestrator doesn't need but this
// domain's artifact transfer does.
package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	containerd "github.com/containerd/containerd"
	"github.com/containerd/containerd/archive"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/mount"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/localpdk/pdk/internal/pdkerrors"
)

// DefaultNamespace is the containerd namespace jobs run under.
const DefaultNamespace = "pdk"

// DefaultSocketPath is the conventional containerd control socket.
const DefaultSocketPath = "/run/containerd/containerd.sock"

// stopGrace is how long RemoveContainer waits for SIGTERM before SIGKILL.
const stopGrace = 10 * time.Second

// DaemonErrorKind classifies why the daemon is unavailable, per spec.md §4.2.
type DaemonErrorKind string

const (
	DaemonErrorNone             DaemonErrorKind = ""
	DaemonErrorNotInstalled     DaemonErrorKind = "NotInstalled"
	DaemonErrorNotRunning       DaemonErrorKind = "NotRunning"
	DaemonErrorPermissionDenied DaemonErrorKind = "PermissionDenied"
	DaemonErrorOther            DaemonErrorKind = "Other"
)

// DaemonStatus is the result of IsDaemonAvailable.
type DaemonStatus struct {
	Available bool
	Version   string
	Platform  string
	ErrorKind DaemonErrorKind
}

// CreateOptions configures CreateContainer.
type CreateOptions struct {
	// Mounts maps host path -> in-container path, read-write.
	Mounts      map[string]string
	Env         map[string]string
	MemoryLimit int64 // bytes, 0 means unlimited
	CPULimit    float64
	// NetworkMode is carried for callers but not applied by CreateContainer:
	// every container gets the runtime's default network namespace.
	NetworkMode string
}

// ExecutionResult is the outcome of ExecuteCommand.
type ExecutionResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ProgressFunc receives pull progress lines.
type ProgressFunc func(line string)

// Manager drives a containerd daemon on behalf of the job runner.
type Manager struct {
	client    *containerd.Client
	namespace string
}

// New connects to the containerd socket at socketPath (DefaultSocketPath if
// empty). The connection itself does not confirm the daemon is healthy;
// call IsDaemonAvailable for that.
func New(socketPath string) (*Manager, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("container: connecting to containerd: %w", err)
	}
	return &Manager{client: client, namespace: DefaultNamespace}, nil
}

// Close releases the underlying client connection.
func (m *Manager) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

func (m *Manager) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, m.namespace)
}

// IsDaemonAvailable probes the containerd daemon's health, per spec.md §4.2.
func (m *Manager) IsDaemonAvailable(ctx context.Context) DaemonStatus {
	if m.client == nil {
		return DaemonStatus{ErrorKind: DaemonErrorNotInstalled}
	}
	v, err := m.client.Version(m.ctx(ctx))
	if err != nil {
		return DaemonStatus{ErrorKind: classifyDaemonError(err)}
	}
	return DaemonStatus{Available: true, Version: v.Version, Platform: v.Revision}
}

func classifyDaemonError(err error) DaemonErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "not found"):
		return DaemonErrorNotInstalled
	case strings.Contains(msg, "permission denied"):
		return DaemonErrorPermissionDenied
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "not running"):
		return DaemonErrorNotRunning
	default:
		return DaemonErrorOther
	}
}

// PullImageIfNeeded pulls imageRef unless already present locally, per
// spec.md §4.2, forwarding informational lines to progress.
func (m *Manager) PullImageIfNeeded(ctx context.Context, imageRef string, progress ProgressFunc) error {
	ctx = m.ctx(ctx)

	if _, err := m.client.GetImage(ctx, imageRef); err == nil {
		return nil
	}

	if progress != nil {
		progress(fmt.Sprintf("pulling %s", imageRef))
	}
	if _, err := m.client.Pull(ctx, imageRef, containerd.WithPullUnpack); err != nil {
		return &pdkerrors.ContainerError{
			Code:        pdkerrors.ImageNotFound,
			Message:     fmt.Sprintf("pulling image %s: %v", imageRef, err),
			Suggestions: []string{fmt.Sprintf("docker pull %s", imageRef), "check registry connectivity and credentials"},
		}
	}
	if progress != nil {
		progress(fmt.Sprintf("pulled %s", imageRef))
	}
	return nil
}

// CreateContainer creates (and starts a no-op task for) a container from
// image with the given options, returning its id.
func (m *Manager) CreateContainer(ctx context.Context, id, image string, opts CreateOptions) (string, error) {
	ctx = m.ctx(ctx)

	img, err := m.client.GetImage(ctx, image)
	if err != nil {
		return "", &pdkerrors.ContainerError{
			Code:        pdkerrors.ImageNotFound,
			Message:     fmt.Sprintf("image %s not present; pull it first", image),
			Suggestions: []string{fmt.Sprintf("docker pull %s", image)},
		}
	}

	specOpts := []oci.SpecOpts{oci.WithImageConfig(img)}
	if len(opts.Env) > 0 {
		env := make([]string, 0, len(opts.Env))
		for k, v := range opts.Env {
			env = append(env, k+"="+v)
		}
		specOpts = append(specOpts, oci.WithEnv(env))
	}
	if opts.MemoryLimit > 0 {
		specOpts = append(specOpts, oci.WithMemoryLimit(uint64(opts.MemoryLimit)))
	}
	if opts.CPULimit > 0 {
		shares := uint64(opts.CPULimit * 1024)
		quota := int64(opts.CPULimit * 100000)
		specOpts = append(specOpts, oci.WithCPUShares(shares), oci.WithCPUCFS(quota, 100000))
	}
	if len(opts.Mounts) > 0 {
		mounts := make([]specs.Mount, 0, len(opts.Mounts))
		for host, target := range opts.Mounts {
			mounts = append(mounts, specs.Mount{
				Source:      host,
				Destination: target,
				Type:        "bind",
				Options:     []string{"rbind"},
			})
		}
		specOpts = append(specOpts, oci.WithMounts(mounts))
	}

	ctr, err := m.client.NewContainer(
		ctx, id,
		containerd.WithImage(img),
		containerd.WithNewSnapshot(id+"-snapshot", img),
		containerd.WithNewSpec(specOpts...),
	)
	if err != nil {
		return "", &pdkerrors.ContainerError{
			Code:    pdkerrors.CreationFailed,
			Message: fmt.Sprintf("creating container from %s: %v", image, err),
		}
	}

	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return "", &pdkerrors.ContainerError{Code: pdkerrors.CreationFailed, Message: fmt.Sprintf("creating task: %v", err)}
	}
	if err := task.Start(ctx); err != nil {
		return "", &pdkerrors.ContainerError{Code: pdkerrors.CreationFailed, Message: fmt.Sprintf("starting task: %v", err)}
	}

	return ctr.ID(), nil
}

// ExecuteCommand runs commandLine inside containerID and captures its
// output in full, per spec.md §4.2.
func (m *Manager) ExecuteCommand(ctx context.Context, containerID string, commandLine []string, workDir string, env map[string]string) (*ExecutionResult, error) {
	ctx = m.ctx(ctx)

	ctr, err := m.client.LoadContainer(ctx, containerID)
	if err != nil {
		return nil, &pdkerrors.ContainerError{Code: pdkerrors.ExecutionFailed, Message: fmt.Sprintf("loading container %s: %v", containerID, err)}
	}
	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return nil, &pdkerrors.ContainerError{Code: pdkerrors.ExecutionFailed, Message: fmt.Sprintf("loading task for %s: %v", containerID, err)}
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return nil, &pdkerrors.ContainerError{Code: pdkerrors.ExecutionFailed, Message: err.Error()}
	}
	procSpec := spec.Process
	procSpec.Args = commandLine
	if workDir != "" {
		procSpec.Cwd = workDir
	}
	if len(env) > 0 {
		for k, v := range env {
			procSpec.Env = append(procSpec.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	execID := fmt.Sprintf("exec-%d", time.Now().UnixNano())
	proc, err := task.Exec(ctx, execID, procSpec, cio.NewCreator(cio.WithStreams(nil, &stdout, &stderr)))
	if err != nil {
		return nil, &pdkerrors.ContainerError{Code: pdkerrors.ExecutionFailed, Message: fmt.Sprintf("creating exec: %v", err)}
	}
	defer proc.Delete(ctx) //nolint:errcheck

	statusC, err := proc.Wait(ctx)
	if err != nil {
		return nil, &pdkerrors.ContainerError{Code: pdkerrors.ExecutionFailed, Message: fmt.Sprintf("waiting on exec: %v", err)}
	}

	start := time.Now()
	if err := proc.Start(ctx); err != nil {
		return nil, &pdkerrors.ContainerError{Code: pdkerrors.ExecutionFailed, Message: fmt.Sprintf("starting exec: %v", err)}
	}

	status := <-statusC
	code, _, err := status.Result()
	if err != nil {
		return nil, &pdkerrors.ContainerError{Code: pdkerrors.ExecutionFailed, Message: fmt.Sprintf("exec result: %v", err)}
	}

	return &ExecutionResult{
		ExitCode: int(code),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}, nil
}

// snapshotMounts resolves the mounts backing containerID's root filesystem.
// info.SnapshotKey is an opaque snapshotter key, not a directory — it must
// be resolved through the owning snapshotter's Mounts() and then actually
// mounted (via mount.WithTempMount) before any archive/tar code can touch
// it as a path, mirroring how containerd's own `ctr` tooling walks a
// container's filesystem.
func (m *Manager) snapshotMounts(ctx context.Context, containerID string) ([]mount.Mount, error) {
	ctr, err := m.client.LoadContainer(ctx, containerID)
	if err != nil {
		return nil, &pdkerrors.ContainerError{Code: pdkerrors.ExecutionFailed, Message: err.Error()}
	}
	info, err := ctr.Info(ctx)
	if err != nil {
		return nil, &pdkerrors.ContainerError{Code: pdkerrors.ExecutionFailed, Message: err.Error()}
	}

	snapshotter := m.client.SnapshotService(info.Snapshotter)
	mounts, err := snapshotter.Mounts(ctx, info.SnapshotKey)
	if err != nil {
		return nil, &pdkerrors.ContainerError{Code: pdkerrors.ExecutionFailed, Message: fmt.Sprintf("resolving snapshot mounts for %s: %v", containerID, err)}
	}
	return mounts, nil
}

// GetArchiveFromContainer returns a tar stream of path from the container's
// root filesystem mount.
func (m *Manager) GetArchiveFromContainer(ctx context.Context, containerID, path string) (io.ReadCloser, error) {
	ctx = m.ctx(ctx)

	mounts, err := m.snapshotMounts(ctx, containerID)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		err := mount.WithTempMount(ctx, mounts, func(root string) error {
			return archive.WriteDiff(ctx, pw, "", filepath.Join(root, path))
		})
		if err != nil {
			pw.CloseWithError(fmt.Errorf("container: archiving %s: %w", path, err)) //nolint:errcheck
			return
		}
		pw.Close() //nolint:errcheck
	}()
	return pr, nil
}

// PutArchiveToContainer extracts tarStream into targetPath inside the
// container, creating targetPath if it is missing.
func (m *Manager) PutArchiveToContainer(ctx context.Context, containerID, targetPath string, tarStream io.Reader) error {
	ctx = m.ctx(ctx)

	mounts, err := m.snapshotMounts(ctx, containerID)
	if err != nil {
		return err
	}

	err = mount.WithTempMount(ctx, mounts, func(root string) error {
		_, applyErr := archive.Apply(ctx, filepath.Join(root, targetPath), tarStream)
		return applyErr
	})
	if err != nil {
		return &pdkerrors.ContainerError{Code: pdkerrors.ExecutionFailed, Message: fmt.Sprintf("extracting into %s: %v", targetPath, err)}
	}
	return nil
}

// RemoveContainer stops (SIGTERM, grace, SIGKILL) and removes containerID.
// Idempotent: a missing container is not an error.
func (m *Manager) RemoveContainer(ctx context.Context, containerID string) error {
	ctx = m.ctx(ctx)

	ctr, err := m.client.LoadContainer(ctx, containerID)
	if err != nil {
		return nil
	}

	if task, terr := ctr.Task(ctx, nil); terr == nil {
		stopCtx, cancel := context.WithTimeout(ctx, stopGrace)
		defer cancel()

		if err := task.Kill(stopCtx, syscall.SIGTERM); err == nil {
			statusC, werr := task.Wait(stopCtx)
			if werr == nil {
				select {
				case <-statusC:
				case <-stopCtx.Done():
					task.Kill(ctx, syscall.SIGKILL) //nolint:errcheck
				}
			}
		}
		task.Delete(ctx) //nolint:errcheck
	}

	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("container: removing %s: %w", containerID, err)
	}
	return nil
}

// IsToolAvailable checks whether name is on the host's PATH by running
// `which` (separate from in-container tool checks, which go through the
// process executor's own IsToolAvailable). Nothing in the module calls it.
func IsToolAvailable(ctx context.Context, name string) bool {
	probe := "which"
	cmd := exec.CommandContext(ctx, probe, name) //nolint:gosec
	return cmd.Run() == nil
}
