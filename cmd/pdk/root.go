// Package main is the pdk CLI entrypoint: a thin cobra wrapper around the
// core executor (internal/engine, internal/jobrunner, internal/selector,
// internal/validate, internal/pipelineyaml). Grounded on the teacher's
// apps/cli/cmd/root.go for the persistent-flags + PersistentPreRunE shape,
// stripped of its TUI/bubbletea rendering since this CLI reports progress
// as plain lines, not an interactive terminal UI.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/localpdk/pdk/internal/artifact"
	"github.com/localpdk/pdk/internal/container"
	"github.com/localpdk/pdk/internal/debug"
	"github.com/localpdk/pdk/internal/pdkconfig"
	"github.com/localpdk/pdk/internal/pdksentry"
	"github.com/localpdk/pdk/internal/secret"
	"github.com/localpdk/pdk/internal/stepexec"
	"github.com/localpdk/pdk/internal/variables"
)

// Version is the CLI's release tag, set at build time via -ldflags.
var Version = "dev"

var (
	flagPipelinePath string
	flagRunnerType   string
	flagWorkspace    string
	flagDebug        bool
	flagMaxFanOut    int
)

var cfg *pdkconfig.Config

var rootCmd = &cobra.Command{
	Use:     "pdk",
	Short:   "Run CI/CD pipelines locally in a container or on the host",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagWorkspace == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving workspace: %w", err)
			}
			flagWorkspace = wd
		}

		debugEnabled := flagDebug || os.Getenv("PDK_DEBUG") == "1"
		if err := debug.Init(flagWorkspace, debugEnabled); err != nil {
			return err
		}

		cfg = &pdkconfig.Config{}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	os.Exit(run())
}

func run() int {
	defer pdksentry.Init(Version)()
	defer pdksentry.RecoverAndPanic()
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCodeFor(err)
	}
	return 0
}

// exitCodeFor maps a top-level error to one of spec.md §6's surfaced exit
// codes. Step-level exit codes are handled inside the run command, which
// never returns an error for an ordinary step failure (only for something
// that kept the pipeline from running at all).
func exitCodeFor(err error) int {
	switch err.(type) {
	case *validationFailure:
		return 1
	case *missingToolError:
		return 2
	default:
		return 1
	}
}

type validationFailure struct{ summary string }

func (e *validationFailure) Error() string { return e.summary }

type missingToolError struct{ summary string }

func (e *missingToolError) Error() string { return e.summary }

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagPipelinePath, "pipeline", "p", "", "path to the pipeline YAML file")
	rootCmd.PersistentFlags().StringVarP(&flagRunnerType, "runner", "r", "auto", "runner type: auto, container, or host")
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", "", "workspace directory (defaults to the current directory)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging to <workspace>/.pdk-debug.log")
	rootCmd.PersistentFlags().IntVar(&flagMaxFanOut, "max-fan-out", 4, "maximum number of jobs to run concurrently")
}

// buildServices wires the process-wide singletons every step executor
// needs, per spec.md §9's explicit-services-injection pattern.
func buildServices(cfg *pdkconfig.Config) (*stepexec.Services, func(), error) {
	mgr, err := container.New("")
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to the container daemon: %w", err)
	}

	artifacts, err := artifact.Open(cfg.ArtifactBasePath)
	if err != nil {
		mgr.Close() //nolint:errcheck
		return nil, nil, err
	}

	secretStore, err := secret.Open(filepath.Join(filepath.Dir(cfg.ArtifactBasePath), "secrets"))
	if err != nil {
		mgr.Close()       //nolint:errcheck
		artifacts.Close() //nolint:errcheck
		return nil, nil, err
	}

	masker := secret.NewMasker()
	resolver := variables.New()
	resolver.LoadEnviron(os.Environ())

	ctx := context.Background()
	for _, name := range secretStore.Names() {
		if value, ok, resolveErr := secretStore.Resolve(ctx, name); resolveErr == nil && ok {
			resolver.Set(name, value, variables.Secret)
			masker.Register(value)
		}
	}

	services := &stepexec.Services{
		Containers: mgr,
		Artifacts:  artifacts,
		Masker:     masker,
		Resolver:   resolver,
	}

	cleanup := func() {
		mgr.Close()       //nolint:errcheck
		artifacts.Close() //nolint:errcheck
	}
	return services, cleanup, nil
}
