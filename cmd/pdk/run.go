package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/localpdk/pdk/internal/debug"
	"github.com/localpdk/pdk/internal/engine"
	"github.com/localpdk/pdk/internal/jobrunner"
	"github.com/localpdk/pdk/internal/model"
	"github.com/localpdk/pdk/internal/pdksentry"
	"github.com/localpdk/pdk/internal/pipelineyaml"
	"github.com/localpdk/pdk/internal/progress"
	"github.com/localpdk/pdk/internal/selector"
	"github.com/localpdk/pdk/internal/util"
	"github.com/localpdk/pdk/internal/validate"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline's jobs",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if flagPipelinePath == "" {
		return &validationFailure{summary: "--pipeline is required"}
	}

	pipeline, err := pipelineyaml.LoadFile(flagPipelinePath)
	if err != nil {
		return &validationFailure{summary: err.Error()}
	}

	phases := []validate.Phase{
		validate.SchemaPhase{}, validate.ExecutorsPhase{},
		validate.RunnerPhase{}, validate.CyclePhase{},
	}
	harness := &validate.Harness{Phases: phases}
	report, err := harness.Run(cmd.Context(), pipeline)
	if err != nil {
		return err
	}
	if report.HasErrors() {
		for _, verr := range report.Errors {
			fmt.Fprintln(os.Stderr, verr.Error())
		}
		return &validationFailure{summary: "pipeline failed validation"}
	}

	services, cleanup, err := buildServices(cfg)
	if err != nil {
		return &missingToolError{summary: err.Error()}
	}
	defer cleanup()

	reporter := &consoleReporter{}
	sel := &selector.Selector{Containers: services.Containers}
	eng := &engine.Engine{
		Selector: sel,
		ContainerRunner: &jobrunner.ContainerRunner{
			Services: services, Config: cfg, Reporter: reporter,
		},
		HostRunner: &jobrunner.HostRunner{
			Services: services, Config: cfg, Reporter: reporter,
		},
		Config:        cfg,
		CLIRunnerType: selector.RunnerType(flagRunnerType),
		MaxFanOut:     flagMaxFanOut,
		HostWorkspace: flagWorkspace,
	}

	result, err := eng.Run(cmd.Context(), pipeline)
	if err != nil {
		pdksentry.CaptureError(err)
		return err
	}

	exitCode := 0
	for jobID, jobResult := range result.Jobs {
		debug.Log("run: job %s success=%v error=%q", jobID, jobResult.Success, jobResult.Error)
		if !jobResult.Success {
			exitCode = failingExitCode(jobResult)
		}
	}

	if !result.Success {
		cmd.SilenceUsage = true
		os.Exit(exitCode)
	}
	return nil
}

// failingExitCode surfaces the failing step's own exit code per spec.md
// §6, falling back to 1 when no step produced one (e.g. a dependency
// never ran).
func failingExitCode(jobResult *model.JobExecutionResult) int {
	for _, step := range jobResult.Steps {
		if !step.Success {
			if step.ExitCode == 0 {
				return 1
			}
			return step.ExitCode
		}
	}
	return 1
}

// progress reporter printing to stderr.
type consoleReporter struct{ progress.NoOp }

func (consoleReporter) OnJobStart(jobName string) {
	fmt.Fprintf(os.Stderr, "==> job %s\n", jobName)
}

func (consoleReporter) OnStepStart(jobName, stepName string) {
	fmt.Fprintf(os.Stderr, "  -> %s / %s\n", jobName, stepName)
}

func (consoleReporter) OnStepComplete(jobName, stepName string, success bool, elapsed time.Duration) {
	status := "ok"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(os.Stderr, "  <- %s / %s: %s (%s)\n", jobName, stepName, status, util.FormatDuration(elapsed))
}

func (consoleReporter) OnJobComplete(jobName string, success bool, elapsed time.Duration) {
	status := "ok"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(os.Stderr, "==> job %s: %s (%s)\n", jobName, status, util.FormatDuration(elapsed))
}

func (consoleReporter) OnPullProgress(image, line string) {
	fmt.Fprintf(os.Stderr, "pull %s: %s\n", image, line)
}
