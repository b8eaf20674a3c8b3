package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localpdk/pdk/internal/pipelineyaml"
	"github.com/localpdk/pdk/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a pipeline without running it",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if flagPipelinePath == "" {
		return &validationFailure{summary: "--pipeline is required"}
	}

	pipeline, err := pipelineyaml.LoadFile(flagPipelinePath)
	if err != nil {
		return &validationFailure{summary: err.Error()}
	}

	harness := &validate.Harness{Phases: []validate.Phase{
		validate.SchemaPhase{}, validate.ExecutorsPhase{},
		validate.RunnerPhase{}, validate.CyclePhase{},
	}}
	report, err := harness.Run(cmd.Context(), pipeline)
	if err != nil {
		return err
	}

	for _, phase := range report.Phases {
		fmt.Fprintf(os.Stderr, "phase order=%d duration=%s errors=%d\n", phase.Order, phase.Duration, len(phase.Errors))
	}
	for _, verr := range report.Errors {
		fmt.Fprintln(os.Stderr, verr.Error())
	}
	fmt.Fprintf(os.Stderr, "total duration: %s\n", report.TotalDuration)

	if report.HasErrors() {
		return &validationFailure{summary: "pipeline failed validation"}
	}
	return nil
}
