package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localpdk/pdk/internal/artifact"
)

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Inspect the artifact store",
}

var artifactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored artifacts",
	RunE:  runArtifactList,
}

var artifactCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove artifacts past their retention window",
	RunE:  runArtifactCleanup,
}

func init() {
	artifactCmd.AddCommand(artifactListCmd, artifactCleanupCmd)
	rootCmd.AddCommand(artifactCmd)
}

func runArtifactList(cmd *cobra.Command, args []string) error {
	engine, err := artifact.Open(cfg.ArtifactBasePath)
	if err != nil {
		return err
	}
	defer engine.Close() //nolint:errcheck

	names, err := engine.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(os.Stdout, name)
	}
	return nil
}

func runArtifactCleanup(cmd *cobra.Command, args []string) error {
	engine, err := artifact.Open(cfg.ArtifactBasePath)
	if err != nil {
		return err
	}
	defer engine.Close() //nolint:errcheck

	removed, err := engine.Cleanup(cmd.Context(), cfg.ArtifactRetentionDays)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "removed %d artifact(s) older than %d day(s)\n", removed, cfg.ArtifactRetentionDays)
	return nil
}
