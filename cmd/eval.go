package cmd

import (
	"github.com/lehigh-university-libraries/sketchguess/internal/evalcmd"
	"github.com/spf13/cobra"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Sketch recognition evaluation tools",
		Long: `Evaluation tools for measuring how well a vision model names hand-drawn sketches.

Supports inspecting labeled datasets, running evaluations against them and
printing saved results.`,
	}

	cmd.AddCommand(evalcmd.NewRunCmd())
	cmd.AddCommand(evalcmd.NewInspectCmd())
	cmd.AddCommand(evalcmd.NewReportCmd())

	return cmd
}
