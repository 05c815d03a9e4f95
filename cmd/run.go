package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scribeworks/keyword-cli/internal/pipeline"
)

var runPrintResults bool

var runCmd = &cobra.Command{
	Use:   "run <project-id>",
	Short: "Run a project through the pipeline",
	Long:  "Executes all remaining stages for the project, checkpointing after each. Running a completed project is a no-op.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProject(cmd, args[0])
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <project-id>",
	Short: "Resume an interrupted project from its last checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProject(cmd, args[0])
	},
}

func runProject(cmd *cobra.Command, projectID string) error {
	ctx := cmd.Context()

	env, err := initEnv(ctx, pipeline.WithNotifier(pipeline.NewLogNotifier(zap.L())))
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.Runner.Run(ctx, projectID); err != nil {
		return eris.Wrap(err, "pipeline run")
	}

	results, err := env.Store.GetResults(ctx, projectID)
	if err != nil {
		return err
	}
	if results != nil {
		zap.L().Info("run complete",
			zap.String("project_id", projectID),
			zap.Int("keywords", len(results.Keywords)),
			zap.Int("topics", len(results.Topics)),
			zap.Int("page_groups", len(results.PageGroups)),
		)
	}

	if runPrintResults && results != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return nil
}

func init() {
	runCmd.Flags().BoolVar(&runPrintResults, "print", false, "print result JSON to stdout")
	resumeCmd.Flags().BoolVar(&runPrintResults, "print", false, "print result JSON to stdout")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
}
