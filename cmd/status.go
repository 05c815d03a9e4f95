package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/scribeworks/keyword-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show a project's pipeline progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		project, err := st.GetProject(ctx, args[0])
		if err != nil {
			return err
		}

		out := struct {
			*model.Project
			PercentComplete float64 `json:"percent_complete"`
		}{
			Project:         project,
			PercentComplete: project.LastCheckpoint.PercentComplete(),
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
