package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/scribeworks/keyword-cli/internal/model"
	"github.com/scribeworks/keyword-cli/internal/store"
)

var (
	projectsStatus string
	projectsLimit  int
	projectsOffset int
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		projects, err := st.ListProjects(ctx, store.ProjectFilter{
			Status: model.ProjectStatus(projectsStatus),
			Limit:  projectsLimit,
			Offset: projectsOffset,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(projects)
	},
}

func init() {
	projectsCmd.Flags().StringVar(&projectsStatus, "status", "", "filter by status (pending, running, completed, failed)")
	projectsCmd.Flags().IntVar(&projectsLimit, "limit", 0, "maximum projects to return")
	projectsCmd.Flags().IntVar(&projectsOffset, "offset", 0, "offset into the listing")
	rootCmd.AddCommand(projectsCmd)
}
