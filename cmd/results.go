package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var resultsCmd = &cobra.Command{
	Use:   "results <project-id>",
	Short: "Print a completed project's results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		results, err := st.GetResults(ctx, args[0])
		if err != nil {
			return err
		}
		if results == nil {
			return eris.Errorf("no results for project %s; has it completed?", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}
