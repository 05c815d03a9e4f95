package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/scribeworks/keyword-cli/internal/model"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger <project-id>",
	Short: "Show a project's external-call spend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ListLedger(ctx, args[0])
		if err != nil {
			return err
		}

		totalCost := 0.0
		byProvider := make(map[string]int)
		for _, e := range entries {
			totalCost += e.Cost
			byProvider[e.Provider]++
		}

		out := struct {
			ProjectID       string              `json:"project_id"`
			TotalCalls      int                 `json:"total_calls"`
			TotalCost       float64             `json:"total_cost"`
			CallsByProvider map[string]int      `json:"calls_by_provider"`
			Entries         []model.LedgerEntry `json:"entries"`
		}{
			ProjectID:       args[0],
			TotalCalls:      len(entries),
			TotalCost:       totalCost,
			CallsByProvider: byProvider,
			Entries:         entries,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
}
