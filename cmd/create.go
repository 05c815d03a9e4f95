package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/scribeworks/keyword-cli/internal/model"
)

var (
	createName        string
	createSeeds       []string
	createGeo         string
	createLanguage    string
	createFocus       string
	createNiche       string
	createDescription string
	createSourceURL   string
	createCompetitors []string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a keyword research project",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		project, err := env.Runner.CreateProject(ctx, createName, createSeeds, createGeo, createLanguage,
			model.Intent(createFocus),
			model.DiscoveryHints{
				NicheTerm:           createNiche,
				BusinessDescription: createDescription,
				SourceURL:           createSourceURL,
				Competitors:         createCompetitors,
			},
		)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(project)
	},
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "project name (required)")
	createCmd.Flags().StringArrayVar(&createSeeds, "seed", nil, "seed phrase, repeatable (required)")
	createCmd.Flags().StringVar(&createGeo, "geo", "US", "target geography")
	createCmd.Flags().StringVar(&createLanguage, "language", "en", "target language")
	createCmd.Flags().StringVar(&createFocus, "focus", "informational", "content focus intent")
	createCmd.Flags().StringVar(&createNiche, "niche", "", "niche term hint")
	createCmd.Flags().StringVar(&createDescription, "description", "", "business description hint")
	createCmd.Flags().StringVar(&createSourceURL, "source-url", "", "own site URL hint")
	createCmd.Flags().StringArrayVar(&createCompetitors, "competitor", nil, "competitor site, repeatable")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("seed")
	rootCmd.AddCommand(createCmd)
}
