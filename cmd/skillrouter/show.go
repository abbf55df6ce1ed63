package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillrouter/pkg/loader"
	"github.com/jingkaihe/skillrouter/pkg/presenter"
	"github.com/jingkaihe/skillrouter/pkg/registry"
	"github.com/jingkaihe/skillrouter/pkg/router"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a skill document",
	Long: `Print the primary document of a skill by id. With --refs the files the
skill references are printed too (one level only).`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		refs, _ := cmd.Flags().GetBool("refs")
		runShowCommand(cmd.Context(), args[0], refs)
	},
}

func init() {
	showCmd.Flags().Bool("refs", false, "Include one level of referenced files")
	rootCmd.AddCommand(showCmd)
}

func runShowCommand(ctx context.Context, id string, refs bool) {
	reg, err := registry.Build(ctx, corpusPath(), registry.WithIgnorePatterns(viper.GetStringSlice("ignore")...))
	if err != nil {
		presenter.Error(err, "Failed to build skill registry")
		os.Exit(1)
	}

	desc, ok := reg.Get(id)
	if !ok {
		presenter.Error(errors.Errorf("skill %q not found", id), "Unknown skill")
		os.Exit(1)
	}

	decision := &router.Decision{
		Matches: []router.Match{{ID: desc.ID, Path: desc.FilePath, Size: desc.ContentSize}},
	}

	result := loader.Load(ctx, reg, decision, refs)
	for _, doc := range result.Documents {
		if doc.Reference {
			presenter.Section(doc.Path)
		}
		fmt.Println(doc.Content)
	}
	for _, failure := range result.Failures {
		presenter.Warning(fmt.Sprintf("Failed to load %s: %s", failure.Path, failure.Message))
	}
	if result.Err() != nil && len(result.Documents) == 0 {
		os.Exit(1)
	}
}
