package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillrouter/pkg/presenter"
	"github.com/jingkaihe/skillrouter/pkg/registry"
)

type ListConfig struct {
	Filter string
	All    bool
}

func NewListConfig() *ListConfig {
	return &ListConfig{}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List skills in the corpus",
	Long: `List skills with their ids, descriptions and parents. Skills marked
user-invocable: false are hidden unless --all is given.

Examples:
  skillrouter list
  skillrouter list --filter 'seo-*'
  skillrouter list --all`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getListConfigFromFlags(cmd)
		runListCommand(ctx, config)
	},
}

func init() {
	defaults := NewListConfig()
	listCmd.Flags().String("filter", defaults.Filter, "Glob over skill ids (e.g. 'seo-*')")
	listCmd.Flags().Bool("all", defaults.All, "Include skills that are not user-invocable")
	rootCmd.AddCommand(listCmd)
}

func getListConfigFromFlags(cmd *cobra.Command) *ListConfig {
	config := NewListConfig()
	if filter, err := cmd.Flags().GetString("filter"); err == nil {
		config.Filter = filter
	}
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		config.All = all
	}
	return config
}

func runListCommand(ctx context.Context, config *ListConfig) {
	reg, err := registry.Build(ctx, corpusPath(), registry.WithIgnorePatterns(viper.GetStringSlice("ignore")...))
	if err != nil {
		presenter.Error(err, "Failed to build skill registry")
		os.Exit(1)
	}

	var filter glob.Glob
	if config.Filter != "" {
		filter, err = glob.Compile(config.Filter)
		if err != nil {
			presenter.Error(err, "Invalid --filter pattern")
			os.Exit(1)
		}
	}

	listed := 0
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPARENT\tDESCRIPTION")
	fmt.Fprintln(tw, "--\t------\t-----------")

	for _, desc := range reg.All() {
		if !desc.UserInvocable && !config.All {
			continue
		}
		if filter != nil && !filter.Match(desc.ID) {
			continue
		}
		description := desc.Description
		if len(description) > 60 {
			description = description[:57] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", desc.ID, desc.ParentID, description)
		listed++
	}
	tw.Flush()

	if listed == 0 {
		presenter.Info("No skills found")
	}
}
