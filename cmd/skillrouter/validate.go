package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skillrouter/pkg/presenter"
	"github.com/jingkaihe/skillrouter/pkg/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the skill corpus",
	Long: `Build the registry and report the first configuration problem found:
missing required frontmatter, duplicate ids, dangling or cyclic parent
references. Exits non-zero when the corpus is invalid.

With --manifest the parsed registry is printed as YAML, which is useful
for reviewing what the router actually sees.`,
	Run: func(cmd *cobra.Command, _ []string) {
		manifest, _ := cmd.Flags().GetBool("manifest")
		runValidateCommand(cmd.Context(), manifest)
	},
}

func init() {
	validateCmd.Flags().Bool("manifest", false, "Print the parsed registry as YAML")
	rootCmd.AddCommand(validateCmd)
}

type manifestEntry struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Parent        string   `yaml:"parent,omitempty"`
	UserInvocable bool     `yaml:"user-invocable"`
	ModelHidden   bool     `yaml:"disable-model-invocation,omitempty"`
	TriggerTerms  []string `yaml:"trigger-terms"`
	Path          string   `yaml:"path"`
	Size          int      `yaml:"size"`
	References    []string `yaml:"references,omitempty"`
}

func runValidateCommand(ctx context.Context, manifest bool) {
	reg, err := registry.Build(ctx, corpusPath(), registry.WithIgnorePatterns(viper.GetStringSlice("ignore")...))
	if err != nil {
		presenter.Error(err, "Corpus is invalid")
		os.Exit(1)
	}

	if manifest {
		entries := make([]manifestEntry, 0, reg.Len())
		for _, desc := range reg.All() {
			entries = append(entries, manifestEntry{
				ID:            desc.ID,
				Name:          desc.Name,
				Description:   desc.Description,
				Parent:        desc.ParentID,
				UserInvocable: desc.UserInvocable,
				ModelHidden:   desc.DisableModelInvocation,
				TriggerTerms:  desc.TriggerTerms,
				Path:          desc.FilePath,
				Size:          desc.ContentSize,
				References:    desc.SubReferences,
			})
		}
		out, err := yaml.Marshal(entries)
		if err != nil {
			presenter.Error(err, "Failed to marshal manifest")
			os.Exit(1)
		}
		fmt.Print(string(out))
		return
	}

	presenter.Success(fmt.Sprintf("Corpus is valid: %d skill(s)", reg.Len()))
}
