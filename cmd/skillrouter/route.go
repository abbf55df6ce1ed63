package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillrouter/pkg/loader"
	"github.com/jingkaihe/skillrouter/pkg/presenter"
	"github.com/jingkaihe/skillrouter/pkg/registry"
	"github.com/jingkaihe/skillrouter/pkg/router"
	"github.com/jingkaihe/skillrouter/pkg/telemetry"
)

type RouteConfig struct {
	Budget   int
	MinScore float64
	Timeout  time.Duration
	JSON     bool
	Load     bool
	Refs     bool
}

func NewRouteConfig() *RouteConfig {
	return &RouteConfig{
		Budget:   32768,
		MinScore: 0,
		Timeout:  10 * time.Second,
	}
}

var routeCmd = &cobra.Command{
	Use:   "route <query>",
	Short: "Select skills for a free-text query",
	Long: `Score the query against every skill in the corpus and print the
resulting load plan in priority order. An empty result means no skill
matched; that is a normal outcome and exits 0.

Examples:
  skillrouter route "how do I improve my search ranking"
  skillrouter route --budget 16384 --json "set up CI for a monorepo"
  skillrouter route --load --refs "write a product launch email"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getRouteConfigFromFlags(cmd)
		runRouteCommand(ctx, args[0], config)
	},
}

func init() {
	defaults := NewRouteConfig()
	routeCmd.Flags().Int("budget", defaults.Budget, "Context budget in characters")
	routeCmd.Flags().Float64("min-score", defaults.MinScore, "Exclusive minimum score for inclusion")
	routeCmd.Flags().Duration("timeout", defaults.Timeout, "Deadline for routing and loading")
	routeCmd.Flags().Bool("json", false, "Print the decision as JSON")
	routeCmd.Flags().Bool("load", false, "Also print the selected documents' contents")
	routeCmd.Flags().Bool("refs", false, "With --load, include one level of referenced files")
	rootCmd.AddCommand(routeCmd)
}

func getRouteConfigFromFlags(cmd *cobra.Command) *RouteConfig {
	config := NewRouteConfig()
	if budget, err := cmd.Flags().GetInt("budget"); err == nil {
		config.Budget = budget
	}
	if minScore, err := cmd.Flags().GetFloat64("min-score"); err == nil {
		config.MinScore = minScore
	}
	if timeout, err := cmd.Flags().GetDuration("timeout"); err == nil {
		config.Timeout = timeout
	}
	if jsonOut, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOut
	}
	if load, err := cmd.Flags().GetBool("load"); err == nil {
		config.Load = load
	}
	if refs, err := cmd.Flags().GetBool("refs"); err == nil {
		config.Refs = refs
	}
	return config
}

func runRouteCommand(ctx context.Context, query string, config *RouteConfig) {
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	reg, err := registry.Build(ctx, corpusPath(), registry.WithIgnorePatterns(viper.GetStringSlice("ignore")...))
	if err != nil {
		presenter.Error(err, "Failed to build skill registry")
		os.Exit(1)
	}

	rt := router.New(router.WithMinScore(config.MinScore))

	var decision *router.Decision
	_ = telemetry.WithSpan(ctx, "route", func(ctx context.Context) error {
		decision = rt.Route(ctx, reg, query, config.Budget)
		return nil
	})

	var docs *loader.Result
	if config.Load {
		docs = loader.Load(ctx, reg, decision, config.Refs)
	}

	if config.JSON {
		out := map[string]interface{}{"decision": decision}
		if docs != nil {
			out["documents"] = docs
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			presenter.Error(err, "Failed to encode decision")
			os.Exit(1)
		}
		return
	}

	if len(decision.Matches) == 0 {
		presenter.Info("No skill matched")
		return
	}

	for _, match := range decision.Matches {
		fmt.Printf("%.3f  %s  %s\n", match.Score, match.ID, match.Path)
	}
	if decision.Truncated {
		presenter.Warning("Routing deadline expired; decision is partial")
	}

	if docs == nil {
		return
	}
	for _, doc := range docs.Documents {
		presenter.Section(doc.Path)
		fmt.Println(doc.Content)
	}
	for _, failure := range docs.Failures {
		presenter.Warning(fmt.Sprintf("Failed to load %s: %s", failure.Path, failure.Message))
	}
}
