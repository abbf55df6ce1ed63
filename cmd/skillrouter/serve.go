package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillrouter/pkg/presenter"
	"github.com/jingkaihe/skillrouter/pkg/registry"
	"github.com/jingkaihe/skillrouter/pkg/router"
	"github.com/jingkaihe/skillrouter/pkg/server"
)

type ServeConfig struct {
	Host     string
	Port     int
	Budget   int
	MinScore float64
	Timeout  time.Duration
	Watch    bool
}

func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host:    "localhost",
		Port:    7430,
		Budget:  32768,
		Timeout: 10 * time.Second,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the skill router over HTTP",
	Long: `Start a local HTTP API for routing queries against the corpus.
The registry is built once at startup; with --watch it is rebuilt
automatically when the corpus changes on disk. Reloads are atomic:
requests always see a complete snapshot, old or new.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getServeConfigFromFlags(cmd)
		runServeCommand(ctx, config)
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind the server to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to bind the server to")
	serveCmd.Flags().Int("budget", defaults.Budget, "Default routing budget in characters")
	serveCmd.Flags().Float64("min-score", defaults.MinScore, "Exclusive minimum score for inclusion")
	serveCmd.Flags().Duration("timeout", defaults.Timeout, "Per-request routing deadline")
	serveCmd.Flags().Bool("watch", false, "Rebuild the registry when the corpus changes")
	rootCmd.AddCommand(serveCmd)
}

func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()
	if host, err := cmd.Flags().GetString("host"); err == nil {
		config.Host = host
	}
	if port, err := cmd.Flags().GetInt("port"); err == nil {
		config.Port = port
	}
	if budget, err := cmd.Flags().GetInt("budget"); err == nil {
		config.Budget = budget
	}
	if minScore, err := cmd.Flags().GetFloat64("min-score"); err == nil {
		config.MinScore = minScore
	}
	if timeout, err := cmd.Flags().GetDuration("timeout"); err == nil {
		config.Timeout = timeout
	}
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	return config
}

func runServeCommand(ctx context.Context, config *ServeConfig) {
	store, err := registry.NewStore(ctx, corpusPath(), registry.WithIgnorePatterns(viper.GetStringSlice("ignore")...))
	if err != nil {
		presenter.Error(err, "Failed to build skill registry")
		os.Exit(1)
	}

	srv, err := server.New(store, router.New(router.WithMinScore(config.MinScore)), &server.Config{
		Host:          config.Host,
		Port:          config.Port,
		DefaultBudget: config.Budget,
		RouteTimeout:  config.Timeout,
	})
	if err != nil {
		presenter.Error(err, "Failed to create server")
		os.Exit(1)
	}

	if config.Watch {
		go func() {
			if err := store.Watch(ctx, 500*time.Millisecond); err != nil && ctx.Err() == nil {
				presenter.Warning("Corpus watcher stopped: " + err.Error())
			}
		}()
	}

	if err := srv.Start(ctx); err != nil {
		presenter.Error(err, "Server shutdown failed")
		os.Exit(1)
	}
}
