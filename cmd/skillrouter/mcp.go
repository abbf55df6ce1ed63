package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillrouter/pkg/loader"
	"github.com/jingkaihe/skillrouter/pkg/presenter"
	"github.com/jingkaihe/skillrouter/pkg/registry"
	"github.com/jingkaihe/skillrouter/pkg/router"
	"github.com/jingkaihe/skillrouter/pkg/version"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the skill router as an MCP server over stdio",
	Long: `Expose the router as Model Context Protocol tools so agent hosts can
discover and load skills without shelling out:

  route_skills  score a query and return the load plan
  load_skill    read one skill document (optionally with references)
  list_skills   enumerate the corpus

The server speaks MCP over stdio and runs until the host closes the pipe.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runMCPCommand(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCPCommand(ctx context.Context) {
	store, err := registry.NewStore(ctx, corpusPath(), registry.WithIgnorePatterns(viper.GetStringSlice("ignore")...))
	if err != nil {
		presenter.Error(err, "Failed to build skill registry")
		os.Exit(1)
	}

	rt := router.New()

	s := server.NewMCPServer(
		"skillrouter",
		version.Get().Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	routeTool := mcp.NewTool("route_skills",
		mcp.WithDescription("Select the most relevant skills for a free-text query, within a character budget. Returns the ordered load plan as JSON."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text user request to route")),
		mcp.WithNumber("budget", mcp.Description("Context budget in characters (default 32768)")),
	)
	s.AddTool(routeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, _ := request.GetArguments()["query"].(string)
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		budget := 32768
		if raw, ok := request.GetArguments()["budget"].(float64); ok && raw > 0 {
			budget = int(raw)
		}

		decision := rt.Route(ctx, store.Registry(), query, budget)
		return jsonToolResult(decision)
	})

	loadTool := mcp.NewTool("load_skill",
		mcp.WithDescription("Read a skill's primary document by id, optionally with one level of referenced files."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Skill id (directory slug)")),
		mcp.WithBoolean("refs", mcp.Description("Include one level of referenced files")),
	)
	s.AddTool(loadTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, _ := request.GetArguments()["id"].(string)
		if id == "" {
			return mcp.NewToolResultError("id is required"), nil
		}
		refs, _ := request.GetArguments()["refs"].(bool)

		reg := store.Registry()
		desc, ok := reg.Get(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("skill %q not found", id)), nil
		}

		decision := &router.Decision{
			Matches: []router.Match{{ID: desc.ID, Path: desc.FilePath, Size: desc.ContentSize}},
		}
		return jsonToolResult(loader.Load(ctx, reg, decision, refs))
	})

	listTool := mcp.NewTool("list_skills",
		mcp.WithDescription("List every skill the router can load, with descriptions and parent links."),
	)
	s.AddTool(listTool, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		type entry struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Parent      string `json:"parent,omitempty"`
		}
		entries := []entry{}
		for _, desc := range store.Registry().All() {
			if desc.DisableModelInvocation {
				continue
			}
			entries = append(entries, entry{
				ID:          desc.ID,
				Name:        desc.Name,
				Description: desc.Description,
				Parent:      desc.ParentID,
			})
		}
		return jsonToolResult(entries)
	})

	if err := server.ServeStdio(s); err != nil {
		presenter.Error(err, "MCP server exited")
		os.Exit(1)
	}
}

func jsonToolResult(data interface{}) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
