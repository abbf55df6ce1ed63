package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillrouter/pkg/registry"
)

func writeSkill(t *testing.T, root, id, frontmatter string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "---\n" + frontmatter + "---\n\n# " + id + "\n\nInstructions.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
}

func buildRegistry(t *testing.T, root string) *registry.Registry {
	t.Helper()
	reg, err := registry.Build(context.Background(), root)
	require.NoError(t, err)
	return reg
}

func matchIDs(decision *Decision) []string {
	ids := make([]string, 0, len(decision.Matches))
	for _, m := range decision.Matches {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestRouteRanking(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "seo-audit", `name: SEO Audit
description: Manages SEO audits and keyword research
`)
	writeSkill(t, tmpDir, "blog-writer", `name: Blog Writer
description: Writes blog posts and articles
`)
	writeSkill(t, tmpDir, "db-migrate", `name: DB Migrate
description: Runs database schema migrations
`)
	reg := buildRegistry(t, tmpDir)

	decision := New().Route(context.Background(), reg, "audit seo keywords", 1<<20)

	require.NotEmpty(t, decision.Matches)
	assert.Equal(t, "seo-audit", decision.Matches[0].ID)
	assert.Equal(t, []string{"seo"}, decision.Matches[0].MatchedTerms)
	assert.InDelta(t, 1.0/3.0, decision.Matches[0].Score, 1e-9)
	assert.NotContains(t, matchIDs(decision), "db-migrate")
	assert.False(t, decision.Truncated)
}

func TestRouteDeterministic(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "alpha", `name: Alpha
description: Handles payment processing
`)
	writeSkill(t, tmpDir, "beta", `name: Beta
description: Handles payment refunds
`)
	reg := buildRegistry(t, tmpDir)

	r := New()
	first := r.Route(context.Background(), reg, "payment issue", 1<<20)
	for i := 0; i < 10; i++ {
		again := r.Route(context.Background(), reg, "payment issue", 1<<20)
		assert.Equal(t, first, again)
	}
}

func TestRouteSpecificityTieBreak(t *testing.T) {
	tmpDir := t.TempDir()
	// same score on "deploy": the skill with the smaller trigger vocabulary
	// wins the tie
	writeSkill(t, tmpDir, "deploy-quick", `name: Quick Deploy
description: Deploy services fast
`)
	writeSkill(t, tmpDir, "deploy-verbose", `name: Verbose Deploy
description: Deploy services across regions, clusters, environments, pipelines, stages fast
`)
	reg := buildRegistry(t, tmpDir)

	decision := New().Route(context.Background(), reg, "deploy fast", 1<<20)

	require.Len(t, decision.Matches, 2)
	assert.Equal(t, "deploy-quick", decision.Matches[0].ID)
	assert.Equal(t, "deploy-verbose", decision.Matches[1].ID)
	assert.Equal(t, decision.Matches[0].Score, decision.Matches[1].Score)
}

func TestRouteIDTieBreak(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "zeta", `name: Zeta
description: Formats yaml files
`)
	writeSkill(t, tmpDir, "acme", `name: Acme
description: Formats json files
`)
	reg := buildRegistry(t, tmpDir)

	// same score, same trigger count: lexicographic id order decides
	decision := New().Route(context.Background(), reg, "formats files", 1<<20)

	require.Len(t, decision.Matches, 2)
	assert.Equal(t, "acme", decision.Matches[0].ID)
	assert.Equal(t, "zeta", decision.Matches[1].ID)
}

func TestRouteBudget(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "first", `name: First
description: Formats json documents
`)
	writeSkill(t, tmpDir, "second", `name: Second
description: Formats json payloads quickly and safely for review
`)
	reg := buildRegistry(t, tmpDir)

	r := New()
	query := "formats json"

	full := r.Route(context.Background(), reg, query, 1<<20)
	require.Len(t, full.Matches, 2)
	firstSize := full.Matches[0].Size

	t.Run("zero budget selects nothing", func(t *testing.T) {
		decision := r.Route(context.Background(), reg, query, 0)
		assert.Empty(t, decision.Matches)
		assert.False(t, decision.Truncated)
	})

	t.Run("budget admits a prefix of the ranking", func(t *testing.T) {
		decision := r.Route(context.Background(), reg, query, firstSize)
		require.Len(t, decision.Matches, 1)
		assert.Equal(t, full.Matches[0].ID, decision.Matches[0].ID)
	})

	t.Run("growing the budget only appends", func(t *testing.T) {
		prev := []string{}
		for budget := 0; budget <= firstSize+full.Matches[1].Size; budget += 64 {
			ids := matchIDs(r.Route(context.Background(), reg, query, budget))
			require.GreaterOrEqual(t, len(ids), len(prev))
			assert.Equal(t, prev, ids[:len(prev)])
			prev = ids
		}
	})
}

func TestRouteParentSuppression(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "marketing", `name: Marketing
description: Orchestrates marketing campaigns, seo and content work
`)
	writeSkill(t, tmpDir, "seo-audit", `name: SEO Audit
description: Audits seo and keyword rankings
parent: marketing
`)
	reg := buildRegistry(t, tmpDir)

	// both parent and child overlap on "seo"; the child wins, the parent is
	// suppressed
	decision := New().Route(context.Background(), reg, "seo help", 1<<20)

	assert.Equal(t, []string{"seo-audit"}, matchIDs(decision))
}

func TestRouteOrchestratorFallback(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "marketing", `name: Marketing
description: Orchestrates marketing campaigns and growth work
`)
	writeSkill(t, tmpDir, "seo-audit", `name: SEO Audit
description: Audits seo and keyword rankings
parent: marketing
`)
	reg := buildRegistry(t, tmpDir)

	r := New(WithMinScore(0.5))

	// "marketing" overlaps the orchestrator weakly; nothing clears the
	// threshold, so the best orchestrator rides along as a fallback
	decision := r.Route(context.Background(), reg, "help with marketing strategy generally", 1<<20)
	assert.Equal(t, []string{"marketing"}, matchIDs(decision))

	// with no overlap anywhere there is no fallback either
	decision = r.Route(context.Background(), reg, "bake a sourdough loaf", 1<<20)
	assert.Empty(t, decision.Matches)
}

func TestRouteNonsenseQuery(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "seo-audit", `name: SEO Audit
description: Manages SEO audits
`)
	reg := buildRegistry(t, tmpDir)

	decision := New().Route(context.Background(), reg, "xyzzy plugh", 1<<20)
	assert.Empty(t, decision.Matches)
	assert.False(t, decision.Truncated)

	decision = New().Route(context.Background(), reg, "", 1<<20)
	assert.Empty(t, decision.Matches)
}

func TestRouteSkipsModelHiddenSkills(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "hidden", `name: Hidden
description: Formats json documents
disable-model-invocation: true
`)
	writeSkill(t, tmpDir, "visible", `name: Visible
description: Formats json documents
`)
	reg := buildRegistry(t, tmpDir)

	decision := New().Route(context.Background(), reg, "formats json", 1<<20)
	assert.Equal(t, []string{"visible"}, matchIDs(decision))
}

func TestRouteExpiredDeadline(t *testing.T) {
	tmpDir := t.TempDir()
	writeSkill(t, tmpDir, "seo-audit", `name: SEO Audit
description: Manages SEO audits
`)
	reg := buildRegistry(t, tmpDir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision := New().Route(ctx, reg, "seo audit", 1<<20)
	assert.True(t, decision.Truncated)
	assert.Empty(t, decision.Matches)
}
