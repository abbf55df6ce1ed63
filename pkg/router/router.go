// Package router turns ranked skill matches into a final, budget-bounded
// load plan.
package router

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillrouter/pkg/matcher"
	"github.com/jingkaihe/skillrouter/pkg/registry"
	"github.com/jingkaihe/skillrouter/pkg/skills"
	"github.com/jingkaihe/skillrouter/pkg/telemetry"
)

// Match is one selected skill with its relevance evidence
type Match struct {
	ID           string   `json:"id"`
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matchedTerms,omitempty"`
	Path         string   `json:"path"`
	Size         int      `json:"size"`
}

// Decision is the ordered, budget-constrained set of skills chosen for a
// query. An empty decision is a normal outcome, not an error. Decisions
// are never mutated after Route returns them.
type Decision struct {
	Query   string  `json:"query"`
	Budget  int     `json:"budget"`
	Matches []Match `json:"matches"`
	// Truncated is set when the deadline expired before every descriptor
	// was scored; the decision holds the best partial result.
	Truncated bool `json:"truncated,omitempty"`
}

// Router ranks descriptors for queries against a registry snapshot.
// Routers hold no mutable state; concurrent Route calls need no locking.
type Router struct {
	scorer   matcher.Scorer
	minScore float64
}

// Option configures a Router
type Option func(*Router)

// WithScorer replaces the default term-overlap scorer
func WithScorer(s matcher.Scorer) Option {
	return func(r *Router) { r.scorer = s }
}

// WithMinScore sets the exclusive score threshold for inclusion.
// The default is 0: any positive overlap qualifies.
func WithMinScore(min float64) Option {
	return func(r *Router) { r.minScore = min }
}

// New creates a Router
func New(opts ...Option) *Router {
	r := &Router{scorer: matcher.TermOverlap{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type candidate struct {
	desc    *skills.Descriptor
	score   float64
	matched []string
}

// Route scores all eligible descriptors against the query, orders them by
// (score desc, specificity, id) and greedily accepts them while the
// cumulative primary-document size stays within budgetChars.
//
// Parents whose sub-skill matched are dropped to avoid redundant context;
// when no sub-skill matches at all, the best-scoring orchestrator is used
// as a fallback.
func (r *Router) Route(ctx context.Context, reg *registry.Registry, query string, budgetChars int) *Decision {
	decision := &Decision{Query: query, Budget: budgetChars, Matches: []Match{}}

	telemetry.SetAttributes(ctx,
		attribute.Int("router.registry_size", reg.Len()),
		attribute.Int("router.budget_chars", budgetChars),
	)

	var candidates []candidate
	for _, desc := range reg.All() {
		select {
		case <-ctx.Done():
			decision.Truncated = true
			return r.finalize(decision, reg, candidates)
		default:
		}

		if desc.DisableModelInvocation {
			continue
		}
		score, matched := r.scorer.Score(query, desc)
		candidates = append(candidates, candidate{desc: desc, score: score, matched: matched})
	}

	return r.finalize(decision, reg, candidates)
}

func (r *Router) finalize(decision *Decision, reg *registry.Registry, candidates []candidate) *Decision {
	kept := make([]candidate, 0, len(candidates))
	matchedIDs := make(map[string]struct{})
	for _, c := range candidates {
		if c.score > r.minScore {
			kept = append(kept, c)
			matchedIDs[c.desc.ID] = struct{}{}
		}
	}

	// prefer the specific sub-skill over its parent orchestrator: a parent
	// rides along only when none of its children matched
	filtered := kept[:0]
	for _, c := range kept {
		if reg.HasChildren(c.desc.ID) && anyChildMatched(reg, c.desc.ID, matchedIDs) {
			continue
		}
		filtered = append(filtered, c)
	}
	kept = filtered

	if len(kept) == 0 {
		if fallback, ok := r.bestOrchestrator(reg, candidates); ok {
			kept = append(kept, fallback)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		// smaller trigger vocabulary means a more specific skill
		if len(kept[i].desc.TriggerTerms) != len(kept[j].desc.TriggerTerms) {
			return len(kept[i].desc.TriggerTerms) < len(kept[j].desc.TriggerTerms)
		}
		return kept[i].desc.ID < kept[j].desc.ID
	})

	total := 0
	for _, c := range kept {
		if total+c.desc.ContentSize > decision.Budget {
			break
		}
		total += c.desc.ContentSize
		decision.Matches = append(decision.Matches, Match{
			ID:           c.desc.ID,
			Score:        c.score,
			MatchedTerms: c.matched,
			Path:         c.desc.FilePath,
			Size:         c.desc.ContentSize,
		})
	}

	return decision
}

func anyChildMatched(reg *registry.Registry, parentID string, matchedIDs map[string]struct{}) bool {
	for _, childID := range reg.Children(parentID) {
		if _, ok := matchedIDs[childID]; ok {
			return true
		}
	}
	return false
}

// bestOrchestrator picks the highest-scoring descriptor that other skills
// point at as a parent, provided it has any overlap at all.
func (r *Router) bestOrchestrator(reg *registry.Registry, candidates []candidate) (candidate, bool) {
	var best candidate
	found := false
	for _, c := range candidates {
		if !reg.HasChildren(c.desc.ID) || c.score <= 0 {
			continue
		}
		if !found || c.score > best.score || (c.score == best.score && c.desc.ID < best.desc.ID) {
			best = c
			found = true
		}
	}
	return best, found
}
