// Package matcher scores free-text queries against skill descriptors.
// The scoring is deterministic term overlap, not ML: the corpus convention
// is keyword tables, and a pure function keeps routing explainable and
// testable. Smarter scorers can replace it behind the Scorer interface.
package matcher

import (
	"sort"

	"github.com/jingkaihe/skillrouter/pkg/skills"
)

// Scorer computes the relevance of a descriptor to a query
type Scorer interface {
	// Score returns a relevance in [0,1] and the trigger terms that
	// matched. Implementations must be pure: same inputs, same outputs.
	Score(query string, desc *skills.Descriptor) (float64, []string)
}

// TermOverlap scores by normalized token overlap:
// |query tokens ∩ trigger terms| / |distinct query tokens|.
type TermOverlap struct{}

// Score implements Scorer
func (TermOverlap) Score(query string, desc *skills.Descriptor) (float64, []string) {
	queryTerms := make(map[string]struct{})
	for _, token := range skills.Tokenize(query) {
		queryTerms[token] = struct{}{}
	}
	if len(queryTerms) == 0 {
		return 0, nil
	}

	triggers := make(map[string]struct{}, len(desc.TriggerTerms))
	for _, term := range desc.TriggerTerms {
		triggers[term] = struct{}{}
	}

	var matched []string
	for term := range queryTerms {
		if _, ok := triggers[term]; ok {
			matched = append(matched, term)
		}
	}
	sort.Strings(matched)

	return float64(len(matched)) / float64(len(queryTerms)), matched
}
