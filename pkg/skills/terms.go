package skills

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords are filtered out of both descriptions and queries. The list is
// deliberately small: descriptions are authored in third person ("Manages
// SEO audits and keyword research"), so function words carry no signal.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "can": {}, "do": {}, "for": {}, "from": {}, "how": {}, "i": {},
	"in": {}, "is": {}, "it": {}, "my": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "use": {}, "when": {},
	"with": {}, "you": {}, "your": {},
}

// Tokenize splits free text into lowercase terms: runs of letters and
// digits, stopword-filtered. Order follows the input; duplicates are kept
// so callers can count overlap against the full token stream.
func Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		token := current.String()
		current.Reset()
		if _, skip := stopwords[token]; !skip {
			tokens = append(tokens, token)
		}
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// DeriveTriggerTerms produces the trigger vocabulary for a description:
// tokenized, de-duplicated, sorted for deterministic comparison.
func DeriveTriggerTerms(description string) []string {
	seen := make(map[string]struct{})
	for _, token := range Tokenize(description) {
		seen[token] = struct{}{}
	}

	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}
