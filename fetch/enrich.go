package fetch

import (
	"context"
	"sort"
	"strings"

	"github.com/poiesic/spicefeed/core"
	"github.com/poiesic/spicefeed/storage"
)

// maxKeywords caps the keywords attached to an item by enrichment.
const maxKeywords = 8

// chargedTerms maps tokens to controversy weight. The heuristic scorer sums
// the weights of distinct hits; the result is capped at 100.
var chargedTerms = map[string]int{
	"scandal":       30,
	"outrage":       30,
	"controversy":   25,
	"controversial": 25,
	"backlash":      25,
	"lawsuit":       20,
	"protest":       20,
	"banned":        20,
	"ban":           15,
	"accused":       20,
	"corruption":    25,
	"fraud":         25,
	"resign":        20,
	"resigns":       20,
	"crisis":        20,
	"clash":         15,
	"dispute":       15,
	"slams":         15,
	"furious":       15,
	"leaked":        15,
	"strike":        15,
	"boycott":       20,
	"divisive":      25,
	"firestorm":     25,
}

// enrich assigns controversy score and keywords to an item. When the Fetcher
// has a classifier it wins; a classifier error falls back to the heuristics
// so a flaky model never blocks ingestion.
func (f *Fetcher) enrich(ctx context.Context, item *core.Item) {
	if f.classifier != nil {
		verdict, err := f.classifier.Classify(ctx, item.Title, item.Summary)
		if err == nil {
			item.Category = verdict.Category
			item.ControversyScore = verdict.ControversyScore
			item.Keywords = verdict.Keywords
			return
		}
		f.logger.Warn("classifier failed, using heuristics", "link", item.Link, "err", err)
	}

	item.ControversyScore = heuristicScore(item.Title, item.Summary)
	item.Keywords = extractKeywords(item.Title, item.Summary, maxKeywords)
}

// heuristicScore rates how divisive a story reads from its charged-term
// hits alone. Deliberately crude; the LLM classifier is the precise path.
func heuristicScore(title, summary string) int {
	score := 0
	seen := make(map[string]bool)
	for _, token := range storage.Tokenize(title + " " + summary) {
		if seen[token] {
			continue
		}
		seen[token] = true
		score += chargedTerms[token]
	}
	if score > 100 {
		score = 100
	}
	return score
}

// extractKeywords picks the most frequent non-stop tokens, with title tokens
// weighted double. Ties break alphabetically for determinism.
func extractKeywords(title, summary string, max int) []string {
	weight := make(map[string]int)
	for _, token := range storage.Tokenize(title) {
		weight[token] += 2
	}
	for _, token := range storage.Tokenize(summary) {
		weight[token]++
	}

	tokens := make([]string, 0, len(weight))
	for token := range weight {
		// Single characters and bare numbers carry no signal.
		if len(token) < 2 || isNumeric(token) {
			continue
		}
		tokens = append(tokens, token)
	}

	sort.Slice(tokens, func(i, j int) bool {
		if weight[tokens[i]] != weight[tokens[j]] {
			return weight[tokens[i]] > weight[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})

	if len(tokens) > max {
		tokens = tokens[:max]
	}
	return tokens
}

func isNumeric(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return r < '0' || r > '9'
	}) < 0
}
