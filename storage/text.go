package storage

import "strings"

// Stop words excluded from the text index and from keyword extraction
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "has": true, "his": true, "her": true, "its": true,
	"will": true, "they": true, "their": true, "after": true, "over": true,
}

// Tokenize splits text into index terms: lowercased, punctuation trimmed,
// stop words removed. Both the inverted index and query parsing use it, so
// a query term matches exactly the terms the index stores.
func Tokenize(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := normalizeToken(word)
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// IsStopWord reports whether the normalized token is filtered from the index.
func IsStopWord(token string) bool {
	return stopWords[token]
}

func normalizeToken(word string) string {
	return strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}“”‘’"))
}
