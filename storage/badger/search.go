package badger

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/spicefeed/core"
	"github.com/poiesic/spicefeed/storage"
)

// parsedQuery is the normalized form of a search expression.
// groups are AND-ed; each group is a set of OR-ed terms; excluded terms
// remove candidates; phrases are verified against the record text.
type parsedQuery struct {
	groups   [][]string
	excluded []string
	phrases  []string
}

func (q parsedQuery) empty() bool {
	return len(q.groups) == 0 && len(q.phrases) == 0
}

// allTerms returns the distinct positive terms across all groups.
func (q parsedQuery) allTerms() []string {
	var terms []string
	for _, group := range q.groups {
		terms = append(terms, group...)
	}
	return uniqueKeywords(terms)
}

// parseQuery understands three constructs on top of plain AND-ed terms:
// "OR" joins the terms on either side into one alternation group, a
// leading '-' excludes a term, and double quotes mark an exact phrase.
// Terms go through the same normalization as the index.
func parseQuery(query string) parsedQuery {
	var pq parsedQuery

	// Pull out quoted phrases first.
	rest := query
	for {
		start := strings.IndexByte(rest, '"')
		if start < 0 {
			break
		}
		end := strings.IndexByte(rest[start+1:], '"')
		if end < 0 {
			// Unbalanced quote; treat the remainder as plain terms.
			rest = rest[:start] + " " + rest[start+1:]
			break
		}
		phrase := strings.TrimSpace(rest[start+1 : start+1+end])
		if phrase != "" {
			pq.phrases = append(pq.phrases, phrase)
			// Phrase tokens still narrow the candidate set.
			for _, token := range storage.Tokenize(phrase) {
				pq.groups = append(pq.groups, []string{token})
			}
		}
		rest = rest[:start] + " " + rest[start+2+end:]
	}

	pendingOr := false
	for _, field := range strings.Fields(rest) {
		if field == "OR" {
			pendingOr = len(pq.groups) > 0
			continue
		}

		negated := strings.HasPrefix(field, "-") && len(field) > 1
		if negated {
			field = field[1:]
		}

		tokens := storage.Tokenize(field)
		if len(tokens) == 0 {
			pendingOr = false
			continue
		}
		token := tokens[0]

		if negated {
			pq.excluded = append(pq.excluded, token)
			pendingOr = false
			continue
		}

		if pendingOr {
			last := len(pq.groups) - 1
			pq.groups[last] = append(pq.groups[last], token)
		} else {
			pq.groups = append(pq.groups, []string{token})
		}
		pendingOr = false
	}

	return pq
}

// Search runs a full-text query over title and summary, applies the
// filters exactly, and orders results by matched-term count, recency,
// then ID.
func (r *ItemRepository) Search(ctx context.Context, query string, filters storage.SearchFilters, limit int) ([]*core.Item, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	pq := parseQuery(query)
	if pq.empty() {
		return nil, storage.ErrInvalidQuery
	}

	type scored struct {
		item  *core.Item
		score int
	}
	var matches []scored

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Candidate set: intersection of the groups' posting unions.
		var candidates map[core.ID]bool
		for _, group := range pq.groups {
			union := make(map[core.ID]bool)
			for _, token := range group {
				ids, err := readPostings(tx, makePartialTokenKey(token))
				if err != nil {
					return err
				}
				for _, id := range ids {
					union[id] = true
				}
			}
			if candidates == nil {
				candidates = union
				continue
			}
			for id := range candidates {
				if !union[id] {
					delete(candidates, id)
				}
			}
			if len(candidates) == 0 {
				return nil
			}
		}

		for _, token := range pq.excluded {
			ids, err := readPostings(tx, makePartialTokenKey(token))
			if err != nil {
				return err
			}
			for _, id := range ids {
				delete(candidates, id)
			}
		}

		terms := pq.allTerms()
		for id := range candidates {
			item, err := readItem(tx, makeItemKey(id))
			if err != nil {
				return err
			}
			if item == nil {
				continue
			}
			if !matchesFilters(item, filters) {
				continue
			}
			if !matchesPhrases(item, pq.phrases) {
				continue
			}
			matches = append(matches, scored{item: item, score: countMatchedTerms(item, terms)})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		if !matches[i].item.PublishedAt.Equal(matches[j].item.PublishedAt) {
			return matches[i].item.PublishedAt.After(matches[j].item.PublishedAt)
		}
		return matches[i].item.Id < matches[j].item.Id
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	results := make([]*core.Item, len(matches))
	for i, m := range matches {
		results[i] = m.item
	}
	return results, nil
}

// readPostings scans one token's posting list and returns the item IDs.
func readPostings(tx *badger.Txn, prefix []byte) ([]core.ID, error) {
	iter := tx.NewIterator(badger.DefaultIteratorOptions)
	defer iter.Close()

	var ids []core.ID
	for iter.Seek(prefix); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		var id core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func matchesFilters(item *core.Item, filters storage.SearchFilters) bool {
	if filters.Category != nil && item.Category != *filters.Category {
		return false
	}
	if item.ControversyScore < filters.MinControversy {
		return false
	}
	if !filters.Since.IsZero() && item.PublishedAt.Before(filters.Since) {
		return false
	}
	if !filters.Until.IsZero() && item.PublishedAt.After(filters.Until) {
		return false
	}
	return true
}

func matchesPhrases(item *core.Item, phrases []string) bool {
	if len(phrases) == 0 {
		return true
	}
	text := strings.ToLower(item.Title + " " + item.Summary)
	for _, phrase := range phrases {
		if !strings.Contains(text, strings.ToLower(phrase)) {
			return false
		}
	}
	return true
}

func countMatchedTerms(item *core.Item, terms []string) int {
	itemTokens := make(map[string]bool)
	for _, token := range indexTokens(item) {
		itemTokens[token] = true
	}
	count := 0
	for _, term := range terms {
		if itemTokens[term] {
			count++
		}
	}
	return count
}
