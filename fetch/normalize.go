package fetch

import (
	"html"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/poiesic/spicefeed/core"
)

// normalizeFeed turns parsed feed entries into core items. Entries without a
// link or title are dropped and counted, never fatal.
func normalizeFeed(source Source, feed *gofeed.Feed) ([]*core.Item, int) {
	items := make([]*core.Item, 0, len(feed.Items))
	dropped := 0

	for _, entry := range feed.Items {
		item, ok := normalizeEntry(source, feed, entry)
		if !ok {
			dropped++
			continue
		}
		items = append(items, item)
	}
	return items, dropped
}

// normalizeEntry maps one feed entry to a core.Item. Returns false when the
// entry lacks the identity fields required by validation.
func normalizeEntry(source Source, feed *gofeed.Feed, entry *gofeed.Item) (*core.Item, bool) {
	link := strings.TrimSpace(entry.Link)
	title := cleanText(entry.Title)
	if link == "" || title == "" {
		return nil, false
	}

	summary := cleanText(entry.Description)
	if summary == "" {
		summary = cleanText(entry.Content)
	}

	item := &core.Item{
		Link:     link,
		Title:    title,
		Summary:  summary,
		Source:   source.Name,
		Category: source.Category,
		Language: strings.TrimSpace(feed.Language),
	}

	// Prefer the published timestamp; fall back to updated. An entry with
	// neither keeps the zero value and the store stamps ingestion time.
	if entry.PublishedParsed != nil {
		item.PublishedAt = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		item.PublishedAt = entry.UpdatedParsed.UTC()
	}

	return item, true
}

// cleanText strips markup, decodes HTML entities, and collapses whitespace.
// Feed descriptions routinely embed markup fragments.
func cleanText(s string) string {
	s = stripTags(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// stripTags removes anything between < and >. Unclosed tags swallow the
// remainder, which is the safe direction for display text.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
