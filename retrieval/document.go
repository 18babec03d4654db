package retrieval

import (
	"github.com/poiesic/spicefeed/core"
)

// Document is one unit of retrievable context. Documents are immutable once
// loaded; the index owns them and never hands out mutable references to its
// internal state.
type Document struct {
	// Id identifies the document. Documents derived from news items reuse
	// the item's link-derived identity.
	Id core.ID

	// Text is the content that was embedded.
	Text string

	// Vector is the unit-normalized embedding. A document loaded without a
	// vector is embedded during LoadCorpus.
	Vector []float32

	// Metadata carries display attributes that survive persist/restore.
	Metadata map[string]string
}

// Match pairs a document with its similarity to a query.
type Match struct {
	Document *Document
	Score    float32
}

// DocumentForItem builds a retrieval document from a stored news item.
// The embedded text is the headline plus summary; source and section
// travel as metadata.
func DocumentForItem(item *core.Item) *Document {
	text := item.Title
	if item.Summary != "" {
		text += "\n" + item.Summary
	}
	return &Document{
		Id:   item.Id,
		Text: text,
		Metadata: map[string]string{
			"source":   item.Source,
			"category": item.Category.String(),
			"link":     item.Link,
		},
	}
}
