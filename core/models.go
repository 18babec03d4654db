package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// For items it is derived from the canonical article link, so the same
// article ingested twice always maps to the same ID.
type ID uint64

// IDFromLink generates a deterministic ID from a canonical article link
// using BLAKE2b hashing. Identical links produce identical IDs.
func IDFromLink(link string) ID {
	link = strings.TrimSuffix(strings.TrimSpace(link), "/")
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(link))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Category classifies an item into one of the fixed editorial sections.
type Category int

const (
	// CategoryOther is the fallback for items that fit no other section.
	CategoryOther Category = iota
	// CategoryTech covers technology and science items.
	CategoryTech
	// CategoryPolitics covers political items.
	CategoryPolitics
	// CategoryBusiness covers business and finance items.
	CategoryBusiness
	// CategoryCulture covers culture and entertainment items.
	CategoryCulture
)

var categoryNames = map[Category]string{
	CategoryOther:    "other",
	CategoryTech:     "tech",
	CategoryPolitics: "politics",
	CategoryBusiness: "business",
	CategoryCulture:  "culture",
}

// String returns the lowercase section name.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "other"
}

// ParseCategory maps a section name to its Category. Unknown names map to
// CategoryOther, so feed configuration hints are forgiving.
func ParseCategory(name string) Category {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tech", "technology", "science":
		return CategoryTech
	case "politics", "political":
		return CategoryPolitics
	case "business", "finance", "economy":
		return CategoryBusiness
	case "culture", "entertainment", "arts":
		return CategoryCulture
	default:
		return CategoryOther
	}
}

// ControversyLabel is the human-readable bucket derived from a controversy score.
type ControversyLabel string

const (
	// LabelMild covers scores below 25.
	LabelMild ControversyLabel = "mild"
	// LabelSpicy covers scores from 25 to 49.
	LabelSpicy ControversyLabel = "spicy"
	// LabelHot covers scores from 50 to 74.
	LabelHot ControversyLabel = "hot"
	// LabelExplosive covers scores of 75 and above.
	LabelExplosive ControversyLabel = "explosive"
)

// LabelForScore maps a 0-100 controversy score to its label bucket.
func LabelForScore(score int) ControversyLabel {
	switch {
	case score < 25:
		return LabelMild
	case score < 50:
		return LabelSpicy
	case score < 75:
		return LabelHot
	default:
		return LabelExplosive
	}
}

// Item represents a single ingested content unit after normalization.
// It is created by the fetcher, enriched with a controversy score and
// keywords, and destroyed only by capacity eviction or an age purge.
type Item struct {
	Id               ID
	Link             string // Canonical article link; the identity of the item
	Title            string
	Summary          string
	Source           string // Name of the source feed that produced the item
	Category         Category
	PublishedAt      time.Time // When the source published the item
	InsertedAt       time.Time // When the item was first inserted into the store
	UpdatedAt        time.Time // When the item was last updated
	Language         string    // BCP 47 language tag, may be empty
	ControversyScore int       // 0-100, assigned during enrichment
	Keywords         []string  // Normalized tokens for trending queries
}

// ControversyLabel returns the label bucket for the item's score.
func (it *Item) ControversyLabel() ControversyLabel {
	return LabelForScore(it.ControversyScore)
}
