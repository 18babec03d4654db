package mock

import (
	"context"
	"strings"

	"github.com/poiesic/spicefeed/ai"
	"github.com/poiesic/spicefeed/core"
)

// MockClassifier is a test double for ai.Classifier.
// It allows custom behavior injection via function fields.
type MockClassifier struct {
	// ClassifyFunc is called by Classify if set.
	// If nil, uses default keyword-driven behavior.
	ClassifyFunc func(ctx context.Context, title, summary string) (*ai.Classification, error)

	callCount int
}

// NewMockClassifier creates a mock classifier with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockClassifier().
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

// Classify returns a deterministic classification derived from the text.
// Default behavior: category from trigger words, score from the word "scandal"
// count, keywords from the first words of the title.
func (m *MockClassifier) Classify(ctx context.Context, title, summary string) (*ai.Classification, error) {
	m.callCount++

	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, title, summary)
	}

	text := strings.ToLower(title + " " + summary)

	category := core.CategoryOther
	switch {
	case strings.Contains(text, "election") || strings.Contains(text, "parliament"):
		category = core.CategoryPolitics
	case strings.Contains(text, "software") || strings.Contains(text, "chip"):
		category = core.CategoryTech
	case strings.Contains(text, "market") || strings.Contains(text, "earnings"):
		category = core.CategoryBusiness
	case strings.Contains(text, "festival") || strings.Contains(text, "museum"):
		category = core.CategoryCulture
	}

	score := 10
	if strings.Contains(text, "scandal") || strings.Contains(text, "outrage") {
		score = 80
	}

	keywords := make([]string, 0, 4)
	for _, word := range strings.Fields(strings.ToLower(title)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) > 3 {
			keywords = append(keywords, word)
		}
		if len(keywords) == 4 {
			break
		}
	}

	return &ai.Classification{
		Category:         category,
		ControversyScore: score,
		Keywords:         keywords,
	}, nil
}

// CallCount returns the number of times Classify was called.
func (m *MockClassifier) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockClassifier) Reset() {
	m.callCount = 0
	m.ClassifyFunc = nil
}
