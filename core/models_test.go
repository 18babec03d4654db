package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromLink_Deterministic(t *testing.T) {
	id1 := IDFromLink("https://example.com/story/42")
	id2 := IDFromLink("https://example.com/story/42")
	assert.Equal(t, id1, id2)

	other := IDFromLink("https://example.com/story/43")
	assert.NotEqual(t, id1, other)
}

func TestIDFromLink_CanonicalForm(t *testing.T) {
	// Trailing slashes and surrounding whitespace do not change identity.
	base := IDFromLink("https://example.com/story/42")
	assert.Equal(t, base, IDFromLink("https://example.com/story/42/"))
	assert.Equal(t, base, IDFromLink("  https://example.com/story/42 "))
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Category
	}{
		{"tech", "tech", CategoryTech},
		{"technology alias", "Technology", CategoryTech},
		{"politics", "politics", CategoryPolitics},
		{"business", "business", CategoryBusiness},
		{"finance alias", "finance", CategoryBusiness},
		{"culture", "culture", CategoryCulture},
		{"entertainment alias", "entertainment", CategoryCulture},
		{"other", "other", CategoryOther},
		{"unknown", "sports", CategoryOther},
		{"empty", "", CategoryOther},
		{"whitespace", "  Politics  ", CategoryPolitics},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCategory(tt.input))
		})
	}
}

func TestCategoryString_RoundTrip(t *testing.T) {
	for _, c := range []Category{CategoryOther, CategoryTech, CategoryPolitics, CategoryBusiness, CategoryCulture} {
		assert.Equal(t, c, ParseCategory(c.String()))
	}
}

func TestLabelForScore(t *testing.T) {
	tests := []struct {
		score    int
		expected ControversyLabel
	}{
		{0, LabelMild},
		{24, LabelMild},
		{25, LabelSpicy},
		{49, LabelSpicy},
		{50, LabelHot},
		{74, LabelHot},
		{75, LabelExplosive},
		{100, LabelExplosive},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, LabelForScore(tt.score), "score %d", tt.score)
	}
}

func TestItemControversyLabel(t *testing.T) {
	item := &Item{ControversyScore: 80}
	assert.Equal(t, LabelExplosive, item.ControversyLabel())
}
