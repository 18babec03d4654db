package storage

import (
	"testing"
	"time"

	"github.com/poiesic/spicefeed/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"link-based ID", core.IDFromLink("https://example.com/a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Empty(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalItem(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name string
		item *core.Item
	}{
		{
			name: "minimal item",
			item: &core.Item{
				Id:          core.ID(1),
				Link:        "https://example.com/a",
				Title:       "Headline",
				Source:      "Example",
				Category:    core.CategoryOther,
				PublishedAt: now,
				InsertedAt:  now,
				UpdatedAt:   now,
			},
		},
		{
			name: "full item",
			item: &core.Item{
				Id:               core.IDFromLink("https://example.com/b"),
				Link:             "https://example.com/b",
				Title:            "Senate passes controversial budget bill",
				Summary:          "After a marathon session, the chamber voted 51-49.",
				Source:           "Wire Service",
				Category:         core.CategoryPolitics,
				PublishedAt:      now.Add(-2 * time.Hour),
				InsertedAt:       now,
				UpdatedAt:        now,
				Language:         "en",
				ControversyScore: 82,
				Keywords:         []string{"senate", "budget", "vote"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalItem(tt.item)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalItem(data)
			require.NoError(t, err)
			assert.Equal(t, tt.item, decoded)
		})
	}
}

func TestUnmarshalItem_Truncated(t *testing.T) {
	item := &core.Item{
		Id:          core.ID(7),
		Link:        "https://example.com/c",
		Title:       "Headline",
		PublishedAt: time.Now().UTC(),
	}
	data := MarshalItem(item)

	_, err := UnmarshalItem(data[:len(data)/2])
	assert.Error(t, err)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"lowercases and trims punctuation", "Hello, World!", []string{"hello", "world"}},
		{"drops stop words", "the senate and the house", []string{"senate", "house"}},
		{"empty input", "", []string{}},
		{"only stop words", "the a an", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokenize(tt.input))
		})
	}
}
