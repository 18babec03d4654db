package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/poiesic/spicefeed/ai/mock"
	"github.com/poiesic/spicefeed/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.snap")
	idx, err := NewIndex(mock.NewMockEmbedder(), path, opts...)
	require.NoError(t, err)
	t.Cleanup(idx.Release)
	return idx
}

func testDocs(texts ...string) []*Document {
	docs := make([]*Document, len(texts))
	for i, text := range texts {
		docs[i] = &Document{
			Id:   core.IDFromLink("https://example.com/" + text),
			Text: text,
		}
	}
	return docs
}

func TestLoadCorpusAndQuery(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	err := idx.LoadCorpus(ctx, testDocs(
		"chip export controls tighten",
		"local festival draws crowds",
		"earnings beat expectations",
	))
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Count())
	assert.Equal(t, uint64(1), idx.Generation())

	matches, err := idx.Query(ctx, "chip export controls tighten", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// The mock embedder is deterministic: the identical text is its own
	// nearest neighbor.
	assert.Equal(t, "chip export controls tighten", matches[0].Document.Text)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestQueryEmptyIndex(t *testing.T) {
	idx := newTestIndex(t)

	_, err := idx.Query(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestQueryInvalidArguments(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.LoadCorpus(context.Background(), testDocs("one")))

	_, err := idx.Query(context.Background(), "", 5)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = idx.Query(context.Background(), "anything", 0)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestLoadCorpusDeduplicates(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.LoadCorpus(ctx, testDocs("alpha", "beta")))
	require.NoError(t, idx.LoadCorpus(ctx, testDocs("beta", "gamma")))

	assert.Equal(t, 3, idx.Count())

	// Duplicates within one batch collapse too.
	require.NoError(t, idx.LoadCorpus(ctx, append(testDocs("delta"), testDocs("delta")...)))
	assert.Equal(t, 4, idx.Count())
}

func TestLoadCorpusEmbeddingFailure(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("model offline")
	}

	path := filepath.Join(t.TempDir(), "index.snap")
	idx, err := NewIndex(embedder, path, WithRetry(1, 0))
	require.NoError(t, err)
	defer idx.Release()

	err = idx.LoadCorpus(context.Background(), testDocs("doomed"))
	require.Error(t, err)

	// A failed load leaves the index untouched.
	assert.Equal(t, 0, idx.Count())
	_, err = idx.Query(context.Background(), "doomed", 1)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestQueryDeterministicOrder(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.LoadCorpus(ctx, testDocs("one", "two", "three", "four")))

	first, err := idx.Query(ctx, "one", 4)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := idx.Query(ctx, "one", 4)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, first[j].Document.Id, again[j].Document.Id)
		}
	}
}

func TestNewIndexRequiresEmbedder(t *testing.T) {
	_, err := NewIndex(nil, filepath.Join(t.TempDir(), "index.snap"))
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestDocumentForItem(t *testing.T) {
	item := &core.Item{
		Id:       42,
		Link:     "https://example.com/story",
		Title:    "Headline",
		Summary:  "Body",
		Source:   "wire",
		Category: core.CategoryTech,
	}

	doc := DocumentForItem(item)
	assert.Equal(t, core.ID(42), doc.Id)
	assert.Equal(t, "Headline\nBody", doc.Text)
	assert.Equal(t, "wire", doc.Metadata["source"])
	assert.Equal(t, "tech", doc.Metadata["category"])
	assert.Equal(t, "https://example.com/story", doc.Metadata["link"])
}
