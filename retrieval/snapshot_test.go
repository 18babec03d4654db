package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/spicefeed/ai/mock"
	"github.com/poiesic/spicefeed/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	docs := []*Document{
		{
			Id:     1,
			Text:   "first document",
			Vector: []float32{0.6, 0.8},
			Metadata: map[string]string{
				"source": "wire",
				"link":   "https://example.com/1",
			},
		},
		{
			Id:     2,
			Text:   "second document",
			Vector: []float32{1, 0},
		},
	}

	bs := marshalSnapshot(7, docs)
	generation, decoded, err := unmarshalSnapshot(bs)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), generation)
	require.Len(t, decoded, 2)
	assert.Equal(t, docs[0].Id, decoded[0].Id)
	assert.Equal(t, docs[0].Text, decoded[0].Text)
	assert.Equal(t, docs[0].Vector, decoded[0].Vector)
	assert.Equal(t, docs[0].Metadata, decoded[0].Metadata)
	assert.Equal(t, docs[1].Vector, decoded[1].Vector)
	assert.Nil(t, decoded[1].Metadata)
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	_, _, err := unmarshalSnapshot([]byte("not a snapshot at all"))
	assert.ErrorIs(t, err, ErrSnapshotCorrupt)

	_, _, err = unmarshalSnapshot([]byte{})
	assert.ErrorIs(t, err, ErrSnapshotCorrupt)

	// Right magic, wrong version.
	bs := marshalSnapshot(1, nil)
	bs[len(snapshotMagic)] = 99
	_, _, err = unmarshalSnapshot(bs)
	assert.ErrorIs(t, err, ErrSnapshotCorrupt)
}

func TestRestoreMissingSnapshot(t *testing.T) {
	idx := newTestIndex(t)
	err := idx.Restore(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestPersistRestoreQueryEquivalence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snap")
	ctx := context.Background()

	first, err := NewIndex(mock.NewMockEmbedder(), path)
	require.NoError(t, err)
	defer first.Release()

	require.NoError(t, first.LoadCorpus(ctx, testDocs(
		"chip export controls tighten",
		"local festival draws crowds",
		"earnings beat expectations",
	)))

	want, err := first.Query(ctx, "export controls", 3)
	require.NoError(t, err)

	// A fresh index restored from the same snapshot answers identically,
	// with no re-embedding.
	embedCalls := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		embedCalls++
		return nil, assert.AnError
	}

	second, err := NewIndex(embedder, path)
	require.NoError(t, err)
	defer second.Release()

	require.NoError(t, second.Restore(ctx))
	assert.Equal(t, first.Generation(), second.Generation())
	assert.Equal(t, first.Count(), second.Count())
	assert.Equal(t, 0, embedCalls)

	got, err := second.Query(ctx, "export controls", 3)
	require.NoError(t, err)

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Document.Id, got[i].Document.Id)
		assert.InDelta(t, want[i].Score, got[i].Score, 1e-6)
		assert.Equal(t, want[i].Document.Text, got[i].Document.Text)
	}
}

func TestPersistWritesCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snap")
	idx, err := NewIndex(mock.NewMockEmbedder(), path)
	require.NoError(t, err)
	defer idx.Release()

	ctx := context.Background()
	require.NoError(t, idx.LoadCorpus(ctx, testDocs("alpha")))
	genAfterLoad := idx.Generation()

	require.NoError(t, idx.Persist(ctx))
	assert.Equal(t, genAfterLoad+1, idx.Generation())

	generation, docs, err := readSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, idx.Generation(), generation)
	require.Len(t, docs, 1)
	assert.Equal(t, core.IDFromLink("https://example.com/alpha"), docs[0].Id)

	// No stray temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNormalizeVector(t *testing.T) {
	t.Run("unit length", func(t *testing.T) {
		v := NormalizeVector([]float32{3, 4})
		assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
		assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
	})

	t.Run("zero vector stays zero", func(t *testing.T) {
		v := NormalizeVector([]float32{0, 0, 0})
		assert.Equal(t, []float32{0, 0, 0}, v)
	})

	t.Run("empty passthrough", func(t *testing.T) {
		assert.Empty(t, NormalizeVector(nil))
	})
}

func TestDotProduct(t *testing.T) {
	assert.InDelta(t, 1.0, float64(dotProduct([]float32{0.6, 0.8}, []float32{0.6, 0.8})), 1e-6)
	assert.InDelta(t, 0.0, float64(dotProduct([]float32{1, 0}, []float32{0, 1})), 1e-6)
	assert.Zero(t, dotProduct([]float32{1}, []float32{1, 0}))
}
