package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/spicefeed/core"
	"github.com/poiesic/spicefeed/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItem(n int) *core.Item {
	return &core.Item{
		Link:             fmt.Sprintf("https://example.com/story/%d", n),
		Title:            fmt.Sprintf("Headline number %d", n),
		Summary:          "Some body text about the story",
		Source:           "Example Feed",
		Category:         core.CategoryTech,
		PublishedAt:      time.Now().UTC().Add(-time.Hour),
		ControversyScore: 10,
	}
}

func TestInsertBatch_NewItems(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	report, err := repo.InsertBatch(ctx, testItem(1), testItem(2), testItem(3))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 0, report.Updated)
	assert.Empty(t, report.Rejected)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestInsertBatch_ReinsertUpdatesMetadata(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	first := testItem(1)
	_, err = repo.InsertBatch(ctx, first)
	require.NoError(t, err)

	// Same link, refreshed metadata.
	second := testItem(1)
	second.Title = "Updated headline number 1"
	second.ControversyScore = 90

	report, err := repo.InsertBatch(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 1, report.Updated)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := repo.GetItem(ctx, core.IDFromLink(first.Link))
	require.NoError(t, err)
	assert.Equal(t, "Updated headline number 1", stored.Title)
	assert.Equal(t, 90, stored.ControversyScore)
	// Ingestion time survives the update, so eviction order is stable.
	assert.True(t, stored.InsertedAt.Equal(first.InsertedAt))
}

func TestInsertBatch_RejectsMalformedWithoutAborting(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	bad := testItem(1)
	bad.Title = ""

	report, err := repo.InsertBatch(ctx, testItem(2), bad, testItem(3))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, bad.Link, report.Rejected[0].Link)
	assert.Contains(t, report.Rejected[0].Reason, "title")

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInsertBatch_EvictsToCapacity(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository(WithCapacity(2))
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	// Insert A, B, C in separate batches so ingestion timestamps differ.
	a, b, c := testItem(1), testItem(2), testItem(3)
	for _, item := range []*core.Item{a, b, c} {
		_, err := repo.InsertBatch(ctx, item)
		require.NoError(t, err)
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A is the oldest ingestion, so it is the one evicted.
	_, err = repo.GetItem(ctx, core.IDFromLink(a.Link))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	for _, kept := range []*core.Item{b, c} {
		stored, err := repo.GetItem(ctx, core.IDFromLink(kept.Link))
		require.NoError(t, err)
		assert.False(t, stored.InsertedAt.Before(a.InsertedAt))
	}
}

func TestInsertBatch_EvictionWithinSameBatch(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository(WithCapacity(2))
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	report, err := repo.InsertBatch(ctx, testItem(1), testItem(2), testItem(3), testItem(4))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Inserted)
	assert.Equal(t, 2, report.Evicted)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEviction_TieBreakByID(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository(WithCapacity(2))
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	// Seed two items sharing an identical ingestion timestamp.
	ts := time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)
	low := testItem(1)
	high := testItem(2)
	for _, item := range []*core.Item{low, high} {
		item.Id = core.IDFromLink(item.Link)
		item.InsertedAt = ts
		item.UpdatedAt = ts
	}
	if low.Id > high.Id {
		low, high = high, low
	}
	err = backend.WithTx(func(tx *badger.Txn) error {
		for _, item := range []*core.Item{low, high} {
			if err := writeItem(tx, item); err != nil {
				return err
			}
		}
		if err := writeCount(tx, 2); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = repo.InsertBatch(ctx, testItem(3))
	require.NoError(t, err)

	// The lower ID goes first when timestamps are equal.
	_, err = repo.GetItem(ctx, low.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.GetItem(ctx, high.Id)
	assert.NoError(t, err)
}

func TestCapacityInvariantAcrossBatches(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository(WithCapacity(5))
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	for batch := 0; batch < 4; batch++ {
		items := make([]*core.Item, 3)
		for i := range items {
			items[i] = testItem(batch*3 + i)
		}
		_, err := repo.InsertBatch(ctx, items...)
		require.NoError(t, err)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.LessOrEqual(t, count, 5)
	}
}

func TestGetRecent(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	now := time.Now().UTC()

	items := make([]*core.Item, 5)
	for i := range items {
		items[i] = testItem(i)
		items[i].PublishedAt = now.Add(-time.Duration(i) * time.Hour)
		if i%2 == 0 {
			items[i].Category = core.CategoryPolitics
		}
	}
	_, err = repo.InsertBatch(ctx, items...)
	require.NoError(t, err)

	recent, err := repo.GetRecent(ctx, nil, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	for i := 1; i < len(recent); i++ {
		assert.False(t, recent[i].PublishedAt.After(recent[i-1].PublishedAt))
	}

	politics := core.CategoryPolitics
	filtered, err := repo.GetRecent(ctx, &politics, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 3)
	for _, item := range filtered {
		assert.Equal(t, core.CategoryPolitics, item.Category)
	}
}

func TestGetTopControversial(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	now := time.Now().UTC()

	scores := []int{10, 95, 55, 80}
	items := make([]*core.Item, len(scores))
	for i, score := range scores {
		items[i] = testItem(i)
		items[i].ControversyScore = score
		items[i].PublishedAt = now.Add(-time.Hour)
	}
	// An old item with a huge score must not appear within the window.
	old := testItem(99)
	old.ControversyScore = 100
	old.PublishedAt = now.AddDate(0, 0, -30)
	items = append(items, old)

	_, err = repo.InsertBatch(ctx, items...)
	require.NoError(t, err)

	top, err := repo.GetTopControversial(ctx, 3, 7)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, 95, top[0].ControversyScore)
	assert.Equal(t, 80, top[1].ControversyScore)
	assert.Equal(t, 55, top[2].ControversyScore)
}

func TestGetTrendingKeywords(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	keywordSets := [][]string{
		{"election", "senate"},
		{"election", "budget"},
		{"election"},
		{"budget"},
	}
	items := make([]*core.Item, len(keywordSets))
	for i, kws := range keywordSets {
		items[i] = testItem(i)
		items[i].Keywords = kws
	}
	_, err = repo.InsertBatch(ctx, items...)
	require.NoError(t, err)

	trending, err := repo.GetTrendingKeywords(ctx, 2)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, storage.KeywordCount{Keyword: "election", Count: 3}, trending[0])
	assert.Equal(t, storage.KeywordCount{Keyword: "budget", Count: 2}, trending[1])
}

func TestKeywordCascadeOnEviction(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository(WithCapacity(1))
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()
	first := testItem(1)
	first.Keywords = []string{"fleeting"}
	_, err = repo.InsertBatch(ctx, first)
	require.NoError(t, err)

	second := testItem(2)
	second.Keywords = []string{"lasting"}
	_, err = repo.InsertBatch(ctx, second)
	require.NoError(t, err)

	// The evicted item's keyword loses its last reference and is gone.
	trending, err := repo.GetTrendingKeywords(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trending, 1)
	assert.Equal(t, "lasting", trending[0].Keyword)
}

func TestDeleteOlderThan(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	// Seed an item ingested 10 days ago, bypassing InsertBatch so the
	// ingestion timestamp can be controlled.
	stale := testItem(1)
	stale.Id = core.IDFromLink(stale.Link)
	stale.InsertedAt = time.Now().UTC().AddDate(0, 0, -10)
	stale.UpdatedAt = stale.InsertedAt
	err = backend.WithTx(func(tx *badger.Txn) error {
		if err := writeItem(tx, stale); err != nil {
			return err
		}
		if err := writeCount(tx, 1); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	fresh := testItem(2)
	_, err = repo.InsertBatch(ctx, fresh)
	require.NoError(t, err)

	removed, err := repo.DeleteOlderThan(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = repo.GetItem(ctx, stale.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetItem_NotFound(t *testing.T) {
	repo, backend, err := NewMemoryItemRepository()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()

	_, err = repo.GetItem(context.Background(), core.ID(12345))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
