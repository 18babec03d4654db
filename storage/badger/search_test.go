package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/spicefeed/core"
	"github.com/poiesic/spicefeed/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		groups   [][]string
		excluded []string
		phrases  []string
	}{
		{
			name:   "plain terms AND together",
			query:  "election senate",
			groups: [][]string{{"election"}, {"senate"}},
		},
		{
			name:   "OR joins terms into one group",
			query:  "election OR referendum budget",
			groups: [][]string{{"election", "referendum"}, {"budget"}},
		},
		{
			name:     "minus excludes",
			query:    "election -rumor",
			groups:   [][]string{{"election"}},
			excluded: []string{"rumor"},
		},
		{
			name:    "quoted phrase",
			query:   `"supreme court" ruling`,
			groups:  [][]string{{"supreme"}, {"court"}, {"ruling"}},
			phrases: []string{"supreme court"},
		},
		{
			name:   "stop words dropped",
			query:  "the election of senate",
			groups: [][]string{{"election"}, {"senate"}},
		},
		{
			name:  "only stop words is empty",
			query: "the of and",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pq := parseQuery(tc.query)
			assert.Equal(t, tc.groups, pq.groups)
			assert.Equal(t, tc.excluded, pq.excluded)
			assert.Equal(t, tc.phrases, pq.phrases)
		})
	}
}

func searchFixture(t *testing.T) (*ItemRepository, func()) {
	t.Helper()
	repo, backend, err := NewMemoryItemRepository()
	require.NoError(t, err)

	now := time.Now().UTC()
	items := []*core.Item{
		{
			Link:             "https://example.com/election-day",
			Title:            "Election day turnout breaks records",
			Summary:          "Voters flooded polling stations across the country",
			Source:           "Wire",
			Category:         core.CategoryPolitics,
			PublishedAt:      now.Add(-2 * time.Hour),
			ControversyScore: 85,
		},
		{
			Link:             "https://example.com/election-calm",
			Title:            "Election results certified without dispute",
			Summary:          "Officials reported a quiet certification process",
			Source:           "Wire",
			Category:         core.CategoryPolitics,
			PublishedAt:      now.Add(-5 * time.Hour),
			ControversyScore: 20,
		},
		{
			Link:             "https://example.com/election-app",
			Title:            "Election tracking app tops download charts",
			Summary:          "A new mobile app visualizes county level results",
			Source:           "TechWire",
			Category:         core.CategoryTech,
			PublishedAt:      now.Add(-1 * time.Hour),
			ControversyScore: 75,
		},
		{
			Link:             "https://example.com/budget",
			Title:            "Budget talks stall in committee",
			Summary:          "Negotiators left without an agreement on spending",
			Source:           "Wire",
			Category:         core.CategoryPolitics,
			PublishedAt:      now.Add(-3 * time.Hour),
			ControversyScore: 60,
		},
	}

	_, err = repo.InsertBatch(context.Background(), items...)
	require.NoError(t, err)

	return repo, func() {
		repo.Close()
		backend.Close()
	}
}

func TestSearch_SingleTerm(t *testing.T) {
	repo, cleanup := searchFixture(t)
	defer cleanup()

	results, err := repo.Search(context.Background(), "election", storage.SearchFilters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, item := range results {
		assert.Contains(t, item.Title, "Election")
	}
}

func TestSearch_CategoryAndControversyFilters(t *testing.T) {
	repo, cleanup := searchFixture(t)
	defer cleanup()

	politics := core.CategoryPolitics
	filters := storage.SearchFilters{
		Category:       &politics,
		MinControversy: 70,
	}
	results, err := repo.Search(context.Background(), "election", filters, 10)
	require.NoError(t, err)

	// The tech story scores 75 but is the wrong category; the calm story
	// is politics but scores 20. Exactly one item satisfies both.
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/election-day", results[0].Link)
}

func TestSearch_Exclusion(t *testing.T) {
	repo, cleanup := searchFixture(t)
	defer cleanup()

	results, err := repo.Search(context.Background(), "election -app", storage.SearchFilters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, item := range results {
		assert.NotContains(t, item.Title, "app")
	}
}

func TestSearch_OrGroup(t *testing.T) {
	repo, cleanup := searchFixture(t)
	defer cleanup()

	results, err := repo.Search(context.Background(), "budget OR app", storage.SearchFilters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	links := []string{results[0].Link, results[1].Link}
	assert.Contains(t, links, "https://example.com/budget")
	assert.Contains(t, links, "https://example.com/election-app")
}

func TestSearch_Phrase(t *testing.T) {
	repo, cleanup := searchFixture(t)
	defer cleanup()

	results, err := repo.Search(context.Background(), `"polling stations"`, storage.SearchFilters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/election-day", results[0].Link)

	// Same words, wrong order: no phrase match.
	results, err = repo.Search(context.Background(), `"stations polling"`, storage.SearchFilters{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TimeWindow(t *testing.T) {
	repo, cleanup := searchFixture(t)
	defer cleanup()

	filters := storage.SearchFilters{
		Since: time.Now().UTC().Add(-4 * time.Hour),
	}
	results, err := repo.Search(context.Background(), "election", filters, 10)
	require.NoError(t, err)

	// The 5-hour-old certification story falls outside the window.
	require.Len(t, results, 2)
	for _, item := range results {
		assert.NotEqual(t, "https://example.com/election-calm", item.Link)
	}
}

func TestSearch_OrderingMoreMatchedTermsFirst(t *testing.T) {
	repo, cleanup := searchFixture(t)
	defer cleanup()

	// The certification story matches three of the query terms while the
	// others match two, so it ranks first despite being the oldest.
	results, err := repo.Search(context.Background(), "election certified OR turnout OR results", storage.SearchFilters{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "https://example.com/election-calm", results[0].Link)
}

func TestSearch_LimitTruncates(t *testing.T) {
	repo, cleanup := searchFixture(t)
	defer cleanup()

	results, err := repo.Search(context.Background(), "election", storage.SearchFilters{}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_InvalidQueries(t *testing.T) {
	repo, cleanup := searchFixture(t)
	defer cleanup()

	_, err := repo.Search(context.Background(), "election", storage.SearchFilters{}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = repo.Search(context.Background(), "the of and", storage.SearchFilters{}, 10)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = repo.Search(context.Background(), "   ", storage.SearchFilters{}, 10)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestSearch_NoMatches(t *testing.T) {
	repo, cleanup := searchFixture(t)
	defer cleanup()

	results, err := repo.Search(context.Background(), "meteorology", storage.SearchFilters{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
