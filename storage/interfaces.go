package storage

import (
	"context"
	"time"

	"github.com/poiesic/spicefeed/core"
)

// InsertReport summarizes the outcome of a batch insert.
type InsertReport struct {
	// Inserted is the number of items stored for the first time.
	Inserted int
	// Updated is the number of items whose identifier was already known
	// and whose metadata was refreshed in place.
	Updated int
	// Evicted is the number of items removed to restore the capacity bound.
	Evicted int
	// Rejected lists items that failed validation, with reasons.
	// Rejected items never abort the rest of the batch.
	Rejected []RejectedItem
}

// RejectedItem records a single per-item validation failure.
type RejectedItem struct {
	Link   string
	Reason string
}

// SearchFilters narrows full-text search results.
// Zero values leave the corresponding dimension unconstrained.
type SearchFilters struct {
	// Category restricts results to a single section when non-nil.
	Category *core.Category
	// MinControversy excludes items scoring below the threshold.
	MinControversy int
	// Since excludes items published before it when non-zero.
	Since time.Time
	// Until excludes items published after it when non-zero.
	Until time.Time
}

// KeywordCount pairs a keyword with the number of stored items carrying it.
type KeywordCount struct {
	Keyword string
	Count   int
}

// ItemRepository provides operations for managing news items.
// Implementations must be thread-safe, keep all secondary indexes in sync
// with every insert and delete, and never let the item count exceed the
// configured capacity once InsertBatch returns.
type ItemRepository interface {
	// InsertBatch adds or updates items as a single unit of work.
	// Items with Id=0 get their Id derived from Link. A known Id is a
	// metadata update, never a duplicate row. After the batch is applied
	// the oldest items (by InsertedAt, then Id) are evicted until the
	// count is within capacity; readers never observe an over-capacity
	// state. Malformed items are reported in the result, not fatal.
	InsertBatch(ctx context.Context, items ...*core.Item) (*InsertReport, error)

	// GetItem retrieves a single item by ID.
	// Returns ErrNotFound if the item doesn't exist.
	GetItem(ctx context.Context, id core.ID) (*core.Item, error)

	// Search runs a full-text query over title and summary.
	// Terms are AND-ed, "OR" alternates adjacent terms, a leading '-'
	// excludes a term, and double quotes require an exact phrase.
	// Filters are applied exactly. Results are ordered by match strength,
	// then recency.
	Search(ctx context.Context, query string, filters SearchFilters, limit int) ([]*core.Item, error)

	// GetRecent retrieves the most recently published items, newest first.
	// A nil category spans all sections.
	GetRecent(ctx context.Context, category *core.Category, limit int) ([]*core.Item, error)

	// GetTopControversial retrieves the highest-scoring items published
	// within the last `days` days, highest score first.
	GetTopControversial(ctx context.Context, limit, days int) ([]*core.Item, error)

	// GetTrendingKeywords returns the most frequent keywords across all
	// stored items, most frequent first.
	GetTrendingKeywords(ctx context.Context, limit int) ([]KeywordCount, error)

	// DeleteOlderThan removes items ingested more than `days` days ago,
	// independent of the capacity bound. Returns the number removed.
	DeleteOlderThan(ctx context.Context, days int) (int, error)

	// Count returns the current number of stored items.
	Count(ctx context.Context) (int, error)

	// Capacity returns the configured hard bound on the item count.
	Capacity() int

	// Close releases resources held by the repository.
	Close() error
}
