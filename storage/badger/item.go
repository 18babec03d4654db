package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/spicefeed/core"
	"github.com/poiesic/spicefeed/storage"
)

const (
	// DefaultCapacity is the hard bound on the item count unless
	// overridden with WithCapacity.
	DefaultCapacity = 50000

	// valueLogGCInterval is how many evicting batches pass between
	// value-log GC rounds. Space reclamation is amortized, not per-batch.
	valueLogGCInterval = 16
)

// ItemRepository implements storage.ItemRepository for BadgerDB.
//
// Writes (InsertBatch, DeleteOlderThan) are serialized through a mutex so
// the store, not its callers, owns the eviction decision: two concurrent
// batches can never interleave their capacity checks. Reads run on their
// own snapshot transactions and never observe a partially applied batch.
type ItemRepository struct {
	backend  *Backend
	capacity int
	mu       sync.Mutex // serializes write transactions
	gcBatches int
	logger   *slog.Logger
}

var _ storage.ItemRepository = (*ItemRepository)(nil)

// Option configures an ItemRepository.
type Option func(*ItemRepository) error

// WithCapacity sets the hard bound on the item count.
// Values below 1 are rejected silently in favor of the default.
func WithCapacity(capacity int) Option {
	return func(r *ItemRepository) error {
		if capacity >= 1 {
			r.capacity = capacity
		}
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *ItemRepository) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(backend *Backend, opts ...Option) (*ItemRepository, error) {
	r := &ItemRepository{
		backend:  backend,
		capacity: DefaultCapacity,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Close releases resources held by the repository.
func (r *ItemRepository) Close() error {
	return nil
}

// Capacity returns the configured hard bound on the item count.
func (r *ItemRepository) Capacity() int {
	return r.capacity
}

// Count returns the current number of stored items.
func (r *ItemRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		count, err = readCount(tx)
		return err
	}, false)
	return count, err
}

// InsertBatch adds or updates items as a single unit of work, then evicts
// oldest-first until the count is within capacity. The whole batch commits
// in one transaction; readers see all of it or none of it.
func (r *ItemRepository) InsertBatch(ctx context.Context, items ...*core.Item) (*storage.InsertReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	report := &storage.InsertReport{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		count, err := readCount(tx)
		if err != nil {
			return err
		}

		// Truncated to the precision the serialized form carries, so a
		// timestamp read back always equals the one that was written.
		now := time.Now().UTC().Truncate(time.Microsecond)
		for _, item := range items {
			if err := core.ValidateItem(item); err != nil {
				link := ""
				if item != nil {
					link = item.Link
				}
				report.Rejected = append(report.Rejected, storage.RejectedItem{
					Link:   link,
					Reason: err.Error(),
				})
				continue
			}

			if item.Id == 0 {
				item.Id = core.IDFromLink(item.Link)
			}
			if item.PublishedAt.IsZero() {
				item.PublishedAt = now
			}

			existing, err := readItem(tx, makeItemKey(item.Id))
			if err != nil {
				return err
			}

			if existing != nil {
				// Metadata update: identity and ingestion time are kept,
				// so eviction order is stable across re-ingestion.
				item.InsertedAt = existing.InsertedAt
				item.UpdatedAt = now
				if err := deleteIndexEntries(tx, existing); err != nil {
					return err
				}
				if err := writeItem(tx, item); err != nil {
					return err
				}
				report.Updated++
				continue
			}

			item.InsertedAt = now
			item.UpdatedAt = now
			if err := writeItem(tx, item); err != nil {
				return err
			}
			count++
			report.Inserted++
		}

		evicted, err := r.evictToCapacity(tx, count)
		if err != nil {
			return err
		}
		count -= evicted
		report.Evicted = evicted

		if err := writeCount(tx, count); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	if report.Evicted > 0 {
		r.gcBatches++
		if r.gcBatches%valueLogGCInterval == 0 {
			r.backend.RunValueLogGC()
		}
	}

	return report, nil
}

// evictToCapacity deletes the oldest items (InsertedAt, then ID) until the
// count is within capacity. Runs inside the batch transaction.
func (r *ItemRepository) evictToCapacity(tx *badger.Txn, count int) (int, error) {
	excess := count - r.capacity
	if excess <= 0 {
		return 0, nil
	}

	prefix := []byte(itemIngestPrefix + ":")
	victims := make([]core.ID, 0, excess)

	iter := tx.NewIterator(badger.DefaultIteratorOptions)
	for iter.Seek(prefix); iter.Valid() && len(victims) < excess; iter.Next() {
		key := iter.Item().Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		var id core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			iter.Close()
			return 0, err
		}
		victims = append(victims, id)
	}
	iter.Close()

	for _, id := range victims {
		item, err := readItem(tx, makeItemKey(id))
		if err != nil {
			return 0, err
		}
		if item == nil {
			return 0, storage.ErrNotFound
		}
		if err := deleteItemCascade(tx, item); err != nil {
			return 0, err
		}
	}

	if len(victims) < excess {
		// The index disagrees with the count; an over-capacity store
		// must never be committed silently.
		return 0, storage.ErrCapacityViolated
	}

	r.logger.Debug("evicted items to capacity", "evicted", len(victims), "capacity", r.capacity)
	return len(victims), nil
}

// GetItem retrieves a single item by ID.
func (r *ItemRepository) GetItem(ctx context.Context, id core.ID) (*core.Item, error) {
	var result *core.Item
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readItem(tx, makeItemKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetRecent retrieves the most recently published items, newest first.
// A nil category spans all sections.
func (r *ItemRepository) GetRecent(ctx context.Context, category *core.Category, limit int) ([]*core.Item, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var prefix []byte
	if category != nil {
		prefix = makeCategoryPrefix(*category)
	} else {
		prefix = []byte(itemPublishedPrefix + ":")
	}

	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		ids, err = collectReverse(tx, prefix, limit)
		return err
	}, false)
	if err != nil {
		return nil, err
	}

	return r.getItems(ids)
}

// GetTopControversial retrieves the highest-scoring items published within
// the last `days` days, highest score first.
func (r *ItemRepository) GetTopControversial(ctx context.Context, limit, days int) ([]*core.Item, error) {
	if limit <= 0 || days <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	cutoffMicros := uint64(cutoff.UnixMicro())
	prefix := []byte(itemScorePrefix + ":")

	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(seekLast(prefix)); iter.Valid() && len(ids) < limit; iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}
			// Key layout: prefix, 1-byte score, 8-byte published, 8-byte id.
			if len(key) != len(prefix)+17 {
				continue
			}
			published := binary.BigEndian.Uint64(key[len(prefix)+1:])
			if published < cutoffMicros {
				continue
			}
			ids = append(ids, core.ID(binary.BigEndian.Uint64(key[len(prefix)+9:])))
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	return r.getItems(ids)
}

// GetTrendingKeywords returns the most frequent keywords, most frequent
// first, with the keyword itself as the tie-break.
func (r *ItemRepository) GetTrendingKeywords(ctx context.Context, limit int) ([]storage.KeywordCount, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	prefix := []byte(keywordCountPrefix + ":")
	var counts []storage.KeywordCount

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}
			keyword := string(key[len(prefix):])
			var count uint64
			if err := iter.Item().Value(func(val []byte) error {
				count = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
			if count > 0 {
				counts = append(counts, storage.KeywordCount{Keyword: keyword, Count: int(count)})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Keyword < counts[j].Keyword
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

// DeleteOlderThan removes items ingested more than `days` days ago.
// Returns the number of items removed.
func (r *ItemRepository) DeleteOlderThan(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		return 0, storage.ErrInvalidQuery
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	endKey := makePartialIngestKey(cutoff)
	prefix := []byte(itemIngestPrefix + ":")

	removed := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var victims []core.ID

		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) || bytes.Compare(key, endKey) > 0 {
				break
			}
			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				iter.Close()
				return err
			}
			victims = append(victims, id)
		}
		iter.Close()

		for _, id := range victims {
			item, err := readItem(tx, makeItemKey(id))
			if err != nil {
				return err
			}
			if item == nil {
				return storage.ErrNotFound
			}
			if err := deleteItemCascade(tx, item); err != nil {
				return err
			}
		}

		count, err := readCount(tx)
		if err != nil {
			return err
		}
		if err := writeCount(tx, count-len(victims)); err != nil {
			return err
		}

		removed = len(victims)
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		r.backend.RunValueLogGC()
	}
	return removed, nil
}

// getItems loads full records for a list of IDs, preserving order.
func (r *ItemRepository) getItems(ids []core.ID) ([]*core.Item, error) {
	results := make([]*core.Item, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			item, err := readItem(tx, makeItemKey(id))
			if err != nil {
				return err
			}
			if item != nil {
				results = append(results, item)
			}
		}
		return nil
	}, false)
	return results, err
}

// Helper functions

// readItem reads an item record. Returns nil, nil when the key is absent.
func readItem(tx *badger.Txn, key []byte) (*core.Item, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.Item
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalItem(val)
		return unmarshalErr
	})
	return record, err
}

// writeItem stores the record and all of its index entries.
func writeItem(tx *badger.Txn, item *core.Item) error {
	if err := tx.Set(makeItemKey(item.Id), storage.MarshalItem(item)); err != nil {
		return err
	}

	idValue := storage.MarshalID(item.Id)
	if err := tx.Set(makeIngestKey(item.InsertedAt, item.Id), idValue); err != nil {
		return err
	}
	if err := tx.Set(makePublishedKey(item.PublishedAt, item.Id), idValue); err != nil {
		return err
	}
	if err := tx.Set(makeCategoryKey(item.Category, item.PublishedAt, item.Id), idValue); err != nil {
		return err
	}
	if err := tx.Set(makeScoreKey(item.ControversyScore, item.PublishedAt, item.Id), idValue); err != nil {
		return err
	}

	for _, token := range indexTokens(item) {
		if err := tx.Set(makeTokenKey(token, item.Id), idValue); err != nil {
			return err
		}
	}
	for _, keyword := range uniqueKeywords(item.Keywords) {
		if err := tx.Set(makeKeywordKey(keyword, item.Id), idValue); err != nil {
			return err
		}
		if err := adjustKeywordCount(tx, keyword, 1); err != nil {
			return err
		}
	}
	return nil
}

// deleteIndexEntries removes all index entries for an item, leaving the
// record itself in place. Used before rewriting an updated item.
func deleteIndexEntries(tx *badger.Txn, item *core.Item) error {
	if err := tx.Delete(makeIngestKey(item.InsertedAt, item.Id)); err != nil {
		return err
	}
	if err := tx.Delete(makePublishedKey(item.PublishedAt, item.Id)); err != nil {
		return err
	}
	if err := tx.Delete(makeCategoryKey(item.Category, item.PublishedAt, item.Id)); err != nil {
		return err
	}
	if err := tx.Delete(makeScoreKey(item.ControversyScore, item.PublishedAt, item.Id)); err != nil {
		return err
	}
	for _, token := range indexTokens(item) {
		if err := tx.Delete(makeTokenKey(token, item.Id)); err != nil {
			return err
		}
	}
	for _, keyword := range uniqueKeywords(item.Keywords) {
		if err := tx.Delete(makeKeywordKey(keyword, item.Id)); err != nil {
			return err
		}
		if err := adjustKeywordCount(tx, keyword, -1); err != nil {
			return err
		}
	}
	return nil
}

// deleteItemCascade removes the record and every index entry, including
// keyword counts. A keyword whose count drops to zero is removed entirely.
func deleteItemCascade(tx *badger.Txn, item *core.Item) error {
	if err := deleteIndexEntries(tx, item); err != nil {
		return err
	}
	return tx.Delete(makeItemKey(item.Id))
}

// adjustKeywordCount applies a delta to a keyword's reference count,
// deleting the count key when it reaches zero (the keyword cascade).
func adjustKeywordCount(tx *badger.Txn, keyword string, delta int64) error {
	key := makeKeywordCountKey(keyword)

	var count int64
	entry, err := tx.Get(key)
	if err != nil {
		if err != badger.ErrKeyNotFound {
			return err
		}
	} else {
		if err := entry.Value(func(val []byte) error {
			count = int64(binary.BigEndian.Uint64(val))
			return nil
		}); err != nil {
			return err
		}
	}

	count += delta
	if count <= 0 {
		return tx.Delete(key)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(count))
	return tx.Set(key, buf)
}

// readCount reads the item count meta key. Missing means zero.
func readCount(tx *badger.Txn) (int, error) {
	entry, err := tx.Get([]byte(itemCountKey))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}
	var count int
	err = entry.Value(func(val []byte) error {
		count = int(binary.BigEndian.Uint64(val))
		return nil
	})
	return count, err
}

func writeCount(tx *badger.Txn, count int) error {
	if count < 0 {
		count = 0
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(count))
	return tx.Set([]byte(itemCountKey), buf)
}

// collectReverse walks an index prefix backwards, collecting up to limit IDs.
func collectReverse(tx *badger.Txn, prefix []byte, limit int) ([]core.ID, error) {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []core.ID
	for iter.Seek(seekLast(prefix)); iter.Valid() && len(ids) < limit; iter.Next() {
		key := iter.Item().Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		var id core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// seekLast builds a key that sorts after every key with the given prefix.
func seekLast(prefix []byte) []byte {
	key := make([]byte, len(prefix), len(prefix)+18)
	copy(key, prefix)
	for i := 0; i < 18; i++ {
		key = append(key, 0xff)
	}
	return key
}

// indexTokens returns the unique text-index terms for an item.
func indexTokens(item *core.Item) []string {
	tokens := storage.Tokenize(item.Title + " " + item.Summary)
	return uniqueKeywords(tokens)
}

// uniqueKeywords deduplicates while preserving first-seen order.
func uniqueKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	unique := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		unique = append(unique, kw)
	}
	return unique
}
