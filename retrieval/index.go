// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/spicefeed/ai"
	"github.com/poiesic/spicefeed/core"
)

// Index is an in-memory vector index over immutable documents with a durable
// snapshot on disk.
//
// Loading is persistence-first: the merged corpus is written to the snapshot
// before the in-memory state is swapped, so a crash at any point leaves the
// last durable snapshot authoritative. Queries take a read lock and see the
// pre-load or post-load corpus atomically, never a half-loaded one.
type Index struct {
	mu         sync.RWMutex
	docs       []*Document
	byID       map[core.ID]int
	generation uint64

	path           string
	embedder       ai.Embedder
	pool           *ants.Pool
	batchSize      int
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// Option configures an Index.
type Option func(*Index) error

// WithPoolSize sets the worker pool size for corpus embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(idx *Index) error {
		if size < 1 {
			size = 1
		}
		if idx.pool != nil {
			idx.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		idx.pool = pool
		return nil
	}
}

// WithBatchSize sets how many documents are embedded per API call.
// Default is 32.
func WithBatchSize(size int) Option {
	return func(idx *Index) error {
		if size >= 1 {
			idx.batchSize = size
		}
		return nil
	}
}

// WithRetry sets retry parameters for embedding calls.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(idx *Index) error {
		if maxRetries >= 1 {
			idx.maxRetries = maxRetries
		}
		if baseDelay > 0 {
			idx.retryBaseDelay = baseDelay
		}
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		idx.logger = logger
		return nil
	}
}

// NewIndex creates a new Index persisting to snapshotPath.
func NewIndex(embedder ai.Embedder, snapshotPath string, opts ...Option) (*Index, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		byID:           make(map[core.ID]int),
		path:           snapshotPath,
		embedder:       embedder,
		pool:           pool,
		batchSize:      32,
		maxRetries:     3,
		retryBaseDelay: time.Second,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(idx); optErr != nil {
			idx.Release()
			return nil, optErr
		}
	}
	return idx, nil
}

// Release releases the embedding worker pool.
// The index should not be used after calling Release.
func (idx *Index) Release() {
	if idx.pool != nil {
		idx.pool.Release()
	}
}

// Count returns the number of loaded documents.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Generation returns the snapshot generation currently in memory.
func (idx *Index) Generation() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.generation
}

// LoadCorpus embeds and appends documents to the index. Documents whose Id
// is already loaded are skipped; documents arriving with a vector keep it.
// The updated corpus is persisted before it becomes visible to queries.
func (idx *Index) LoadCorpus(ctx context.Context, docs []*Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fresh := idx.dedupe(docs)
	if len(fresh) == 0 {
		return nil
	}

	if err := idx.embedAll(ctx, fresh); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	merged := make([]*Document, len(idx.docs), len(idx.docs)+len(fresh))
	copy(merged, idx.docs)
	merged = append(merged, fresh...)

	nextGen := idx.generation + 1
	if err := writeSnapshotFile(idx.path, nextGen, merged); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	byID := make(map[core.ID]int, len(merged))
	for i, doc := range merged {
		byID[doc.Id] = i
	}

	idx.docs = merged
	idx.byID = byID
	idx.generation = nextGen

	idx.logger.Info("corpus loaded",
		"added", len(fresh),
		"total", len(merged),
		"generation", nextGen)
	return nil
}

// dedupe drops documents already loaded or repeated within the batch.
func (idx *Index) dedupe(docs []*Document) []*Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[core.ID]bool, len(docs))
	fresh := make([]*Document, 0, len(docs))
	for _, doc := range docs {
		if doc == nil || doc.Text == "" {
			continue
		}
		if _, loaded := idx.byID[doc.Id]; loaded || seen[doc.Id] {
			continue
		}
		seen[doc.Id] = true
		fresh = append(fresh, doc)
	}
	return fresh
}

// embedAll fills in missing vectors, batch by batch on the worker pool.
// Every vector ends up unit-normalized.
func (idx *Index) embedAll(ctx context.Context, docs []*Document) error {
	pending := make([]*Document, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Vector) == 0 {
			pending = append(pending, doc)
		} else {
			doc.Vector = NormalizeVector(doc.Vector)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)

	for start := 0; start < len(pending); start += idx.batchSize {
		end := start + idx.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := idx.embedBatch(ctx, batch); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		}
		if err := idx.pool.Submit(task); err != nil {
			wg.Done()
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
			break
		}
	}
	wg.Wait()

	return firstErr
}

// embedBatch embeds one batch with retry and assigns normalized vectors.
func (idx *Index) embedBatch(ctx context.Context, batch []*Document) error {
	texts := make([]string, len(batch))
	for i, doc := range batch {
		texts[i] = doc.Text
	}

	var vectors [][]float32
	err := retryWithBackoff(ctx, func() error {
		var embedErr error
		vectors, embedErr = idx.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, idx.maxRetries, idx.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", idx.maxRetries, err)
	}

	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(batch), len(vectors))
	}

	for i, doc := range batch {
		doc.Vector = NormalizeVector(vectors[i])
	}
	return nil
}

// Query embeds the query text and returns the k most similar documents by
// cosine similarity, ordered by score descending with Id ascending as the
// tie-break. An empty index returns ErrIndexUnavailable.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]Match, error) {
	if text == "" || k <= 0 {
		return nil, ErrInvalidQuery
	}

	idx.mu.RLock()
	docs := idx.docs
	idx.mu.RUnlock()

	if len(docs) == 0 {
		return nil, ErrIndexUnavailable
	}

	vector, err := idx.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	vector = NormalizeVector(vector)

	matches := make([]Match, 0, len(docs))
	for _, doc := range docs {
		matches = append(matches, Match{
			Document: doc,
			Score:    dotProduct(vector, doc.Vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Document.Id < matches[j].Document.Id
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Persist writes the current corpus to the snapshot path.
// LoadCorpus persists on its own; Persist exists for explicit checkpoints.
func (idx *Index) Persist(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.generation++
	return writeSnapshotFile(idx.path, idx.generation, idx.docs)
}

// Restore replaces the in-memory corpus with the last durable snapshot.
// No re-embedding happens; restored state answers queries identically to
// the state that was persisted.
func (idx *Index) Restore(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	generation, docs, err := readSnapshotFile(idx.path)
	if err != nil {
		return err
	}

	byID := make(map[core.ID]int, len(docs))
	for i, doc := range docs {
		byID[doc.Id] = i
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.docs = docs
	idx.byID = byID
	idx.generation = generation

	idx.logger.Info("snapshot restored", "documents", len(docs), "generation", generation)
	return nil
}
