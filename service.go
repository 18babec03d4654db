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


package spicefeed

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/spicefeed/ai"
	"github.com/poiesic/spicefeed/ai/openai"
	"github.com/poiesic/spicefeed/config"
	"github.com/poiesic/spicefeed/core"
	"github.com/poiesic/spicefeed/fetch"
	"github.com/poiesic/spicefeed/retrieval"
	"github.com/poiesic/spicefeed/storage"
	"github.com/poiesic/spicefeed/storage/badger"
)

// Service is the external face of spicefeed: it wires the fetcher, the
// bounded item store, and the retrieval index behind one lifecycle.
type Service struct {
	backend *badger.Backend
	items   storage.ItemRepository
	fetcher *fetch.Fetcher
	index   *retrieval.Index
	provider ai.AIProvider
	sources []fetch.Source
	retentionDays int
	logger  *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	provider ai.AIProvider
	inMemory bool
	logger   *slog.Logger
}

// WithProvider injects an AI provider, overriding the one built from
// config. Tests use this to wire mocks.
func WithProvider(provider ai.AIProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithInMemoryStore opens the item store in memory, ignoring the
// configured storage path.
func WithInMemoryStore() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// WithServiceLogger sets a custom logger. Default is slog.Default().
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewService creates a Service from configuration.
func NewService(cfg config.Config, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(cfg.Storage.Path, options.inMemory)
	if err != nil {
		return nil, err
	}

	capacityOpts := []badger.Option{}
	if cfg.Storage.Capacity > 0 {
		capacityOpts = append(capacityOpts, badger.WithCapacity(cfg.Storage.Capacity))
	}
	items, err := badger.NewItemRepository(backend, capacityOpts...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		aiOpts := []ai.ConfigOption{}
		if cfg.AI.Host != "" {
			aiOpts = append(aiOpts, ai.WithHost(cfg.AI.Host))
		}
		if cfg.AI.EmbeddingModel != "" {
			aiOpts = append(aiOpts, ai.WithEmbeddingModel(cfg.AI.EmbeddingModel))
		}
		if cfg.AI.ClassifierModel != "" {
			aiOpts = append(aiOpts, ai.WithClassifierModel(cfg.AI.ClassifierModel))
		}
		provider, err = openai.NewProvider(ai.NewConfig(aiOpts...))
		if err != nil {
			items.Close()
			backend.Close()
			return nil, err
		}
	}

	fetchOpts := []fetch.Option{
		fetch.WithPoolSize(cfg.Fetch.PoolSize),
		fetch.WithBreaker(cfg.Fetch.BreakerThreshold, cfg.Fetch.BreakerCooldown.Std()),
		fetch.WithRetry(cfg.Fetch.RetryAttempts, cfg.Fetch.RetryBaseDelay.Std()),
		fetch.WithSourceTimeout(cfg.Fetch.SourceTimeout.Std()),
		fetch.WithLogger(options.logger),
	}
	if cfg.AI.UseClassifier {
		fetchOpts = append(fetchOpts, fetch.WithClassifier(provider.Classifier()))
	}
	fetcher, err := fetch.NewFetcher(fetchOpts...)
	if err != nil {
		provider.Close()
		items.Close()
		backend.Close()
		return nil, err
	}

	indexOpts := []retrieval.Option{retrieval.WithLogger(options.logger)}
	if cfg.Retrieval.BatchSize > 0 {
		indexOpts = append(indexOpts, retrieval.WithBatchSize(cfg.Retrieval.BatchSize))
	}
	index, err := retrieval.NewIndex(provider.Embedder(), cfg.Retrieval.SnapshotPath, indexOpts...)
	if err != nil {
		fetcher.Release()
		provider.Close()
		items.Close()
		backend.Close()
		return nil, err
	}

	return &Service{
		backend:       backend,
		items:         items,
		fetcher:       fetcher,
		index:         index,
		provider:      provider,
		sources:       SourcesFromConfig(cfg.Sources),
		retentionDays: cfg.Storage.RetentionDays,
		logger:        options.logger,
	}, nil
}

// Close shuts the service down in reverse construction order.
func (s *Service) Close() error {
	s.index.Release()
	s.fetcher.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.items.Close(); err != nil {
		s.logger.Error("error closing item repository", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// ItemRepository exposes the underlying store for advanced callers.
func (s *Service) ItemRepository() storage.ItemRepository {
	return s.items
}

// IngestResult describes one fetch-and-store cycle.
type IngestResult struct {
	// Fetched is the size of the merged batch handed to the store.
	Fetched int

	Inserted int
	Updated  int
	Evicted  int
	Rejected []storage.RejectedItem

	// Report carries the per-source fetch outcome.
	Report *fetch.Report
}

// FetchAndStore runs one fetch cycle over the given sources (or the
// configured ones when none are passed) and inserts the batch as a unit.
// Partial source failures surface in the report, not as an error.
func (s *Service) FetchAndStore(ctx context.Context, sources ...fetch.Source) (*IngestResult, error) {
	if len(sources) == 0 {
		sources = s.sources
	}

	items, report, err := s.fetcher.FetchAll(ctx, sources)
	if err != nil {
		return &IngestResult{Report: report}, err
	}

	insertReport, err := s.items.InsertBatch(ctx, items...)
	if err != nil {
		return &IngestResult{Fetched: len(items), Report: report}, err
	}

	result := &IngestResult{
		Fetched:  len(items),
		Inserted: insertReport.Inserted,
		Updated:  insertReport.Updated,
		Evicted:  insertReport.Evicted,
		Rejected: insertReport.Rejected,
		Report:   report,
	}

	s.logger.Info("ingest cycle complete",
		"fetched", result.Fetched,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"evicted", result.Evicted,
		"rejected", len(result.Rejected))
	return result, nil
}

// SearchOptions narrows a SearchNews call.
type SearchOptions struct {
	Category       *core.Category
	MinControversy int
	Since          time.Time
	Until          time.Time
	Limit          int
}

// SearchNews runs a filtered full-text query over the store.
func (s *Service) SearchNews(ctx context.Context, query string, opts SearchOptions) ([]*core.Item, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	filters := storage.SearchFilters{
		Category:       opts.Category,
		MinControversy: opts.MinControversy,
		Since:          opts.Since,
		Until:          opts.Until,
	}
	return s.items.Search(ctx, query, filters, limit)
}

// Recent returns the latest published items, optionally by section.
func (s *Service) Recent(ctx context.Context, category *core.Category, limit int) ([]*core.Item, error) {
	return s.items.GetRecent(ctx, category, limit)
}

// TopControversial returns the highest-scoring items of the window.
func (s *Service) TopControversial(ctx context.Context, limit, days int) ([]*core.Item, error) {
	return s.items.GetTopControversial(ctx, limit, days)
}

// TrendingKeywords returns the most frequent keywords across the store.
func (s *Service) TrendingKeywords(ctx context.Context, limit int) ([]storage.KeywordCount, error) {
	return s.items.GetTrendingKeywords(ctx, limit)
}

// Purge removes items older than the configured retention.
// A zero retention makes Purge a no-op.
func (s *Service) Purge(ctx context.Context) (int, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}
	return s.items.DeleteOlderThan(ctx, s.retentionDays)
}

// LoadCorpusFromStore embeds the most recent stored items into the
// retrieval index. limit bounds how many items are loaded.
func (s *Service) LoadCorpusFromStore(ctx context.Context, limit int) error {
	items, err := s.items.GetRecent(ctx, nil, limit)
	if err != nil {
		return err
	}

	docs := make([]*retrieval.Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, retrieval.DocumentForItem(item))
	}
	return s.index.LoadCorpus(ctx, docs)
}

// GetContext answers a semantic retrieval query over the loaded corpus.
// Returns retrieval.ErrIndexUnavailable when nothing is loaded.
func (s *Service) GetContext(ctx context.Context, queryText string, k int) ([]retrieval.Match, error) {
	return s.index.Query(ctx, queryText, k)
}

// RestoreIndex loads the last durable retrieval snapshot.
func (s *Service) RestoreIndex(ctx context.Context) error {
	return s.index.Restore(ctx)
}

// SourcesFromConfig maps configured sources to fetcher sources.
func SourcesFromConfig(cfgs []config.SourceConfig) []fetch.Source {
	sources := make([]fetch.Source, 0, len(cfgs))
	for _, sc := range cfgs {
		sources = append(sources, fetch.Source{
			Name:     sc.Name,
			FeedURL:  sc.URL,
			Category: core.ParseCategory(sc.Category),
			Timeout:  sc.Timeout.Std(),
		})
	}
	return sources
}
