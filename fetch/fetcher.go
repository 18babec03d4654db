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


package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/spicefeed/ai"
	"github.com/poiesic/spicefeed/core"
)

// Fetcher polls news feeds concurrently and turns their entries into core
// items. Each source gets its own circuit breaker; breaker state is scoped
// to the Fetcher instance.
type Fetcher struct {
	pool             *ants.Pool
	client           *http.Client
	classifier       ai.Classifier
	breakers         map[string]*breaker
	breakerMu        sync.Mutex
	failureThreshold int
	cooldown         time.Duration
	maxAttempts      int
	baseDelay        time.Duration
	defaultTimeout   time.Duration
	logger           *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher) error

// WithPoolSize sets the worker pool size for concurrent fetching.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(f *Fetcher) error {
		if size < 1 {
			size = 1
		}

		if f.pool != nil {
			f.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		f.pool = pool
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for feed requests.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) error {
		if client != nil {
			f.client = client
		}
		return nil
	}
}

// WithClassifier sets an optional LLM classifier for enrichment.
// Without one, heuristic scoring and keyword extraction apply.
func WithClassifier(classifier ai.Classifier) Option {
	return func(f *Fetcher) error {
		f.classifier = classifier
		return nil
	}
}

// WithBreaker sets the per-source circuit breaker parameters: the circuit
// opens after threshold consecutive failures and stays open for cooldown.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(f *Fetcher) error {
		if threshold >= 1 {
			f.failureThreshold = threshold
		}
		if cooldown > 0 {
			f.cooldown = cooldown
		}
		return nil
	}
}

// WithRetry sets the per-source retry parameters.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(f *Fetcher) error {
		if maxAttempts >= 1 {
			f.maxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			f.baseDelay = baseDelay
		}
		return nil
	}
}

// WithSourceTimeout sets the default per-source fetch timeout, used when a
// Source does not carry its own.
func WithSourceTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) error {
		if timeout > 0 {
			f.defaultTimeout = timeout
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// NewFetcher creates a new Fetcher.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	f := &Fetcher{
		pool:             pool,
		client:           &http.Client{Timeout: 30 * time.Second},
		breakers:         make(map[string]*breaker),
		failureThreshold: 3,
		cooldown:         5 * time.Minute,
		maxAttempts:      3,
		baseDelay:        500 * time.Millisecond,
		defaultTimeout:   30 * time.Second,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(f); optErr != nil {
			f.Release()
			return nil, optErr
		}
	}
	return f, nil
}

// Release releases the worker pool.
// The Fetcher should not be used after calling Release.
func (f *Fetcher) Release() {
	if f.pool != nil {
		f.pool.Release()
	}
}

// sourceResult carries one source's outcome from its worker.
type sourceResult struct {
	name    string
	items   []*core.Item
	dropped int
	err     error
	skipped bool
}

// FetchAll polls every source concurrently and returns the merged,
// deduplicated, enriched batch plus a per-source report. A failing source
// never fails the cycle; only zero successful sources does, with
// ErrAllSourcesFailed alongside the report.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]*core.Item, *Report, error) {
	if len(sources) == 0 {
		return nil, nil, ErrNoSources
	}

	results := make([]sourceResult, len(sources))
	var wg sync.WaitGroup

	for i, source := range sources {
		wg.Add(1)
		submitErr := f.pool.Submit(func() {
			defer wg.Done()
			results[i] = f.fetchOne(ctx, source)
		})
		if submitErr != nil {
			// Pool released or overloaded; account for the source inline.
			results[i] = sourceResult{name: source.Name, err: submitErr}
			wg.Done()
		}
	}
	wg.Wait()

	report := &Report{Sources: make(map[string]SourceReport, len(sources))}
	merged := make(map[core.ID]*core.Item)

	for _, res := range results {
		sr := SourceReport{Status: StatusOK, Items: len(res.items), Dropped: res.dropped}
		switch {
		case res.skipped:
			sr.Status = StatusCircuitOpen
			sr.Err = ErrCircuitOpen.Error()
		case res.err != nil:
			sr.Status = statusFor(res.err)
			sr.Err = res.err.Error()
		}
		report.Sources[res.name] = sr

		for _, item := range res.items {
			id := core.IDFromLink(item.Link)
			item.Id = id
			// Same story from two feeds: the most recently published wins.
			if existing, ok := merged[id]; ok && !item.PublishedAt.After(existing.PublishedAt) {
				continue
			}
			merged[id] = item
		}
	}

	if report.Succeeded() == 0 {
		return nil, report, ErrAllSourcesFailed
	}

	batch := make([]*core.Item, 0, len(merged))
	for _, item := range merged {
		f.enrich(ctx, item)
		batch = append(batch, item)
	}

	f.logger.Info("fetch cycle complete",
		"sources", len(sources),
		"succeeded", report.Succeeded(),
		"items", len(batch))

	return batch, report, nil
}

// fetchOne runs the breaker check, the bounded fetch, and normalization
// for a single source.
func (f *Fetcher) fetchOne(ctx context.Context, source Source) sourceResult {
	res := sourceResult{name: source.Name}

	br := f.breakerFor(source.Name)
	if !br.allow() {
		f.logger.Debug("skipping source, circuit open", "source", source.Name)
		res.skipped = true
		return res
	}

	items, dropped, err := f.fetchSource(ctx, source)
	if err != nil {
		br.failure()
		f.logger.Warn("source fetch failed",
			"source", source.Name,
			"state", br.currentState().String(),
			"err", err)
		res.err = err
		return res
	}

	br.success()
	res.items = items
	res.dropped = dropped
	return res
}

// fetchSource fetches and parses one feed with timeout and retries.
func (f *Fetcher) fetchSource(ctx context.Context, source Source) ([]*core.Item, int, error) {
	timeout := source.Timeout
	if timeout <= 0 {
		timeout = f.defaultTimeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var feed *gofeed.Feed
	err := retryWithBackoff(fetchCtx, func() error {
		parser := gofeed.NewParser()
		parser.Client = f.client
		var parseErr error
		feed, parseErr = parser.ParseURLWithContext(source.FeedURL, fetchCtx)
		return parseErr
	}, f.maxAttempts, f.baseDelay)
	if err != nil {
		return nil, 0, err
	}

	items, dropped := normalizeFeed(source, feed)
	return items, dropped, nil
}

// breakerFor returns the breaker for a source, creating it on first use.
func (f *Fetcher) breakerFor(name string) *breaker {
	f.breakerMu.Lock()
	defer f.breakerMu.Unlock()

	br, ok := f.breakers[name]
	if !ok {
		br = newBreaker(f.failureThreshold, f.cooldown)
		f.breakers[name] = br
	}
	return br
}

// statusFor maps a fetch error to a report status.
func statusFor(err error) SourceStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimedOut
	}

	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return StatusTransportError
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return StatusTransportError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return StatusTransportError
	}

	return StatusParseError
}
