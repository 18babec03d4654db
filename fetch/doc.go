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


// Package fetch polls RSS, Atom, and JSON feeds and turns their entries
// into core items ready for storage.
//
// A fetch cycle runs every configured source on a bounded worker pool.
// Each source gets a per-cycle timeout, bounded retries with exponential
// backoff and jitter, and its own circuit breaker: after a run of
// consecutive failures the source is skipped until a cooldown elapses,
// then probed once. Sources degrade independently; a cycle only fails as
// a whole when every source fails.
//
// Entries are normalized (markup stripped, whitespace collapsed, entries
// without link or title dropped and counted), deduplicated across sources
// by canonical link identity with the most recently published copy
// winning, and enriched with a controversy score and keywords. Enrichment
// uses an LLM classifier when one is configured and falls back to
// heuristic scoring otherwise.
//
//	fetcher, err := fetch.NewFetcher(
//	    fetch.WithBreaker(3, 5*time.Minute),
//	    fetch.WithSourceTimeout(20*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fetcher.Release()
//
//	items, report, err := fetcher.FetchAll(ctx, sources)
package fetch
