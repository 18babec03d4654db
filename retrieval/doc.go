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


// Package retrieval provides a semantic retrieval index over news content.
//
// The index holds immutable documents with unit-normalized embedding
// vectors in memory and answers nearest-neighbor queries by cosine
// similarity. It runs independently of the item store: documents carry
// their own text and metadata, and deleting an item never reaches into
// the index.
//
// Durability is snapshot-based. LoadCorpus embeds new documents on a
// bounded worker pool, writes the merged corpus to a snapshot file (temp
// file plus atomic rename, with a monotonically increasing generation),
// and only then swaps the in-memory state. Restore rebuilds the exact
// queryable state from the last snapshot without re-embedding anything.
//
// An index with no documents refuses queries with ErrIndexUnavailable so
// callers can distinguish "nothing matched" from "nothing loaded".
//
//	index, err := retrieval.NewIndex(embedder, "/var/lib/spicefeed/index.snap")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer index.Release()
//
//	if err := index.Restore(ctx); err != nil && !errors.Is(err, retrieval.ErrNoSnapshot) {
//	    log.Fatal(err)
//	}
//	matches, err := index.Query(ctx, "chip export controls", 5)
package retrieval
