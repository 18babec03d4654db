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

import "errors"

var (
	// ErrIndexUnavailable indicates the index holds no documents, either
	// because no corpus was loaded or no snapshot was restored.
	ErrIndexUnavailable = errors.New("retrieval index unavailable")

	// ErrEmbedderRequired indicates NewIndex was called without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrNoSnapshot indicates Restore found no snapshot file.
	ErrNoSnapshot = errors.New("no snapshot found")

	// ErrSnapshotCorrupt indicates a snapshot file that cannot be decoded.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")

	// ErrEmbeddingMismatch indicates the embedder returned a different
	// number of vectors than texts submitted.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")

	// ErrInvalidQuery indicates an empty query text or non-positive k.
	ErrInvalidQuery = errors.New("invalid query")
)
