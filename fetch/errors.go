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

import "errors"

var (
	// ErrNoSources indicates FetchAll was called with an empty source list.
	ErrNoSources = errors.New("no sources configured")

	// ErrAllSourcesFailed indicates no source produced a successful fetch.
	ErrAllSourcesFailed = errors.New("all sources failed")

	// ErrCircuitOpen indicates a source was skipped because its circuit
	// breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrInvalidMaxAttempts indicates retryWithBackoff was called with
	// maxAttempts <= 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
