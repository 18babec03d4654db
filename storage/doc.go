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


// Package storage provides the storage abstraction layer for spicefeed.
//
// This package defines the repository interface that decouples the storage
// implementation from business logic. The BadgerDB implementation lives in
// the badger subpackage; consumers depend only on storage.ItemRepository.
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.ItemRepository interface to enforce
// abstraction and keep alternative backends (in-memory, SQL) swappable:
//
//	repo, err := badger.NewItemRepository(backend)
//
// # Capacity
//
// The store is the system of record and the sole owner of the capacity
// bound. InsertBatch applies the batch and the eviction to capacity as one
// unit of work: a concurrent reader never observes a count above capacity,
// and eviction order is deterministic (oldest InsertedAt first, ID as the
// tie-break).
//
// # Thread Safety
//
// All repository implementations must be thread-safe. Writes are serialized
// by the implementation; reads may run concurrently with writes.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation. Pass
// context.Background() for operations without specific timeout requirements.
package storage
