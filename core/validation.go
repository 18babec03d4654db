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


package core

import (
	"fmt"
	"time"
)

// ValidateItem validates an Item according to domain rules.
//
// Validation rules:
//   - Link must not be empty
//   - Title must not be empty
//   - Category must be one of the known sections
//   - ControversyScore must be within 0-100
//   - PublishedAt must not be in the future
//
// NOT validated (populated by the store):
//   - Id (derived from Link on insert when zero)
//   - InsertedAt / UpdatedAt
func ValidateItem(item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidItem)
	}

	if item.Link == "" {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrEmptyLink)
	}

	if item.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrEmptyTitle)
	}

	if err := ValidateCategory(item.Category); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	if item.ControversyScore < 0 || item.ControversyScore > 100 {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrScoreOutOfRange)
	}

	if !IsValidTimestamp(item.PublishedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateCategory validates that a Category has a known value.
func ValidateCategory(category Category) error {
	if _, ok := categoryNames[category]; !ok {
		return fmt.Errorf("%w: value %d", ErrInvalidCategory, category)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
