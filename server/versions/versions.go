/*
 * Copyright 2025 The CollabNote Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package versions provides the append-only snapshot history of documents.
// Snapshots are immutable once created; there is no update or delete.
package versions

import (
	"context"

	"github.com/collabnote/collabnote/server/backend/database"
)

// Store is a database-backed version store.
type Store struct {
	db database.Database
}

// NewStore creates a new Store.
func NewStore(db database.Database) *Store {
	return &Store{db: db}
}

// Append inserts a new snapshot of the document attributed to the author and
// returns its id. IDs are assigned by the storage and are strictly increasing
// across the whole store, not per document.
func (s *Store) Append(ctx context.Context, docName, content, author string) (int64, error) {
	return s.db.AppendVersion(ctx, docName, content, author)
}

// ListFor returns the snapshots of the document, newest first.
func (s *Store) ListFor(ctx context.Context, docName string) ([]*database.VersionInfo, error) {
	return s.db.ListVersions(ctx, docName)
}

// Get returns the snapshot with the given id, or
// database.ErrVersionNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*database.VersionInfo, error) {
	return s.db.GetVersion(ctx, id)
}
