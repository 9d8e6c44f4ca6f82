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

// Package database provides the storage contract consumed by the sync engine.
package database

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrVersionNotFound is returned when the version could not be found.
	ErrVersionNotFound = errors.New("version not found")
)

// DocInfo is a row of the documents table.
type DocInfo struct {
	Name      string    `bson:"name"`
	Content   string    `bson:"content"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// VersionInfo is an immutable snapshot of a document's content. IDs are
// assigned by the storage and are strictly increasing across the whole store.
type VersionInfo struct {
	ID           int64     `bson:"version_id"`
	DocumentName string    `bson:"document_name"`
	Content      string    `bson:"content"`
	CreatedAt    time.Time `bson:"created_at"`
	CreatedBy    string    `bson:"created_by"`
}

// PresenceInfo is a row of the active_users table, keyed by
// (document, username).
type PresenceInfo struct {
	DocumentName string    `bson:"document_name"`
	Username     string    `bson:"username"`
	LastActive   time.Time `bson:"last_active"`
}

// CursorInfo is a row of the cursor_positions table, keyed by
// (document, username).
type CursorInfo struct {
	DocumentName string    `bson:"document_name"`
	Username     string    `bson:"username"`
	Position     int       `bson:"position"`
	LastUpdated  time.Time `bson:"last_updated"`
}

// Database is the interface the engine reads and writes collaboration data
// through. Implementations must make each operation atomic with respect to
// other operations on the same key.
type Database interface {
	// Close closes all resources of this database.
	Close() error

	// SaveDocument upserts the full content of the document.
	SaveDocument(ctx context.Context, name, content string) error

	// LoadDocument returns the content of the document. An unknown name
	// yields empty content, not an error.
	LoadDocument(ctx context.Context, name string) (string, error)

	// ListDocumentNames returns all document names ordered by most recently
	// updated first.
	ListDocumentNames(ctx context.Context) ([]string, error)

	// AppendVersion inserts a new immutable snapshot and returns its id.
	AppendVersion(ctx context.Context, docName, content, author string) (int64, error)

	// ListVersions returns the snapshots of the document, newest first.
	ListVersions(ctx context.Context, docName string) ([]*VersionInfo, error)

	// GetVersion returns the snapshot with the given id. It returns
	// ErrVersionNotFound if no such snapshot was ever appended.
	GetVersion(ctx context.Context, id int64) (*VersionInfo, error)

	// UpsertPresence marks the user as active on the document now.
	UpsertPresence(ctx context.Context, docName, username string) error

	// RemovePresence deletes the presence row of the user on the document.
	RemovePresence(ctx context.Context, docName, username string) error

	// ListActivePresence returns the usernames whose last activity on the
	// document is within the given window.
	ListActivePresence(ctx context.Context, docName string, window time.Duration) ([]string, error)

	// DeleteStalePresence hard-deletes presence rows older than maxAge and
	// returns the number of deleted rows.
	DeleteStalePresence(ctx context.Context, maxAge time.Duration) (int, error)

	// UpsertCursor stores the cursor position of the user on the document.
	UpsertCursor(ctx context.Context, docName, username string, position int) error

	// ListCursors returns username to position for cursor rows updated within
	// the given window.
	ListCursors(ctx context.Context, docName string, window time.Duration) (map[string]int, error)
}
