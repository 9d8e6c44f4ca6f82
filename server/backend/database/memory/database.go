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

// Package memory implements the database interface using an in-memory
// database. It is the default backend when no MongoDB connection is given.
package memory

import (
	"context"
	"fmt"
	"sort"
	gosync "sync/atomic"
	gotime "time"

	"github.com/hashicorp/go-memdb"

	"github.com/collabnote/collabnote/server/backend/database"
)

// DB is an in-memory database for testing or single-node deployments.
type DB struct {
	db            *memdb.MemDB
	nextVersionID int64
}

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// SaveDocument upserts the full content of the document.
func (d *DB) SaveDocument(_ context.Context, name, content string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info := &database.DocInfo{
		Name:      name,
		Content:   content,
		UpdatedAt: gotime.Now(),
	}
	if err := txn.Insert(tblDocuments, info); err != nil {
		return fmt.Errorf("save document %s: %w", name, err)
	}

	txn.Commit()
	return nil
}

// LoadDocument returns the content of the document or empty content when the
// document has never been saved.
func (d *DB) LoadDocument(_ context.Context, name string) (string, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", name)
	if err != nil {
		return "", fmt.Errorf("load document %s: %w", name, err)
	}
	if raw == nil {
		return "", nil
	}

	return raw.(*database.DocInfo).Content, nil
}

// ListDocumentNames returns all document names, most recently updated first.
func (d *DB) ListDocumentNames(_ context.Context) ([]string, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblDocuments, "id")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var infos []*database.DocInfo
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		infos = append(infos, raw.(*database.DocInfo))
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names, nil
}

// AppendVersion inserts a new immutable snapshot and returns its id.
func (d *DB) AppendVersion(_ context.Context, docName, content, author string) (int64, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info := &database.VersionInfo{
		ID:           gosync.AddInt64(&d.nextVersionID, 1),
		DocumentName: docName,
		Content:      content,
		CreatedAt:    gotime.Now(),
		CreatedBy:    author,
	}
	if err := txn.Insert(tblVersions, info); err != nil {
		return 0, fmt.Errorf("append version of %s: %w", docName, err)
	}

	txn.Commit()
	return info.ID, nil
}

// ListVersions returns the snapshots of the document, newest first.
func (d *DB) ListVersions(_ context.Context, docName string) ([]*database.VersionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblVersions, "document_name", docName)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", docName, err)
	}

	var infos []*database.VersionInfo
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		infos = append(infos, raw.(*database.VersionInfo))
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID > infos[j].ID
	})

	return infos, nil
}

// GetVersion returns the snapshot with the given id.
func (d *DB) GetVersion(_ context.Context, id int64) (*database.VersionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblVersions, "id", id)
	if err != nil {
		return nil, fmt.Errorf("get version %d: %w", id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("get version %d: %w", id, database.ErrVersionNotFound)
	}

	return raw.(*database.VersionInfo), nil
}

// UpsertPresence marks the user as active on the document now.
func (d *DB) UpsertPresence(_ context.Context, docName, username string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info := &database.PresenceInfo{
		DocumentName: docName,
		Username:     username,
		LastActive:   gotime.Now(),
	}
	if err := txn.Insert(tblPresences, info); err != nil {
		return fmt.Errorf("upsert presence of %s on %s: %w", username, docName, err)
	}

	txn.Commit()
	return nil
}

// RemovePresence deletes the presence row of the user on the document.
func (d *DB) RemovePresence(_ context.Context, docName, username string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblPresences, "id", docName, username)
	if err != nil {
		return fmt.Errorf("remove presence of %s on %s: %w", username, docName, err)
	}
	if raw == nil {
		txn.Commit()
		return nil
	}

	if err := txn.Delete(tblPresences, raw); err != nil {
		return fmt.Errorf("remove presence of %s on %s: %w", username, docName, err)
	}

	txn.Commit()
	return nil
}

// ListActivePresence returns the usernames active on the document within the
// given window.
func (d *DB) ListActivePresence(
	_ context.Context,
	docName string,
	window gotime.Duration,
) ([]string, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblPresences, "document_name", docName)
	if err != nil {
		return nil, fmt.Errorf("list active presence of %s: %w", docName, err)
	}

	cutoff := gotime.Now().Add(-window)
	var usernames []string
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		info := raw.(*database.PresenceInfo)
		if info.LastActive.Before(cutoff) {
			continue
		}
		usernames = append(usernames, info.Username)
	}

	sort.Strings(usernames)
	return usernames, nil
}

// DeleteStalePresence hard-deletes presence rows older than maxAge.
func (d *DB) DeleteStalePresence(_ context.Context, maxAge gotime.Duration) (int, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	iter, err := txn.Get(tblPresences, "id")
	if err != nil {
		return 0, fmt.Errorf("delete stale presence: %w", err)
	}

	cutoff := gotime.Now().Add(-maxAge)
	var stale []*database.PresenceInfo
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		info := raw.(*database.PresenceInfo)
		if info.LastActive.Before(cutoff) {
			stale = append(stale, info)
		}
	}

	for _, info := range stale {
		if err := txn.Delete(tblPresences, info); err != nil {
			return 0, fmt.Errorf("delete stale presence: %w", err)
		}
	}

	txn.Commit()
	return len(stale), nil
}

// UpsertCursor stores the cursor position of the user on the document.
func (d *DB) UpsertCursor(_ context.Context, docName, username string, position int) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info := &database.CursorInfo{
		DocumentName: docName,
		Username:     username,
		Position:     position,
		LastUpdated:  gotime.Now(),
	}
	if err := txn.Insert(tblCursors, info); err != nil {
		return fmt.Errorf("upsert cursor of %s on %s: %w", username, docName, err)
	}

	txn.Commit()
	return nil
}

// ListCursors returns username to position for cursor rows updated within the
// given window.
func (d *DB) ListCursors(
	_ context.Context,
	docName string,
	window gotime.Duration,
) (map[string]int, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblCursors, "document_name", docName)
	if err != nil {
		return nil, fmt.Errorf("list cursors of %s: %w", docName, err)
	}

	cutoff := gotime.Now().Add(-window)
	positions := make(map[string]int)
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		info := raw.(*database.CursorInfo)
		if info.LastUpdated.Before(cutoff) {
			continue
		}
		positions[info.Username] = info.Position
	}

	return positions, nil
}
