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

// Package presence tracks which usernames are active on which documents and
// where their cursors are. Records live in the database; this package applies
// the recency windows.
//
// The display window (ActiveUsers) and the hard-deletion threshold used by
// the eviction task are independent values: a user can drop out of active
// lists before their row is actually deleted, and vice versa.
package presence

import (
	"context"
	"time"

	"github.com/collabnote/collabnote/server/backend/database"
)

// Tracker is a database-backed presence and cursor tracker.
type Tracker struct {
	db database.Database

	activeWindow time.Duration
	cursorWindow time.Duration
}

// NewTracker creates a new Tracker with the given recency windows.
func NewTracker(db database.Database, activeWindow, cursorWindow time.Duration) *Tracker {
	return &Tracker{
		db:           db,
		activeWindow: activeWindow,
		cursorWindow: cursorWindow,
	}
}

// Touch marks the user as active on the document now.
func (t *Tracker) Touch(ctx context.Context, docName, username string) error {
	return t.db.UpsertPresence(ctx, docName, username)
}

// Remove deletes the user's presence record on the document.
func (t *Tracker) Remove(ctx context.Context, docName, username string) error {
	return t.db.RemovePresence(ctx, docName, username)
}

// ActiveUsers returns the usernames considered active on the document.
func (t *Tracker) ActiveUsers(ctx context.Context, docName string) ([]string, error) {
	return t.db.ListActivePresence(ctx, docName, t.activeWindow)
}

// MoveCursor stores the user's cursor position on the document.
func (t *Tracker) MoveCursor(ctx context.Context, docName, username string, position int) error {
	return t.db.UpsertCursor(ctx, docName, username, position)
}

// CursorsFor returns username to position for cursors still inside their
// validity window.
func (t *Tracker) CursorsFor(ctx context.Context, docName string) (map[string]int, error) {
	return t.db.ListCursors(ctx, docName, t.cursorWindow)
}

// EvictStale hard-deletes presence rows older than maxAge and returns the
// number of deleted rows.
func (t *Tracker) EvictStale(ctx context.Context, maxAge time.Duration) (int, error) {
	return t.db.DeleteStalePresence(ctx, maxAge)
}
