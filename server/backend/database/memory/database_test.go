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

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabnote/collabnote/server/backend/database"
	"github.com/collabnote/collabnote/server/backend/database/memory"
)

func setUpDB(t *testing.T) *memory.DB {
	t.Helper()

	db, err := memory.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})
	return db
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("load unknown document test", func(t *testing.T) {
		db := setUpDB(t)

		content, err := db.LoadDocument(ctx, "never-saved")
		assert.NoError(t, err)
		assert.Equal(t, "", content)
	})

	t.Run("save and load test", func(t *testing.T) {
		db := setUpDB(t)

		assert.NoError(t, db.SaveDocument(ctx, "notes", "Hello"))
		content, err := db.LoadDocument(ctx, "notes")
		assert.NoError(t, err)
		assert.Equal(t, "Hello", content)

		// last full write wins
		assert.NoError(t, db.SaveDocument(ctx, "notes", "Bye"))
		content, err = db.LoadDocument(ctx, "notes")
		assert.NoError(t, err)
		assert.Equal(t, "Bye", content)
	})

	t.Run("list ordered by most recently updated test", func(t *testing.T) {
		db := setUpDB(t)

		assert.NoError(t, db.SaveDocument(ctx, "a", ""))
		time.Sleep(time.Millisecond)
		assert.NoError(t, db.SaveDocument(ctx, "b", ""))
		time.Sleep(time.Millisecond)
		assert.NoError(t, db.SaveDocument(ctx, "a", "touched"))

		names, err := db.ListDocumentNames(ctx)
		assert.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, names)
	})
}

func TestVersions(t *testing.T) {
	ctx := context.Background()

	t.Run("append-only ordered history test", func(t *testing.T) {
		db := setUpDB(t)

		id1, err := db.AppendVersion(ctx, "notes", "v1", "alice")
		require.NoError(t, err)
		id2, err := db.AppendVersion(ctx, "notes", "v2", "bob")
		require.NoError(t, err)
		assert.Greater(t, id2, id1)

		_, err = db.AppendVersion(ctx, "other", "x", "carol")
		require.NoError(t, err)

		infos, err := db.ListVersions(ctx, "notes")
		assert.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, id2, infos[0].ID)
		assert.Equal(t, "v2", infos[0].Content)
		assert.Equal(t, id1, infos[1].ID)
		assert.Equal(t, "alice", infos[1].CreatedBy)
	})

	t.Run("get absent version test", func(t *testing.T) {
		db := setUpDB(t)

		_, err := db.GetVersion(ctx, 42)
		assert.ErrorIs(t, err, database.ErrVersionNotFound)
	})

	t.Run("get version by id test", func(t *testing.T) {
		db := setUpDB(t)

		id, err := db.AppendVersion(ctx, "notes", "content", "alice")
		require.NoError(t, err)

		info, err := db.GetVersion(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, "notes", info.DocumentName)
		assert.Equal(t, "content", info.Content)
		assert.Equal(t, "alice", info.CreatedBy)
	})
}

func TestPresence(t *testing.T) {
	ctx := context.Background()

	t.Run("active window test", func(t *testing.T) {
		db := setUpDB(t)

		assert.NoError(t, db.UpsertPresence(ctx, "notes", "alice"))
		assert.NoError(t, db.UpsertPresence(ctx, "notes", "bob"))
		assert.NoError(t, db.UpsertPresence(ctx, "other", "carol"))

		users, err := db.ListActivePresence(ctx, "notes", 2*time.Minute)
		assert.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, users)

		// a zero window renders every row stale for display purposes
		users, err = db.ListActivePresence(ctx, "notes", 0)
		assert.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("remove presence test", func(t *testing.T) {
		db := setUpDB(t)

		assert.NoError(t, db.UpsertPresence(ctx, "notes", "alice"))
		assert.NoError(t, db.RemovePresence(ctx, "notes", "alice"))
		// removing an absent row is not an error
		assert.NoError(t, db.RemovePresence(ctx, "notes", "alice"))

		users, err := db.ListActivePresence(ctx, "notes", 2*time.Minute)
		assert.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("stale eviction threshold test", func(t *testing.T) {
		db := setUpDB(t)

		assert.NoError(t, db.UpsertPresence(ctx, "notes", "alice"))

		// rows younger than maxAge survive
		count, err := db.DeleteStalePresence(ctx, time.Minute)
		assert.NoError(t, err)
		assert.Equal(t, 0, count)

		// a zero maxAge deletes the row even though a 2m display window
		// would still show it
		count, err = db.DeleteStalePresence(ctx, 0)
		assert.NoError(t, err)
		assert.Equal(t, 1, count)

		users, err := db.ListActivePresence(ctx, "notes", 2*time.Minute)
		assert.NoError(t, err)
		assert.Empty(t, users)
	})
}

func TestCursors(t *testing.T) {
	ctx := context.Background()

	t.Run("cursor window test", func(t *testing.T) {
		db := setUpDB(t)

		assert.NoError(t, db.UpsertCursor(ctx, "notes", "alice", 5))
		assert.NoError(t, db.UpsertCursor(ctx, "notes", "bob", 10))
		assert.NoError(t, db.UpsertCursor(ctx, "notes", "alice", 7))

		positions, err := db.ListCursors(ctx, "notes", 30*time.Second)
		assert.NoError(t, err)
		assert.Equal(t, map[string]int{"alice": 7, "bob": 10}, positions)

		positions, err = db.ListCursors(ctx, "notes", 0)
		assert.NoError(t, err)
		assert.Empty(t, positions)
	})
}
