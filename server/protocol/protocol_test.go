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

package protocol_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/collabnote/collabnote/server/backend/database"
	"github.com/collabnote/collabnote/server/protocol"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		cmd  protocol.Command
	}{
		{"JOIN:notes", protocol.Command{Type: protocol.CommandJoin, Arg: "notes"}},
		{"TEXT:Hello, world", protocol.Command{Type: protocol.CommandText, Arg: "Hello, world"}},
		{"TEXT:", protocol.Command{Type: protocol.CommandText, Arg: ""}},
		{"CURSOR:42", protocol.Command{Type: protocol.CommandCursor, Arg: "42"}},
		{"LIST", protocol.Command{Type: protocol.CommandList}},
		{"GET_VERSIONS:notes", protocol.Command{Type: protocol.CommandGetVersions, Arg: "notes"}},
		{"GET_VERSION:7", protocol.Command{Type: protocol.CommandGetVersion, Arg: "7"}},
		{"LIST:extra", protocol.Command{Type: protocol.CommandUnknown, Arg: "LIST:extra"}},
		{"NOPE", protocol.Command{Type: protocol.CommandUnknown, Arg: "NOPE"}},
		{"", protocol.Command{Type: protocol.CommandUnknown, Arg: ""}},
	}

	for _, c := range cases {
		assert.Equal(t, c.cmd, protocol.ParseCommand(c.line), "line: %q", c.line)
	}
}

func TestBuildFrames(t *testing.T) {
	t.Run("document and update test", func(t *testing.T) {
		assert.Equal(t, "DOCUMENT:Hello", protocol.Document("Hello"))
		assert.Equal(t, "UPDATE:Hello", protocol.Update("Hello"))
		assert.Equal(t, "VERSION_CONTENT:", protocol.VersionContent(""))
	})

	t.Run("list keeps trailing comma test", func(t *testing.T) {
		assert.Equal(t, "LIST:", protocol.List(nil))
		assert.Equal(t, "LIST:notes,", protocol.List([]string{"notes"}))
		assert.Equal(t, "LIST:notes,todo,", protocol.List([]string{"notes", "todo"}))
	})

	t.Run("active users test", func(t *testing.T) {
		assert.Equal(
			t,
			"ACTIVE_USERS:notes:alice,bob",
			protocol.ActiveUsers("notes", []string{"alice", "bob"}),
		)
		assert.Equal(t, "ACTIVE_USERS:notes:", protocol.ActiveUsers("notes", nil))
	})

	t.Run("cursor position test", func(t *testing.T) {
		assert.Equal(t, "CURSOR_POS:alice:5", protocol.CursorPos("alice", 5))
	})

	t.Run("versions test", func(t *testing.T) {
		createdAt := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
		frame := protocol.Versions("notes", []*database.VersionInfo{{
			ID:        2,
			CreatedAt: createdAt.Add(time.Minute),
			CreatedBy: "bob",
		}, {
			ID:        1,
			CreatedAt: createdAt,
			CreatedBy: "alice",
		}})
		assert.Equal(
			t,
			"VERSIONS:notes:2,2025-03-14 09:27:53,bob;1,2025-03-14 09:26:53,alice;",
			frame,
		)

		assert.Equal(t, "VERSIONS:notes:", protocol.Versions("notes", nil))
	})
}
