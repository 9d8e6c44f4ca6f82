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

package tcp_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabnote/collabnote/server/backend"
	"github.com/collabnote/collabnote/server/backend/housekeeping"
	"github.com/collabnote/collabnote/server/profiling/prometheus"
	"github.com/collabnote/collabnote/server/tcp"
)

func setUpServer(t *testing.T) (*tcp.Server, *backend.Backend) {
	t.Helper()

	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	be, err := backend.New(
		&backend.Config{
			ActiveUserWindow: "2m",
			CursorWindow:     "30s",
			PresenceMaxAge:   "1m",
		},
		nil,
		&housekeeping.Config{
			FlushInterval:         "10s",
			PresenceEvictInterval: "1m",
		},
		metrics,
	)
	require.NoError(t, err)

	server := tcp.NewServer(&tcp.Config{Port: 0}, be)
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		server.Shutdown(true)
	})

	return server, be
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// dial connects, announces the username and waits for the initial document
// list.
func dial(t *testing.T, addr, username string) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})

	client := &testClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
	client.sendLine(username)
	client.expect("LIST:")
	return client
}

func (c *testClient) sendLine(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

// expect reads frames until one starts with the given prefix and returns it.
func (c *testClient) expect(prefix string) string {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		line, err := c.reader.ReadString('\n')
		require.NoError(c.t, err)

		line = strings.TrimSuffix(line, "\n")
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
}

// sync round-trips a LIST command so every command sent before it is known to
// be processed.
func (c *testClient) sync() {
	c.t.Helper()
	c.sendLine("LIST")
	c.expect("LIST:")
}

func TestServerDocumentSync(t *testing.T) {
	server, _ := setUpServer(t)

	alice := dial(t, server.Addr(), "alice")
	alice.sendLine("JOIN:notes")
	assert.Equal(t, "DOCUMENT:", alice.expect("DOCUMENT:"))

	alice.sendLine("TEXT:Hello")
	alice.sync()

	bob := dial(t, server.Addr(), "bob")
	bob.sendLine("JOIN:notes")
	assert.Equal(t, "DOCUMENT:Hello", bob.expect("DOCUMENT:"))

	assert.Equal(
		t,
		"ACTIVE_USERS:notes:alice,bob",
		alice.expect("ACTIVE_USERS:notes:alice,"),
	)

	bob.sendLine("TEXT:Hello world")
	assert.Equal(t, "UPDATE:Hello world", alice.expect("UPDATE:"))
}

func TestServerCursorFanOut(t *testing.T) {
	server, _ := setUpServer(t)

	aliceLaptop := dial(t, server.Addr(), "alice")
	alicePhone := dial(t, server.Addr(), "alice")
	bob := dial(t, server.Addr(), "bob")

	for _, client := range []*testClient{aliceLaptop, alicePhone, bob} {
		client.sendLine("JOIN:pad")
		client.expect("DOCUMENT:")
		client.sync()
	}

	aliceLaptop.sendLine("CURSOR:5")
	assert.Equal(t, "CURSOR_POS:alice:5", bob.expect("CURSOR_POS:"))

	// the other session of the same user must not see alice's own cursor:
	// the next cursor frame it receives is bob's, not alice's
	bob.sendLine("CURSOR:9")
	assert.Equal(t, "CURSOR_POS:bob:9", alicePhone.expect("CURSOR_POS:"))
}

func TestServerJoinSwitchesDocument(t *testing.T) {
	server, _ := setUpServer(t)

	bob := dial(t, server.Addr(), "bob")
	bob.sendLine("JOIN:a")
	bob.expect("DOCUMENT:")

	alice := dial(t, server.Addr(), "alice")
	alice.sendLine("JOIN:a")
	alice.expect("DOCUMENT:")
	assert.Equal(t, "ACTIVE_USERS:a:alice,bob", bob.expect("ACTIVE_USERS:a:alice"))

	// joining another document implicitly leaves the first
	alice.sendLine("JOIN:b")
	alice.expect("DOCUMENT:")
	assert.Equal(t, "ACTIVE_USERS:a:bob", bob.expect("ACTIVE_USERS:a:bob"))
}

func TestServerVersionHistory(t *testing.T) {
	server, be := setUpServer(t)
	ctx := context.Background()

	id, err := be.DB.AppendVersion(ctx, "notes", "first draft", "alice")
	require.NoError(t, err)

	client := dial(t, server.Addr(), "carol")

	client.sendLine("GET_VERSIONS:notes")
	frame := client.expect("VERSIONS:notes:")
	assert.Contains(t, frame, fmt.Sprintf("%d,", id))
	assert.Contains(t, frame, ",alice;")

	// malformed and unknown ids are silently ignored; a valid request after
	// them still answers
	client.sendLine("GET_VERSION:not-a-number")
	client.sendLine("GET_VERSION:999999")
	client.sendLine(fmt.Sprintf("GET_VERSION:%d", id))
	assert.Equal(t, "VERSION_CONTENT:first draft", client.expect("VERSION_CONTENT:"))
}

func TestServerGracefulShutdownDrainsSessions(t *testing.T) {
	server, be := setUpServer(t)
	ctx := context.Background()

	alice := dial(t, server.Addr(), "alice")
	alice.sendLine("JOIN:notes")
	alice.expect("DOCUMENT:")
	alice.sendLine("TEXT:draft")
	alice.sync()

	server.Shutdown(true)

	// the session ran its leave path before Shutdown returned: the content
	// is persisted and alice's presence record is gone
	content, err := be.DB.LoadDocument(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, "draft", content)

	users, err := be.Presence.ActiveUsers(ctx, "notes")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestServerDocumentList(t *testing.T) {
	server, be := setUpServer(t)
	ctx := context.Background()

	require.NoError(t, be.DB.SaveDocument(ctx, "older", "a"))
	require.NoError(t, be.DB.SaveDocument(ctx, "newer", "b"))

	client := dial(t, server.Addr(), "alice")
	client.sendLine("LIST")

	// most recently updated first, every name followed by a comma
	assert.Equal(t, "LIST:newer,older,", client.expect("LIST:"))
}
