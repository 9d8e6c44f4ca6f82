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

package tcp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/rs/xid"

	"github.com/collabnote/collabnote/server/backend"
	"github.com/collabnote/collabnote/server/backend/database"
	"github.com/collabnote/collabnote/server/logging"
	"github.com/collabnote/collabnote/server/protocol"
)

const (
	// maxLineSize is the maximum length of a single inbound line. Documents
	// travel whole in one line, so this bounds the document size.
	maxLineSize = 1024 * 1024

	// sendQueueSize is the per-session outbound buffer. Frames to a session
	// that cannot drain its queue are dropped rather than stalling the
	// broadcast.
	sendQueueSize = 256
)

// Session is one connected client. It implements registry.Subscriber; the id
// is unique per connection while the username is whatever the client
// announced, so one user may hold several sessions.
type Session struct {
	id      string
	conn    net.Conn
	backend *backend.Backend
	detach  func(*Session)

	username string
	docName  string

	sendCh   chan string
	done     chan struct{}
	doneOnce sync.Once
	connOnce sync.Once
}

func newSession(conn net.Conn, be *backend.Backend, detach func(*Session)) *Session {
	return &Session{
		id:      xid.New().String(),
		conn:    conn,
		backend: be,
		detach:  detach,
		sendCh:  make(chan string, sendQueueSize),
		done:    make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Username returns the username the client announced on connect.
func (s *Session) Username() string {
	return s.username
}

// Send queues a frame for delivery. It never blocks; when the queue is full
// the frame is dropped and counted.
func (s *Session) Send(frame string) {
	select {
	case s.sendCh <- frame:
	case <-s.done:
	default:
		s.backend.Metrics.AddDroppedFrame()
		logging.DefaultLogger().Debugf("session %s: send queue full, frame dropped", s.id)
	}
}

// Close closes the session's connection. With graceful set, the run loop
// notices the closed connection and tears the session down through the usual
// leave path; otherwise the write loop is stopped immediately as well.
func (s *Session) Close(graceful bool) {
	if !graceful {
		s.stop()
	}
	s.closeConn()
}

func (s *Session) stop() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

func (s *Session) closeConn() {
	s.connOnce.Do(func() {
		if err := s.conn.Close(); err != nil {
			logging.DefaultLogger().Debugf("session %s: close: %v", s.id, err)
		}
	})
}

// run reads lines off the connection until it drops. The first line is the
// username; every later line is a command.
func (s *Session) run() {
	ctx := logging.With(
		context.Background(),
		logging.New("sess", logging.NewField("id", s.id)),
	)

	go s.writeLoop()

	defer func() {
		if s.docName != "" {
			s.backend.Registry.Leave(ctx, s.docName, s)
		}
		s.stop()
		s.closeConn()
		s.detach(s)
	}()

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !scanner.Scan() {
		return
	}
	s.username = scanner.Text()
	logging.From(ctx).Infof("connected: %s", s.username)

	s.sendDocumentList(ctx)

	for scanner.Scan() {
		s.dispatch(ctx, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		logging.From(ctx).Debugf("read: %v", err)
	}
	logging.From(ctx).Infof("disconnected: %s", s.username)
}

// writeLoop drains the send queue onto the connection.
func (s *Session) writeLoop() {
	writer := bufio.NewWriter(s.conn)
	for {
		select {
		case frame := <-s.sendCh:
			if _, err := writer.WriteString(frame + "\n"); err != nil {
				return
			}
			if err := writer.Flush(); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) dispatch(ctx context.Context, line string) {
	cmd := protocol.ParseCommand(line)

	switch cmd.Type {
	case protocol.CommandJoin:
		s.handleJoin(ctx, cmd.Arg)
	case protocol.CommandText:
		s.handleText(ctx, cmd.Arg)
	case protocol.CommandCursor:
		s.handleCursor(ctx, cmd.Arg)
	case protocol.CommandList:
		s.sendDocumentList(ctx)
	case protocol.CommandGetVersions:
		s.handleGetVersions(ctx, cmd.Arg)
	case protocol.CommandGetVersion:
		s.handleGetVersion(ctx, cmd.Arg)
	default:
		logging.From(ctx).Debugf("unknown command: %s", line)
	}
}

func (s *Session) handleJoin(ctx context.Context, docName string) {
	if docName == "" {
		return
	}

	// joining another document implicitly leaves the current one
	if s.docName != "" && s.docName != docName {
		s.backend.Registry.Leave(ctx, s.docName, s)
	}
	s.docName = docName
	s.backend.Registry.Join(ctx, docName, s)
}

func (s *Session) handleText(ctx context.Context, content string) {
	if s.docName == "" {
		return
	}
	s.backend.Registry.UpdateContent(ctx, s.docName, content, s)
}

func (s *Session) handleCursor(ctx context.Context, arg string) {
	if s.docName == "" {
		return
	}

	position, err := strconv.Atoi(arg)
	if err != nil {
		logging.From(ctx).Warnf("malformed cursor position %q: %v", arg, err)
		return
	}
	s.backend.Registry.UpdateCursor(ctx, s.docName, s, position)
}

func (s *Session) sendDocumentList(ctx context.Context) {
	names, err := s.backend.Registry.DocumentNames(ctx)
	if err != nil {
		logging.From(ctx).Errorf("list documents: %v", err)
		return
	}
	s.Send(protocol.List(names))
}

func (s *Session) handleGetVersions(ctx context.Context, docName string) {
	infos, err := s.backend.Versions.ListFor(ctx, docName)
	if err != nil {
		logging.From(ctx).Errorf("list versions of %s: %v", docName, err)
		return
	}
	s.Send(protocol.Versions(docName, infos))
}

func (s *Session) handleGetVersion(ctx context.Context, arg string) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		logging.From(ctx).Debugf("malformed version id %q: %v", arg, err)
		return
	}

	info, err := s.backend.Versions.Get(ctx, id)
	if errors.Is(err, database.ErrVersionNotFound) {
		return
	}
	if err != nil {
		logging.From(ctx).Errorf("get version %d: %v", id, err)
		return
	}
	s.Send(protocol.VersionContent(info.Content))
}
