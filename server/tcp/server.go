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

// Package tcp provides the line-based TCP server that clients connect to.
// Each accepted connection becomes a session that subscribes to documents
// through the registry.
package tcp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/collabnote/collabnote/pkg/cmap"
	"github.com/collabnote/collabnote/server/backend"
	"github.com/collabnote/collabnote/server/logging"
)

// sessionDrainTimeout bounds how long a graceful shutdown waits for session
// goroutines to finish their leave-path persistence before the backend closes.
const sessionDrainTimeout = 5 * time.Second

// Server is a TCP server that accepts client connections.
type Server struct {
	conf     *Config
	backend  *backend.Backend
	listener net.Listener
	sessions *cmap.Map[string, *Session]
	wg       sync.WaitGroup
	closed   int32
}

// NewServer creates a new instance of Server.
func NewServer(conf *Config, be *backend.Backend) *Server {
	return &Server{
		conf:     conf,
		backend:  be,
		sessions: cmap.New[string, *Session](),
	}
}

// Start starts accepting connections.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.conf.Port))
	if err != nil {
		return fmt.Errorf("listen on %d: %w", s.conf.Port, err)
	}
	s.listener = lis

	go s.acceptLoop()

	logging.DefaultLogger().Infof(
		"TCPServer is running on %s",
		lis.Addr().String(),
	)
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and closes every session. With
// graceful set, sessions flush their document state through the usual leave
// path, and Shutdown waits for them to finish before returning so the backend
// is still available for their final writes.
func (s *Server) Shutdown(graceful bool) {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return
	}

	if err := s.listener.Close(); err != nil {
		logging.DefaultLogger().Warnf("close listener: %v", err)
	}

	for _, session := range s.sessions.Values() {
		session.Close(graceful)
	}

	if !graceful {
		return
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(sessionDrainTimeout):
		logging.DefaultLogger().Warnf(
			"shutdown: sessions still draining after %s",
			sessionDrainTimeout,
		)
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.closed) == 1 {
				return
			}
			logging.DefaultLogger().Warnf("accept: %v", err)
			return
		}

		s.backend.Metrics.AddConnection()

		session := newSession(conn, s.backend, s.detach)
		s.sessions.Set(session.ID(), session)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			session.run()
		}()
	}
}

// detach removes a finished session from the session table.
func (s *Server) detach(session *Session) {
	s.sessions.Delete(session.ID(), func(_ *Session, exists bool) bool {
		return exists
	})
	s.backend.Metrics.RemoveSession()
}
