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

// Package server provides the CollabNote server, the main entry point of the
// system. The server accepts client connections, synchronizes document
// content between them and runs the background maintenance tasks.
package server

import (
	"context"
	gosync "sync"
	"time"

	"github.com/collabnote/collabnote/server/backend"
	"github.com/collabnote/collabnote/server/logging"
	"github.com/collabnote/collabnote/server/profiling"
	"github.com/collabnote/collabnote/server/profiling/prometheus"
	"github.com/collabnote/collabnote/server/tcp"
)

// CollabNote is a server of CollabNote. The server receives document updates
// from clients, stores them in the repository, and propagates the updates to
// clients subscribed to the document.
type CollabNote struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	tcpServer       *tcp.Server
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of CollabNote.
func New(conf *Config) (*CollabNote, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := backend.New(
		conf.Backend,
		conf.Mongo,
		conf.Housekeeping,
		metrics,
	)
	if err != nil {
		return nil, err
	}

	tcpServer := tcp.NewServer(conf.TCP, be)

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &CollabNote{
		conf:            conf,
		backend:         be,
		tcpServer:       tcpServer,
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the client port.
func (r *CollabNote) Start() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.RegisterHousekeepingTasks(r.backend)

	if err := r.backend.Start(); err != nil {
		return err
	}

	if r.profilingServer != nil {
		if err := r.profilingServer.Start(); err != nil {
			return err
		}
	}

	return r.tcpServer.Start()
}

// Shutdown shuts down this CollabNote server.
func (r *CollabNote) Shutdown(graceful bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.shutdown {
		return nil
	}

	r.tcpServer.Shutdown(graceful)
	if r.profilingServer != nil {
		r.profilingServer.Shutdown(graceful)
	}

	if err := r.backend.Shutdown(); err != nil {
		return err
	}

	close(r.shutdownCh)
	r.shutdown = true
	return nil
}

// ShutdownCh returns the shutdown channel.
func (r *CollabNote) ShutdownCh() <-chan struct{} {
	return r.shutdownCh
}

// Addr returns the address clients connect to.
func (r *CollabNote) Addr() string {
	return r.tcpServer.Addr()
}

// RegisterHousekeepingTasks registers housekeeping tasks.
func (r *CollabNote) RegisterHousekeepingTasks(be *backend.Backend) {
	be.Housekeeping.RegisterTask(
		"flush",
		be.Housekeeping.FlushInterval(),
		func(ctx context.Context) error {
			start := time.Now()
			flushed := be.Registry.FlushAll(ctx)
			if flushed > 0 {
				logging.From(ctx).Infof(
					"HSKP: flushed %d documents %s",
					flushed,
					time.Since(start),
				)
			}
			return nil
		},
	)

	be.Housekeeping.RegisterTask(
		"evict",
		be.Housekeeping.PresenceEvictInterval(),
		func(ctx context.Context) error {
			evicted, err := be.Presence.EvictStale(ctx, be.Config.ParsePresenceMaxAge())
			if err != nil {
				return err
			}
			if evicted > 0 {
				logging.From(ctx).Infof("HSKP: evicted %d stale presence records", evicted)
			}
			return nil
		},
	)
}
