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

// Package housekeeping runs the background maintenance tasks of the server:
// the periodic document flush and the eviction of stale presence records.
// Each registered task gets its own goroutine and interval.
package housekeeping

import (
	"context"
	"time"

	"github.com/collabnote/collabnote/server/logging"
)

// Task is a registered maintenance task. An error return is logged and
// counted; it never stops the task's loop.
type Task func(ctx context.Context) error

type taskEntry struct {
	name     string
	interval time.Duration
	run      Task
}

// Housekeeping is the housekeeping service. It periodically runs the
// registered tasks until stopped.
type Housekeeping struct {
	tasks []taskEntry

	flushInterval         time.Duration
	presenceEvictInterval time.Duration

	ctx        context.Context
	cancelFunc context.CancelFunc

	onError func(taskName string)
}

// New creates a new housekeeping instance. onError, if not nil, is called
// with the task name whenever a task run returns an error.
func New(conf *Config, onError func(taskName string)) (*Housekeeping, error) {
	flushInterval, err := conf.ParseFlushInterval()
	if err != nil {
		return nil, err
	}
	presenceEvictInterval, err := conf.ParsePresenceEvictInterval()
	if err != nil {
		return nil, err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())

	return &Housekeeping{
		flushInterval:         flushInterval,
		presenceEvictInterval: presenceEvictInterval,
		ctx:                   ctx,
		cancelFunc:            cancelFunc,
		onError:               onError,
	}, nil
}

// FlushInterval returns the interval of the document flush task.
func (h *Housekeeping) FlushInterval() time.Duration {
	return h.flushInterval
}

// PresenceEvictInterval returns the interval of the stale-presence eviction
// task.
func (h *Housekeeping) PresenceEvictInterval() time.Duration {
	return h.presenceEvictInterval
}

// RegisterTask registers a task to run every interval. Tasks must be
// registered before Start.
func (h *Housekeeping) RegisterTask(name string, interval time.Duration, task Task) {
	h.tasks = append(h.tasks, taskEntry{
		name:     name,
		interval: interval,
		run:      task,
	})
}

// Start starts one loop per registered task.
func (h *Housekeeping) Start() error {
	for _, entry := range h.tasks {
		go h.run(entry)
	}
	return nil
}

// Stop stops every task loop.
func (h *Housekeeping) Stop() error {
	h.cancelFunc()

	return nil
}

func (h *Housekeeping) run(entry taskEntry) {
	for {
		select {
		case <-time.After(entry.interval):
		case <-h.ctx.Done():
			return
		}

		ctx := context.Background()
		start := time.Now()
		if err := entry.run(ctx); err != nil {
			logging.From(ctx).Errorf("HSKP %s: %v", entry.name, err)
			if h.onError != nil {
				h.onError(entry.name)
			}
			continue
		}
		logging.From(ctx).Debugf("HSKP %s: done in %s", entry.name, time.Since(start))
	}
}
