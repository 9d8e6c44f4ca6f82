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

package housekeeping_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabnote/collabnote/server/backend/housekeeping"
)

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		conf := housekeeping.Config{
			FlushInterval:         "10s",
			PresenceEvictInterval: "1m",
		}
		assert.NoError(t, conf.Validate())

		conf.FlushInterval = "hour"
		assert.Error(t, conf.Validate())

		conf.FlushInterval = "10s"
		conf.PresenceEvictInterval = ""
		assert.Error(t, conf.Validate())
	})

	t.Run("parse intervals test", func(t *testing.T) {
		conf := housekeeping.Config{
			FlushInterval:         "10s",
			PresenceEvictInterval: "1m",
		}

		flush, err := conf.ParseFlushInterval()
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, flush)

		evict, err := conf.ParsePresenceEvictInterval()
		require.NoError(t, err)
		assert.Equal(t, time.Minute, evict)
	})
}

func TestHousekeeping(t *testing.T) {
	conf := &housekeeping.Config{
		FlushInterval:         "10s",
		PresenceEvictInterval: "1m",
	}

	t.Run("parses its intervals test", func(t *testing.T) {
		h, err := housekeeping.New(conf, nil)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, h.FlushInterval())
		assert.Equal(t, time.Minute, h.PresenceEvictInterval())

		_, err = housekeeping.New(&housekeeping.Config{FlushInterval: "soon"}, nil)
		assert.Error(t, err)
	})

	t.Run("tasks run until stopped test", func(t *testing.T) {
		h, err := housekeeping.New(conf, nil)
		require.NoError(t, err)

		var runs int32
		ran := make(chan struct{}, 1)
		h.RegisterTask("flush", time.Millisecond, func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		})

		require.NoError(t, h.Start())
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatal("task did not run")
		}
		require.NoError(t, h.Stop())

		stopped := atomic.LoadInt32(&runs)
		time.Sleep(20 * time.Millisecond)
		// a run already in flight may still finish after Stop
		assert.LessOrEqual(t, atomic.LoadInt32(&runs), stopped+1)
	})

	t.Run("task errors are reported and do not stop the loop test", func(t *testing.T) {
		var failures int32
		h, err := housekeeping.New(conf, func(taskName string) {
			assert.Equal(t, "evict", taskName)
			atomic.AddInt32(&failures, 1)
		})
		require.NoError(t, err)

		h.RegisterTask("evict", time.Millisecond, func(ctx context.Context) error {
			return errors.New("storage unavailable")
		})

		require.NoError(t, h.Start())
		assert.Eventually(t, func() bool {
			return atomic.LoadInt32(&failures) >= 2
		}, time.Second, time.Millisecond)
		require.NoError(t, h.Stop())
	})
}
