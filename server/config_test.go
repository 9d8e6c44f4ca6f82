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

package server_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabnote/collabnote/server"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults are valid test", func(t *testing.T) {
		conf := server.NewConfig()
		assert.NoError(t, conf.Validate())
		assert.Equal(t, server.DefaultPort, conf.TCP.Port)
		assert.Equal(t, server.DefaultProfilingPort, conf.Profiling.Port)
		assert.Equal(t, "localhost:5000", conf.Addr())
	})

	t.Run("invalid durations are rejected test", func(t *testing.T) {
		conf := server.NewConfig()
		conf.Backend.ActiveUserWindow = "forever"
		assert.Error(t, conf.Validate())
	})
}

func TestNewConfigFromFile(t *testing.T) {
	t.Run("missing file test", func(t *testing.T) {
		_, err := server.NewConfigFromFile("nowhere.yml")
		assert.Error(t, err)
	})

	t.Run("partial file fills defaults test", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
TCP:
  Port: 6000
Backend:
  CursorWindow: "45s"
`), 0o600))

		conf, err := server.NewConfigFromFile(path)
		require.NoError(t, err)
		require.NoError(t, conf.Validate())

		assert.Equal(t, 6000, conf.TCP.Port)
		assert.Equal(t, "45s", conf.Backend.CursorWindow)
		assert.Equal(t, server.DefaultProfilingPort, conf.Profiling.Port)
		assert.Equal(
			t,
			server.DefaultHousekeepingFlushInterval.String(),
			conf.Housekeeping.FlushInterval,
		)
		assert.Nil(t, conf.Mongo)
	})

	t.Run("mongo section gets its defaults test", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
Mongo:
  Database: "collabnote-test"
`), 0o600))

		conf, err := server.NewConfigFromFile(path)
		require.NoError(t, err)
		require.NoError(t, conf.Validate())

		assert.Equal(t, "collabnote-test", conf.Mongo.Database)
		assert.Equal(t, server.DefaultMongoConnectionURI, conf.Mongo.ConnectionURI)
	})
}
