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

package cmap_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collabnote/collabnote/pkg/cmap"
)

func TestMap(t *testing.T) {
	t.Run("set and get test", func(t *testing.T) {
		m := cmap.New[string, int]()
		m.Set("a", 1)
		m.Set("b", 2)

		v, ok := m.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = m.Get("c")
		assert.False(t, ok)
		assert.Equal(t, 2, m.Len())
	})

	t.Run("upsert test", func(t *testing.T) {
		m := cmap.New[string, int]()

		v := m.Upsert("counter", func(value int, exists bool) int {
			assert.False(t, exists)
			return 1
		})
		assert.Equal(t, 1, v)

		v = m.Upsert("counter", func(value int, exists bool) int {
			assert.True(t, exists)
			return value + 1
		})
		assert.Equal(t, 2, v)
	})

	t.Run("conditional delete test", func(t *testing.T) {
		m := cmap.New[string, int]()
		m.Set("a", 1)

		deleted := m.Delete("a", func(value int, exists bool) bool {
			return exists && value > 1
		})
		assert.False(t, deleted)
		assert.True(t, m.Has("a"))

		deleted = m.Delete("a", func(value int, exists bool) bool {
			return exists
		})
		assert.True(t, deleted)
		assert.False(t, m.Has("a"))
	})

	t.Run("concurrent upsert test", func(t *testing.T) {
		m := cmap.New[string, int]()

		const workers = 32
		const loops = 100

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < loops; j++ {
					m.Upsert("counter", func(value int, exists bool) int {
						return value + 1
					})
				}
			}()
		}
		wg.Wait()

		v, ok := m.Get("counter")
		assert.True(t, ok)
		assert.Equal(t, workers*loops, v)
	})

	t.Run("keys and values test", func(t *testing.T) {
		m := cmap.New[string, int]()
		m.Set("a", 1)
		m.Set("b", 2)
		m.Set("c", 3)

		assert.ElementsMatch(t, []string{"a", "b", "c"}, m.Keys())
		assert.ElementsMatch(t, []int{1, 2, 3}, m.Values())
	})
}
