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

package registry

import (
	"sort"
	"sync"
)

// document is the in-memory state of one document: its full content and the
// sessions currently subscribed to it. All fields are guarded by mu.
type document struct {
	mu      sync.RWMutex
	content string
	loaded  bool
	evicted bool
	subs    map[string]Subscriber
}

func newDocument() *document {
	return &document{
		subs: make(map[string]Subscriber),
	}
}

// addSubscriber registers the subscriber, loading the content with the given
// load function on the first touch. It returns false if the document has
// already been evicted; the caller must re-fetch the registry entry and retry.
func (d *document) addSubscriber(sub Subscriber, load func() string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.evicted {
		return false
	}

	if !d.loaded {
		d.content = load()
		d.loaded = true
	}

	// re-joining the same document is idempotent
	d.subs[sub.ID()] = sub
	return true
}

// removeSubscriber removes the subscriber and reports whether the document is
// now empty, together with the content to persist in that case.
func (d *document) removeSubscriber(id string) (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.subs, id)
	return len(d.subs) == 0, d.content
}

// evict marks the document evicted if it is still empty. A subscriber that
// raced in after the emptiness check keeps the document alive.
func (d *document) evict() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.subs) > 0 {
		return false
	}

	d.evicted = true
	return true
}

// setContent replaces the full content. Last writer wins.
func (d *document) setContent(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.content = content
}

// getContent returns the current content.
func (d *document) getContent() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.content
}

// subscribers returns a snapshot of the current subscriber set.
func (d *document) subscribers() []Subscriber {
	d.mu.RLock()
	defer d.mu.RUnlock()

	subs := make([]Subscriber, 0, len(d.subs))
	for _, sub := range d.subs {
		subs = append(subs, sub)
	}
	return subs
}

// snapshotForFlush returns the content as it stands now and the username of
// the first-enumerated subscriber (the smallest session id), or an empty
// string when the document has no subscriber.
func (d *document) snapshotForFlush() (string, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.subs))
	for id := range d.subs {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return d.content, ""
	}

	sort.Strings(ids)
	return d.content, d.subs[ids[0]].Username()
}
