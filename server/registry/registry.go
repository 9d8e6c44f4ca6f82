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

// Package registry keeps the documents that currently have subscribers in
// memory and fans document, presence and cursor frames out to them. A
// document enters memory when its first subscriber joins and leaves memory
// when its last subscriber leaves.
package registry

import (
	"context"

	"github.com/collabnote/collabnote/pkg/cmap"
	"github.com/collabnote/collabnote/server/backend/database"
	"github.com/collabnote/collabnote/server/logging"
	"github.com/collabnote/collabnote/server/presence"
	"github.com/collabnote/collabnote/server/profiling/prometheus"
	"github.com/collabnote/collabnote/server/protocol"
	"github.com/collabnote/collabnote/server/versions"
)

// Subscriber is a recipient of document frames, usually a connected session.
// Send must not block; slow recipients are the sender's problem, not the
// registry's.
type Subscriber interface {
	ID() string
	Username() string
	Send(frame string)
}

// Registry routes every document operation: joining, leaving, content and
// cursor updates, and the periodic flush.
type Registry struct {
	docs     *cmap.Map[string, *document]
	db       database.Database
	presence *presence.Tracker
	versions *versions.Store
	metrics  *prometheus.Metrics
}

// New creates a Registry backed by the given database.
func New(
	db database.Database,
	tracker *presence.Tracker,
	store *versions.Store,
	metrics *prometheus.Metrics,
) *Registry {
	return &Registry{
		docs:     cmap.New[string, *document](),
		db:       db,
		presence: tracker,
		versions: store,
		metrics:  metrics,
	}
}

// Join subscribes the session to the document, loading the content from the
// database on first touch. The joiner receives the full content; everyone on
// the document, joiner included, receives the refreshed active-user list and
// the current cursor positions, each user's own cursor excepted.
func (r *Registry) Join(ctx context.Context, docName string, sub Subscriber) {
	var doc *document
	for {
		doc = r.docs.Upsert(docName, func(d *document, exists bool) *document {
			if !exists {
				return newDocument()
			}
			return d
		})
		if doc.addSubscriber(sub, func() string { return r.loadContent(ctx, docName) }) {
			break
		}
		// lost the race against eviction of the last copy; fetch a fresh entry
	}
	r.metrics.SetDocumentsInMemory(r.docs.Len())

	if err := r.presence.Touch(ctx, docName, sub.Username()); err != nil {
		logging.From(ctx).Warnf("touch presence %s/%s: %v", docName, sub.Username(), err)
	}

	sub.Send(protocol.Document(doc.getContent()))
	r.metrics.AddBroadcast("DOCUMENT", 1)

	r.broadcastActiveUsers(ctx, docName, doc)
	r.broadcastCursors(ctx, docName, doc)
}

// Leave unsubscribes the session from the document and removes its presence
// record. When the last subscriber leaves, the content is persisted and the
// document is evicted from memory.
func (r *Registry) Leave(ctx context.Context, docName string, sub Subscriber) {
	doc, ok := r.docs.Get(docName)
	if !ok {
		return
	}

	empty, content := doc.removeSubscriber(sub.ID())

	if err := r.presence.Remove(ctx, docName, sub.Username()); err != nil {
		logging.From(ctx).Warnf("remove presence %s/%s: %v", docName, sub.Username(), err)
	}

	if empty {
		if err := r.db.SaveDocument(ctx, docName, content); err != nil {
			logging.From(ctx).Errorf("persist %s on eviction: %v", docName, err)
		}
		r.docs.Delete(docName, func(d *document, exists bool) bool {
			return exists && d.evict()
		})
		r.metrics.SetDocumentsInMemory(r.docs.Len())
		return
	}

	r.broadcastActiveUsers(ctx, docName, doc)
}

// UpdateContent replaces the document content, persists it immediately and
// broadcasts the new content to every subscriber except the sending session.
// The sender counts as presence activity.
func (r *Registry) UpdateContent(ctx context.Context, docName, content string, sender Subscriber) {
	doc, ok := r.docs.Get(docName)
	if !ok {
		return
	}

	doc.setContent(content)
	if err := r.db.SaveDocument(ctx, docName, content); err != nil {
		logging.From(ctx).Errorf("persist %s: %v", docName, err)
	}
	if err := r.presence.Touch(ctx, docName, sender.Username()); err != nil {
		logging.From(ctx).Warnf("touch presence %s/%s: %v", docName, sender.Username(), err)
	}

	r.deliver("UPDATE", broadcast(
		doc.subscribers(),
		protocol.Update(content),
		excludeID(sender.ID()),
	))
}

// UpdateCursor stores the sender's cursor position and broadcasts it to every
// subscriber whose username differs from the sender's, so a user editing in
// two windows never gets their own cursor echoed back.
func (r *Registry) UpdateCursor(ctx context.Context, docName string, sender Subscriber, position int) {
	doc, ok := r.docs.Get(docName)
	if !ok {
		return
	}

	if err := r.presence.MoveCursor(ctx, docName, sender.Username(), position); err != nil {
		logging.From(ctx).Warnf("store cursor %s/%s: %v", docName, sender.Username(), err)
	}
	if err := r.presence.Touch(ctx, docName, sender.Username()); err != nil {
		logging.From(ctx).Warnf("touch presence %s/%s: %v", docName, sender.Username(), err)
	}

	r.deliver("CURSOR_POS", broadcast(
		doc.subscribers(),
		protocol.CursorPos(sender.Username(), position),
		excludeUsername(sender.Username()),
	))
}

// FlushAll persists every document currently in memory and snapshots those
// whose persisted copy diverges from memory afterwards. Failures on one
// document never stop the sweep. It returns the number of documents swept.
func (r *Registry) FlushAll(ctx context.Context) int {
	flushed := 0
	for _, docName := range r.docs.Keys() {
		doc, ok := r.docs.Get(docName)
		if !ok {
			continue
		}

		content, author := doc.snapshotForFlush()
		if err := r.db.SaveDocument(ctx, docName, content); err != nil {
			logging.From(ctx).Errorf("flush %s: %v", docName, err)
		}

		persisted, err := r.db.LoadDocument(ctx, docName)
		if err != nil {
			logging.From(ctx).Errorf("read back %s: %v", docName, err)
			continue
		}

		// only snapshot when the stored copy does not match memory, and only
		// when someone is on the document to attribute the snapshot to
		if persisted != content && author != "" {
			if _, err := r.versions.Append(ctx, docName, content, author); err != nil {
				logging.From(ctx).Errorf("snapshot %s: %v", docName, err)
			}
		}
		flushed++
	}
	r.metrics.AddFlushedDocuments(flushed)
	return flushed
}

// DocumentNames returns every persisted document name, most recently updated
// first.
func (r *Registry) DocumentNames(ctx context.Context) ([]string, error) {
	return r.db.ListDocumentNames(ctx)
}

func (r *Registry) loadContent(ctx context.Context, docName string) string {
	content, err := r.db.LoadDocument(ctx, docName)
	if err != nil {
		logging.From(ctx).Errorf("load %s: %v", docName, err)
		return ""
	}
	return content
}

func (r *Registry) broadcastActiveUsers(ctx context.Context, docName string, doc *document) {
	users, err := r.presence.ActiveUsers(ctx, docName)
	if err != nil {
		logging.From(ctx).Warnf("list active users of %s: %v", docName, err)
		return
	}

	r.deliver("ACTIVE_USERS", broadcast(
		doc.subscribers(),
		protocol.ActiveUsers(docName, users),
		nil,
	))
}

func (r *Registry) broadcastCursors(ctx context.Context, docName string, doc *document) {
	cursors, err := r.presence.CursorsFor(ctx, docName)
	if err != nil {
		logging.From(ctx).Warnf("list cursors of %s: %v", docName, err)
		return
	}

	subs := doc.subscribers()
	for username, position := range cursors {
		r.deliver("CURSOR_POS", broadcast(
			subs,
			protocol.CursorPos(username, position),
			excludeUsername(username),
		))
	}
}

func (r *Registry) deliver(frame string, deliveries []Delivery) {
	for _, d := range deliveries {
		d.Target.Send(d.Frame)
	}
	if len(deliveries) > 0 {
		r.metrics.AddBroadcast(frame, len(deliveries))
	}
}
