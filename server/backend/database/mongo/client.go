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

// Package mongo implements the database interface using MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/collabnote/collabnote/server/backend/database"
	"github.com/collabnote/collabnote/server/logging"
)

const (
	colDocuments = "documents"
	colVersions  = "document_versions"
	colPresences = "active_users"
	colCursors   = "cursor_positions"
	colCounters  = "counters"

	versionIDCounter = "version_id"
)

// Client is a client that connects to MongoDB and implements the database
// interface.
type Client struct {
	config *Config
	client *mongo.Client
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.ConnectionURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), conf.ParsePingTimeout())
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo %s: %w", conf.ConnectionURI, err)
	}

	c := &Client{
		config: conf,
		client: client,
	}
	if err := c.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	logging.DefaultLogger().Infof("MongoDB connected, URI: %s, DB: %s", conf.ConnectionURI, conf.Database)
	return c, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}

	return nil
}

// SaveDocument upserts the full content of the document.
func (c *Client) SaveDocument(ctx context.Context, name, content string) error {
	if _, err := c.collection(colDocuments).UpdateOne(ctx, bson.M{
		"name": name,
	}, bson.M{
		"$set": bson.M{
			"content":    content,
			"updated_at": time.Now(),
		},
	}, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("save document %s: %w", name, err)
	}

	return nil
}

// LoadDocument returns the content of the document or empty content when the
// document has never been saved.
func (c *Client) LoadDocument(ctx context.Context, name string) (string, error) {
	result := c.collection(colDocuments).FindOne(ctx, bson.M{"name": name})

	info := database.DocInfo{}
	if err := result.Decode(&info); err != nil {
		if err == mongo.ErrNoDocuments {
			return "", nil
		}
		return "", fmt.Errorf("load document %s: %w", name, err)
	}

	return info.Content, nil
}

// ListDocumentNames returns all document names, most recently updated first.
func (c *Client) ListDocumentNames(ctx context.Context) ([]string, error) {
	cursor, err := c.collection(colDocuments).Find(
		ctx,
		bson.M{},
		options.Find().SetSort(bson.M{"updated_at": -1}),
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var infos []*database.DocInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names, nil
}

// AppendVersion inserts a new immutable snapshot and returns its id. IDs come
// from a counters collection so they are strictly increasing across the whole
// store.
func (c *Client) AppendVersion(ctx context.Context, docName, content, author string) (int64, error) {
	id, err := c.nextVersionID(ctx)
	if err != nil {
		return 0, err
	}

	if _, err := c.collection(colVersions).InsertOne(ctx, bson.M{
		"version_id":    id,
		"document_name": docName,
		"content":       content,
		"created_at":    time.Now(),
		"created_by":    author,
	}); err != nil {
		return 0, fmt.Errorf("append version of %s: %w", docName, err)
	}

	return id, nil
}

// ListVersions returns the snapshots of the document, newest first.
func (c *Client) ListVersions(ctx context.Context, docName string) ([]*database.VersionInfo, error) {
	cursor, err := c.collection(colVersions).Find(ctx, bson.M{
		"document_name": docName,
	}, options.Find().SetSort(bson.M{"version_id": -1}))
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", docName, err)
	}

	var infos []*database.VersionInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", docName, err)
	}

	return infos, nil
}

// GetVersion returns the snapshot with the given id.
func (c *Client) GetVersion(ctx context.Context, id int64) (*database.VersionInfo, error) {
	result := c.collection(colVersions).FindOne(ctx, bson.M{"version_id": id})

	info := database.VersionInfo{}
	if err := result.Decode(&info); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("get version %d: %w", id, database.ErrVersionNotFound)
		}
		return nil, fmt.Errorf("get version %d: %w", id, err)
	}

	return &info, nil
}

// UpsertPresence marks the user as active on the document now.
func (c *Client) UpsertPresence(ctx context.Context, docName, username string) error {
	if _, err := c.collection(colPresences).UpdateOne(ctx, bson.M{
		"document_name": docName,
		"username":      username,
	}, bson.M{
		"$set": bson.M{
			"last_active": time.Now(),
		},
	}, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert presence of %s on %s: %w", username, docName, err)
	}

	return nil
}

// RemovePresence deletes the presence row of the user on the document.
func (c *Client) RemovePresence(ctx context.Context, docName, username string) error {
	if _, err := c.collection(colPresences).DeleteOne(ctx, bson.M{
		"document_name": docName,
		"username":      username,
	}); err != nil {
		return fmt.Errorf("remove presence of %s on %s: %w", username, docName, err)
	}

	return nil
}

// ListActivePresence returns the usernames active on the document within the
// given window.
func (c *Client) ListActivePresence(
	ctx context.Context,
	docName string,
	window time.Duration,
) ([]string, error) {
	cursor, err := c.collection(colPresences).Find(ctx, bson.M{
		"document_name": docName,
		"last_active":   bson.M{"$gt": time.Now().Add(-window)},
	}, options.Find().SetSort(bson.M{"username": 1}))
	if err != nil {
		return nil, fmt.Errorf("list active presence of %s: %w", docName, err)
	}

	var infos []*database.PresenceInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("list active presence of %s: %w", docName, err)
	}

	var usernames []string
	for _, info := range infos {
		usernames = append(usernames, info.Username)
	}
	return usernames, nil
}

// DeleteStalePresence hard-deletes presence rows older than maxAge.
func (c *Client) DeleteStalePresence(ctx context.Context, maxAge time.Duration) (int, error) {
	result, err := c.collection(colPresences).DeleteMany(ctx, bson.M{
		"last_active": bson.M{"$lt": time.Now().Add(-maxAge)},
	})
	if err != nil {
		return 0, fmt.Errorf("delete stale presence: %w", err)
	}

	return int(result.DeletedCount), nil
}

// UpsertCursor stores the cursor position of the user on the document.
func (c *Client) UpsertCursor(ctx context.Context, docName, username string, position int) error {
	if _, err := c.collection(colCursors).UpdateOne(ctx, bson.M{
		"document_name": docName,
		"username":      username,
	}, bson.M{
		"$set": bson.M{
			"position":     position,
			"last_updated": time.Now(),
		},
	}, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert cursor of %s on %s: %w", username, docName, err)
	}

	return nil
}

// ListCursors returns username to position for cursor rows updated within the
// given window.
func (c *Client) ListCursors(
	ctx context.Context,
	docName string,
	window time.Duration,
) (map[string]int, error) {
	cursor, err := c.collection(colCursors).Find(ctx, bson.M{
		"document_name": docName,
		"last_updated":  bson.M{"$gt": time.Now().Add(-window)},
	})
	if err != nil {
		return nil, fmt.Errorf("list cursors of %s: %w", docName, err)
	}

	var infos []*database.CursorInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("list cursors of %s: %w", docName, err)
	}

	positions := make(map[string]int)
	for _, info := range infos {
		positions[info.Username] = info.Position
	}
	return positions, nil
}

func (c *Client) nextVersionID(ctx context.Context) (int64, error) {
	result := c.collection(colCounters).FindOneAndUpdate(ctx, bson.M{
		"_id": versionIDCounter,
	}, bson.M{
		"$inc": bson.M{"seq": int64(1)},
	}, options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After))

	counter := struct {
		Seq int64 `bson:"seq"`
	}{}
	if err := result.Decode(&counter); err != nil {
		return 0, fmt.Errorf("next version id: %w", err)
	}

	return counter.Seq, nil
}

func (c *Client) ensureIndexes(ctx context.Context) error {
	if _, err := c.collection(colDocuments).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"name": 1},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create documents index: %w", err)
	}

	if _, err := c.collection(colVersions).Indexes().CreateMany(ctx, []mongo.IndexModel{{
		Keys:    bson.M{"version_id": 1},
		Options: options.Index().SetUnique(true),
	}, {
		Keys: bson.M{"document_name": 1},
	}}); err != nil {
		return fmt.Errorf("create versions indexes: %w", err)
	}

	for _, col := range []string{colPresences, colCursors} {
		if _, err := c.collection(col).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{
				{Key: "document_name", Value: 1},
				{Key: "username", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		}); err != nil {
			return fmt.Errorf("create %s index: %w", col, err)
		}
	}

	return nil
}

func (c *Client) collection(name string) *mongo.Collection {
	return c.client.Database(c.config.Database).Collection(name)
}
