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

// Package backend wires the resources the server needs to run: the database,
// the document registry, presence tracking, the version store and the
// housekeeping service.
package backend

import (
	"errors"

	"github.com/collabnote/collabnote/server/backend/database"
	memdb "github.com/collabnote/collabnote/server/backend/database/memory"
	"github.com/collabnote/collabnote/server/backend/database/mongo"
	"github.com/collabnote/collabnote/server/backend/housekeeping"
	"github.com/collabnote/collabnote/server/logging"
	"github.com/collabnote/collabnote/server/presence"
	"github.com/collabnote/collabnote/server/profiling/prometheus"
	"github.com/collabnote/collabnote/server/registry"
	"github.com/collabnote/collabnote/server/versions"
)

// Backend manages the server's backend such as Database and Registry.
type Backend struct {
	Config *Config

	// DB is the database instance.
	DB database.Database
	// Registry routes document operations and fan-out.
	Registry *registry.Registry
	// Presence tracks active users and cursors.
	Presence *presence.Tracker
	// Versions is the append-only snapshot store.
	Versions *versions.Store

	// Housekeeping runs the periodic flush and eviction tasks.
	Housekeeping *housekeeping.Housekeeping

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics
}

// New creates a new instance of Backend.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	housekeepingConf *housekeeping.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	// 01. Create the database instance. If the MongoDB configuration is
	// given, create a MongoDB instance. Otherwise, create a memory database.
	var db database.Database
	var err error
	if mongoConf != nil {
		db, err = mongo.Dial(mongoConf)
		if err != nil {
			return nil, err
		}
	} else {
		db, err = memdb.New()
		if err != nil {
			return nil, err
		}
	}

	// 02. Create the presence tracker, the version store and the registry on
	// top of the database.
	tracker := presence.NewTracker(
		db,
		conf.ParseActiveUserWindow(),
		conf.ParseCursorWindow(),
	)
	store := versions.NewStore(db)
	reg := registry.New(db, tracker, store, metrics)

	// 03. Create the housekeeping service. Tasks are registered by the
	// server before it starts.
	housekeeper, err := housekeeping.New(housekeepingConf, metrics.AddHousekeepingError)
	if err != nil {
		return nil, err
	}

	dbInfo := "memory"
	if mongoConf != nil {
		dbInfo = mongoConf.ConnectionURI
	}
	logging.DefaultLogger().Infof("backend created: db: %s", dbInfo)

	return &Backend{
		Config: conf,

		DB:       db,
		Registry: reg,
		Presence: tracker,
		Versions: store,

		Housekeeping: housekeeper,

		Metrics: metrics,
	}, nil
}

// Start starts the backend.
func (b *Backend) Start() error {
	if err := b.Housekeeping.Start(); err != nil {
		return err
	}

	logging.DefaultLogger().Infof("backend started")
	return nil
}

// Shutdown closes all resources of this instance.
func (b *Backend) Shutdown() error {
	var errs []error

	if err := b.Housekeeping.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := b.DB.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}
