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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/collabnote/collabnote/server/backend"
	"github.com/collabnote/collabnote/server/backend/database/mongo"
	"github.com/collabnote/collabnote/server/backend/housekeeping"
	"github.com/collabnote/collabnote/server/profiling"
	"github.com/collabnote/collabnote/server/tcp"
)

// Below are the values of the default values of CollabNote config.
const (
	DefaultPort          = 5000
	DefaultProfilingPort = 5001

	DefaultHousekeepingFlushInterval         = time.Minute
	DefaultHousekeepingPresenceEvictInterval = time.Minute

	DefaultActiveUserWindow = 2 * time.Minute
	DefaultCursorWindow     = 30 * time.Second
	DefaultPresenceMaxAge   = time.Minute

	DefaultMongoConnectionURI     = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout = 5 * time.Second
	DefaultMongoPingTimeout       = 5 * time.Second
	DefaultMongoDatabase          = "collabnote"
)

// Config is the configuration for creating a CollabNote instance.
type Config struct {
	TCP          *tcp.Config          `yaml:"TCP"`
	Profiling    *profiling.Config    `yaml:"Profiling"`
	Housekeeping *housekeeping.Config `yaml:"Housekeeping"`
	Backend      *backend.Config      `yaml:"Backend"`
	Mongo        *mongo.Config        `yaml:"Mongo"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	return newConfig(DefaultPort, DefaultProfilingPort)
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// Addr returns the address clients connect to.
func (c *Config) Addr() string {
	return fmt.Sprintf("localhost:%d", c.TCP.Port)
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.TCP.Validate(); err != nil {
		return err
	}

	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Housekeeping.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.TCP == nil {
		c.TCP = &tcp.Config{}
	}
	if c.TCP.Port == 0 {
		c.TCP.Port = DefaultPort
	}

	if c.Profiling == nil {
		c.Profiling = &profiling.Config{}
	}
	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Housekeeping == nil {
		c.Housekeeping = &housekeeping.Config{}
	}
	if c.Housekeeping.FlushInterval == "" {
		c.Housekeeping.FlushInterval = DefaultHousekeepingFlushInterval.String()
	}
	if c.Housekeeping.PresenceEvictInterval == "" {
		c.Housekeeping.PresenceEvictInterval = DefaultHousekeepingPresenceEvictInterval.String()
	}

	if c.Backend == nil {
		c.Backend = &backend.Config{}
	}
	if c.Backend.ActiveUserWindow == "" {
		c.Backend.ActiveUserWindow = DefaultActiveUserWindow.String()
	}
	if c.Backend.CursorWindow == "" {
		c.Backend.CursorWindow = DefaultCursorWindow.String()
	}
	if c.Backend.PresenceMaxAge == "" {
		c.Backend.PresenceMaxAge = DefaultPresenceMaxAge.String()
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}
		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}
		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}
		if c.Mongo.Database == "" {
			c.Mongo.Database = DefaultMongoDatabase
		}
	}
}

func newConfig(port int, profilingPort int) *Config {
	return &Config{
		TCP: &tcp.Config{
			Port: port,
		},
		Profiling: &profiling.Config{
			Port: profilingPort,
		},
		Housekeeping: &housekeeping.Config{
			FlushInterval:         DefaultHousekeepingFlushInterval.String(),
			PresenceEvictInterval: DefaultHousekeepingPresenceEvictInterval.String(),
		},
		Backend: &backend.Config{
			ActiveUserWindow: DefaultActiveUserWindow.String(),
			CursorWindow:     DefaultCursorWindow.String(),
			PresenceMaxAge:   DefaultPresenceMaxAge.String(),
		},
	}
}
