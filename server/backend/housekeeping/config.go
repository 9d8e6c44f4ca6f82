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

package housekeeping

import (
	"fmt"
	"time"
)

// Config is the configuration for the housekeeping service.
type Config struct {
	// FlushInterval is the time between runs of the document flush task.
	FlushInterval string `yaml:"FlushInterval"`

	// PresenceEvictInterval is the time between runs of the stale-presence
	// eviction task.
	PresenceEvictInterval string `yaml:"PresenceEvictInterval"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.FlushInterval); err != nil {
		return fmt.Errorf(
			`invalid argument %s for "--housekeeping-flush-interval" flag: %w`,
			c.FlushInterval,
			err,
		)
	}

	if _, err := time.ParseDuration(c.PresenceEvictInterval); err != nil {
		return fmt.Errorf(
			`invalid argument %s for "--housekeeping-presence-evict-interval" flag: %w`,
			c.PresenceEvictInterval,
			err,
		)
	}

	return nil
}

// ParseFlushInterval parses the flush interval.
func (c *Config) ParseFlushInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.FlushInterval)
	if err != nil {
		return 0, fmt.Errorf("parse flush interval %s: %w", c.FlushInterval, err)
	}

	return interval, nil
}

// ParsePresenceEvictInterval parses the presence eviction interval.
func (c *Config) ParsePresenceEvictInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.PresenceEvictInterval)
	if err != nil {
		return 0, fmt.Errorf("parse presence evict interval %s: %w", c.PresenceEvictInterval, err)
	}

	return interval, nil
}
