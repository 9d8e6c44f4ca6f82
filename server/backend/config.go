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

package backend

import (
	"fmt"
	"time"
)

// Config is the configuration for the backend.
type Config struct {
	// ActiveUserWindow is how recent a presence record must be for its user
	// to appear in active-user lists.
	ActiveUserWindow string `yaml:"ActiveUserWindow"`

	// CursorWindow is how recent a cursor record must be to be replayed to a
	// joining session.
	CursorWindow string `yaml:"CursorWindow"`

	// PresenceMaxAge is the age at which the eviction task hard-deletes a
	// presence record. It is independent of ActiveUserWindow.
	PresenceMaxAge string `yaml:"PresenceMaxAge"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.ActiveUserWindow); err != nil {
		return fmt.Errorf(
			`invalid argument %s for "--backend-active-user-window" flag: %w`,
			c.ActiveUserWindow,
			err,
		)
	}

	if _, err := time.ParseDuration(c.CursorWindow); err != nil {
		return fmt.Errorf(
			`invalid argument %s for "--backend-cursor-window" flag: %w`,
			c.CursorWindow,
			err,
		)
	}

	if _, err := time.ParseDuration(c.PresenceMaxAge); err != nil {
		return fmt.Errorf(
			`invalid argument %s for "--backend-presence-max-age" flag: %w`,
			c.PresenceMaxAge,
			err,
		)
	}

	return nil
}

// ParseActiveUserWindow parses the active-user window.
func (c *Config) ParseActiveUserWindow() time.Duration {
	result, err := time.ParseDuration(c.ActiveUserWindow)
	if err != nil {
		panic(err)
	}

	return result
}

// ParseCursorWindow parses the cursor window.
func (c *Config) ParseCursorWindow() time.Duration {
	result, err := time.ParseDuration(c.CursorWindow)
	if err != nil {
		panic(err)
	}

	return result
}

// ParsePresenceMaxAge parses the presence hard-deletion age.
func (c *Config) ParsePresenceMaxAge() time.Duration {
	result, err := time.ParseDuration(c.PresenceMaxAge)
	if err != nil {
		panic(err)
	}

	return result
}
