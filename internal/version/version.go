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

// Package version provides the current version of the server, injected at
// build time.
package version

var (
	// Version is the version of the server.
	Version = "dev"

	// GitCommit is the git commit the binary was built from.
	GitCommit = "unknown"

	// BuildDate is the date the binary was built.
	BuildDate = "unknown"
)
