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

// Package protocol defines the newline-delimited text protocol spoken between
// clients and the server. Inbound lines are commands tagged with a prefix up
// to the first colon; outbound frames carry a tag the client dispatches on.
// Payloads are free text up to the line terminator.
package protocol

import (
	"fmt"
	"strings"

	"github.com/collabnote/collabnote/server/backend/database"
)

// CommandType is the kind of an inbound command.
type CommandType int

// The inbound command types. Unknown lines are ignored by the session.
const (
	CommandUnknown CommandType = iota
	CommandJoin
	CommandText
	CommandCursor
	CommandList
	CommandGetVersions
	CommandGetVersion
)

const (
	prefixJoin        = "JOIN:"
	prefixText        = "TEXT:"
	prefixCursor      = "CURSOR:"
	cmdList           = "LIST"
	prefixGetVersions = "GET_VERSIONS:"
	prefixGetVersion  = "GET_VERSION:"
)

// timestampLayout is how snapshot creation times are rendered in VERSIONS
// frames.
const timestampLayout = "2006-01-02 15:04:05"

// Command is a parsed inbound line.
type Command struct {
	Type CommandType
	Arg  string
}

// ParseCommand parses a single inbound line into a Command.
func ParseCommand(line string) Command {
	switch {
	case strings.HasPrefix(line, prefixJoin):
		return Command{Type: CommandJoin, Arg: line[len(prefixJoin):]}
	case strings.HasPrefix(line, prefixText):
		return Command{Type: CommandText, Arg: line[len(prefixText):]}
	case strings.HasPrefix(line, prefixCursor):
		return Command{Type: CommandCursor, Arg: line[len(prefixCursor):]}
	case line == cmdList:
		return Command{Type: CommandList}
	case strings.HasPrefix(line, prefixGetVersions):
		return Command{Type: CommandGetVersions, Arg: line[len(prefixGetVersions):]}
	case strings.HasPrefix(line, prefixGetVersion):
		return Command{Type: CommandGetVersion, Arg: line[len(prefixGetVersion):]}
	}

	return Command{Type: CommandUnknown, Arg: line}
}

// Document builds the frame carrying the full content sent to a joining
// session.
func Document(content string) string {
	return "DOCUMENT:" + content
}

// Update builds the frame broadcast when a document's content is replaced.
func Update(content string) string {
	return "UPDATE:" + content
}

// List builds the document-list frame. Every name is followed by a comma,
// including the last one; clients split on commas and drop the empty tail.
func List(names []string) string {
	var b strings.Builder
	b.WriteString("LIST:")
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(",")
	}
	return b.String()
}

// ActiveUsers builds the frame carrying the users currently active on the
// document.
func ActiveUsers(docName string, usernames []string) string {
	return "ACTIVE_USERS:" + docName + ":" + strings.Join(usernames, ",")
}

// CursorPos builds the frame carrying one user's cursor position.
func CursorPos(username string, position int) string {
	return fmt.Sprintf("CURSOR_POS:%s:%d", username, position)
}

// Versions builds the snapshot-metadata frame: id, creation time and author
// per snapshot, each entry terminated by a semicolon.
func Versions(docName string, infos []*database.VersionInfo) string {
	var b strings.Builder
	b.WriteString("VERSIONS:")
	b.WriteString(docName)
	b.WriteString(":")
	for _, info := range infos {
		b.WriteString(fmt.Sprintf(
			"%d,%s,%s;",
			info.ID,
			info.CreatedAt.Format(timestampLayout),
			info.CreatedBy,
		))
	}
	return b.String()
}

// VersionContent builds the frame carrying the full content of one snapshot.
func VersionContent(content string) string {
	return "VERSION_CONTENT:" + content
}
