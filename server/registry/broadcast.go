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

// Delivery pairs a subscriber with the frame it should receive. Deciding who
// receives what is separated from the actual writes so the fan-out logic is
// testable without sockets.
type Delivery struct {
	Target Subscriber
	Frame  string
}

// broadcast returns a delivery of the frame for every subscriber not excluded
// by the omit predicate. A nil predicate excludes nobody.
func broadcast(subs []Subscriber, frame string, omit func(Subscriber) bool) []Delivery {
	deliveries := make([]Delivery, 0, len(subs))
	for _, sub := range subs {
		if omit != nil && omit(sub) {
			continue
		}
		deliveries = append(deliveries, Delivery{Target: sub, Frame: frame})
	}
	return deliveries
}

// excludeID excludes the subscriber with the given session id; used for
// broadcast-except-sender on content updates.
func excludeID(id string) func(Subscriber) bool {
	return func(sub Subscriber) bool {
		return sub.ID() == id
	}
}

// excludeUsername excludes every subscriber with the given username; used for
// cursor fan-out so a user never receives their own cursor echoed back.
func excludeUsername(username string) func(Subscriber) bool {
	return func(sub Subscriber) bool {
		return sub.Username() == username
	}
}
