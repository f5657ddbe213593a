/*
 * Copyright 2026 VisaDesk Ltd.
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

package reminders

import (
	"sort"
	"time"
)

// seenCache is the deduplication ledger: reminder id to last-seen
// timestamp. It is why the same reminder is not re-delivered on every
// poll cycle. Bounded by entry count and age so memory stays flat no
// matter how long the process runs.
//
// Not safe for concurrent use; the poller serializes access.
type seenCache struct {
	entries    map[int64]time.Time
	maxEntries int
	maxAge     time.Duration
}

func newSeenCache(maxEntries int, maxAge time.Duration) *seenCache {
	return &seenCache{
		entries:    make(map[int64]time.Time),
		maxEntries: maxEntries,
		maxAge:     maxAge,
	}
}

// Seen reports whether id is in the ledger.
func (c *seenCache) Seen(id int64) bool {
	_, ok := c.entries[id]
	return ok
}

// Mark records id as seen at now and prunes: first entries older than
// maxAge, then the oldest-timestamped entries until the cache is back at
// the cap. The cache never exceeds maxEntries after Mark returns.
func (c *seenCache) Mark(id int64, now time.Time) {
	c.entries[id] = now
	c.prune(now)
}

func (c *seenCache) prune(now time.Time) {
	cutoff := now.Add(-c.maxAge)
	for id, seenAt := range c.entries {
		if seenAt.Before(cutoff) {
			delete(c.entries, id)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type entry struct {
		id     int64
		seenAt time.Time
	}

	ordered := make([]entry, 0, len(c.entries))
	for id, seenAt := range c.entries {
		ordered = append(ordered, entry{id: id, seenAt: seenAt})
	}

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].seenAt.Before(ordered[j].seenAt)
	})

	for _, e := range ordered[:len(c.entries)-c.maxEntries] {
		delete(c.entries, e.id)
	}
}

func (c *seenCache) Len() int {
	return len(c.entries)
}

func (c *seenCache) Clear() {
	c.entries = make(map[int64]time.Time)
}
