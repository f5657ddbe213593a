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
	"encoding/json"
	"time"

	"github.com/visadesk/companion/pkg/models"
)

// The inbox endpoint has shipped two field conventions over its life,
// camelCase and snake_case. Both are accepted here, at deserialization,
// and normalized into one canonical models.Reminder; nothing past this
// file ever does a dual-key lookup.

type inboxResponse struct {
	UnreadCount    *int           `json:"unreadCount"`
	UnreadCountAlt *int           `json:"unread_count"`
	Today          []reminderWire `json:"today"`
}

func (r *inboxResponse) unread() int {
	if r.UnreadCount != nil {
		return *r.UnreadCount
	}

	if r.UnreadCountAlt != nil {
		return *r.UnreadCountAlt
	}

	return 0
}

type reminderWire struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`

	ReminderDate    string `json:"reminderDate"`
	ReminderDateAlt string `json:"reminder_date"`
	ReminderTime    string `json:"reminderTime"`
	ReminderTimeAlt string `json:"reminder_time"`

	Timezone string `json:"timezone"`

	SentAt    *time.Time `json:"sentAt"`
	SentAtAlt *time.Time `json:"sent_at"`
	ReadAt    *time.Time `json:"readAt"`
	ReadAtAlt *time.Time `json:"read_at"`
}

func (w *reminderWire) normalize() models.Reminder {
	return models.Reminder{
		ID:           w.ID,
		Content:      w.Content,
		ReminderDate: firstOf(w.ReminderDate, w.ReminderDateAlt),
		ReminderTime: firstOf(w.ReminderTime, w.ReminderTimeAlt),
		Timezone:     w.Timezone,
		SentAt:       firstTime(w.SentAt, w.SentAtAlt),
		ReadAt:       firstTime(w.ReadAt, w.ReadAtAlt),
	}
}

// DecodeReminder normalizes a single wire-format reminder, tolerating
// either field convention. Used by the realtime channel so pushed and
// polled reminders share one canonical shape.
func DecodeReminder(data []byte) (models.Reminder, error) {
	var wire reminderWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return models.Reminder{}, err
	}

	return wire.normalize(), nil
}

func firstOf(a, b string) string {
	if a != "" {
		return a
	}

	return b
}

func firstTime(a, b *time.Time) *time.Time {
	if a != nil {
		return a
	}

	return b
}
