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

package models

import "time"

// Reminder is the canonical internal shape of a calendar reminder.
// Identity is ID; a record is immutable once normalized from the wire.
type Reminder struct {
	ID           int64      `json:"id"`
	Content      string     `json:"content"`
	ReminderDate string     `json:"reminder_date"`
	ReminderTime string     `json:"reminder_time"`
	Timezone     string     `json:"timezone"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
}
