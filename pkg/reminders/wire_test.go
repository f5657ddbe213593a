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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReminder_BothConventionsNormalizeIdentically(t *testing.T) {
	camel := []byte(`{
		"id": 42,
		"content": "passport renewal due",
		"reminderDate": "2026-09-01",
		"reminderTime": "09:30",
		"timezone": "Europe/Istanbul",
		"sentAt": "2026-08-28T08:00:00Z",
		"readAt": null
	}`)

	snake := []byte(`{
		"id": 42,
		"content": "passport renewal due",
		"reminder_date": "2026-09-01",
		"reminder_time": "09:30",
		"timezone": "Europe/Istanbul",
		"sent_at": "2026-08-28T08:00:00Z",
		"read_at": null
	}`)

	fromCamel, err := DecodeReminder(camel)
	require.NoError(t, err)

	fromSnake, err := DecodeReminder(snake)
	require.NoError(t, err)

	assert.Equal(t, fromCamel, fromSnake)
	assert.Equal(t, int64(42), fromCamel.ID)
	assert.Equal(t, "2026-09-01", fromCamel.ReminderDate)
	assert.Equal(t, "09:30", fromCamel.ReminderTime)
	require.NotNil(t, fromCamel.SentAt)
	assert.Nil(t, fromCamel.ReadAt)
}

func TestDecodeReminder_Malformed(t *testing.T) {
	_, err := DecodeReminder([]byte(`{"id": "not-a-number"}`))
	assert.Error(t, err)
}

func TestInboxResponse_UnreadCountConventions(t *testing.T) {
	var camel inboxResponse

	require.NoError(t, json.Unmarshal([]byte(`{"unreadCount": 5, "today": []}`), &camel))
	assert.Equal(t, 5, camel.unread())

	var snake inboxResponse

	require.NoError(t, json.Unmarshal([]byte(`{"unread_count": 3, "today": []}`), &snake))
	assert.Equal(t, 3, snake.unread())

	var empty inboxResponse

	require.NoError(t, json.Unmarshal([]byte(`{"today": []}`), &empty))
	assert.Equal(t, 0, empty.unread())
}
