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

package runtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/visadesk/companion/pkg/models"
)

// syncStateResponse is the wire shape of the stack's sync-state
// endpoint. Both historical field conventions are accepted here, at the
// boundary, and nowhere else.
type syncStateResponse struct {
	RemoteCursor    *syncCursor `json:"remoteCursor"`
	RemoteCursorAlt *syncCursor `json:"remote_cursor"`
}

type syncCursor struct {
	LastPushedAt    *time.Time `json:"lastPushedAt"`
	LastPushedAtAlt *time.Time `json:"last_pushed_at"`
	LastPulledAt    *time.Time `json:"lastPulledAt"`
	LastPulledAtAlt *time.Time `json:"last_pulled_at"`
	LastError       string     `json:"lastError"`
	LastErrorAlt    string     `json:"last_error"`
}

func (r *syncStateResponse) cursor() *syncCursor {
	if r.RemoteCursor != nil {
		return r.RemoteCursor
	}

	return r.RemoteCursorAlt
}

// SyncStatus derives the remote-sync state on demand. An unhealthy stack
// short-circuits: sync cannot be running if the stack itself is not
// usable, and the unhealthy reason is surfaced as the error.
func (o *Orchestrator) SyncStatus(ctx context.Context) models.SyncStatus {
	st := o.RefreshStatus(ctx)
	if !st.Healthy {
		lastError := string(st.Reason)
		if st.LastError != "" {
			lastError = st.LastError
		}

		return models.SyncStatus{Running: false, LastError: lastError}
	}

	return o.fetchSyncState(ctx)
}

func (o *Orchestrator) fetchSyncState(ctx context.Context) models.SyncStatus {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.SyncTimeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL+defaultSyncStatePath, http.NoBody)
	if err != nil {
		return models.SyncStatus{Running: true, LastError: err.Error()}
	}

	if o.cfg.AuthToken != nil {
		if token := o.cfg.AuthToken(); token != "" {
			req.Header.Set("Authorization", bearer(token))
		}
	}

	resp, err := o.cfg.HTTPClient.Do(req)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Sync state fetch failed")

		return models.SyncStatus{Running: true, LastError: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= 300 {
		o.logger.Warn().Int("status", resp.StatusCode).Msg("Sync state fetch returned non-2xx")

		return models.SyncStatus{Running: true, LastError: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return models.SyncStatus{Running: true, LastError: err.Error()}
	}

	var payload syncStateResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.SyncStatus{Running: true, LastError: err.Error()}
	}

	status := models.SyncStatus{Running: true}

	if cursor := payload.cursor(); cursor != nil {
		status.LastPushAt = pickTime(cursor.LastPushedAt, cursor.LastPushedAtAlt)
		status.LastPullAt = pickTime(cursor.LastPulledAt, cursor.LastPulledAtAlt)
		status.LastError = pickString(cursor.LastError, cursor.LastErrorAlt)
	}

	return status
}

func pickTime(a, b *time.Time) *time.Time {
	if a != nil {
		return a
	}

	return b
}

func pickString(a, b string) string {
	if a != "" {
		return a
	}

	return b
}
