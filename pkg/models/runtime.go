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

// Package models defines the canonical data shapes shared across the
// desktop companion: runtime status snapshots, sync state, and reminders.
package models

import "time"

// Reason classifies why the local runtime is not (or no longer) usable.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonComposeUnavailable   Reason = "docker_compose_unavailable"
	ReasonVaultLocked          Reason = "vault_locked"
	ReasonServicesNotRunning   Reason = "services_not_running"
	ReasonHealthcheckFailed    Reason = "healthcheck_failed"
	ReasonStatusProbeFailed    Reason = "status_probe_failed"
	ReasonStartFailed          Reason = "start_failed"
	ReasonStopFailed           Reason = "stop_failed"
	ReasonLocalDataReset       Reason = "local_data_reset"
	ReasonLocalDataResetFailed Reason = "local_data_reset_failed"
)

// RuntimeStatus is a point-in-time snapshot of the local stack.
// It is always returned by value; callers must not expect it to update
// in place.
type RuntimeStatus struct {
	// Available is fixed at construction: the orchestration tool and the
	// stack descriptor both exist.
	Available bool   `json:"available"`
	Running   bool   `json:"running"`
	Healthy   bool   `json:"healthy"`
	Reason    Reason `json:"reason,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// SyncStatus reflects the local stack's own remote-sync cursor. It is
// derived on demand, never cached.
type SyncStatus struct {
	Running    bool       `json:"running"`
	LastPushAt *time.Time `json:"last_push_at,omitempty"`
	LastPullAt *time.Time `json:"last_pull_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// HostUsage reports disk headroom for the local data root plus host
// memory, so the desktop shell can warn before local-primary mode runs
// out of space.
type HostUsage struct {
	DataPath     string  `json:"data_path"`
	DiskTotal    uint64  `json:"disk_total"`
	DiskFree     uint64  `json:"disk_free"`
	DiskUsedPct  float64 `json:"disk_used_pct"`
	MemTotal     uint64  `json:"mem_total"`
	MemAvailable uint64  `json:"mem_available"`
}
