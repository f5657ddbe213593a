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

// Package runtime supervises the lifecycle of the locally hosted service
// stack: bring-up gated by the vault key, two-tier health verification,
// and a destructive local-data reset.
//
// Every public operation returns a status value and never an error. The
// orchestrator lives inside a long-lived desktop host process; all
// fallible work is caught at this boundary and encoded into the Reason
// and LastError fields of the returned snapshot.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/visadesk/companion/pkg/compose"
	"github.com/visadesk/companion/pkg/diag"
	"github.com/visadesk/companion/pkg/logger"
	"github.com/visadesk/companion/pkg/models"
)

// maxProbeBody bounds how much of a probe response is read.
const maxProbeBody = 1 << 20

// Orchestrator owns the runtime status snapshot for one host session.
// Concurrent Start/Stop calls are the caller's responsibility to
// serialize; the mutex only protects the snapshot itself.
type Orchestrator struct {
	cfg    Config
	runner compose.Runner
	logger logger.Logger

	mu     sync.Mutex
	status models.RuntimeStatus
}

// New constructs an orchestrator. Availability is fixed here from the
// runner and never re-probed.
func New(cfg Config, runner compose.Runner, log logger.Logger) *Orchestrator {
	cfg.setDefaults()

	return &Orchestrator{
		cfg:    cfg,
		runner: runner,
		logger: log,
		status: models.RuntimeStatus{Available: runner.Available()},
	}
}

// Status returns the last observed snapshot without probing.
func (o *Orchestrator) Status() models.RuntimeStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.status
}

// RefreshStatus re-probes the stack. Tier one asks compose which of the
// required services are running; the stack counts as running only when
// every required name is present. Tier two runs only after tier one
// passes: a bounded JSON probe of the application health endpoint and a
// plain reachability check of the frontend. Probe failures are captured,
// never propagated.
func (o *Orchestrator) RefreshStatus(ctx context.Context) models.RuntimeStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.status.Available {
		o.status.Running = false
		o.status.Healthy = false
		o.status.Reason = models.ReasonComposeUnavailable

		return o.status
	}

	running, err := o.runner.RunningServices(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Status probe failed")

		o.status.Running = false
		o.status.Healthy = false
		o.status.Reason = models.ReasonStatusProbeFailed
		o.status.LastError = err.Error()

		return o.status
	}

	if !containsAll(running, o.cfg.RequiredServices) {
		o.status.Running = false
		o.status.Healthy = false
		o.status.Reason = models.ReasonServicesNotRunning

		return o.status
	}

	o.status.Running = true

	if o.probeHealthy(ctx) {
		o.status.Healthy = true
		o.status.Reason = models.ReasonNone
	} else {
		o.status.Healthy = false
		o.status.Reason = models.ReasonHealthcheckFailed
	}

	return o.status
}

// Start brings up the required services and waits for health. The local
// media store must never start unencrypted, so a missing vault key
// refuses the operation before compose is ever invoked.
func (o *Orchestrator) Start(ctx context.Context) models.RuntimeStatus {
	if st := o.Status(); !st.Available {
		return o.setReason(models.ReasonComposeUnavailable, "")
	}

	if o.cfg.VaultKey == nil || o.cfg.VaultKey() == "" {
		o.logger.Warn().Msg("Refusing to start local stack: vault locked")

		return o.setReason(models.ReasonVaultLocked, "")
	}

	o.ensureLayout()

	if err := o.runner.Up(ctx, o.cfg.RequiredServices...); err != nil {
		o.logger.Error().Err(err).Msg("Failed to start local stack")

		return o.setReason(models.ReasonStartFailed, err.Error())
	}

	return o.WaitForHealthy(ctx, time.Duration(o.cfg.WaitTimeout), time.Duration(o.cfg.PollInterval))
}

// Stop stops the required services. On failure the prior Running value
// is preserved: a stop we did not observe succeeding is not claimed.
func (o *Orchestrator) Stop(ctx context.Context) models.RuntimeStatus {
	o.ensureLayout()

	if err := o.runner.Stop(ctx, o.cfg.RequiredServices...); err != nil {
		o.logger.Error().Err(err).Msg("Failed to stop local stack")

		return o.setReason(models.ReasonStopFailed, err.Error())
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.status.Running = false
	o.status.Healthy = false
	o.status.Reason = models.ReasonNone

	return o.status
}

// WaitForHealthy polls RefreshStatus until the stack is running and
// healthy or the timeout elapses. Timeout is a normal, reportable
// outcome: the last observed status is returned either way.
func (o *Orchestrator) WaitForHealthy(ctx context.Context, timeout, interval time.Duration) models.RuntimeStatus {
	deadline := time.Now().Add(timeout)

	for {
		st := o.RefreshStatus(ctx)
		if st.Running && st.Healthy {
			return st
		}

		if time.Now().After(deadline) {
			o.logger.Warn().Dur("timeout", timeout).Msg("Stack did not become healthy in time")

			return st
		}

		select {
		case <-ctx.Done():
			return o.Status()
		case <-time.After(interval):
		}
	}
}

// ResetLocalData stops the stack best-effort, deletes the local data
// tree, and recreates the empty layout. Destructive and irreversible;
// callers confirm with the user first. Failures are reported, never
// retried, since retrying a partial deletion is unsafe.
func (o *Orchestrator) ResetLocalData(ctx context.Context) models.RuntimeStatus {
	_ = o.Stop(ctx)

	o.logger.Info().Str("data_root", o.cfg.DataRoot).Msg("Resetting local data")

	if err := os.RemoveAll(o.cfg.DataRoot); err != nil {
		o.logger.Error().Err(err).Msg("Failed to delete local data tree")

		return o.setReason(models.ReasonLocalDataResetFailed, err.Error())
	}

	if err := EnsureLayout(o.cfg.DataRoot); err != nil {
		o.logger.Error().Err(err).Msg("Failed to recreate local data layout")

		return o.setReason(models.ReasonLocalDataResetFailed, err.Error())
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.status.Running = false
	o.status.Healthy = false
	o.status.Reason = models.ReasonLocalDataReset
	o.status.LastError = ""

	return o.status
}

// HostUsage reports disk and memory headroom for the data root. Failures
// degrade to a zero-valued snapshot.
func (o *Orchestrator) HostUsage() models.HostUsage {
	usage, err := diag.Collect(o.cfg.DataRoot)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to collect host usage")
	}

	return usage
}

func (o *Orchestrator) setReason(reason models.Reason, lastError string) models.RuntimeStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.status.Reason = reason
	if lastError != "" {
		o.status.LastError = lastError
	}

	return o.status
}

// ensureLayout recreates the data directory tree before a compose
// command. Best-effort: absence of the tree is not an error, and neither
// is failing to create it here (the command itself will surface that).
func (o *Orchestrator) ensureLayout() {
	if o.cfg.DataRoot == "" {
		return
	}

	if err := EnsureLayout(o.cfg.DataRoot); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to ensure data layout")
	}
}

// probeHealthy runs the two tier-two reachability checks. Both must
// succeed. Any error is treated as unhealthy, never propagated.
func (o *Orchestrator) probeHealthy(ctx context.Context) bool {
	if !o.probeApp(ctx) {
		return false
	}

	return o.probeFrontend(ctx)
}

// probeApp issues a bounded-timeout JSON probe against the application's
// own health endpoint.
func (o *Orchestrator) probeApp(ctx context.Context) bool {
	body, ok := o.get(ctx, o.cfg.BaseURL+defaultHealthPath, time.Duration(o.cfg.ProbeTimeout))
	if !ok {
		return false
	}

	return json.Valid(body)
}

// probeFrontend is a plain reachability check: any 2xx counts.
func (o *Orchestrator) probeFrontend(ctx context.Context) bool {
	_, ok := o.get(ctx, o.cfg.FrontendURL+"/", time.Duration(o.cfg.ProbeTimeout))
	return ok
}

func (o *Orchestrator) get(ctx context.Context, url string, timeout time.Duration) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, false
	}

	resp, err := o.cfg.HTTPClient.Do(req)
	if err != nil {
		o.logger.Debug().Err(err).Str("url", url).Msg("Probe failed")
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= 300 {
		o.logger.Debug().Int("status", resp.StatusCode).Str("url", url).Msg("Probe returned non-2xx")
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return nil, false
	}

	return body, true
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, name := range have {
		set[name] = struct{}{}
	}

	for _, name := range want {
		if _, ok := set[name]; !ok {
			return false
		}
	}

	return true
}

// bearer formats the Authorization header value for the stack API.
func bearer(token string) string {
	return fmt.Sprintf("Bearer %s", token)
}
