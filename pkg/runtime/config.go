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
	"net/http"
	"time"

	"github.com/visadesk/companion/pkg/models"
)

const (
	defaultWaitTimeout  = 180 * time.Second
	defaultPollInterval = 3 * time.Second
	defaultProbeTimeout = 5 * time.Second
	defaultSyncTimeout  = 4 * time.Second

	defaultHealthPath    = "/api/health/"
	defaultSyncStatePath = "/api/sync/state/"
)

// defaultRequiredServices is the full local stack. A partial subset is
// never treated as running.
var defaultRequiredServices = []string{"db", "cache", "app", "worker", "frontend"}

// Config describes the managed stack and its probe endpoints.
type Config struct {
	// RequiredServices are the compose service names that must all be
	// running before the stack counts as up.
	RequiredServices []string `json:"required_services"`
	// DataRoot is the local data directory tree.
	DataRoot string `json:"data_root"`
	// BaseURL is the application tier base URL.
	BaseURL string `json:"base_url"`
	// FrontendURL is the presentation tier base URL.
	FrontendURL string `json:"frontend_url"`

	WaitTimeout  models.Duration `json:"wait_timeout"`
	PollInterval models.Duration `json:"poll_interval"`
	ProbeTimeout models.Duration `json:"probe_timeout"`
	SyncTimeout  models.Duration `json:"sync_timeout"`

	// VaultKey returns the local media-store encryption key, or empty
	// when the vault is locked. Consulted on every Start.
	VaultKey func() string `json:"-"`
	// AuthToken returns the bearer credential for the stack's own API,
	// or empty to rely on ambient session credentials.
	AuthToken func() string `json:"-"`

	HTTPClient *http.Client `json:"-"`
}

func (c *Config) setDefaults() {
	if len(c.RequiredServices) == 0 {
		c.RequiredServices = defaultRequiredServices
	}

	if c.WaitTimeout == 0 {
		c.WaitTimeout = models.Duration(defaultWaitTimeout)
	}

	if c.PollInterval == 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = models.Duration(defaultProbeTimeout)
	}

	if c.SyncTimeout == 0 {
		c.SyncTimeout = models.Duration(defaultSyncTimeout)
	}

	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}
