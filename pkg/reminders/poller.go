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

// Package reminders implements the fallback delivery poller: an
// always-on client that guarantees at-least-once, deduplicated delivery
// of due reminders when the realtime push channel is down or unconfirmed.
package reminders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/visadesk/companion/pkg/logger"
	"github.com/visadesk/companion/pkg/models"
)

const (
	defaultInterval     = 60 * time.Second
	minInterval         = 15 * time.Second
	defaultBackoffCap   = 5 * time.Minute
	defaultCacheEntries = 4000
	defaultCacheAge     = 24 * time.Hour

	fetchTimeout = 15 * time.Second
	ackTimeout   = 10 * time.Second
	maxBody      = 4 << 20

	inboxLimit    = 100
	inboxPath     = "/api/calendar-reminders/inbox/"
	markReadPath  = "/api/calendar-reminders/inbox/mark-read/"
	ackPathFormat = "/api/calendar-reminders/%d/ack/"
)

// DeliveryResult reports how the host surfaced a reminder.
type DeliveryResult struct {
	// SystemChannel is true when the notification went through a
	// system-level channel, not just in-app. Only those are acknowledged
	// back to the server.
	SystemChannel bool
}

// DeliverFunc shows one reminder to the user.
type DeliverFunc func(reminder models.Reminder) DeliveryResult

// Config controls the poller. A zero BaseURL is not an error: cycles
// simply skip until one is configured.
type Config struct {
	BaseURL     string          `json:"base_url"`
	DeviceLabel string          `json:"device_label"`
	Interval    models.Duration `json:"interval"`
	BackoffCap  models.Duration `json:"backoff_cap"`

	CacheMaxEntries int             `json:"cache_max_entries"`
	CacheMaxAge     models.Duration `json:"cache_max_age"`

	HTTPClient *http.Client `json:"-"`
}

func (c *Config) setDefaults() {
	if c.Interval == 0 {
		c.Interval = models.Duration(defaultInterval)
	}

	if time.Duration(c.Interval) < minInterval {
		c.Interval = models.Duration(minInterval)
	}

	if c.BackoffCap == 0 {
		c.BackoffCap = models.Duration(defaultBackoffCap)
	}

	if c.CacheMaxEntries == 0 {
		c.CacheMaxEntries = defaultCacheEntries
	}

	if c.CacheMaxAge == 0 {
		c.CacheMaxAge = models.Duration(defaultCacheAge)
	}

	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Poller fetches the reminder inbox on a timer-driven loop with one
// cycle in flight at a time. The seen-cache and auth token are private
// to the instance; nothing is shared across pollers.
type Poller struct {
	cfg     Config
	deliver DeliverFunc
	clock   Clock
	logger  logger.Logger
	bo      *backoff.ExponentialBackOff

	mu        sync.Mutex
	seen      *seenCache
	authToken string
	unread    int
	running   bool
	halted    bool
	stopCh    chan struct{}

	kick  chan struct{}
	ackWG sync.WaitGroup
}

// NewPoller creates a poller. A nil clock defaults to the real clock.
func NewPoller(cfg Config, deliver DeliverFunc, clock Clock, log logger.Logger) *Poller {
	cfg.setDefaults()

	if clock == nil {
		clock = realClock{}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(cfg.Interval)
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = time.Duration(cfg.BackoffCap)
	bo.Reset()

	return &Poller{
		cfg:     cfg,
		deliver: deliver,
		clock:   clock,
		logger:  log,
		bo:      bo,
		seen:    newSeenCache(cfg.CacheMaxEntries, time.Duration(cfg.CacheMaxAge)),
		kick:    make(chan struct{}, 1),
	}
}

// Start runs the scheduler loop until Stop or context cancellation. The
// first cycle fires immediately. Cycles never overlap: the next timer is
// armed only after the current cycle settles, success or failure.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}

	p.running = true
	p.halted = false
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	p.logger.Info().Dur("interval", time.Duration(p.cfg.Interval)).Msg("Starting reminder poller")

	timer := p.clock.NewTimer(0)
	defer func() { timer.Stop() }()

	for {
		select {
		case <-ctx.Done():
			p.Stop(false)
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-p.kick:
			// Immediate cycle supersedes the pending scheduled one.
			timer.Stop()
		case <-timer.Chan():
		}

		timer = p.clock.NewTimer(p.runCycle(ctx))
	}
}

// Stop cancels the pending timer and halts further cycles. An in-flight
// fetch is not aborted; its results are discarded on completion.
func (p *Poller) Stop(resetSeen bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.halted = true

	if p.running {
		close(p.stopCh)
		p.running = false
	}

	if resetSeen {
		p.seen.Clear()
	}
}

// Destroy is Stop plus clearing the dedup cache, for a poller that will
// never be reused. It waits for detached acknowledgments to settle.
func (p *Poller) Destroy() {
	p.Stop(true)
	p.ackWG.Wait()
}

// SetAuthToken replaces the bearer credential and triggers an immediate
// cycle so a fresh token takes effect without waiting out the interval.
func (p *Poller) SetAuthToken(token string) {
	p.mu.Lock()
	p.authToken = token
	p.mu.Unlock()

	p.kickNow()
}

// MarkSeen pre-populates the seen-cache from an external channel, so a
// reminder already shown through the primary push path is never
// re-delivered by the fallback.
func (p *Poller) MarkSeen(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seen.Mark(id, p.clock.Now())
}

// UnreadCount returns the unread count last reported by the server.
func (p *Poller) UnreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.unread
}

// MarkRead posts a single-element bulk mark-read and updates the unread
// count from the response. Independent of the polling cycle; reports
// success as a boolean and never fails the caller.
func (p *Poller) MarkRead(ctx context.Context, id int64) bool {
	if p.cfg.BaseURL == "" {
		return false
	}

	payload, err := json.Marshal(map[string]interface{}{
		"ids":         []int64{id},
		"deviceLabel": p.cfg.DeviceLabel,
	})
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+markReadPath, bytes.NewReader(payload))
	if err != nil {
		return false
	}

	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		p.logger.Warn().Err(err).Int64("reminder_id", id).Msg("Mark-read failed")
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= 300 {
		p.logger.Warn().Int("status", resp.StatusCode).Int64("reminder_id", id).Msg("Mark-read returned non-2xx")
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return true
	}

	var result inboxResponse
	if err := json.Unmarshal(body, &result); err == nil {
		p.setUnread(result.unread())
	}

	return true
}

// runCycle executes one cycle and returns the delay before the next.
// Success resets backoff to the base interval; failure walks the
// exponential schedule up to the cap.
func (p *Poller) runCycle(ctx context.Context) time.Duration {
	if err := p.cycle(ctx); err != nil {
		delay := p.bo.NextBackOff()
		p.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Reminder poll cycle failed")

		return delay
	}

	p.bo.Reset()

	return time.Duration(p.cfg.Interval)
}

// cycle fetches the inbox once and delivers anything unseen. A 401/403
// is "not currently authorized": an expected transient state, reported
// as success so it never feeds the backoff counter.
func (p *Poller) cycle(ctx context.Context) error {
	if p.cfg.BaseURL == "" {
		p.logger.Debug().Msg("No base endpoint configured; skipping cycle")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	url := fmt.Sprintf("%s%s?limit=%d", p.cfg.BaseURL, inboxPath, inboxLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInboxFetch, err)
	}

	p.authorize(req)

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInboxFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		p.logger.Debug().Int("status", resp.StatusCode).Msg("Inbox not authorized yet")
		p.setUnread(0)

		return nil
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d", ErrInboxFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInboxFetch, err)
	}

	var payload inboxResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInboxDecode, err)
	}

	p.setUnread(payload.unread())

	for i := range payload.Today {
		reminder := payload.Today[i].normalize()

		if reminder.ReadAt != nil {
			continue
		}

		p.mu.Lock()
		if p.halted {
			// Stopped while the fetch was in flight; discard.
			p.mu.Unlock()
			return nil
		}

		if p.seen.Seen(reminder.ID) {
			p.mu.Unlock()
			continue
		}

		p.seen.Mark(reminder.ID, p.clock.Now())
		p.mu.Unlock()

		result := p.deliver(reminder)

		if result.SystemChannel {
			p.ackWG.Add(1)

			go p.ack(reminder.ID)
		}
	}

	return nil
}

// ack is a detached, best-effort acknowledgment that the reminder was
// shown through a system-level channel. Logged and discarded; a failed
// ack must never fail the cycle or block the primary path.
func (p *Poller) ack(id int64) {
	defer p.ackWG.Done()

	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{
		"channel":     "system",
		"deviceLabel": p.cfg.DeviceLabel,
	})
	if err != nil {
		return
	}

	url := p.cfg.BaseURL + fmt.Sprintf(ackPathFormat, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		p.logger.Warn().Err(err).Int64("reminder_id", id).Msg("Reminder ack failed")
		return
	}

	_ = resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= 300 {
		p.logger.Warn().Int("status", resp.StatusCode).Int64("reminder_id", id).Msg("Reminder ack returned non-2xx")
	}
}

func (p *Poller) authorize(req *http.Request) {
	p.mu.Lock()
	token := p.authToken
	p.mu.Unlock()

	// Without a token the request rides on ambient session credentials.
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (p *Poller) setUnread(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unread = count
}

func (p *Poller) kickNow() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}
