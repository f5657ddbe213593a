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

// Package stream is the primary realtime notification channel: a
// websocket client that receives pushed reminders and pre-populates the
// fallback poller's seen-cache, so the two channels never double-notify.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/visadesk/companion/pkg/logger"
	"github.com/visadesk/companion/pkg/models"
	"github.com/visadesk/companion/pkg/reminders"
)

const (
	defaultReconnectBase = 5 * time.Second
	defaultReconnectCap  = 5 * time.Minute

	notificationsPath = "/ws/notifications/"
)

// Event is one message on the notification socket.
type Event struct {
	Type      string          `json:"type"`
	Reminder  json.RawMessage `json:"reminder,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// SeenMarker records a reminder id as already delivered. Satisfied by
// *reminders.Poller; this is the cross-channel dedup contract.
type SeenMarker interface {
	MarkSeen(id int64)
}

// Config controls the stream client.
type Config struct {
	// WSURL is the websocket base URL (ws:// or wss://).
	WSURL string `json:"ws_url"`
	// AuthToken is attached as a bearer header when non-empty.
	AuthToken string `json:"-"`

	ReconnectBase models.Duration `json:"reconnect_base"`
	ReconnectCap  models.Duration `json:"reconnect_cap"`

	Dialer *websocket.Dialer `json:"-"`
}

func (c *Config) setDefaults() {
	if c.ReconnectBase == 0 {
		c.ReconnectBase = models.Duration(defaultReconnectBase)
	}

	if c.ReconnectCap == 0 {
		c.ReconnectCap = models.Duration(defaultReconnectCap)
	}

	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
}

// Client maintains the notification socket and falls back gracefully:
// while disconnected the poller alone covers delivery.
type Client struct {
	cfg     Config
	deliver reminders.DeliverFunc
	marker  SeenMarker
	logger  logger.Logger

	connected atomic.Bool
}

// New creates a stream client delivering through the same callback as
// the fallback poller.
func New(cfg Config, deliver reminders.DeliverFunc, marker SeenMarker, log logger.Logger) *Client {
	cfg.setDefaults()

	return &Client{
		cfg:     cfg,
		deliver: deliver,
		marker:  marker,
		logger:  log,
	}
}

// Connected reports whether the socket is currently up, so the host can
// present "live updates reconnecting" instead of an error.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run dials and reads until the context is canceled, reconnecting with
// exponential backoff. Returns only on context cancellation.
func (c *Client) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(c.cfg.ReconnectBase)
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = time.Duration(c.cfg.ReconnectCap)
	bo.Reset()

	for {
		if err := c.session(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn().Err(err).Msg("Notification stream disconnected")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := bo.NextBackOff()

		c.logger.Debug().Dur("retry_in", delay).Msg("Reconnecting notification stream")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// session runs one dial-and-read lifetime of the socket.
func (c *Client) session(ctx context.Context) error {
	header := http.Header{}
	if c.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.WSURL+notificationsPath, header)
	if err != nil {
		if resp != nil {
			c.logger.Debug().Str("status", resp.Status).Msg("Notification stream dial rejected")
		}

		return err
	}

	defer func() { _ = conn.Close() }()

	c.connected.Store(true)
	defer c.connected.Store(false)

	c.logger.Info().Msg("Notification stream connected")

	// Close the socket when the context ends so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var event Event

		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return err
			}

			return nil
		}

		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event Event) {
	if event.Type != "reminder" || len(event.Reminder) == 0 {
		return
	}

	reminder, err := reminders.DecodeReminder(event.Reminder)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Malformed reminder event")
		return
	}

	if reminder.ReadAt != nil {
		return
	}

	// Mark seen before delivering: the fallback poller must never
	// re-deliver something the push path already showed.
	if c.marker != nil {
		c.marker.MarkSeen(reminder.ID)
	}

	c.deliver(reminder)
}
