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

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/visadesk/companion/pkg/models"
	"github.com/visadesk/companion/pkg/reminders"
	"github.com/visadesk/companion/pkg/stream"
)

var errConfirmationRequired = errors.New("local data reset is irreversible; re-run with --yes to confirm")

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe and report local stack status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()

			log, err := newLogger(cfg, "runtime")
			if err != nil {
				return err
			}

			o := newOrchestrator(cfg, log)

			return printJSON(cmd, struct {
				Runtime models.RuntimeStatus `json:"runtime"`
				Host    models.HostUsage     `json:"host"`
			}{
				Runtime: o.RefreshStatus(cmd.Context()),
				Host:    o.HostUsage(),
			})
		},
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Bring up the local stack and wait for health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()

			log, err := newLogger(cfg, "runtime")
			if err != nil {
				return err
			}

			o := newOrchestrator(cfg, log)

			return printJSON(cmd, o.Start(cmd.Context()))
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the local stack",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()

			log, err := newLogger(cfg, "runtime")
			if err != nil {
				return err
			}

			o := newOrchestrator(cfg, log)

			return printJSON(cmd, o.Stop(cmd.Context()))
		},
	}
}

func newResetCmd() *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete and recreate the local data tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return errConfirmationRequired
			}

			cfg := loadConfig()

			log, err := newLogger(cfg, "runtime")
			if err != nil {
				return err
			}

			o := newOrchestrator(cfg, log)

			return printJSON(cmd, o.ResetLocalData(cmd.Context()))
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the destructive reset")

	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Report the local stack's remote-sync state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()

			log, err := newLogger(cfg, "runtime")
			if err != nil {
				return err
			}

			o := newOrchestrator(cfg, log)

			return printJSON(cmd, o.SyncStatus(cmd.Context()))
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the reminder delivery channels until interrupted",
		Long:  "Runs the realtime notification stream with the fallback poller behind it. Reminders are printed as they arrive; duplicates across the two channels are suppressed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pollerLog, err := newLogger(cfg, "reminders")
			if err != nil {
				return err
			}

			streamLog, err := newLogger(cfg, "stream")
			if err != nil {
				return err
			}

			deliver := func(reminder models.Reminder) reminders.DeliveryResult {
				fmt.Fprintf(cmd.OutOrStdout(), "reminder %d due %s %s: %s\n",
					reminder.ID, reminder.ReminderDate, reminder.ReminderTime, reminder.Content)

				return reminders.DeliveryResult{SystemChannel: true}
			}

			poller := reminders.NewPoller(reminders.Config{
				BaseURL:     cfg.BaseURL,
				DeviceLabel: cfg.DeviceLabel,
			}, deliver, nil, pollerLog)
			defer poller.Destroy()

			if token := apiToken(); token != "" {
				poller.SetAuthToken(token)
			}

			streamClient := stream.New(stream.Config{
				WSURL:     wsBase(cfg.BaseURL),
				AuthToken: apiToken(),
			}, deliver, poller, streamLog)

			go func() {
				if err := streamClient.Run(ctx); err != nil && ctx.Err() == nil {
					streamLog.Error().Err(err).Msg("Notification stream terminated")
				}
			}()

			if err := poller.Start(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}

			return nil
		},
	}
}
