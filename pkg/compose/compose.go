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

// Package compose wraps the docker compose CLI used to manage the local
// service stack. All invocations are bounded by explicit timeouts and
// receive a freshly resolved environment.
package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/visadesk/companion/pkg/logger"
)

const (
	statusTimeout = 20 * time.Second
	upTimeout     = 600 * time.Second
	stopTimeout   = 180 * time.Second

	composeBinary = "docker"
)

// Runner is the process-control surface consumed by the orchestrator.
type Runner interface {
	// Available reports whether the orchestration tool and the stack
	// descriptor exist. Fixed at construction.
	Available() bool
	// Up brings up the named services detached.
	Up(ctx context.Context, services ...string) error
	// Stop stops the named services.
	Stop(ctx context.Context, services ...string) error
	// RunningServices returns the service names currently in the running
	// state.
	RunningServices(ctx context.Context) ([]string, error)
}

// commander executes a command and returns its stdout. Swapped out in
// tests so no process is ever spawned.
type commander func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

func execCommand(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return output, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}

		return output, err
	}

	return output, nil
}

// Config describes the stack the runner operates on.
type Config struct {
	// ComposeFile is the stack descriptor path.
	ComposeFile string `json:"compose_file"`
	// Project is the compose project name.
	Project string `json:"project"`
	// Env resolves the stack environment. Called once per invocation so
	// externally changed configuration takes effect on the next command.
	Env func() []string `json:"-"`
}

// CLIRunner shells out to docker compose.
type CLIRunner struct {
	cfg       Config
	available bool
	run       commander
	logger    logger.Logger
}

// NewCLIRunner creates a runner for the given stack descriptor.
// Availability is probed once: the compose binary must resolve on PATH
// and the descriptor file must exist.
func NewCLIRunner(cfg Config, log logger.Logger) *CLIRunner {
	available := true

	if _, err := exec.LookPath(composeBinary); err != nil {
		log.Warn().Err(err).Msg("Compose binary not found on PATH")

		available = false
	}

	if _, err := os.Stat(cfg.ComposeFile); err != nil {
		log.Warn().Err(err).Str("compose_file", cfg.ComposeFile).Msg("Stack descriptor not found")

		available = false
	}

	return &CLIRunner{
		cfg:       cfg,
		available: available,
		run:       execCommand,
		logger:    log,
	}
}

func (r *CLIRunner) Available() bool {
	return r.available
}

// Up brings up the named services detached, bounded by the start timeout.
func (r *CLIRunner) Up(ctx context.Context, services ...string) error {
	ctx, cancel := context.WithTimeout(ctx, upTimeout)
	defer cancel()

	args := append(r.baseArgs(), "up", "-d")
	args = append(args, services...)

	r.logger.Info().Strs("services", services).Msg("Bringing up local stack")

	if _, err := r.run(ctx, r.env(), composeBinary, args...); err != nil {
		return fmt.Errorf("%w: %w", ErrUpFailed, err)
	}

	return nil
}

// Stop stops the named services, bounded by the stop timeout.
func (r *CLIRunner) Stop(ctx context.Context, services ...string) error {
	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	args := append(r.baseArgs(), "stop")
	args = append(args, services...)

	r.logger.Info().Strs("services", services).Msg("Stopping local stack")

	if _, err := r.run(ctx, r.env(), composeBinary, args...); err != nil {
		return fmt.Errorf("%w: %w", ErrStopFailed, err)
	}

	return nil
}

// RunningServices lists service names reported running by compose,
// bounded by the status timeout.
func (r *CLIRunner) RunningServices(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	args := append(r.baseArgs(), "ps", "--services", "--filter", "status=running")

	output, err := r.run(ctx, r.env(), composeBinary, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusFailed, err)
	}

	return parseServiceList(output), nil
}

func (r *CLIRunner) baseArgs() []string {
	return []string{"compose", "-f", r.cfg.ComposeFile, "-p", r.cfg.Project}
}

func (r *CLIRunner) env() []string {
	env := os.Environ()

	if r.cfg.Env != nil {
		env = append(env, r.cfg.Env()...)
	}

	return env
}

func parseServiceList(output []byte) []string {
	lines := strings.Split(string(output), "\n")
	services := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		services = append(services, line)
	}

	return services
}
