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

package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visadesk/companion/pkg/logger"
)

var errExec = errors.New("exec failed")

type call struct {
	name string
	args []string
	env  []string
}

func newTestRunner(t *testing.T, output []byte, err error) (*CLIRunner, *[]call) {
	t.Helper()

	composeFile := filepath.Join(t.TempDir(), "docker-compose.local.yml")
	require.NoError(t, os.WriteFile(composeFile, []byte("services: {}\n"), 0o600))

	runner := NewCLIRunner(Config{
		ComposeFile: composeFile,
		Project:     "visadesk-local",
		Env:         func() []string { return []string{"VAULT_KEY=k"} },
	}, logger.NewTestLogger())

	calls := &[]call{}
	runner.run = func(_ context.Context, env []string, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, call{name: name, args: args, env: env})
		return output, err
	}

	return runner, calls
}

func TestRunningServices_ParsesOutput(t *testing.T) {
	runner, calls := newTestRunner(t, []byte("db\ncache\napp\n\n"), nil)

	services, err := runner.RunningServices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"db", "cache", "app"}, services)

	require.Len(t, *calls, 1)
	got := (*calls)[0]
	assert.Equal(t, "docker", got.name)
	assert.Equal(t, []string{"compose", "-f", runner.cfg.ComposeFile, "-p", "visadesk-local",
		"ps", "--services", "--filter", "status=running"}, got.args)
	assert.Contains(t, got.env, "VAULT_KEY=k")
}

func TestRunningServices_Error(t *testing.T) {
	runner, _ := newTestRunner(t, nil, errExec)

	_, err := runner.RunningServices(context.Background())

	assert.ErrorIs(t, err, ErrStatusFailed)
	assert.ErrorIs(t, err, errExec)
}

func TestUp_ArgsIncludeServices(t *testing.T) {
	runner, calls := newTestRunner(t, nil, nil)

	require.NoError(t, runner.Up(context.Background(), "db", "app"))

	require.Len(t, *calls, 1)
	assert.Equal(t, []string{"compose", "-f", runner.cfg.ComposeFile, "-p", "visadesk-local",
		"up", "-d", "db", "app"}, (*calls)[0].args)
}

func TestUp_Error(t *testing.T) {
	runner, _ := newTestRunner(t, nil, errExec)

	assert.ErrorIs(t, runner.Up(context.Background(), "db"), ErrUpFailed)
}

func TestStop_Args(t *testing.T) {
	runner, calls := newTestRunner(t, nil, nil)

	require.NoError(t, runner.Stop(context.Background(), "db", "app"))

	require.Len(t, *calls, 1)
	assert.Equal(t, []string{"compose", "-f", runner.cfg.ComposeFile, "-p", "visadesk-local",
		"stop", "db", "app"}, (*calls)[0].args)
}

func TestStop_Error(t *testing.T) {
	runner, _ := newTestRunner(t, nil, errExec)

	assert.ErrorIs(t, runner.Stop(context.Background(), "db"), ErrStopFailed)
}

func TestAvailable_FalseWhenDescriptorMissing(t *testing.T) {
	runner := NewCLIRunner(Config{
		ComposeFile: filepath.Join(t.TempDir(), "missing.yml"),
		Project:     "visadesk-local",
	}, logger.NewTestLogger())

	assert.False(t, runner.Available())
}

func TestParseServiceList_Empty(t *testing.T) {
	assert.Empty(t, parseServiceList([]byte("")))
	assert.Empty(t, parseServiceList([]byte("\n\n")))
}
