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
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visadesk/companion/pkg/logger"
	"github.com/visadesk/companion/pkg/models"
)

var errBoom = errors.New("boom")

// fakeRunner is a compose.Runner backed by plain fields.
type fakeRunner struct {
	available  bool
	running    []string
	runningErr error
	upErr      error
	stopErr    error

	upCalls   int
	stopCalls int
}

func (r *fakeRunner) Available() bool { return r.available }

func (r *fakeRunner) Up(_ context.Context, _ ...string) error {
	r.upCalls++
	return r.upErr
}

func (r *fakeRunner) Stop(_ context.Context, _ ...string) error {
	r.stopCalls++
	return r.stopErr
}

func (r *fakeRunner) RunningServices(_ context.Context) ([]string, error) {
	return r.running, r.runningErr
}

func allServices() []string {
	return []string{"db", "cache", "app", "worker", "frontend"}
}

func newTestOrchestrator(t *testing.T, runner *fakeRunner, cfg Config) *Orchestrator {
	t.Helper()

	if cfg.DataRoot == "" {
		cfg.DataRoot = filepath.Join(t.TempDir(), "data")
	}

	return New(cfg, runner, logger.NewTestLogger())
}

func TestRefreshStatus_PartialSubsetIsNotRunning(t *testing.T) {
	var probeHits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		probeHits.Add(1)
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	// Worker set short one service: tool reports four of five running.
	runner := &fakeRunner{available: true, running: []string{"db", "cache", "app", "worker"}}
	o := newTestOrchestrator(t, runner, Config{BaseURL: srv.URL, FrontendURL: srv.URL})

	st := o.RefreshStatus(context.Background())

	assert.False(t, st.Running)
	assert.False(t, st.Healthy)
	assert.Equal(t, models.ReasonServicesNotRunning, st.Reason)

	// Health probes are never attempted for a half-up stack.
	assert.Equal(t, int32(0), probeHits.Load())
}

func TestRefreshStatus_AppHealthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	runner := &fakeRunner{available: true, running: allServices()}
	o := newTestOrchestrator(t, runner, Config{BaseURL: srv.URL, FrontendURL: srv.URL})

	st := o.RefreshStatus(context.Background())

	assert.True(t, st.Running)
	assert.False(t, st.Healthy)
	assert.Equal(t, models.ReasonHealthcheckFailed, st.Reason)
}

func TestRefreshStatus_Healthy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	runner := &fakeRunner{available: true, running: allServices()}
	o := newTestOrchestrator(t, runner, Config{BaseURL: srv.URL, FrontendURL: srv.URL})

	st := o.RefreshStatus(context.Background())

	assert.True(t, st.Running)
	assert.True(t, st.Healthy)
	assert.Equal(t, models.ReasonNone, st.Reason)
}

func TestRefreshStatus_StatusProbeFailure(t *testing.T) {
	runner := &fakeRunner{available: true, runningErr: errBoom}
	o := newTestOrchestrator(t, runner, Config{})

	st := o.RefreshStatus(context.Background())

	assert.False(t, st.Running)
	assert.False(t, st.Healthy)
	assert.Equal(t, models.ReasonStatusProbeFailed, st.Reason)
	assert.Contains(t, st.LastError, "boom")
}

func TestRefreshStatus_Unavailable(t *testing.T) {
	runner := &fakeRunner{available: false}
	o := newTestOrchestrator(t, runner, Config{})

	st := o.RefreshStatus(context.Background())

	assert.False(t, st.Available)
	assert.Equal(t, models.ReasonComposeUnavailable, st.Reason)
}

func TestStart_VaultLockedNeverInvokesCompose(t *testing.T) {
	runner := &fakeRunner{available: true}
	o := newTestOrchestrator(t, runner, Config{VaultKey: func() string { return "" }})

	st := o.Start(context.Background())

	assert.Equal(t, models.ReasonVaultLocked, st.Reason)
	assert.Equal(t, 0, runner.upCalls)
}

func TestStart_NilVaultKeyProvider(t *testing.T) {
	runner := &fakeRunner{available: true}
	o := newTestOrchestrator(t, runner, Config{})

	st := o.Start(context.Background())

	assert.Equal(t, models.ReasonVaultLocked, st.Reason)
	assert.Equal(t, 0, runner.upCalls)
}

func TestStart_UpFailureIsCaptured(t *testing.T) {
	runner := &fakeRunner{available: true, upErr: errBoom}
	o := newTestOrchestrator(t, runner, Config{VaultKey: func() string { return "key" }})

	st := o.Start(context.Background())

	assert.Equal(t, models.ReasonStartFailed, st.Reason)
	assert.Contains(t, st.LastError, "boom")
	assert.Equal(t, 1, runner.upCalls)
}

func TestStart_WaitsForHealthy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	runner := &fakeRunner{available: true, running: allServices()}
	o := newTestOrchestrator(t, runner, Config{
		BaseURL:      srv.URL,
		FrontendURL:  srv.URL,
		VaultKey:     func() string { return "key" },
		WaitTimeout:  models.Duration(time.Second),
		PollInterval: models.Duration(10 * time.Millisecond),
	})

	st := o.Start(context.Background())

	assert.True(t, st.Running)
	assert.True(t, st.Healthy)
}

func TestStop_FailurePreservesRunning(t *testing.T) {
	runner := &fakeRunner{available: true, running: allServices(), stopErr: errBoom}
	o := newTestOrchestrator(t, runner, Config{})

	// Mark the stack running first, with probes failing over to
	// unhealthy (no HTTP server configured).
	_ = o.RefreshStatus(context.Background())
	require.True(t, o.Status().Running)

	st := o.Stop(context.Background())

	assert.Equal(t, models.ReasonStopFailed, st.Reason)
	assert.True(t, st.Running, "a stop we did not observe succeeding is not claimed")
}

func TestStop_IdempotentOnStoppedStack(t *testing.T) {
	runner := &fakeRunner{available: true, upErr: errBoom}
	o := newTestOrchestrator(t, runner, Config{VaultKey: func() string { return "key" }})

	// Seed LastError through a failed start.
	_ = o.Start(context.Background())
	prior := o.Status().LastError
	require.NotEmpty(t, prior)

	first := o.Stop(context.Background())
	second := o.Stop(context.Background())

	assert.False(t, second.Running)
	assert.Equal(t, models.ReasonNone, second.Reason)
	assert.Equal(t, prior, first.LastError)
	assert.Equal(t, prior, second.LastError)
	assert.Equal(t, 2, runner.stopCalls)
}

func TestWaitForHealthy_TimeoutReturnsLastStatus(t *testing.T) {
	runner := &fakeRunner{available: true, running: []string{"db"}}
	o := newTestOrchestrator(t, runner, Config{})

	start := time.Now()
	st := o.WaitForHealthy(context.Background(), 50*time.Millisecond, 10*time.Millisecond)

	assert.False(t, st.Healthy)
	assert.Equal(t, models.ReasonServicesNotRunning, st.Reason)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResetLocalData(t *testing.T) {
	dataRoot := filepath.Join(t.TempDir(), "data")
	require.NoError(t, EnsureLayout(dataRoot))
	require.NoError(t, os.WriteFile(filepath.Join(dataRoot, "db", "stale.sqlite"), []byte("x"), 0o600))

	// Stop failing is ignored: reset is best-effort about the stack.
	runner := &fakeRunner{available: true, stopErr: errBoom}
	o := newTestOrchestrator(t, runner, Config{DataRoot: dataRoot})

	st := o.ResetLocalData(context.Background())

	assert.Equal(t, models.ReasonLocalDataReset, st.Reason)
	assert.False(t, st.Running)

	assert.NoFileExists(t, filepath.Join(dataRoot, "db", "stale.sqlite"))

	for _, sub := range []string{"media", "db", "logs", "staticfiles", "backups"} {
		assert.DirExists(t, filepath.Join(dataRoot, sub))
	}
}

func TestStatus_ReturnsSnapshotByValue(t *testing.T) {
	runner := &fakeRunner{available: true, running: allServices()}
	o := newTestOrchestrator(t, runner, Config{})

	before := o.Status()
	_ = o.RefreshStatus(context.Background())
	after := o.Status()

	assert.False(t, before.Running)
	assert.True(t, after.Running)
}

func TestSyncStatus_ShortCircuitsWhenUnhealthy(t *testing.T) {
	runner := &fakeRunner{available: true, running: []string{"db"}}
	o := newTestOrchestrator(t, runner, Config{})

	st := o.SyncStatus(context.Background())

	assert.False(t, st.Running)
	assert.Equal(t, string(models.ReasonServicesNotRunning), st.LastError)
}

func TestSyncStatus_MapsRemoteCursor(t *testing.T) {
	pushed := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	var gotAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/sync/state/", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"remote_cursor": {"last_pushed_at": "2026-08-28T10:00:00Z", "last_pulled_at": null, "last_error": "conflict on invoice 9"}}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	runner := &fakeRunner{available: true, running: allServices()}
	o := newTestOrchestrator(t, runner, Config{
		BaseURL:     srv.URL,
		FrontendURL: srv.URL,
		AuthToken:   func() string { return "tok" },
	})

	st := o.SyncStatus(context.Background())

	assert.True(t, st.Running)
	require.NotNil(t, st.LastPushAt)
	assert.True(t, pushed.Equal(*st.LastPushAt))
	assert.Nil(t, st.LastPullAt)
	assert.Equal(t, "conflict on invoice 9", st.LastError)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestSyncStatus_FetchFailureCaptured(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/sync/state/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	runner := &fakeRunner{available: true, running: allServices()}
	o := newTestOrchestrator(t, runner, Config{BaseURL: srv.URL, FrontendURL: srv.URL})

	st := o.SyncStatus(context.Background())

	assert.True(t, st.Running)
	assert.NotEmpty(t, st.LastError)
}
