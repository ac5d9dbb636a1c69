package agent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosprados/pmcontrol/internal/config"
	"github.com/carlosprados/pmcontrol/internal/events"
	"github.com/carlosprados/pmcontrol/internal/process"
	"github.com/carlosprados/pmcontrol/internal/supervisor"
)

func newTestAgent(t *testing.T) (*Agent, *process.Fake) {
	t.Helper()
	s := config.Defaults()
	s.BasePath = "/opt/cm/bin"
	s.ConfigPath = "/opt/cm/etc"
	s.DataPath = filepath.Join(t.TempDir(), "data")
	s.RestartDelay = "10ms"

	fake := process.NewFake(supervisor.BinaryName)
	a, err := New(Options{Settings: s, Handle: fake})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, fake
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	a, _ := newTestAgent(t)
	rec := do(t, a.Router(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStartStopOverHTTP(t *testing.T) {
	a, fake := newTestAgent(t)
	h := a.Router()

	rec := do(t, h, http.MethodPost, "/v1/agent:start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"SUCCESS"`)

	rec = do(t, h, http.MethodPost, "/v1/agent:start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ALREADY_STARTED"`)

	rec = do(t, h, http.MethodGet, "/v1/agent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Started)
	require.NotNil(t, st.Supervisor)
	assert.Equal(t, 1, st.Supervisor.PID)
	assert.Equal(t, supervisor.StateRunning, st.Supervisor.State)
	require.NotNil(t, st.Persisted)
	assert.Equal(t, "running", st.Persisted.State)

	rec = do(t, h, http.MethodPost, "/v1/agent:stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	live, err := fake.ListLive()
	require.NoError(t, err)
	assert.Empty(t, live)

	rec = do(t, h, http.MethodPost, "/v1/agent:stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"NOT_STARTED"`)
}

func TestStartRequiresPost(t *testing.T) {
	a, fake := newTestAgent(t)
	rec := do(t, a.Router(), http.MethodGet, "/v1/agent:start", nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, fake.ForkCalls())
}

func TestLogLevelOverHTTP(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	a, _ := newTestAgent(t)
	h := a.Router()

	rec := do(t, h, http.MethodPut, "/v1/agent/log-level", []byte(`{"level":7}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	rec = do(t, h, http.MethodPut, "/v1/agent/log-level", []byte(`{"level":9}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/v1/agent/log-level", []byte(`nope`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyUpdatesRestartDelay(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	a, _ := newTestAgent(t)
	require.Equal(t, "SUCCESS", a.Start().String())

	s := a.Settings()
	s.RestartDelay = "45s"
	s.LogLevel = "warn"
	require.NoError(t, a.Apply(s))
	assert.Equal(t, "45s", a.Plugin().Supervisor().Status().RestartDelay)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	s.RestartDelay = "whenever"
	assert.Error(t, a.Apply(s))
}

func TestCloseStopsAgentAndPublisher(t *testing.T) {
	s := config.Defaults()
	s.BasePath = "/opt/cm/bin"
	var seen []events.Type
	pub := events.Func(func(e events.Event) { seen = append(seen, e.Type) })

	fake := process.NewFake(supervisor.BinaryName)
	a, err := New(Options{Settings: s, Handle: fake, Publisher: pub})
	require.NoError(t, err)
	require.Equal(t, "SUCCESS", a.Start().String())
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.Equal(t, []events.Type{events.Started, events.Stopped}, seen)
	assert.Nil(t, a.module.FpStart)
}

func TestBuildPublisherNone(t *testing.T) {
	p, err := BuildPublisher(config.Events{Subject: "x"}, "test")
	require.NoError(t, err)
	assert.Nil(t, p)
}
