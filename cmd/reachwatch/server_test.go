package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/el173/use-reachability/reachability"
)

type fakeMonitor struct {
	state    reachability.State
	running  bool
	url      string
	accepted bool
}

func (m *fakeMonitor) State() reachability.State { return m.state }
func (m *fakeMonitor) Running() bool             { return m.running }
func (m *fakeMonitor) Trigger() bool             { return m.accepted }
func (m *fakeMonitor) Config() reachability.Config {
	return reachability.Config{URL: m.url}
}

func TestStatusHandler(t *testing.T) {
	m := &fakeMonitor{state: reachability.StateOffline, running: true, url: "http://svc/health"}
	changes := &changeTracker{}
	changes.mark(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	mux := newMux(m, changes, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "http://svc/health", resp.Target)
	assert.Equal(t, "offline", resp.State)
	require.NotNil(t, resp.Online)
	assert.False(t, *resp.Online)
	assert.True(t, resp.Running)
	require.NotNil(t, resp.LastChange)
}

func TestStatusHandler_Unknown(t *testing.T) {
	mux := newMux(&fakeMonitor{}, &changeTracker{}, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Contains(t, rec.Body.String(), `"online":null`)
	assert.NotContains(t, rec.Body.String(), "last_change")
}

func TestCheckHandler(t *testing.T) {
	m := &fakeMonitor{accepted: true}
	mux := newMux(m, &changeTracker{}, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	m.accepted = false
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	engine, err := reachability.New(
		reachability.WithRegisterer(reg),
		reachability.WithLogger(newLogger(&bytes.Buffer{}, "error", false)),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	done := make(chan struct{})
	cfg := reachability.NewConfig(srv.URL,
		reachability.CheckInterval(time.Hour),
		reachability.OnStatusChange(func(bool) { close(done) }),
	)
	require.NoError(t, engine.Start(context.Background(), cfg))
	defer engine.Stop()
	<-done

	mux := newMux(engine, &changeTracker{}, reg)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reachability_online")
}

func TestCheckCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/down") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", srv.URL + "/up", "--retries", "0"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "online")

	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", srv.URL + "/down", "--retries", "1", "--retry-delay", "1ms"})
	err := cmd.ExecuteContext(context.Background())
	assert.True(t, errors.Is(err, errOffline))
	assert.Contains(t, out.String(), "attempt 1: unhealthy status=503")
	assert.Contains(t, out.String(), "offline")
}
