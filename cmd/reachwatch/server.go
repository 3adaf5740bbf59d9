package main

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/el173/use-reachability/reachability"
)

// monitor is the part of the engine the HTTP surface needs.
type monitor interface {
	State() reachability.State
	Running() bool
	Config() reachability.Config
	Trigger() bool
}

type statusResponse struct {
	Target     string     `json:"target"`
	State      string     `json:"state"`
	Online     *bool      `json:"online"`
	Running    bool       `json:"running"`
	LastChange *time.Time `json:"last_change,omitempty"`
}

// changeTracker remembers when the reachability last flipped.
type changeTracker struct {
	last atomic.Pointer[time.Time]
}

func (t *changeTracker) mark(now time.Time) {
	t.last.Store(&now)
}

func (t *changeTracker) lastChange() *time.Time {
	return t.last.Load()
}

func newMux(m monitor, changes *changeTracker, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		state := m.State()
		resp := statusResponse{
			Target:     m.Config().URL,
			State:      state.String(),
			Online:     state.Bool(),
			Running:    m.Running(),
			LastChange: changes.lastChange(),
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("POST /check", func(w http.ResponseWriter, _ *http.Request) {
		if !m.Trigger() {
			writeJSON(w, http.StatusConflict, map[string]string{"result": "dropped"})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"result": "scheduled"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
