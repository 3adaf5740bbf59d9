package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// stubState is the controllable behavior of the health endpoint.
type stubState struct {
	mu    sync.RWMutex
	code  int
	delay time.Duration
	hits  int64
}

func newStubState() *stubState {
	return &stubState{code: http.StatusOK}
}

func (s *stubState) snapshot() (int, time.Duration, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code, s.delay, s.hits
}

func (s *stubState) hit() (int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits++
	return s.code, s.delay
}

func (s *stubState) setCode(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
}

func (s *stubState) setDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func newStubHandler(state *stubState, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		code, delay := state.hit()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if code == http.StatusOK {
			fmt.Fprint(w, `{"status":"healthy"}`)
		} else {
			fmt.Fprint(w, `{"status":"unhealthy"}`)
		}
	})

	// Flip between 200 and 503.
	mux.HandleFunc("POST /admin/toggle", func(w http.ResponseWriter, _ *http.Request) {
		code, _, _ := state.snapshot()
		next := http.StatusOK
		if code == http.StatusOK {
			next = http.StatusServiceUnavailable
		}
		state.setCode(next)
		logger.Info("toggled health", "code", next)

		writeJSON(w, map[string]int{"code": next})
	})

	mux.HandleFunc("PUT /admin/code", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code int `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Code < 100 || req.Code > 599 {
			http.Error(w, "code must be between 100 and 599", http.StatusBadRequest)
			return
		}
		state.setCode(req.Code)
		logger.Info("set status code", "code", req.Code)

		writeJSON(w, map[string]int{"code": req.Code})
	})

	mux.HandleFunc("PUT /admin/delay", func(w http.ResponseWriter, r *http.Request) {
		ms, err := strconv.Atoi(r.URL.Query().Get("ms"))
		if err != nil || ms < 0 {
			http.Error(w, "invalid ms parameter", http.StatusBadRequest)
			return
		}
		state.setDelay(time.Duration(ms) * time.Millisecond)
		logger.Info("set delay", "ms", ms)

		writeJSON(w, map[string]int{"delay_ms": ms})
	})

	mux.HandleFunc("GET /admin/status", func(w http.ResponseWriter, _ *http.Request) {
		code, delay, hits := state.snapshot()
		writeJSON(w, map[string]any{
			"code":     code,
			"delay_ms": delay.Milliseconds(),
			"hits":     hits,
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
