package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStub(t *testing.T) (*stubState, http.Handler) {
	t.Helper()
	state := newStubState()
	return state, newStubHandler(state, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestHealth_DefaultsToOK(t *testing.T) {
	state, h := newTestStub(t)

	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	_, _, hits := state.snapshot()
	assert.Equal(t, int64(1), hits)
}

func TestAdmin_Toggle(t *testing.T) {
	_, h := newTestStub(t)

	require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/admin/toggle", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodGet, "/health", "").Code)

	do(h, http.MethodPost, "/admin/toggle", "")
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)
}

func TestAdmin_SetCode(t *testing.T) {
	_, h := newTestStub(t)

	rec := do(h, http.MethodPut, "/admin/code", `{"code":204}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNoContent, do(h, http.MethodGet, "/health", "").Code)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPut, "/admin/code", `{"code":42}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPut, "/admin/code", `nope`).Code)
}

func TestAdmin_Delay(t *testing.T) {
	state, h := newTestStub(t)

	require.Equal(t, http.StatusOK, do(h, http.MethodPut, "/admin/delay?ms=20", "").Code)
	_, delay, _ := state.snapshot()
	assert.Equal(t, 20*time.Millisecond, delay)

	start := time.Now()
	do(h, http.MethodGet, "/health", "")
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPut, "/admin/delay?ms=-1", "").Code)
}

func TestAdmin_Status(t *testing.T) {
	_, h := newTestStub(t)
	do(h, http.MethodGet, "/health", "")

	rec := do(h, http.MethodGet, "/admin/status", "")
	assert.JSONEq(t, `{"code":200,"delay_ms":0,"hits":1}`, rec.Body.String())
}

func TestDefaultAddr(t *testing.T) {
	t.Setenv("PORT", "9999")
	assert.Equal(t, ":9999", defaultAddr())

	t.Setenv("PORT", "")
	assert.Equal(t, ":8080", defaultAddr())
}

func TestRootCmd_ServesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--addr", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("healthstub did not shut down")
	}
}
