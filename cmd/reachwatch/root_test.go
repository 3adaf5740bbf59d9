package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/el173/use-reachability/reachability"
)

type recordingReconciler struct {
	configs []reachability.Config
	err     error
}

func (r *recordingReconciler) Reconcile(_ context.Context, cfg reachability.Config) (bool, error) {
	r.configs = append(r.configs, cfg)
	return r.err == nil, r.err
}

func writeConfig(t *testing.T, path, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
}

func TestReload_TracksLatestConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reachwatch.yaml")
	writeConfig(t, path, "target:\n  url: http://one\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	rec := &recordingReconciler{}

	// First change: new URL and HTTP/2.
	writeConfig(t, path, "target:\n  url: http://two\ntransport:\n  http2: true\n")
	cfg = reload(context.Background(), logger, path, cfg, rec, nil)
	assert.Equal(t, "http://two", cfg.Target.URL)
	assert.True(t, cfg.Transport.HTTP2)
	assert.Equal(t, 1, strings.Count(logs.String(), "transport settings changed"))

	// Same file again: no repeated transport warning.
	cfg = reload(context.Background(), logger, path, cfg, rec, nil)
	assert.Equal(t, 1, strings.Count(logs.String(), "transport settings changed"))

	// A second transport change is reported.
	writeConfig(t, path, "target:\n  url: http://two\ntransport:\n  http2: true\n  tls_skip_verify: true\n")
	cfg = reload(context.Background(), logger, path, cfg, rec, nil)
	assert.Equal(t, 2, strings.Count(logs.String(), "transport settings changed"))
	assert.True(t, cfg.Transport.TLSSkipVerify)

	require.Len(t, rec.configs, 3)
	assert.Equal(t, "http://two", rec.configs[2].URL)
}

func TestReload_KeepsCurrentOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reachwatch.yaml")
	writeConfig(t, path, "target:\n  url: http://one\n")
	current, err := LoadConfig(path)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	writeConfig(t, path, "target: [")
	rec := &recordingReconciler{}
	got := reload(context.Background(), logger, path, current, rec, nil)
	assert.Equal(t, current, got)
	assert.Empty(t, rec.configs, "a broken file must not reach the engine")

	writeConfig(t, path, "target:\n  url: http://two\n")
	rec = &recordingReconciler{err: errors.New("boom")}
	got = reload(context.Background(), logger, path, current, rec, nil)
	assert.Equal(t, "http://one", got.Target.URL)
}
