package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/el173/use-reachability/reachability"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("target:\n  url: http://svc/health\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://svc/health", cfg.Target.URL)
	assert.Equal(t, reachability.DefaultInterval, cfg.Target.Interval)
	require.NotNil(t, cfg.Target.MaxRetries)
	assert.Equal(t, reachability.DefaultMaxRetries, *cfg.Target.MaxRetries)
	assert.Equal(t, reachability.DefaultInitialRetryDelay, cfg.Target.RetryDelay)
	assert.Equal(t, reachability.DefaultTimeout, cfg.Target.Timeout)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParseConfig_AllFields(t *testing.T) {
	doc := `
target:
  url: https://api.example.com/health
  interval: 1m
  max_retries: 0
  retry_delay: 250ms
  timeout: 5s
  connectivity_events: true
transport:
  tls_skip_verify: true
  http2: true
server:
  addr: 127.0.0.1:8081
logging:
  level: debug
metrics:
  namespace: app
`
	cfg, err := ParseConfig([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Target.Interval)
	assert.Equal(t, 0, *cfg.Target.MaxRetries, "an explicit zero disables retries")
	assert.Equal(t, 250*time.Millisecond, cfg.Target.RetryDelay)
	assert.Equal(t, 5*time.Second, cfg.Target.Timeout)
	assert.True(t, cfg.Target.ConnectivityEvents)
	assert.True(t, cfg.Transport.TLSSkipVerify)
	assert.True(t, cfg.Transport.HTTP2)
	assert.Equal(t, "127.0.0.1:8081", cfg.Server.Addr)
	assert.Equal(t, "app", cfg.Metrics.Namespace)
	assert.Len(t, cfg.TransportOptions(), 2)

	rc := cfg.Reachability(nil)
	assert.Equal(t, "https://api.example.com/health", rc.URL)
	assert.Equal(t, 0, rc.MaxRetries)
	assert.True(t, rc.EnableConnectivityEvents)
}

func TestParseConfig_ExpandsEnv(t *testing.T) {
	t.Setenv("REACHWATCH_TEST_HOST", "svc.internal")

	cfg, err := ParseConfig([]byte("target:\n  url: http://${REACHWATCH_TEST_HOST}/health\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://svc.internal/health", cfg.Target.URL)
}

func TestParseConfig_Errors(t *testing.T) {
	cases := map[string]string{
		"missing url":    "target:\n  interval: 10s\n",
		"negative retry": "target:\n  url: http://svc\n  max_retries: -1\n",
		"bad duration":   "target:\n  url: http://svc\n  timeout: soon\n",
		"bad level":      "target:\n  url: http://svc\nlogging:\n  level: loud\n",
		"bad yaml":       "target: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reachwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target:\n  url: http://svc\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://svc", cfg.Target.URL)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReachability_SameCallbackIsEqual(t *testing.T) {
	cfg, err := ParseConfig([]byte("target:\n  url: http://svc\n"))
	require.NoError(t, err)

	onChange := func(bool) {}
	assert.True(t, cfg.Reachability(onChange).Equal(cfg.Reachability(onChange)),
		"reloading an unchanged file must not restart the engine")
}
