package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/el173/use-reachability/reachability"
)

// FileConfig is the YAML configuration of reachwatch. String values may
// reference environment variables as ${NAME}.
type FileConfig struct {
	Target    TargetConfig    `yaml:"target"`
	Transport TransportConfig `yaml:"transport"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// TargetConfig describes the monitored endpoint.
type TargetConfig struct {
	URL                string        `yaml:"url"`
	Interval           time.Duration `yaml:"interval"`
	MaxRetries         *int          `yaml:"max_retries"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	Timeout            time.Duration `yaml:"timeout"`
	ConnectivityEvents bool          `yaml:"connectivity_events"`
}

// TransportConfig tunes the HTTP client used for probes.
type TransportConfig struct {
	TLSSkipVerify bool `yaml:"tls_skip_verify"`
	HTTP2         bool `yaml:"http2"`
}

// ServerConfig configures the status and metrics listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig configures the Prometheus export.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the configuration used for fields the file omits.
func DefaultConfig() FileConfig {
	retries := reachability.DefaultMaxRetries
	return FileConfig{
		Target: TargetConfig{
			Interval:   reachability.DefaultInterval,
			MaxRetries: &retries,
			RetryDelay: reachability.DefaultInitialRetryDelay,
			Timeout:    reachability.DefaultTimeout,
		},
		Server:  ServerConfig{Addr: ":9090"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig reads the YAML file at path, expands environment variables and
// fills in defaults.
func LoadConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document into a FileConfig.
func ParseConfig(data []byte) (FileConfig, error) {
	cfg := DefaultConfig()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Target.MaxRetries == nil {
		retries := reachability.DefaultMaxRetries
		cfg.Target.MaxRetries = &retries
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultConfig().Server.Addr
	}
	if cfg.Target.URL == "" {
		return FileConfig{}, errors.New("target.url is required")
	}
	if err := cfg.Reachability(nil).Validate(); err != nil {
		return FileConfig{}, err
	}
	if _, err := parseLevel(cfg.Logging.Level); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// Reachability converts the target section into an engine Config.
func (c FileConfig) Reachability(onChange func(bool)) reachability.Config {
	retries := reachability.DefaultMaxRetries
	if c.Target.MaxRetries != nil {
		retries = *c.Target.MaxRetries
	}
	return reachability.NewConfig(c.Target.URL,
		reachability.CheckInterval(c.Target.Interval),
		reachability.MaxRetries(retries),
		reachability.RetryDelay(c.Target.RetryDelay),
		reachability.Timeout(c.Target.Timeout),
		reachability.ConnectivityEvents(c.Target.ConnectivityEvents),
		reachability.OnStatusChange(onChange),
	)
}

// TransportOptions returns the client options for the transport section.
func (c FileConfig) TransportOptions() []reachability.TransportOption {
	var opts []reachability.TransportOption
	if c.Transport.TLSSkipVerify {
		opts = append(opts, reachability.WithTLSSkipVerify(true))
	}
	if c.Transport.HTTP2 {
		opts = append(opts, reachability.WithHTTP2(true))
	}
	return opts
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
