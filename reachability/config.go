package reachability

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate for negative values.
var ErrInvalidConfig = errors.New("invalid reachability config")

// Config is the per-run configuration of an Engine. It is treated as
// immutable once passed to Start or Reconcile.
type Config struct {
	// URL is the health-check target. It is not validated: an unusable URL
	// results in every probe failing and a sustained offline verdict.
	URL string

	// Interval between scheduled check cycles. Zero means DefaultInterval.
	Interval time.Duration

	// MaxRetries is the number of retries after the first attempt,
	// so a cycle makes at most MaxRetries+1 attempts.
	MaxRetries int

	// InitialRetryDelay is the backoff before the second attempt; it doubles
	// for every following attempt.
	InitialRetryDelay time.Duration

	// Timeout bounds a single attempt. Zero means DefaultTimeout.
	Timeout time.Duration

	// Client replaces the built-in HTTP transport when set.
	Client HTTPClient

	// EnableConnectivityEvents runs an extra check cycle whenever the
	// engine's ConnectivitySource signals that connectivity was restored.
	EnableConnectivityEvents bool

	// OnStatusChange is called with the new verdict on every transition.
	OnStatusChange func(reachable bool)
}

// ConfigOption is a functional option for NewConfig.
type ConfigOption func(*Config)

// NewConfig returns a Config for url with defaults applied, then opts.
func NewConfig(url string, opts ...ConfigOption) Config {
	cfg := Config{
		URL:               url,
		Interval:          DefaultInterval,
		MaxRetries:        DefaultMaxRetries,
		InitialRetryDelay: DefaultInitialRetryDelay,
		Timeout:           DefaultTimeout,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// CheckInterval sets the poll interval.
func CheckInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Interval = d
	}
}

// MaxRetries sets the number of retries per cycle.
func MaxRetries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// RetryDelay sets the initial backoff delay.
func RetryDelay(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.InitialRetryDelay = d
	}
}

// Timeout sets the per-attempt timeout.
func Timeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithClient sets a custom HTTP client for probes.
func WithClient(client HTTPClient) ConfigOption {
	return func(c *Config) {
		c.Client = client
	}
}

// ConnectivityEvents enables checks on connectivity-restored signals.
func ConnectivityEvents(enabled bool) ConfigOption {
	return func(c *Config) {
		c.EnableConnectivityEvents = enabled
	}
}

// OnStatusChange sets the transition callback.
func OnStatusChange(fn func(reachable bool)) ConfigOption {
	return func(c *Config) {
		c.OnStatusChange = fn
	}
}

// Validate reports negative durations or retry counts.
func (c Config) Validate() error {
	switch {
	case c.Interval < 0:
		return fmt.Errorf("%w: negative interval %s", ErrInvalidConfig, c.Interval)
	case c.Timeout < 0:
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidConfig, c.Timeout)
	case c.InitialRetryDelay < 0:
		return fmt.Errorf("%w: negative retry delay %s", ErrInvalidConfig, c.InitialRetryDelay)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: negative max retries %d", ErrInvalidConfig, c.MaxRetries)
	}
	return nil
}

// withDefaults fills zero Interval and Timeout.
func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Equal reports whether two configs would drive the engine identically.
// Callbacks are compared by function identity and clients by value when
// the values are comparable; anything else counts as changed.
func (c Config) Equal(o Config) bool {
	a, b := c.withDefaults(), o.withDefaults()
	return a.URL == b.URL &&
		a.Interval == b.Interval &&
		a.MaxRetries == b.MaxRetries &&
		a.InitialRetryDelay == b.InitialRetryDelay &&
		a.Timeout == b.Timeout &&
		a.EnableConnectivityEvents == b.EnableConnectivityEvents &&
		sameFunc(a.OnStatusChange, b.OnStatusChange) &&
		sameClient(a.Client, b.Client)
}

func sameFunc(a, b func(bool)) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func sameClient(a, b HTTPClient) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch ta.Kind() {
	case reflect.Func:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	default:
		// A comparable type may still hold an uncomparable value in an
		// interface field.
		if !reflect.ValueOf(a).Comparable() || !reflect.ValueOf(b).Comparable() {
			return false
		}
		return a == b
	}
}
