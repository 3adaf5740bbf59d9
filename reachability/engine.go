package reachability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine is the public entry point. It owns the observable state and
// drives one Scheduler at a time through Start, Stop and Reconcile.
//
// The OnStatusChange callback runs on a check goroutine. It must not call
// Stop or Reconcile synchronously: both wait for that goroutine.
type Engine struct {
	mu    sync.Mutex // serializes Start, Stop and Reconcile
	cfg   Config
	sched atomic.Pointer[Scheduler]

	reporter *Reporter
	metrics  *MetricsExporter
	logger   *slog.Logger
	clock    clockwork.Clock
	lock     *ProbeLock
	source   ConnectivitySource
	prober   Prober
}

// Option is a functional option for New.
type Option func(*engineConfig) error

type engineConfig struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	namespace  string
	clock      clockwork.Clock
	lock       *ProbeLock
	source     ConnectivitySource
	transport  *http.Client
	prober     Prober
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) error {
		c.logger = l
		return nil
	}
}

// WithRegisterer sets the Prometheus registerer. Nil disables registration.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(c *engineConfig) error {
		c.registerer = r
		return nil
	}
}

// WithNamespace prefixes metric names.
func WithNamespace(ns string) Option {
	return func(c *engineConfig) error {
		c.namespace = ns
		return nil
	}
}

// WithClock sets the clock used for ticks and backoff.
func WithClock(clock clockwork.Clock) Option {
	return func(c *engineConfig) error {
		if clock == nil {
			return fmt.Errorf("nil clock")
		}
		c.clock = clock
		return nil
	}
}

// WithProbeLock sets the single-flight guard. Pass SharedProbeLock() to
// keep cycles of all engines in the process from overlapping.
func WithProbeLock(l *ProbeLock) Option {
	return func(c *engineConfig) error {
		if l == nil {
			return fmt.Errorf("nil probe lock")
		}
		c.lock = l
		return nil
	}
}

// WithConnectivitySource sets the source of connectivity-restored signals
// used when a Config enables connectivity events.
func WithConnectivitySource(src ConnectivitySource) Option {
	return func(c *engineConfig) error {
		c.source = src
		return nil
	}
}

// WithTransport sets the *http.Client behind the built-in transport.
func WithTransport(client *http.Client) Option {
	return func(c *engineConfig) error {
		c.transport = client
		return nil
	}
}

// WithProber replaces the built-in transport entirely. A Config.Client
// still takes precedence.
func WithProber(p Prober) Option {
	return func(c *engineConfig) error {
		c.prober = p
		return nil
	}
}

// New creates an Engine. It does not start checking.
func New(opts ...Option) (*Engine, error) {
	cfg := engineConfig{
		logger:     slog.Default(),
		registerer: prometheus.DefaultRegisterer,
		clock:      clockwork.NewRealClock(),
	}
	for _, o := range opts {
		if err := o(&cfg); err != nil {
			return nil, fmt.Errorf("reachability: %w", err)
		}
	}
	if cfg.lock == nil {
		cfg.lock = NewProbeLock()
	}
	if cfg.prober == nil {
		cfg.prober = NewClientProber(StdClient(cfg.transport))
	}

	metrics, err := NewMetricsExporter(
		WithMetricsRegisterer(cfg.registerer),
		WithMetricsNamespace(cfg.namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("reachability: metrics: %w", err)
	}

	return &Engine{
		reporter: NewReporter("", nil, metrics, cfg.logger),
		metrics:  metrics,
		logger:   cfg.logger,
		clock:    cfg.clock,
		lock:     cfg.lock,
		source:   cfg.source,
		prober:   cfg.prober,
	}, nil
}

// Start begins checking cfg.URL. The run lasts until Stop or until ctx ends;
// after ctx ends the engine reports not running and may be started again.
// It returns ErrAlreadyStarted if the engine is running and an
// ErrInvalidConfig error for negative values. Probe
// failures never surface here; they become an offline verdict.
func (e *Engine) Start(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("reachability: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active() != nil {
		return ErrAlreadyStarted
	}
	// A run whose context ended is released before starting over.
	e.stopLocked()
	return e.startLocked(ctx, cfg)
}

// Stop tears the engine down. It is idempotent and safe when nothing runs.
// After Stop returns no probe is in flight and no callback will fire.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Reconcile brings the engine in line with cfg. If the engine runs with an
// equal Config it does nothing; otherwise it stops the current run and
// starts a new one whose first verdict is always reported. It returns
// whether a (re)start happened.
func (e *Engine) Reconcile(ctx context.Context, cfg Config) (bool, error) {
	if err := cfg.Validate(); err != nil {
		return false, fmt.Errorf("reachability: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sched.Load() != nil {
		if e.active() != nil && e.cfg.Equal(cfg.withDefaults()) {
			return false, nil
		}
		old := e.cfg.URL
		e.stopLocked()
		if old != cfg.URL {
			e.metrics.DeleteTarget(old)
		}
		e.logger.Info("reachability: configuration changed, restarting",
			"target", targetLabel(cfg.URL))
	}

	if err := e.startLocked(ctx, cfg); err != nil {
		return false, err
	}
	return true, nil
}

// State returns the current observable state.
func (e *Engine) State() State {
	return e.reporter.State()
}

// Online returns the state as a tri-state boolean: nil before the first
// verdict.
func (e *Engine) Online() *bool {
	return e.State().Bool()
}

// Running reports whether checks are being scheduled: the engine has been
// started, not stopped, and the context passed to Start is still live.
func (e *Engine) Running() bool {
	return e.active() != nil
}

// Config returns the configuration of the current run, with defaults
// applied, or the zero Config when the engine is not running.
func (e *Engine) Config() Config {
	sched := e.active()
	if sched == nil {
		return Config{}
	}
	return sched.cfg
}

// Trigger asks for an immediate check cycle. It returns false when the
// engine is not running or a cycle is already in flight.
func (e *Engine) Trigger() bool {
	sched := e.active()
	if sched == nil {
		return false
	}
	return sched.Trigger()
}

// active returns the current scheduler unless its loop has exited.
func (e *Engine) active() *Scheduler {
	sched := e.sched.Load()
	if sched == nil || sched.exited() {
		return nil
	}
	return sched
}

func (e *Engine) startLocked(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	e.reporter.reset(cfg.URL, cfg.OnStatusChange)

	sched := NewScheduler(cfg, e.reporter,
		WithSchedulerLogger(e.logger),
		WithSchedulerClock(e.clock),
		WithSchedulerLock(e.lock),
		WithSchedulerSource(e.source),
		WithSchedulerMetrics(e.metrics),
		WithSchedulerProber(e.prober),
	)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	e.cfg = cfg
	e.sched.Store(sched)
	return nil
}

func (e *Engine) stopLocked() {
	sched := e.sched.Swap(nil)
	if sched != nil {
		sched.Stop()
	}
}
