package reachability

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
)

// ErrAlreadyStarted is returned by Start on a running scheduler or engine.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Trigger names what asked for a check cycle.
type Trigger string

const (
	TriggerStart        Trigger = "start"
	TriggerTimer        Trigger = "timer"
	TriggerConnectivity Trigger = "connectivity"
	TriggerManual       Trigger = "manual"
)

// Scheduler runs check cycles for one Config: one immediately on Start,
// then one per Interval tick, plus one per connectivity signal when
// enabled. A trigger that finds a cycle already holding the ProbeLock is
// dropped, not queued.
type Scheduler struct {
	cfg      Config
	policy   RetryPolicy
	reporter *Reporter
	lock     *ProbeLock
	source   ConnectivitySource
	clock    clockwork.Clock
	metrics  *MetricsExporter
	logger   *slog.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	events      chan struct{}
	done        chan struct{}
	wg          sync.WaitGroup
	started     bool
	stopped     bool
	mu          sync.Mutex
}

// SchedulerOption is a functional option for Scheduler.
type SchedulerOption func(*schedulerConfig)

type schedulerConfig struct {
	logger  *slog.Logger
	clock   clockwork.Clock
	lock    *ProbeLock
	source  ConnectivitySource
	metrics *MetricsExporter
	prober  Prober
}

// WithSchedulerLogger sets the logger for the scheduler.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(c *schedulerConfig) {
		c.logger = l
	}
}

// WithSchedulerClock sets the clock driving the ticker and backoff.
func WithSchedulerClock(clock clockwork.Clock) SchedulerOption {
	return func(c *schedulerConfig) {
		c.clock = clock
	}
}

// WithSchedulerLock sets the single-flight guard. Defaults to a fresh lock.
func WithSchedulerLock(l *ProbeLock) SchedulerOption {
	return func(c *schedulerConfig) {
		c.lock = l
	}
}

// WithSchedulerSource sets the connectivity source.
func WithSchedulerSource(src ConnectivitySource) SchedulerOption {
	return func(c *schedulerConfig) {
		c.source = src
	}
}

// WithSchedulerMetrics sets the metrics exporter.
func WithSchedulerMetrics(m *MetricsExporter) SchedulerOption {
	return func(c *schedulerConfig) {
		c.metrics = m
	}
}

// WithSchedulerProber sets the prober used when cfg.Client is nil.
func WithSchedulerProber(p Prober) SchedulerOption {
	return func(c *schedulerConfig) {
		c.prober = p
	}
}

// NewScheduler creates a scheduler for cfg reporting into reporter.
func NewScheduler(cfg Config, reporter *Reporter, opts ...SchedulerOption) *Scheduler {
	sc := schedulerConfig{
		logger: slog.Default(),
		clock:  clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(&sc)
	}
	if sc.lock == nil {
		sc.lock = NewProbeLock()
	}

	cfg = cfg.withDefaults()

	prober := sc.prober
	if cfg.Client != nil {
		prober = NewClientProber(cfg.Client)
	}
	if prober == nil {
		prober = NewClientProber(nil)
	}

	return &Scheduler{
		cfg: cfg,
		policy: RetryPolicy{
			Prober:       prober,
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: cfg.InitialRetryDelay,
			Timeout:      cfg.Timeout,
			Clock:        sc.clock,
		},
		reporter: reporter,
		lock:     sc.lock,
		source:   sc.source,
		clock:    sc.clock,
		metrics:  sc.metrics,
		logger:   sc.logger,
		events:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start subscribes to the connectivity source if enabled and launches the
// check loop. Calling Start more than once returns an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.cfg.Timeout > s.cfg.Interval {
		s.logger.Warn("reachability: timeout exceeds interval, cycles may overrun ticks",
			"target", targetLabel(s.cfg.URL),
			"timeout", s.cfg.Timeout,
			"interval", s.cfg.Interval,
		)
	}

	if s.cfg.EnableConnectivityEvents {
		if s.source == nil {
			s.logger.Warn("reachability: connectivity events enabled without a source",
				"target", targetLabel(s.cfg.URL))
		} else {
			s.unsubscribe = s.source.Subscribe(s.signal)
		}
	}

	ticker := s.clock.NewTicker(s.cfg.Interval)
	s.wg.Add(1)
	go s.loop(ticker)

	return nil
}

// Stop cancels the ticker, the in-flight request and any pending backoff,
// unsubscribes from the connectivity source and waits for goroutines to
// finish. Repeated calls are no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, unsubscribe := s.cancel, s.unsubscribe
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	cancel()
	s.wg.Wait()
}

// Done is closed when the check loop exits, either through Stop or because
// the context passed to Start ended.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Trigger asks for an immediate cycle. It returns false if the scheduler is
// not running or a cycle is already in flight.
func (s *Scheduler) Trigger() bool {
	return s.trigger(TriggerManual)
}

// signal is the connectivity callback. It never blocks the source.
func (s *Scheduler) signal() {
	select {
	case s.events <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ticker clockwork.Ticker) {
	defer s.wg.Done()
	defer close(s.done)
	defer ticker.Stop()

	s.trigger(TriggerStart)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			s.trigger(TriggerTimer)
		case <-s.events:
			s.trigger(TriggerConnectivity)
		}
	}
}

// trigger starts a cycle in its own goroutine if the lock is free.
func (s *Scheduler) trigger(src Trigger) bool {
	s.mu.Lock()
	if !s.started || s.stopped || s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if !s.lock.TryAcquire() {
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.IncDropped(s.cfg.URL, src)
		}
		s.logger.Debug("reachability: cycle in flight, trigger dropped",
			"target", targetLabel(s.cfg.URL), "trigger", string(src))
		return false
	}
	s.wg.Add(1)
	ctx := s.ctx
	s.mu.Unlock()

	go s.runCycle(ctx, src)
	return true
}

// runCycle executes one cycle and reports its verdict. The lock is
// released whatever happens, panics included.
func (s *Scheduler) runCycle(ctx context.Context, src Trigger) {
	defer s.wg.Done()
	defer s.lock.Release()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reachability: panic in check cycle",
				"target", targetLabel(s.cfg.URL),
				"panic", r,
			)
		}
	}()

	cycle := s.policy.Run(ctx, s.cfg.URL)
	s.observe(ctx, cycle, src)

	if cycle.Aborted || ctx.Err() != nil {
		return
	}
	s.reporter.Report(cycle.Verdict)
}

func (s *Scheduler) observe(ctx context.Context, cycle CheckCycle, src Trigger) {
	logAttrs := []slog.Attr{
		slog.String("target", targetLabel(cycle.URL)),
		slog.String("cycle_id", cycle.ID),
		slog.String("trigger", string(src)),
	}

	for _, a := range cycle.Attempts {
		if s.metrics != nil {
			s.metrics.ObserveAttempt(cycle.URL, a.Result)
		}
		if a.Result.Succeeded {
			continue
		}
		attrs := append(logAttrs,
			slog.Int("attempt", a.Index),
			slog.String("status", string(a.Result.Category)),
			slog.Duration("backoff", a.Backoff),
		)
		if a.Result.Err != nil {
			attrs = append(attrs, slog.String("error", a.Result.Err.Error()))
		}
		s.logger.LogAttrs(ctx, slog.LevelDebug, "reachability: attempt failed", attrs...)
	}

	if s.metrics != nil {
		s.metrics.ObserveCycle(cycle)
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "reachability: cycle finished",
		append(logAttrs,
			slog.Int("attempts", len(cycle.Attempts)),
			slog.Bool("verdict", cycle.Verdict),
			slog.Bool("aborted", cycle.Aborted),
			slog.Duration("duration", cycle.Duration),
		)...)
}
