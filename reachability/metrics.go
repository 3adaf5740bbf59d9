package reachability

import (
	"errors"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
)

// Fixed HELP strings.
const (
	onlineHelp      = "Reachability of the health-check target (1 = online, 0 = offline)"
	durationHelp    = "Duration of a single probe attempt in seconds"
	attemptsHelp    = "Probe attempts by outcome category"
	cyclesHelp      = "Completed check cycles by verdict"
	droppedHelp     = "Check triggers dropped because a cycle was already running"
	transitionsHelp = "Reported reachability transitions"
)

var defaultDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0}

// MetricsExporter manages the Prometheus metrics of an Engine.
type MetricsExporter struct {
	online      *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
	attempts    *prometheus.CounterVec
	cycles      *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// MetricsOption is a functional option for MetricsExporter.
type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	registerer prometheus.Registerer
	namespace  string
}

// WithMetricsRegisterer sets the registerer. Nil disables registration;
// the exporter still works but nothing is exposed.
func WithMetricsRegisterer(r prometheus.Registerer) MetricsOption {
	return func(c *metricsConfig) {
		c.registerer = r
	}
}

// WithMetricsNamespace prefixes every metric name.
func WithMetricsNamespace(ns string) MetricsOption {
	return func(c *metricsConfig) {
		c.namespace = ns
	}
}

// NewMetricsExporter creates the collectors and registers them.
// Collectors already registered by another exporter with the same names
// are reused, so several engines can share one registry.
func NewMetricsExporter(opts ...MetricsOption) (*MetricsExporter, error) {
	cfg := metricsConfig{
		registerer: prometheus.DefaultRegisterer,
	}
	for _, o := range opts {
		o(&cfg)
	}

	m := &MetricsExporter{
		online: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "reachability_online",
			Help:      onlineHelp,
		}, []string{"target"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Name:      "reachability_probe_duration_seconds",
			Help:      durationHelp,
			Buckets:   defaultDurationBuckets,
		}, []string{"target", "status"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "reachability_probe_attempts_total",
			Help:      attemptsHelp,
		}, []string{"target", "status"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "reachability_cycles_total",
			Help:      cyclesHelp,
		}, []string{"target", "verdict"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "reachability_triggers_dropped_total",
			Help:      droppedHelp,
		}, []string{"target", "trigger"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "reachability_transitions_total",
			Help:      transitionsHelp,
		}, []string{"target", "state"}),
	}

	if cfg.registerer == nil {
		return m, nil
	}

	var err error
	if m.online, err = register(cfg.registerer, m.online); err != nil {
		return nil, err
	}
	if m.duration, err = register(cfg.registerer, m.duration); err != nil {
		return nil, err
	}
	if m.attempts, err = register(cfg.registerer, m.attempts); err != nil {
		return nil, err
	}
	if m.cycles, err = register(cfg.registerer, m.cycles); err != nil {
		return nil, err
	}
	if m.dropped, err = register(cfg.registerer, m.dropped); err != nil {
		return nil, err
	}
	if m.transitions, err = register(cfg.registerer, m.transitions); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c, returning the already registered collector of the
// same type when there is one.
func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveAttempt records one probe attempt.
func (m *MetricsExporter) ObserveAttempt(target string, res ProbeResult) {
	t := targetLabel(target)
	m.duration.WithLabelValues(t, string(res.Category)).Observe(res.Latency.Seconds())
	m.attempts.WithLabelValues(t, string(res.Category)).Inc()
}

// ObserveCycle records a finished cycle.
func (m *MetricsExporter) ObserveCycle(cycle CheckCycle) {
	verdict := StateOf(cycle.Verdict).String()
	if cycle.Aborted {
		verdict = "aborted"
	}
	m.cycles.WithLabelValues(targetLabel(cycle.URL), verdict).Inc()
}

// SetOnline updates the online gauge and counts the transition.
func (m *MetricsExporter) SetOnline(target string, online bool) {
	t := targetLabel(target)
	v := 0.0
	if online {
		v = 1
	}
	m.online.WithLabelValues(t).Set(v)
	m.transitions.WithLabelValues(t, StateOf(online).String()).Inc()
}

// IncDropped counts a trigger dropped by the single-flight guard.
func (m *MetricsExporter) IncDropped(target string, trigger Trigger) {
	m.dropped.WithLabelValues(targetLabel(target), string(trigger)).Inc()
}

// DeleteTarget removes the online gauge series of a target no longer checked.
func (m *MetricsExporter) DeleteTarget(target string) {
	m.online.DeleteLabelValues(targetLabel(target))
}

// targetLabel strips credentials from a URL so they never reach a label.
func targetLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
