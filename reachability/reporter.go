package reachability

import (
	"context"
	"log/slog"
	"sync"
)

// Reporter turns cycle verdicts into transitions. It remembers the last
// reported verdict and only updates the observable state and calls the
// callback when the verdict changes.
type Reporter struct {
	mu       sync.Mutex
	prev     *bool // nil = not yet evaluated
	state    State
	target   string
	onChange func(bool)

	metrics *MetricsExporter
	logger  *slog.Logger
}

// NewReporter creates a Reporter in StateUnknown. metrics may be nil.
func NewReporter(target string, onChange func(bool), metrics *MetricsExporter, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		target:   target,
		onChange: onChange,
		metrics:  metrics,
		logger:   logger,
	}
}

// Report records a verdict. It returns true when the verdict was a
// transition (including the first verdict after a reset).
func (r *Reporter) Report(verdict bool) bool {
	r.mu.Lock()
	if r.prev != nil && *r.prev == verdict {
		r.mu.Unlock()
		return false
	}

	wasKnown := r.prev != nil
	r.prev = &verdict
	r.state = StateOf(verdict)
	target, onChange := r.target, r.onChange
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetOnline(target, verdict)
	}

	attrs := []slog.Attr{slog.String("target", targetLabel(target))}
	switch {
	case !verdict:
		r.logger.LogAttrs(context.Background(), slog.LevelError, "reachability: target offline", attrs...)
	case wasKnown:
		r.logger.LogAttrs(context.Background(), slog.LevelInfo, "reachability: target recovered", attrs...)
	default:
		r.logger.LogAttrs(context.Background(), slog.LevelInfo, "reachability: target online", attrs...)
	}

	if onChange != nil {
		onChange(verdict)
	}
	return true
}

// State returns the observable state.
func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// reset forgets the previous verdict so the next Report always fires, and
// switches to a new target and callback. The observable state is kept
// until that next verdict arrives.
func (r *Reporter) reset(target string, onChange func(bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prev = nil
	r.target = target
	r.onChange = onChange
}
