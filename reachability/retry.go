package reachability

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// AttemptOutcome records one attempt of a cycle.
type AttemptOutcome struct {
	Index  int
	Result ProbeResult
	// Backoff is the delay scheduled after this attempt (0 for the last one).
	Backoff time.Duration
}

// CheckCycle is the record of one run of the retry policy. It lives only
// as long as the cycle and is used for logs and metrics.
type CheckCycle struct {
	ID       string
	URL      string
	Started  time.Time
	Duration time.Duration
	Attempts []AttemptOutcome
	Backoff  time.Duration // total backoff actually waited
	Verdict  bool
	// Aborted is set when the context was cancelled before a verdict was
	// reached. Aborted cycles are never reported.
	Aborted bool
}

// RetryPolicy turns a Prober into a single verdict per cycle: up to
// MaxRetries+1 sequential attempts, stopping at the first success, with
// InitialDelay*2^attempt between failed attempts.
type RetryPolicy struct {
	Prober       Prober
	MaxRetries   int
	InitialDelay time.Duration
	Timeout      time.Duration
	Clock        clockwork.Clock
}

// Backoff returns the delay after the failed attempt with the given
// 0-based index. It saturates instead of overflowing.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.InitialDelay
	for range attempt {
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	return d
}

// Run executes one cycle against url. Probe failures are swallowed; only
// the verdict and the attempt record come back.
func (p RetryPolicy) Run(ctx context.Context, url string) (cycle CheckCycle) {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	cycle = CheckCycle{
		ID:      uuid.NewString(),
		URL:     url,
		Started: clock.Now(),
	}
	defer func() {
		cycle.Duration = clock.Since(cycle.Started)
	}()

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			cycle.Aborted = true
			return cycle
		}

		res := p.Prober.Probe(ctx, url, p.Timeout)
		outcome := AttemptOutcome{Index: attempt, Result: res}

		if res.Succeeded {
			cycle.Attempts = append(cycle.Attempts, outcome)
			cycle.Verdict = true
			return cycle
		}

		// A failure caused by teardown says nothing about the endpoint.
		if ctx.Err() != nil {
			cycle.Attempts = append(cycle.Attempts, outcome)
			cycle.Aborted = true
			return cycle
		}

		if attempt == p.MaxRetries {
			cycle.Attempts = append(cycle.Attempts, outcome)
			break
		}

		outcome.Backoff = p.Backoff(attempt)
		cycle.Attempts = append(cycle.Attempts, outcome)
		if !sleep(ctx, clock, outcome.Backoff) {
			cycle.Aborted = true
			return cycle
		}
		cycle.Backoff += outcome.Backoff
	}

	return cycle
}

// sleep waits for d on clock. It returns false if ctx ends first.
func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.Chan():
		return true
	}
}
