package reachability

import "golang.org/x/sync/semaphore"

// ProbeLock is a single-flight guard: at most one check cycle holds it at a
// time. It never queues; a caller that cannot take it is expected to drop
// its trigger.
type ProbeLock struct {
	sem *semaphore.Weighted
}

// NewProbeLock returns an unheld lock.
func NewProbeLock() *ProbeLock {
	return &ProbeLock{sem: semaphore.NewWeighted(1)}
}

var sharedProbeLock = NewProbeLock()

// SharedProbeLock returns the process-wide lock. Engines configured with it
// never run cycles concurrently with each other.
func SharedProbeLock() *ProbeLock {
	return sharedProbeLock
}

// TryAcquire takes the lock if it is free.
func (l *ProbeLock) TryAcquire() bool {
	return l.sem.TryAcquire(1)
}

// Release frees the lock. It must be paired with a successful TryAcquire.
func (l *ProbeLock) Release() {
	l.sem.Release(1)
}
