// Package reachability monitors whether a single health-check endpoint is
// reachable. An Engine probes the endpoint on a fixed interval, retries
// failed probes with exponential backoff, never runs two check cycles at
// once and reports transitions between online and offline to the caller.
//
// The host (a UI layer, a daemon, a CLI) drives the lifecycle:
//
//	eng, err := reachability.New(reachability.WithLogger(logger))
//	...
//	cfg := reachability.NewConfig("https://api.example.com/health",
//		reachability.OnStatusChange(func(online bool) { ... }),
//	)
//	if err := eng.Start(ctx, cfg); err != nil { ... }
//	defer eng.Stop()
//
// When configuration inputs change, call Reconcile with the new Config;
// the engine restarts only if something actually differs.
package reachability

import "time"

// Version is reported in the User-Agent of the built-in transport.
const Version = "0.3.0"

// Default values.
const (
	DefaultInterval          = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultInitialRetryDelay = 1 * time.Second
	DefaultTimeout           = 15 * time.Second
)

// State is the externally observed reachability value.
type State int

const (
	// StateUnknown is the value before the first check cycle completes.
	StateUnknown State = iota
	// StateOnline means the last reported verdict was reachable.
	StateOnline
	// StateOffline means the last reported verdict was unreachable.
	StateOffline
)

// String returns "unknown", "online" or "offline".
func (s State) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Bool returns the state as a tri-state boolean: nil for unknown.
func (s State) Bool() *bool {
	switch s {
	case StateOnline:
		v := true
		return &v
	case StateOffline:
		v := false
		return &v
	default:
		return nil
	}
}

// StateOf converts a verdict into a State.
func StateOf(reachable bool) State {
	if reachable {
		return StateOnline
	}
	return StateOffline
}
