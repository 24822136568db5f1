package cache

import "time"

// State is the unified lookup outcome shared by all resolvers. It
// distinguishes "confirmed absent" (a valid negative marker) from "not yet
// fetched" (a plain miss).
type State int

const (
	// StateMiss means no valid record of either polarity exists.
	StateMiss State = iota

	// StateFresh means a valid positive record exists at Result.Path.
	StateFresh

	// StateNegative means a valid negative marker exists; the caller should
	// fail with not-found without touching the network.
	StateNegative
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateNegative:
		return "negative"
	default:
		return "miss"
	}
}

// Query describes what a resolver considers a valid record.
type Query struct {
	// Extensions are the candidate positive record suffixes, checked in
	// order (e.g. [".jpg", ".jpeg", ".png"] for avatars).
	Extensions []string

	// TTL is the positive record validity window.
	TTL time.Duration

	// NegativeTTL is the (shorter) negative marker validity window.
	NegativeTTL time.Duration
}

// Result is the outcome of a Lookup.
type Result struct {
	State State

	// Path is the positive record location when State is StateFresh.
	Path string
}

// Lookup resolves the cache state for (ns, key). The negative marker is
// consulted first: a confirmed absence short-circuits even when a stale
// positive record is still on disk.
func (s *Store) Lookup(ns Namespace, key string, q Query) Result {
	label := string(ns)

	if s.IsValid(s.MarkerPath(ns, key), q.NegativeTTL) {
		cacheNegativeHits.WithLabelValues(label).Inc()
		return Result{State: StateNegative}
	}

	for _, ext := range q.Extensions {
		path := s.PathFor(ns, key, ext)
		if s.IsValid(path, q.TTL) {
			cacheHits.WithLabelValues(label).Inc()
			return Result{State: StateFresh, Path: path}
		}
	}

	cacheMisses.WithLabelValues(label).Inc()
	return Result{State: StateMiss}
}
