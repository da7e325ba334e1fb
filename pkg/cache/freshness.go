package cache

import "time"

// Decision is the outcome of evaluating one cache read.
type Decision int

const (
	// Miss means nothing usable is cached. A refresh is scheduled and the
	// request goes to the origin.
	Miss Decision = iota

	// HitFresh means the cached page is within its TTL and is served as is.
	HitFresh

	// HitStale means the cached page is served but a refresh is scheduled,
	// either because the TTL elapsed or a refresh was requested explicitly.
	HitStale
)

// String returns the label used in logs, metrics and the X-Page-Cache header.
func (d Decision) String() string {
	switch d {
	case HitFresh:
		return "hit"
	case HitStale:
		return "stale"
	default:
		return "miss"
	}
}

// Hit reports whether cached content is served.
func (d Decision) Hit() bool {
	return d == HitFresh || d == HitStale
}

// NeedsRefresh reports whether a refresh unit must be scheduled.
func (d Decision) NeedsRefresh() bool {
	return d == Miss || d == HitStale
}

// Evaluate decides how to serve a read.
// The page is fresh while now <= updatedAt+ttl; the boundary itself is fresh.
func Evaluate(content []byte, updatedAt time.Time, ttl time.Duration, now time.Time, explicitRefresh bool) Decision {
	if len(content) == 0 {
		return Miss
	}
	if explicitRefresh || now.After(updatedAt.Add(ttl)) {
		return HitStale
	}
	return HitFresh
}
