package cache

import (
	"time"
)

// ReadResult is the outcome of a cache read. Read failures of any kind
// produce empty Content and a zero UpdatedAt.
type ReadResult struct {
	// Key is the derived storage key.
	Key CacheKey

	// Content is the cached page body.
	Content []byte

	// UpdatedAt is when the page was last written.
	UpdatedAt time.Time
}

// Found reports whether a page was read.
func (r ReadResult) Found() bool {
	return len(r.Content) > 0
}

// Age returns how long ago the page was written.
// Returns 0 when nothing was read or the write time is unknown.
func (r ReadResult) Age(now time.Time) time.Duration {
	if !r.Found() || r.UpdatedAt.IsZero() {
		return 0
	}
	return now.Sub(r.UpdatedAt)
}

// RefreshUnit is the self-contained description of one deferred refresh.
type RefreshUnit struct {
	// URL is the normalized URL string of the page.
	URL string `json:"url"`

	// ContentType is the variant tag of the page.
	ContentType string `json:"content_type"`
}
