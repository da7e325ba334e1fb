package cache

import (
	"errors"
	"fmt"
)

// ErrClearFailed is matched by every ClearAll failure.
var ErrClearFailed = errors.New("cache clear failed")

// ClearError reports the top-level shard whose removal failed. Shards
// processed before it are already gone; shards after it were not attempted.
type ClearError struct {
	Shard string
	Err   error
}

// Error implements the error interface.
func (e *ClearError) Error() string {
	if e.Shard == "" {
		return fmt.Sprintf("cache clear failed: list shards: %v", e.Err)
	}
	return fmt.Sprintf("cache clear failed: can not remove shard %s: %v", e.Shard, e.Err)
}

// Unwrap exposes ErrClearFailed and the underlying store error.
func (e *ClearError) Unwrap() []error {
	return []error{ErrClearFailed, e.Err}
}
