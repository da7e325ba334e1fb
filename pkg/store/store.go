// Package store provides the byte blob backends that hold cached pages.
//
// Keys are slash-separated paths of the form "s1/s2/s3/<digest>.<type>". The
// first segment is the top-level entry that List returns and DeleteRecursive
// removes.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the key does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrMetadataUnavailable indicates the key exists but its write time cannot be read.
	ErrMetadataUnavailable = errors.New("store: metadata unavailable")
)

// Store is a byte key/value store with write times and prefix deletion.
type Store interface {
	// Get returns the bytes stored at key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value at key in a single atomic write.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// LastWriteTime returns when key was last written.
	LastWriteTime(ctx context.Context, key string) (time.Time, error)

	// List returns the sorted distinct top-level entries.
	List(ctx context.Context) ([]string, error)

	// DeleteRecursive removes every key below the top-level entry name.
	DeleteRecursive(ctx context.Context, name string) error
}

// EntryReader is implemented by stores that return content and write time
// from a single read, so both belong to the same write.
type EntryReader interface {
	// Entry returns the bytes at key and when they were written. Errors
	// follow Get and LastWriteTime.
	Entry(ctx context.Context, key string) ([]byte, time.Time, error)
}

// TopLevel returns the first path segment of key.
func TopLevel(key string) string {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}

// under reports whether key is the top-level entry name or lies below it.
func under(key, name string) bool {
	return key == name || strings.HasPrefix(key, name+"/")
}
