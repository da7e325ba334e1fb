package cache

import (
	"crypto/md5"
	"encoding/hex"
)

// DefaultContentType is used when no content type tag is given.
const DefaultContentType = "html"

// CacheKey identifies one cached page variant.
type CacheKey struct {
	// Digest is the MD5 of the normalized URL string.
	Digest [md5.Size]byte

	// ContentType is the variant tag, e.g. "html" or "json".
	ContentType string
}

// DeriveKey maps a normalized URL and a content type tag to its cache key.
// The same URL yields distinct keys per content type.
func DeriveKey(url, contentType string) CacheKey {
	if contentType == "" {
		contentType = DefaultContentType
	}
	return CacheKey{
		Digest:      md5.Sum([]byte(url)),
		ContentType: contentType,
	}
}

// Hex returns the digest as 32 lowercase hex characters.
func (k CacheKey) Hex() string {
	return hex.EncodeToString(k.Digest[:])
}

// Shard returns the three directory levels taken from the last three hex
// characters of the digest, e.g. "d/1/f".
func (k CacheKey) Shard() string {
	h := k.Hex()
	return h[29:30] + "/" + h[30:31] + "/" + h[31:32]
}

// String generates the storage key.
// Format: s1/s2/s3/<digest>.<content type>
//
// Example:
//
//	5/9/2/5d41402abc4b2a76b9719d911017c592.html
func (k CacheKey) String() string {
	ct := k.ContentType
	if ct == "" {
		ct = DefaultContentType
	}
	return k.Shard() + "/" + k.Hex() + "." + ct
}
