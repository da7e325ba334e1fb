package urlnorm

import "strings"

// Param is one query parameter as it appeared in the request.
type Param struct {
	Name  string
	Value string

	// NoValue marks a parameter written without "=", e.g. "?preview".
	NoValue bool
}

// String renders the parameter the way it was received.
func (p Param) String() string {
	if p.NoValue {
		return p.Name
	}
	return p.Name + "=" + p.Value
}

// URL is the normalized identity of a cached page.
type URL struct {
	Scheme string
	Host   string

	// Path always starts with "/".
	Path string

	Query []Param
}

// Site returns scheme and host, e.g. "https://example.com".
func (u URL) Site() string {
	return u.Scheme + "://" + u.Host
}

// RawQuery joins the query parameters with "&".
func (u URL) RawQuery() string {
	if len(u.Query) == 0 {
		return ""
	}
	parts := make([]string, len(u.Query))
	for i, p := range u.Query {
		parts[i] = p.String()
	}
	return strings.Join(parts, "&")
}

// RequestURI returns path plus query.
func (u URL) RequestURI() string {
	if q := u.RawQuery(); q != "" {
		return u.Path + "?" + q
	}
	return u.Path
}

// String returns the canonical form used for cache key derivation.
func (u URL) String() string {
	return u.Site() + u.RequestURI()
}

// IsZero reports whether u is the zero URL.
func (u URL) IsZero() bool {
	return u.Scheme == "" && u.Host == "" && u.Path == "" && len(u.Query) == 0
}

// Equal compares two URLs field by field.
func (u URL) Equal(o URL) bool {
	if u.Scheme != o.Scheme || u.Host != o.Host || u.Path != o.Path || len(u.Query) != len(o.Query) {
		return false
	}
	for i := range u.Query {
		if u.Query[i] != o.Query[i] {
			return false
		}
	}
	return true
}
