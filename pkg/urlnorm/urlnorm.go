// Package urlnorm canonicalizes inbound requests and explicit URL strings into
// the stable URL used as page cache identity.
package urlnorm

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
)

// DefaultPattern is the URL shape accepted when no pattern is configured.
// Capture groups: scheme with trailing colon, host, path without its leading
// slash, trailing query text.
const DefaultPattern = `^(https?:)//([^/?]+)/?([^?]+)?\??(.*)?`

// ErrMalformedURL is returned when a URL does not match the configured pattern.
var ErrMalformedURL = errors.New("malformed url")

// Normalizer turns requests and URL strings into URL values.
// It is immutable after construction and safe for concurrent use.
type Normalizer struct {
	pattern *regexp.Regexp
	allowed map[string]struct{}
	order   []string
}

// New creates a Normalizer.
// pattern overrides DefaultPattern when non-empty and must have at least four
// capture groups. params is the comma-separated allow-list of query parameter
// names that take part in the cache identity; empty keeps none.
func New(pattern, params string) (*Normalizer, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile url pattern: %w", err)
	}
	if re.NumSubexp() < 4 {
		return nil, fmt.Errorf("url pattern needs 4 capture groups, got %d", re.NumSubexp())
	}

	n := &Normalizer{
		pattern: re,
		allowed: make(map[string]struct{}),
	}
	for _, name := range strings.Split(params, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := n.allowed[name]; dup {
			continue
		}
		n.allowed[name] = struct{}{}
		n.order = append(n.order, name)
	}
	return n, nil
}

// MustNew is like New but panics on error.
func MustNew(pattern, params string) *Normalizer {
	n, err := New(pattern, params)
	if err != nil {
		panic(err)
	}
	return n
}

// Params returns the allow-listed parameter names in configuration order.
func (n *Normalizer) Params() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// Allowed reports whether a query parameter name takes part in the cache key.
func (n *Normalizer) Allowed(name string) bool {
	_, ok := n.allowed[name]
	return ok
}

// Normalize builds the cache identity of a live request.
// The path is kept percent-encoded as received, so "/p%3Fa=1" and "/p?a=1"
// stay distinct pages.
func (n *Normalizer) Normalize(r *http.Request) (URL, error) {
	scheme := requestScheme(r)

	path := r.URL.EscapedPath()
	if path == "" {
		path = "/"
	}

	u := URL{
		Scheme: scheme,
		Host:   stripDefaultPort(r.Host, scheme),
		Path:   path,
		Query:  n.FilterQuery(r.URL.RawQuery),
	}

	if !n.pattern.MatchString(u.String()) {
		return URL{}, fmt.Errorf("%w: %q", ErrMalformedURL, u.String())
	}
	return u, nil
}

// Parse builds a URL from an explicit string, e.g. one given on the command line.
// The trailing query is kept as given and is not filtered by the allow-list.
func (n *Normalizer) Parse(raw string) (URL, error) {
	m := n.pattern.FindStringSubmatch(raw)
	if m == nil {
		return URL{}, fmt.Errorf("%w: %q", ErrMalformedURL, raw)
	}
	if m[2] == "" {
		return URL{}, fmt.Errorf("%w: %q has no host", ErrMalformedURL, raw)
	}

	return URL{
		Scheme: strings.TrimSuffix(m[1], ":"),
		Host:   m[2],
		Path:   "/" + m[3],
		Query:  splitQuery(m[4]),
	}, nil
}

// FilterQuery keeps the allow-listed parameters of a raw query string in their
// original order. Values are kept verbatim.
func (n *Normalizer) FilterQuery(rawQuery string) []Param {
	if rawQuery == "" || len(n.allowed) == 0 {
		return nil
	}
	var out []Param
	for _, p := range splitQuery(rawQuery) {
		if n.Allowed(p.Name) {
			out = append(out, p)
		}
	}
	return out
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if _, port, err := net.SplitHostPort(r.Host); err == nil && port == "443" {
		return "https"
	}
	return "http"
}

func stripDefaultPort(host, scheme string) string {
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		return h
	}
	return host
}

func splitQuery(raw string) []Param {
	if raw == "" {
		return nil
	}
	var out []Param
	for _, seg := range strings.Split(raw, "&") {
		if seg == "" {
			continue
		}
		name, value, found := strings.Cut(seg, "=")
		out = append(out, Param{Name: name, Value: value, NoValue: !found})
	}
	return out
}
