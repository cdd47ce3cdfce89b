package engine

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Deduplicator tracks input keys that have already been queued.
type Deduplicator struct {
	mu        sync.Mutex
	seen      map[string]struct{}
	canonical func(string) string
}

// NewDeduplicator creates a Deduplicator that compares keys after applying
// canonical. A nil canonical compares keys as-is.
func NewDeduplicator(canonical func(string) string) *Deduplicator {
	if canonical == nil {
		canonical = func(s string) string { return s }
	}
	return &Deduplicator{
		seen:      make(map[string]struct{}),
		canonical: canonical,
	}
}

// Add marks key as seen and reports whether it was new.
func (d *Deduplicator) Add(key string) bool {
	k := d.canonical(key)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[k]; ok {
		return false
	}
	d.seen[k] = struct{}{}
	return true
}

// Count returns the number of unique keys seen.
func (d *Deduplicator) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Unique drops blank and duplicate values, keeping the first occurrence.
func Unique(values []string, canonical func(string) string) []string {
	d := NewDeduplicator(canonical)
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if d.Add(v) {
			out = append(out, v)
		}
	}
	return out
}

// NormalizeISBN strips hyphens and whitespace from an ISBN.
func NormalizeISBN(isbn string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, isbn)
}

// CanonicalizeURL normalizes a URL for deduplication:
// - lowercases scheme and host
// - removes fragment
// - sorts query parameters
// - removes trailing slash (except root)
// - removes default ports (80 for http, 443 for https)
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// ExcludeSubstrings drops every URL containing any of the given substrings.
// It returns the kept URLs and the dropped ones, both in input order.
func ExcludeSubstrings(urls []string, substrings []string) (kept, dropped []string) {
	kept = make([]string, 0, len(urls))
outer:
	for _, u := range urls {
		for _, s := range substrings {
			if s != "" && strings.Contains(u, s) {
				dropped = append(dropped, u)
				continue outer
			}
		}
		kept = append(kept, u)
	}
	return kept, dropped
}
