package types

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Well-known filter keys. Searchers ignore keys they do not use.
const (
	FilterPath       = "path"
	FilterSymbolKind = "symbol_kind"
	FilterPackage    = "package"
	FilterMemoryType = "memory_type"
	FilterTags       = "tags"
	FilterSessionID  = "session_id"
	FilterStatus     = "status"
	FilterSince      = "since"
	FilterUntil      = "until"
)

// Filters are shared across heterogeneous searchers
type Filters map[string]string

// Get returns the trimmed value for key
func (f Filters) Get(key string) string {
	if f == nil {
		return ""
	}
	return strings.TrimSpace(f[key])
}

// List splits a comma separated value, dropping blanks
func (f Filters) List(key string) []string {
	raw := f.Get(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Time parses key as RFC 3339 or YYYY-MM-DD, the latter as midnight UTC.
// A missing key returns the zero time.
func (f Filters) Time(key string) (time.Time, error) {
	t, _, err := f.parseTime(key)
	return t, err
}

func (f Filters) parseTime(key string) (t time.Time, dateOnly bool, err error) {
	raw := f.Get(key)
	if raw == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	t, err = time.Parse(time.DateOnly, raw)
	return t, err == nil, err
}

// DateRange returns the inclusive since/until bounds. A date-only until
// covers that whole day.
func (f Filters) DateRange() (since, until time.Time, err error) {
	if since, err = f.Time(FilterSince); err != nil {
		return time.Time{}, time.Time{}, err
	}
	until, dateOnly, err := f.parseTime(FilterUntil)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if dateOnly {
		until = until.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return since, until, nil
}

// Validate checks the values of the shared filter keys
func (f Filters) Validate() error {
	if _, err := f.Time(FilterSince); err != nil {
		return NewInvalidQueryError("filter %s: %v", FilterSince, err)
	}
	if _, err := f.Time(FilterUntil); err != nil {
		return NewInvalidQueryError("filter %s: %v", FilterUntil, err)
	}
	since, until, err := f.DateRange()
	if err != nil {
		return NewInvalidQueryError("%v", err)
	}
	if !since.IsZero() && !until.IsZero() && since.After(until) {
		return NewInvalidQueryError("filter %s is after %s", FilterSince, FilterUntil)
	}
	return nil
}

// Canonical renders the filters as a stable string, used for cache keys and logs
func (f Filters) Canonical() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(f.Get(k))
	}
	return b.String()
}

// NormalizePath converts a file path into the slash separated form used for
// code dedup keys and path glob filters
func NormalizePath(p string) string {
	return normalizePath(p)
}

func normalizePath(p string) string {
	p = path.Clean(filepath.ToSlash(strings.TrimSpace(p)))
	return strings.TrimPrefix(p, "./")
}
