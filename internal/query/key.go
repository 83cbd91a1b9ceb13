// Package query is the client-side cache of remote reads.
//
// Reads are identified by a Key. Results are kept for a stale time, identical
// in-flight reads are collapsed, and invalidation by key prefix forces the
// next read of every matching key to go back to the API. Each key carries a
// generation counter: a read started before an invalidation never lands in
// the cache after it.
package query

import "strings"

// Key identifies a cached read. The first element is the resource tag
// ("transactions", "metrics", ...), the rest are its parameters in order.
type Key []string

// Resource returns the resource tag.
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether k starts with every element of prefix.
// An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal reports element-wise equality.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

// String renders the key for map lookups. Elements are separated by a
// control character that cannot appear in URL-derived values.
func (k Key) String() string {
	return strings.Join(k, "\x1f")
}
