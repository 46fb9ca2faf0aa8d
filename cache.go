package compselect

import (
	"fmt"
	"sort"
)

// A candidateCache memoizes one lazily-constructed value per key,
// letting [ProblemBuilder] walk a requirement graph that is discovered
// as it goes without visiting any key twice or looping on cycles.
//
// Lookup stores the still-empty entry before calling create: if create
// recurses back into Lookup for the same key, it finds the entry
// already present and returns it as-is, partially built. Builder code
// must tolerate reading an entry whose fields are still being populated
// by an enclosing call.
type candidateCache[K comparable, V any] struct {
	entries map[K]*V
	order   []K
}

func newCandidateCache[K comparable, V any]() *candidateCache[K, V] {
	return &candidateCache[K, V]{entries: make(map[K]*V)}
}

// Lookup returns the cached entry for key, constructing it with create
// on first sight. create receives the new, zero-valued entry already
// installed in the cache so that any reentrant Lookup it triggers for
// the same key observes it instead of recursing.
func (c *candidateCache[K, V]) Lookup(key K, create func(*V)) *V {
	if v, ok := c.entries[key]; ok {
		return v
	}
	v := new(V)
	c.entries[key] = v
	c.order = append(c.order, key)
	create(v)
	return v
}

// Get returns the entry for key and whether it was present, without
// constructing anything.
func (c *candidateCache[K, V]) Get(key K) (*V, bool) {
	v, ok := c.entries[key]
	return v, ok
}

// GetExn returns the entry for key, panicking if absent. A miss means an
// earlier Lookup that should have populated the cache did not run, which
// is an invariant violation.
func (c *candidateCache[K, V]) GetExn(key K) *V {
	v, ok := c.entries[key]
	if !ok {
		panic(fmt.Sprintf("compselect: candidateCache miss for %v", key))
	}
	return v
}

// Snapshot returns the keys seen so far, in first-lookup order.
func (c *candidateCache[K, V]) Snapshot() []K {
	return append([]K(nil), c.order...)
}

// Bindings returns (key, value) pairs ordered by less rather than
// discovery order.
func (c *candidateCache[K, V]) Bindings(less func(a, b K) bool) []struct {
	Key K
	Val *V
} {
	keys := c.Snapshot()
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	out := make([]struct {
		Key K
		Val *V
	}, len(keys))
	for i, k := range keys {
		out[i] = struct {
			Key K
			Val *V
		}{Key: k, Val: c.entries[k]}
	}
	return out
}
