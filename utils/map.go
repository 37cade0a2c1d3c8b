// Package utils provides small generic containers shared by the passes.
package utils

// Hashable is the interface map keys must implement. HashCode is a
// structural hash; EqualI resolves collisions.
type Hashable interface {
	HashCode() uint64
	EqualI(other Hashable) bool
}

// Map is a hash map with explicit collision buckets, for key types
// whose equality is structural rather than comparable.
type Map[V any] map[uint64][]mapEntry[V]

type mapEntry[V any] struct {
	k Hashable
	v V
}

// NewMap allocates an empty map.
func NewMap[V any]() Map[V] {
	return make(Map[V])
}

// Find returns the value stored under k.
func (m Map[V]) Find(k Hashable) (V, bool) {
	for _, x := range m[k.HashCode()] {
		if x.k.EqualI(k) {
			return x.v, true
		}
	}
	var zero V
	return zero, false
}

// Set stores v under k, replacing an existing entry.
func (m Map[V]) Set(k Hashable, v V) {
	h := k.HashCode()
	s := m[h]
	for i := range s {
		if s[i].k.EqualI(k) {
			s[i].v = v
			return
		}
	}
	m[h] = append(s, mapEntry[V]{k: k, v: v})
}

// Len counts the stored entries.
func (m Map[V]) Len() int {
	n := 0
	for _, s := range m {
		n += len(s)
	}
	return n
}

// Clear drops all entries but keeps the allocated buckets map.
func (m Map[V]) Clear() {
	for h := range m {
		delete(m, h)
	}
}
