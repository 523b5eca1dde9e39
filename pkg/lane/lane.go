// Package lane models the named channels that carry records between stages.
package lane

import (
	"strings"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// Set is an immutable set of lane names with sorted access.
// The zero value is an empty set.
type Set struct {
	inner *redblacktree.Tree
}

// NewSet builds a Set from the given names. Duplicates collapse.
func NewSet(names ...string) Set {
	tree := redblacktree.NewWithStringComparator()
	for _, n := range names {
		tree.Put(n, nil)
	}
	return Set{inner: tree}
}

func (s Set) Size() int {
	if s.inner == nil {
		return 0
	}
	return s.inner.Size()
}

func (s Set) IsEmpty() bool {
	return s.Size() == 0
}

func (s Set) Contains(name string) bool {
	if s.inner == nil {
		return false
	}
	_, ok := s.inner.Get(name)
	return ok
}

// Only returns the single lane name of a one-element set.
func (s Set) Only() (string, bool) {
	if s.Size() != 1 {
		return "", false
	}
	return s.inner.Left().Key.(string), true
}

// Values returns the lane names in ascending order.
func (s Set) Values() []string {
	if s.inner == nil {
		return nil
	}
	values := make([]string, 0, s.inner.Size())
	for _, v := range s.inner.Keys() {
		values = append(values, v.(string))
	}
	return values
}

// Intersects reports whether any lane is in both sets.
func (s Set) Intersects(other Set) bool {
	for _, v := range s.Values() {
		if other.Contains(v) {
			return true
		}
	}
	return false
}

func (s Set) String() string {
	return "[" + strings.Join(s.Values(), ", ") + "]"
}
