package state

import (
	"sort"
	"strconv"
	"strings"
)

// Tree is a printer state tree decoded from JSON.
// Values are objects (map[string]any), lists ([]any), or scalar leaves.
type Tree = map[string]any

// DeepCopy creates a complete independent copy of a state tree.
// Nested objects and lists are recursively cloned so modifications to the
// copy do not affect the original. Snapshot isolation depends on this.
func DeepCopy(t Tree) Tree {
	if t == nil {
		return nil
	}
	cpy := make(Tree, len(t))
	for k, v := range t {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested objects and lists.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return DeepCopy(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Scalars (string, bool, float64, nil) are safe to copy by value.
		return v
	}
}

// Leaf resolves a dotted path against a tree and returns the scalar leaf at
// that position. List elements are addressed by decimal index ("slots.1.temp").
// Returns false if the path does not exist or resolves to a non-leaf.
func Leaf(t Tree, path string) (any, bool) {
	var current any = t
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	switch current.(type) {
	case map[string]any, []any:
		return nil, false
	default:
		return current, true
	}
}

// Number converts a scalar leaf to float64 if it is numeric.
// JSON decoding produces float64, but trees built in code may carry ints.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}

// leafEqual compares two scalar leaves. Numeric leaves compare by value so a
// literal 210 matches a decoded 210.0.
func leafEqual(a, b any) bool {
	if an, ok := Number(a); ok {
		bn, bok := Number(b)
		return bok && an == bn
	}
	return a == b
}

// joinPath appends a path segment to a dotted prefix.
func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// pathSet accumulates dotted paths with deduplication.
type pathSet map[string]struct{}

func (s pathSet) add(path string) {
	s[path] = struct{}{}
}

// sorted returns the accumulated paths in lexical order, or nil if empty.
func (s pathSet) sorted() []string {
	if len(s) == 0 {
		return nil
	}
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
