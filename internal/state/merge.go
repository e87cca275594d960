package state

import "strconv"

// MergeResult is the outcome of folding one delta into a state tree.
type MergeResult struct {
	// State is the merged tree. It is a fresh deep copy; neither input is
	// mutated and the result shares no memory with them.
	State Tree

	// Changed lists the dotted leaf paths whose resolved value differs from
	// the prior state, in lexical order. Empty for a no-op delta (heartbeat).
	Changed []string

	// Conflicts lists paths where the delta's shape was incompatible with the
	// existing value (leaf where an object was, or vice versa). The new shape
	// wins; callers should log these.
	Conflicts []string
}

// Merge applies a partial-update delta onto a state tree.
//
// Keys absent from the delta are left untouched. An explicit null clears the
// key. Objects merge recursively, lists element-by-index (a longer delta list
// replaces the old list wholesale), and scalar leaves are last-write-wins.
//
// Merge is idempotent: Merge(Merge(s, d).State, d) yields the same state with
// no changed paths.
func Merge(old, delta Tree) MergeResult {
	m := &merger{changed: pathSet{}, conflicts: pathSet{}}

	result := DeepCopy(old)
	if result == nil {
		result = Tree{}
	}
	m.mergeObject(result, delta, "")

	return MergeResult{
		State:     result,
		Changed:   m.changed.sorted(),
		Conflicts: m.conflicts.sorted(),
	}
}

// merger accumulates changed and conflicting paths during a merge walk.
type merger struct {
	changed   pathSet
	conflicts pathSet
}

// mergeObject merges delta keys into dst, which must already be a deep copy
// owned by the merge (it is mutated in place).
func (m *merger) mergeObject(dst, delta Tree, prefix string) {
	for key, dv := range delta {
		path := joinPath(prefix, key)
		existing, exists := dst[key]

		// Explicit null clears the key.
		if dv == nil {
			if exists {
				m.recordLeaves(path, existing)
				delete(dst, key)
			}
			continue
		}

		dst[key] = m.mergeValue(existing, exists, dv, path)
	}
}

// mergeValue merges a single delta value onto an existing value and returns
// the merged result. existing must be owned by the merge.
func (m *merger) mergeValue(existing any, exists bool, dv any, path string) any {
	switch dval := dv.(type) {
	case map[string]any:
		sub, isObject := existing.(map[string]any)
		if !isObject {
			if exists {
				// Shape conflict: the new object replaces the old leaf/list.
				m.conflicts.add(path)
				m.recordLeaves(path, existing)
			}
			sub = make(map[string]any, len(dval))
		}
		m.mergeObject(sub, dval, path)
		return sub

	case []any:
		return m.mergeList(existing, exists, dval, path)

	default:
		if exists {
			switch existing.(type) {
			case map[string]any, []any:
				m.conflicts.add(path)
				m.recordLeaves(path, existing)
			default:
				if leafEqual(existing, dval) {
					return dval
				}
			}
		}
		m.changed.add(path)
		return dval
	}
}

// mergeList applies list merge rules: element-by-index when the delta fits
// within the existing list, wholesale replacement when it is longer (the
// device re-announced the whole collection, e.g. an AMS unit change).
func (m *merger) mergeList(existing any, exists bool, dval []any, path string) any {
	oldList, isList := existing.([]any)
	if exists && !isList {
		m.conflicts.add(path)
	}

	if !isList || len(dval) > len(oldList) {
		replacement, _ := deepCopyValue(dval).([]any)
		if exists {
			m.diffAny(path, existing, replacement)
		} else {
			m.recordLeaves(path, replacement)
		}
		return replacement
	}

	for i, ev := range dval {
		elemPath := joinPath(path, strconv.Itoa(i))
		if ev == nil {
			if oldList[i] != nil {
				m.recordLeaves(elemPath, oldList[i])
				oldList[i] = nil
			}
			continue
		}
		oldList[i] = m.mergeValue(oldList[i], true, ev, elemPath)
	}
	return oldList
}

// recordLeaves marks every leaf path under v as changed. Used when a subtree
// appears, disappears, or is replaced by an incompatible shape.
func (m *merger) recordLeaves(path string, v any) {
	switch val := v.(type) {
	case map[string]any:
		for k, sub := range val {
			m.recordLeaves(joinPath(path, k), sub)
		}
	case []any:
		for i, sub := range val {
			m.recordLeaves(joinPath(path, strconv.Itoa(i)), sub)
		}
	default:
		m.changed.add(path)
	}
}

// diffAny records leaf paths whose resolution differs between old and new.
// Used for wholesale replacements where additive merge rules do not apply.
func (m *merger) diffAny(path string, old, newVal any) {
	switch nv := newVal.(type) {
	case map[string]any:
		ov, ok := old.(map[string]any)
		if !ok {
			m.recordLeaves(path, old)
			m.recordLeaves(path, newVal)
			return
		}
		for k, v := range nv {
			p := joinPath(path, k)
			if o, exists := ov[k]; exists {
				m.diffAny(p, o, v)
			} else {
				m.recordLeaves(p, v)
			}
		}
		for k, o := range ov {
			if _, exists := nv[k]; !exists {
				m.recordLeaves(joinPath(path, k), o)
			}
		}

	case []any:
		ov, ok := old.([]any)
		if !ok {
			m.recordLeaves(path, old)
			m.recordLeaves(path, newVal)
			return
		}
		for i := 0; i < len(nv) || i < len(ov); i++ {
			p := joinPath(path, strconv.Itoa(i))
			switch {
			case i >= len(ov):
				m.recordLeaves(p, nv[i])
			case i >= len(nv):
				m.recordLeaves(p, ov[i])
			default:
				m.diffAny(p, ov[i], nv[i])
			}
		}

	default:
		switch old.(type) {
		case map[string]any, []any:
			m.recordLeaves(path, old)
			m.changed.add(path)
		default:
			if !leafEqual(old, newVal) {
				m.changed.add(path)
			}
		}
	}
}
