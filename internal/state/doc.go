// Package state implements the partial-update merge engine for printer state.
//
// Printers report state as deltas: JSON objects carrying only the fields that
// changed since the previous report. This package folds those deltas into a
// canonical per-printer state tree and reports which leaf paths changed, so
// downstream consumers can filter out heartbeats that carry no new information.
//
// # Merge Semantics
//
// State trees are plain JSON shapes: objects (map[string]any), lists ([]any),
// and scalar leaves. Merge applies explicit rules per shape:
//
//   - Object values merge recursively; keys absent from the delta are untouched.
//   - An explicit null clears the key from the result.
//   - Lists merge element-by-element by index, unless the delta list is longer
//     than the existing one, in which case it replaces the list wholesale.
//   - Scalar leaves are last-write-wins, keyed by arrival order.
//   - A shape conflict (leaf where an object was, or vice versa) is resolved in
//     favour of the new shape, and the path is reported as a conflict.
//
// Merge is idempotent: applying the same delta twice yields the same state.
//
// # Usage
//
//	res := state.Merge(current, delta)
//	if len(res.Changed) > 0 {
//	    notify(res.State, res.Changed)
//	}
//
// Inputs are never mutated; Merge returns a fresh deep copy.
package state
