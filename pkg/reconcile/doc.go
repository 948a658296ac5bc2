// Package reconcile brings a live output structure from one declarative tree
// to the next with keyed children matching.
//
// The output structure is reached only through the Sink interface: create a
// node, remove a node, move a node before a sibling, set or clear an
// attribute, set text. The Reconciler never inspects sink handles.
//
// # Reconciling
//
//	r := reconcile.New(sink)
//	inst, stats, err := r.Reconcile(ctx, root, next, prev)
//
// prev is the Instance returned by the previous call (nil on first render).
// An Instance pairs a read-only VNode tree with the sink handle of every
// node in it. The returned Instance is the prev of the next call.
//
// # Children
//
// Children are matched by key when the next child carries one, and by
// position otherwise. Matched children of the same kind and tag are patched
// in place; a single forward pass with a last-placed-index watermark decides
// which of them must move. Unmatched previous children are removed,
// unmatched next children are created.
//
// # Mounts
//
// A Mount owns a sink parent handle and the last applied Instance, and
// serializes renders on it. Middleware wraps every render for metrics and
// tracing.
//
// # Errors
//
// Sink errors abort the pass and are returned wrapped with the operation
// name; mutations already applied are not rolled back. Duplicate sibling keys
// are undefined behavior unless WithStrictKeys is set, in which case they are
// reported as ErrInvariantViolation before any mutation is emitted.
package reconcile
