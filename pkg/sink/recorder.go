package sink

import (
	"sync"

	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Recorder is a reconcile.Sink that records every call as a
// reconcile.Mutation. With an inner sink it forwards each call and records
// the handles the inner sink returns; without one it hands out sequential
// integer handles starting at 1.
type Recorder struct {
	mu        sync.Mutex
	inner     reconcile.Sink
	mutations []reconcile.Mutation
	nextID    int
}

var _ reconcile.Sink = (*Recorder)(nil)

// NewRecorder creates a recorder. inner may be nil.
func NewRecorder(inner reconcile.Sink) *Recorder {
	return &Recorder{inner: inner}
}

// Mutations returns a copy of the recorded mutations in emission order.
func (r *Recorder) Mutations() []reconcile.Mutation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reconcile.Mutation(nil), r.mutations...)
}

// Ops returns the recorded op sequence.
func (r *Recorder) Ops() []reconcile.Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]reconcile.Op, len(r.mutations))
	for i, m := range r.mutations {
		ops[i] = m.Op
	}
	return ops
}

// Count returns how many mutations of op were recorded.
func (r *Recorder) Count(op reconcile.Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.mutations {
		if m.Op == op {
			n++
		}
	}
	return n
}

// Len returns the number of recorded mutations.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mutations)
}

// Reset forgets recorded mutations. Handle numbering continues.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = nil
}

func (r *Recorder) record(m reconcile.Mutation) {
	r.mu.Lock()
	r.mutations = append(r.mutations, m)
	r.mu.Unlock()
}

// Create implements reconcile.Sink.
func (r *Recorder) Create(node *vdom.VNode, parent, before reconcile.Handle) (reconcile.Handle, error) {
	var h reconcile.Handle
	if r.inner != nil {
		var err error
		if h, err = r.inner.Create(node, parent, before); err != nil {
			return nil, err
		}
	} else {
		r.mu.Lock()
		r.nextID++
		h = r.nextID
		r.mu.Unlock()
	}
	r.record(reconcile.Mutation{Op: reconcile.OpCreate, Handle: h, Parent: parent, Before: before, Node: node})
	return h, nil
}

// Remove implements reconcile.Sink.
func (r *Recorder) Remove(h reconcile.Handle) error {
	if r.inner != nil {
		if err := r.inner.Remove(h); err != nil {
			return err
		}
	}
	r.record(reconcile.Mutation{Op: reconcile.OpRemove, Handle: h})
	return nil
}

// Move implements reconcile.Sink.
func (r *Recorder) Move(h, before reconcile.Handle) error {
	if r.inner != nil {
		if err := r.inner.Move(h, before); err != nil {
			return err
		}
	}
	r.record(reconcile.Mutation{Op: reconcile.OpMove, Handle: h, Before: before})
	return nil
}

// SetAttribute implements reconcile.Sink.
func (r *Recorder) SetAttribute(h reconcile.Handle, name, value string) error {
	if r.inner != nil {
		if err := r.inner.SetAttribute(h, name, value); err != nil {
			return err
		}
	}
	r.record(reconcile.Mutation{Op: reconcile.OpSetAttribute, Handle: h, Name: name, Value: value})
	return nil
}

// ClearAttribute implements reconcile.Sink.
func (r *Recorder) ClearAttribute(h reconcile.Handle, name string) error {
	if r.inner != nil {
		if err := r.inner.ClearAttribute(h, name); err != nil {
			return err
		}
	}
	r.record(reconcile.Mutation{Op: reconcile.OpClearAttribute, Handle: h, Name: name})
	return nil
}

// SetText implements reconcile.Sink.
func (r *Recorder) SetText(h reconcile.Handle, value string) error {
	if r.inner != nil {
		if err := r.inner.SetText(h, value); err != nil {
			return err
		}
	}
	r.record(reconcile.Mutation{Op: reconcile.OpSetText, Handle: h, Value: value})
	return nil
}
