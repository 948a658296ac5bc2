package sink

import (
	"fmt"

	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Pair is the handle type of a Tee: the handles of the same node in both
// sinks.
type Pair struct {
	A, B reconcile.Handle
}

// String implements fmt.Stringer.
func (p Pair) String() string {
	return fmt.Sprintf("(%v, %v)", p.A, p.B)
}

// Tee is a reconcile.Sink that applies every mutation to two sinks, A first.
// A failure in B after A succeeded leaves the sinks diverged.
type Tee struct {
	a, b reconcile.Sink
}

var _ reconcile.Sink = (*Tee)(nil)

// NewTee creates a sink that writes to a and b.
func NewTee(a, b reconcile.Sink) *Tee {
	return &Tee{a: a, b: b}
}

// split turns a Tee handle into the two inner handles. nil stays nil in both.
func split(h reconcile.Handle) (reconcile.Handle, reconcile.Handle, error) {
	switch p := h.(type) {
	case nil:
		return nil, nil, nil
	case Pair:
		return p.A, p.B, nil
	default:
		return nil, nil, fmt.Errorf("sink: tee handle has type %T", h)
	}
}

// Create implements reconcile.Sink.
func (t *Tee) Create(node *vdom.VNode, parent, before reconcile.Handle) (reconcile.Handle, error) {
	pa, pb, err := split(parent)
	if err != nil {
		return nil, err
	}
	ba, bb, err := split(before)
	if err != nil {
		return nil, err
	}
	ha, err := t.a.Create(node, pa, ba)
	if err != nil {
		return nil, err
	}
	hb, err := t.b.Create(node, pb, bb)
	if err != nil {
		return nil, err
	}
	return Pair{A: ha, B: hb}, nil
}

// Remove implements reconcile.Sink.
func (t *Tee) Remove(h reconcile.Handle) error {
	ha, hb, err := split(h)
	if err != nil {
		return err
	}
	if err := t.a.Remove(ha); err != nil {
		return err
	}
	return t.b.Remove(hb)
}

// Move implements reconcile.Sink.
func (t *Tee) Move(h, before reconcile.Handle) error {
	ha, hb, err := split(h)
	if err != nil {
		return err
	}
	ba, bb, err := split(before)
	if err != nil {
		return err
	}
	if err := t.a.Move(ha, ba); err != nil {
		return err
	}
	return t.b.Move(hb, bb)
}

// SetAttribute implements reconcile.Sink.
func (t *Tee) SetAttribute(h reconcile.Handle, name, value string) error {
	ha, hb, err := split(h)
	if err != nil {
		return err
	}
	if err := t.a.SetAttribute(ha, name, value); err != nil {
		return err
	}
	return t.b.SetAttribute(hb, name, value)
}

// ClearAttribute implements reconcile.Sink.
func (t *Tee) ClearAttribute(h reconcile.Handle, name string) error {
	ha, hb, err := split(h)
	if err != nil {
		return err
	}
	if err := t.a.ClearAttribute(ha, name); err != nil {
		return err
	}
	return t.b.ClearAttribute(hb, name)
}

// SetText implements reconcile.Sink.
func (t *Tee) SetText(h reconcile.Handle, value string) error {
	ha, hb, err := split(h)
	if err != nil {
		return err
	}
	if err := t.a.SetText(ha, value); err != nil {
		return err
	}
	return t.b.SetText(hb, value)
}
