package protocol

import (
	"fmt"
	"sync"

	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// IDAllocator hands out node IDs. IDs start at 1; RootID is reserved.
type IDAllocator struct {
	mu   sync.Mutex
	next ID
}

// Next returns a fresh ID.
func (a *IDAllocator) Next() ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	return a.next
}

// Last returns the most recently allocated ID, or RootID if none.
func (a *IDAllocator) Last() ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// Sink is a reconcile.Sink that turns mutations into patches. Its handles
// are ID values; a nil handle means RootID. Patches accumulate until Flush.
type Sink struct {
	ids *IDAllocator

	mu      sync.Mutex
	seq     uint64
	pending []Patch
}

var _ reconcile.Sink = (*Sink)(nil)

// NewSink creates a sink. A nil allocator gets a private one.
func NewSink(ids *IDAllocator) *Sink {
	if ids == nil {
		ids = &IDAllocator{}
	}
	return &Sink{ids: ids}
}

// Pending returns the number of buffered patches.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Seq returns the sequence number of the last flushed batch.
func (s *Sink) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Flush returns the buffered patches as the next sequenced batch, or nil
// when nothing is buffered.
func (s *Sink) Flush() *PatchesFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	s.seq++
	pf := &PatchesFrame{Seq: s.seq, Patches: s.pending}
	s.pending = nil
	return pf
}

// Discard drops buffered patches without consuming a sequence number.
func (s *Sink) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

func (s *Sink) push(p Patch) {
	s.mu.Lock()
	s.pending = append(s.pending, p)
	s.mu.Unlock()
}

func toID(h reconcile.Handle) (ID, error) {
	switch v := h.(type) {
	case nil:
		return RootID, nil
	case ID:
		return v, nil
	default:
		return 0, fmt.Errorf("protocol: handle %v (%T) is not an ID", h, h)
	}
}

// Create implements reconcile.Sink.
func (s *Sink) Create(node *vdom.VNode, parent, before reconcile.Handle) (reconcile.Handle, error) {
	p := Patch{Op: reconcile.OpCreate, Kind: node.Kind}
	var err error
	if p.Parent, err = toID(parent); err != nil {
		return nil, err
	}
	if p.Before, err = toID(before); err != nil {
		return nil, err
	}

	switch node.Kind {
	case vdom.KindElement:
		p.Tag = node.Tag
		p.Attrs = node.Attrs.Clone()
	case vdom.KindText:
		p.Value = node.Text
	default:
		return nil, fmt.Errorf("protocol: %w: %d", ErrInvalidNodeKind, node.Kind)
	}

	p.ID = s.ids.Next()
	s.push(p)
	return p.ID, nil
}

// Remove implements reconcile.Sink.
func (s *Sink) Remove(h reconcile.Handle) error {
	id, err := toID(h)
	if err != nil {
		return err
	}
	s.push(Patch{Op: reconcile.OpRemove, ID: id})
	return nil
}

// Move implements reconcile.Sink.
func (s *Sink) Move(h, before reconcile.Handle) error {
	id, err := toID(h)
	if err != nil {
		return err
	}
	b, err := toID(before)
	if err != nil {
		return err
	}
	s.push(Patch{Op: reconcile.OpMove, ID: id, Before: b})
	return nil
}

// SetAttribute implements reconcile.Sink.
func (s *Sink) SetAttribute(h reconcile.Handle, name, value string) error {
	id, err := toID(h)
	if err != nil {
		return err
	}
	s.push(Patch{Op: reconcile.OpSetAttribute, ID: id, Name: name, Value: value})
	return nil
}

// ClearAttribute implements reconcile.Sink.
func (s *Sink) ClearAttribute(h reconcile.Handle, name string) error {
	id, err := toID(h)
	if err != nil {
		return err
	}
	s.push(Patch{Op: reconcile.OpClearAttribute, ID: id, Name: name})
	return nil
}

// SetText implements reconcile.Sink.
func (s *Sink) SetText(h reconcile.Handle, value string) error {
	id, err := toID(h)
	if err != nil {
		return err
	}
	s.push(Patch{Op: reconcile.OpSetText, ID: id, Value: value})
	return nil
}
