package protocol

import (
	"fmt"
	"sync"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/sink"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Mirror rebuilds a patch stream into a sink.Memory. The server keeps one
// per mount as the source for HTML and sync frames; watchers keep one per
// connection.
type Mirror struct {
	mu    sync.Mutex
	mem   *sink.Memory
	nodes map[ID]*sink.Node
	ids   map[*sink.Node]ID
	seq   uint64
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	m := &Mirror{}
	m.reset()
	return m
}

func (m *Mirror) reset() {
	m.mem = sink.NewMemory()
	m.nodes = make(map[ID]*sink.Node)
	m.ids = make(map[*sink.Node]ID)
	m.seq = 0
}

// Memory returns the backing memory sink.
func (m *Mirror) Memory() *sink.Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mem
}

// Seq returns the sequence number of the last applied batch.
func (m *Mirror) Seq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// Snapshot returns the mirrored tree. See sink.Memory.Snapshot.
func (m *Mirror) Snapshot() *vdom.VNode {
	return m.Memory().Snapshot()
}

// HTML renders the mirrored tree.
func (m *Mirror) HTML(pretty bool) (string, error) {
	return m.Memory().HTML(pretty)
}

// Apply applies one batch. Patches naming an ID the mirror has not seen are
// E021 errors; the patches before the failing one stay applied.
func (m *Mirror) Apply(pf *PatchesFrame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range pf.Patches {
		if err := m.apply(&pf.Patches[i]); err != nil {
			return err
		}
	}
	m.seq = pf.Seq
	return nil
}

// Sync replaces the mirrored tree with the one described by a sync batch.
func (m *Mirror) Sync(pf *PatchesFrame) error {
	m.mu.Lock()
	m.reset()
	m.mu.Unlock()
	return m.Apply(pf)
}

// ApplyFrame dispatches a decoded FrameSync or FramePatches frame.
func (m *Mirror) ApplyFrame(f *Frame) error {
	pf, err := DecodePatches(f.Payload)
	if err != nil {
		return err
	}
	switch f.Type {
	case FrameSync:
		return m.Sync(pf)
	case FramePatches:
		return m.Apply(pf)
	default:
		return fmt.Errorf("protocol: %w: %s frame carries no patches", ErrInvalidFrameType, f.Type)
	}
}

func unknownID(p *Patch, id ID) error {
	return errors.New("E021").WithDetail(fmt.Sprintf("%s references unknown node #%d", p.Op, id))
}

func (m *Mirror) lookup(p *Patch, id ID) (*sink.Node, error) {
	if id == RootID {
		return nil, nil
	}
	n, ok := m.nodes[id]
	if !ok {
		return nil, unknownID(p, id)
	}
	return n, nil
}

// target resolves the patch's ID, which must name a created node.
func (m *Mirror) target(p *Patch) (*sink.Node, error) {
	n, ok := m.nodes[p.ID]
	if !ok {
		return nil, unknownID(p, p.ID)
	}
	return n, nil
}

func (m *Mirror) apply(p *Patch) error {
	switch p.Op {
	case reconcile.OpCreate:
		return m.create(p)
	case reconcile.OpRemove:
		n, err := m.target(p)
		if err != nil {
			return err
		}
		m.forget(n)
		return m.mem.Remove(n)
	case reconcile.OpMove:
		n, err := m.target(p)
		if err != nil {
			return err
		}
		before, err := m.lookup(p, p.Before)
		if err != nil {
			return err
		}
		return m.mem.Move(n, handle(before))
	case reconcile.OpSetAttribute:
		n, err := m.target(p)
		if err != nil {
			return err
		}
		return m.mem.SetAttribute(n, p.Name, p.Value)
	case reconcile.OpClearAttribute:
		n, err := m.target(p)
		if err != nil {
			return err
		}
		return m.mem.ClearAttribute(n, p.Name)
	case reconcile.OpSetText:
		n, err := m.target(p)
		if err != nil {
			return err
		}
		return m.mem.SetText(n, p.Value)
	default:
		return fmt.Errorf("%w: 0x%02x", ErrInvalidPatchOp, byte(p.Op))
	}
}

func (m *Mirror) create(p *Patch) error {
	if p.ID == RootID {
		return errors.New("E020").WithDetail("Create cannot use the root ID")
	}
	if _, dup := m.nodes[p.ID]; dup {
		return errors.New("E020").WithDetail(fmt.Sprintf("node #%d already exists", p.ID))
	}
	parent, err := m.lookup(p, p.Parent)
	if err != nil {
		return err
	}
	before, err := m.lookup(p, p.Before)
	if err != nil {
		return err
	}

	node := &vdom.VNode{Kind: p.Kind, Tag: p.Tag, Attrs: p.Attrs, Text: p.Value}
	h, err := m.mem.Create(node, handle(parent), handle(before))
	if err != nil {
		return err
	}
	n := h.(*sink.Node)
	m.nodes[p.ID] = n
	m.ids[n] = p.ID
	return nil
}

// forget drops the IDs of n's subtree.
func (m *Mirror) forget(n *sink.Node) {
	delete(m.nodes, m.ids[n])
	delete(m.ids, n)
	for _, c := range n.Children() {
		m.forget(c)
	}
}

// handle keeps a nil *sink.Node from becoming a non-nil interface.
func handle(n *sink.Node) reconcile.Handle {
	if n == nil {
		return nil
	}
	return n
}

// SyncPatches returns Create patches that rebuild the mirrored tree with
// the same IDs, parents before children, siblings in order. Together with
// Seq they form the sync frame for a late joiner.
func (m *Mirror) SyncPatches() *PatchesFrame {
	m.mu.Lock()
	defer m.mu.Unlock()

	pf := &PatchesFrame{Seq: m.seq}
	var walk func(parent ID, n *sink.Node)
	walk = func(parent ID, n *sink.Node) {
		id := m.ids[n]
		p := Patch{Op: reconcile.OpCreate, ID: id, Parent: parent, Kind: n.Kind()}
		if n.Kind() == vdom.KindText {
			p.Value = n.Text()
		} else {
			p.Tag = n.Tag()
			p.Attrs = n.Attrs()
		}
		pf.Patches = append(pf.Patches, p)
		for _, c := range n.Children() {
			walk(id, c)
		}
	}
	for _, c := range m.mem.Root().Children() {
		walk(RootID, c)
	}
	return pf
}

// PatchesFrameOf wraps a batch in a FramePatches frame.
func PatchesFrameOf(pf *PatchesFrame) *Frame {
	return NewFrame(FramePatches, EncodePatches(pf))
}

// SyncFrameOf wraps a batch in a FrameSync frame.
func SyncFrameOf(pf *PatchesFrame) *Frame {
	return NewFrame(FrameSync, EncodePatches(pf))
}
