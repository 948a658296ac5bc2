package sink

import (
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/render"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// ErrStaleHandle is returned when an operation names a handle that was
// removed or never created by this sink.
var ErrStaleHandle = stderrors.New("sink: stale or unknown handle")

// Node is one object in a Memory tree. Handles returned by Memory are
// *Node values.
type Node struct {
	kind     vdom.VKind
	tag      string
	attrs    vdom.Attrs
	text     string
	parent   *Node
	children []*Node
}

// Kind returns the node kind.
func (n *Node) Kind() vdom.VKind { return n.kind }

// Tag returns the element tag; empty for text nodes and the root.
func (n *Node) Tag() string { return n.tag }

// Text returns the text content of a text node.
func (n *Node) Text() string { return n.text }

// Attrs returns a copy of the element's attributes.
func (n *Node) Attrs() vdom.Attrs { return n.attrs.Clone() }

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

func (n *Node) indexOf(child *Node) int {
	return slices.Index(n.children, child)
}

func (n *Node) detach(child *Node) {
	if i := n.indexOf(child); i >= 0 {
		n.children = slices.Delete(n.children, i, i+1)
	}
}

// insert puts child before before, or last when before is nil.
func (n *Node) insert(child, before *Node) {
	child.parent = n
	if before == nil {
		n.children = append(n.children, child)
		return
	}
	n.children = slices.Insert(n.children, n.indexOf(before), child)
}

// Memory is a reconcile.Sink holding an in-memory display tree. It tracks
// every live handle and rejects operations on anything else, which makes it
// the reference sink for tests and the server's mirror.
//
// A Memory always has a root container; a nil parent in Create means the
// root. Memory is safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	root *Node
	live mapset.Set[*Node]
}

var _ reconcile.Sink = (*Memory)(nil)

// NewMemory creates an empty memory sink.
func NewMemory() *Memory {
	root := &Node{kind: vdom.KindElement}
	return &Memory{
		root: root,
		live: mapset.NewThreadUnsafeSet(root),
	}
}

// Root returns the root container handle.
func (m *Memory) Root() *Node {
	return m.root
}

// Len returns the number of live nodes, not counting the root.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live.Cardinality() - 1
}

// Live reports whether h is a live handle of this sink.
func (m *Memory) Live(h reconcile.Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := h.(*Node)
	return ok && m.live.Contains(n)
}

func (m *Memory) lookup(h reconcile.Handle, what string) (*Node, error) {
	n, ok := h.(*Node)
	if ok && m.live.Contains(n) {
		return n, nil
	}
	return nil, staleHandle(what, h)
}

func staleHandle(what string, h reconcile.Handle) error {
	return errors.New("E002").
		WithDetail(fmt.Sprintf("%s handle %v is not live", what, h)).
		Wrap(ErrStaleHandle)
}

// Create implements reconcile.Sink.
func (m *Memory) Create(node *vdom.VNode, parent, before reconcile.Handle) (reconcile.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.root
	if parent != nil {
		var err error
		if p, err = m.lookup(parent, "parent"); err != nil {
			return nil, err
		}
	}
	if p.kind != vdom.KindElement {
		return nil, fmt.Errorf("sink: create under a text node")
	}

	var b *Node
	if before != nil {
		var err error
		if b, err = m.lookup(before, "before"); err != nil {
			return nil, err
		}
		if b.parent != p {
			return nil, fmt.Errorf("sink: before handle is not a child of parent")
		}
	}

	n := &Node{kind: node.Kind}
	switch node.Kind {
	case vdom.KindElement:
		n.tag = node.Tag
		n.attrs = node.Attrs.Clone()
	case vdom.KindText:
		n.text = node.Text
	default:
		return nil, fmt.Errorf("sink: unknown node kind %d", node.Kind)
	}

	p.insert(n, b)
	m.live.Add(n)
	return n, nil
}

// Remove implements reconcile.Sink. The whole subtree stops being live.
func (m *Memory) Remove(h reconcile.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.lookup(h, "remove")
	if err != nil {
		return err
	}
	if n == m.root {
		return fmt.Errorf("sink: cannot remove the root")
	}
	n.parent.detach(n)
	m.forget(n)
	return nil
}

func (m *Memory) forget(n *Node) {
	m.live.Remove(n)
	for _, c := range n.children {
		m.forget(c)
	}
}

// Move implements reconcile.Sink.
func (m *Memory) Move(h, before reconcile.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.lookup(h, "move")
	if err != nil {
		return err
	}
	if n == m.root {
		return fmt.Errorf("sink: cannot move the root")
	}

	var b *Node
	if before != nil {
		if b, err = m.lookup(before, "before"); err != nil {
			return err
		}
		if b.parent != n.parent {
			return fmt.Errorf("sink: move anchor is not a sibling")
		}
		if b == n {
			return nil
		}
	}

	p := n.parent
	p.detach(n)
	p.insert(n, b)
	return nil
}

// SetAttribute implements reconcile.Sink.
func (m *Memory) SetAttribute(h reconcile.Handle, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.lookup(h, "set attribute")
	if err != nil {
		return err
	}
	if n.kind != vdom.KindElement {
		return fmt.Errorf("sink: set attribute %q on a text node", name)
	}
	n.attrs = n.attrs.Set(name, value)
	return nil
}

// ClearAttribute implements reconcile.Sink.
func (m *Memory) ClearAttribute(h reconcile.Handle, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.lookup(h, "clear attribute")
	if err != nil {
		return err
	}
	if n.kind != vdom.KindElement {
		return fmt.Errorf("sink: clear attribute %q on a text node", name)
	}
	n.attrs = n.attrs.Delete(name)
	return nil
}

// SetText implements reconcile.Sink.
func (m *Memory) SetText(h reconcile.Handle, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.lookup(h, "set text")
	if err != nil {
		return err
	}
	if n.kind != vdom.KindText {
		return fmt.Errorf("sink: set text on <%s>", n.tag)
	}
	n.text = value
	return nil
}

// Snapshot returns the tree under the root as a VNode. With exactly one
// child under the root that child is returned; with none, nil. Several
// children are wrapped in an element with an empty tag. Keys are not part of
// the output, so snapshots are unkeyed.
func (m *Memory) Snapshot() *vdom.VNode {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch len(m.root.children) {
	case 0:
		return nil
	case 1:
		return snapshot(m.root.children[0])
	default:
		return snapshot(m.root)
	}
}

// SnapshotOf returns the subtree rooted at h.
func (m *Memory) SnapshotOf(h reconcile.Handle) (*vdom.VNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.lookup(h, "snapshot")
	if err != nil {
		return nil, err
	}
	return snapshot(n), nil
}

func snapshot(n *Node) *vdom.VNode {
	v := &vdom.VNode{Kind: n.kind}
	switch n.kind {
	case vdom.KindText:
		v.Text = n.text
	case vdom.KindElement:
		v.Tag = n.tag
		v.Attrs = n.attrs.Clone()
		for _, c := range n.children {
			v.Children = append(v.Children, snapshot(c))
		}
	}
	return v
}

// HTML renders everything under the root.
func (m *Memory) HTML(pretty bool) (string, error) {
	m.mu.Lock()
	nodes := make([]*vdom.VNode, 0, len(m.root.children))
	for _, c := range m.root.children {
		nodes = append(nodes, snapshot(c))
	}
	m.mu.Unlock()

	var b strings.Builder
	r := render.NewRenderer(render.RendererConfig{Pretty: pretty})
	if err := r.RenderAll(&b, nodes); err != nil {
		return "", err
	}
	return b.String(), nil
}
