package reconcile

import (
	"fmt"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Handle is an opaque reference to an object created by a Sink.
// nil means "absent".
type Handle = any

// Sink is the output structure the Reconciler mutates.
//
// Create makes exactly one output object for node (an element with its
// attributes, or a text node) under parent, positioned before the sibling
// before, or last when before is nil. It must not look at node.Children;
// the Reconciler creates children with further Create calls.
//
// Remove detaches h and its whole subtree. The Reconciler never passes a
// removed handle back to the sink within the same pass.
type Sink interface {
	Create(node *vdom.VNode, parent, before Handle) (Handle, error)
	Remove(h Handle) error
	Move(h, before Handle) error
	SetAttribute(h Handle, name, value string) error
	ClearAttribute(h Handle, name string) error
	SetText(h Handle, value string) error
}

// Op is the type of a mutation.
type Op uint8

const (
	OpCreate         Op = 0x01 // Create one node
	OpRemove         Op = 0x02 // Remove a subtree
	OpMove           Op = 0x03 // Move a node before a sibling
	OpSetAttribute   Op = 0x04 // Set/update attribute
	OpClearAttribute Op = 0x05 // Remove attribute
	OpSetText        Op = 0x06 // Update text content
)

// Ops lists every mutation op in wire order.
var Ops = []Op{OpCreate, OpRemove, OpMove, OpSetAttribute, OpClearAttribute, OpSetText}

// String returns the string representation of the Op.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "Create"
	case OpRemove:
		return "Remove"
	case OpMove:
		return "Move"
	case OpSetAttribute:
		return "SetAttribute"
	case OpClearAttribute:
		return "ClearAttribute"
	case OpSetText:
		return "SetText"
	default:
		return "Unknown"
	}
}

// Mutation records a single sink call.
type Mutation struct {
	Op     Op
	Handle Handle      // Target (the created handle for OpCreate)
	Parent Handle      // For OpCreate
	Before Handle      // For OpCreate and OpMove; nil = append
	Node   *vdom.VNode // For OpCreate
	Name   string      // Attribute name
	Value  string      // Attribute value or text
}

// String formats the mutation for logs and CLI output.
func (m Mutation) String() string {
	switch m.Op {
	case OpCreate:
		what := "#text"
		if m.Node != nil && m.Node.Kind == vdom.KindElement {
			what = "<" + m.Node.Tag + ">"
		}
		if m.Node != nil && m.Node.Key.IsSet() {
			what += " key=" + m.Node.Key.String()
		}
		return fmt.Sprintf("Create %s %v parent=%v before=%v", what, m.Handle, m.Parent, m.Before)
	case OpRemove:
		return fmt.Sprintf("Remove %v", m.Handle)
	case OpMove:
		return fmt.Sprintf("Move %v before=%v", m.Handle, m.Before)
	case OpSetAttribute:
		return fmt.Sprintf("SetAttribute %v %s=%q", m.Handle, m.Name, m.Value)
	case OpClearAttribute:
		return fmt.Sprintf("ClearAttribute %v %s", m.Handle, m.Name)
	case OpSetText:
		return fmt.Sprintf("SetText %v %q", m.Handle, m.Value)
	default:
		return "Unknown"
	}
}

// Stats counts the mutations emitted by one pass.
type Stats struct {
	Creates    int `json:"creates"`
	Removes    int `json:"removes"`
	Moves      int `json:"moves"`
	SetAttrs   int `json:"set_attrs"`
	ClearAttrs int `json:"clear_attrs"`
	SetTexts   int `json:"set_texts"`

	// Visited is the number of previous nodes matched and patched in place.
	Visited int `json:"visited"`
}

// Count returns the number of mutations of the given op.
func (s Stats) Count(op Op) int {
	switch op {
	case OpCreate:
		return s.Creates
	case OpRemove:
		return s.Removes
	case OpMove:
		return s.Moves
	case OpSetAttribute:
		return s.SetAttrs
	case OpClearAttribute:
		return s.ClearAttrs
	case OpSetText:
		return s.SetTexts
	default:
		return 0
	}
}

// Total returns the number of mutations emitted.
func (s Stats) Total() int {
	return s.Creates + s.Removes + s.Moves + s.SetAttrs + s.ClearAttrs + s.SetTexts
}

func (s *Stats) add(op Op) {
	switch op {
	case OpCreate:
		s.Creates++
	case OpRemove:
		s.Removes++
	case OpMove:
		s.Moves++
	case OpSetAttribute:
		s.SetAttrs++
	case OpClearAttribute:
		s.ClearAttrs++
	case OpSetText:
		s.SetTexts++
	}
}
