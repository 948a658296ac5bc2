package vdom

import (
	"fmt"
	"strconv"
	"strings"
)

// Equal reports whether a and b describe the same tree: same kind, tag, key,
// text, attribute set (order-insensitive) and children, recursively.
func Equal(a, b *VNode) bool {
	return equal(a, b, true)
}

// EqualContent is Equal without comparing keys. Keys steer reconciliation
// but are not part of the rendered output, so this is the comparison to use
// against a sink's contents.
func EqualContent(a, b *VNode) bool {
	return equal(a, b, false)
}

func equal(a, b *VNode, keys bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || (keys && a.Key != b.Key) {
		return false
	}
	switch a.Kind {
	case KindText:
		return a.Text == b.Text
	case KindElement:
		if a.Tag != b.Tag || !attrsEqual(a.Attrs, b.Attrs) {
			return false
		}
		if len(a.Children) != len(b.Children) {
			return false
		}
		for i := range a.Children {
			if !equal(a.Children[i], b.Children[i], keys) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func attrsEqual(a, b Attrs) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		v, ok := b.Get(x.Name)
		if !ok || v != x.Value {
			return false
		}
	}
	return true
}

// Walk calls fn for every node in the tree in depth-first pre-order.
// path holds the child indexes from the root. Returning false from fn skips
// the node's children.
func Walk(node *VNode, fn func(n *VNode, path []int) bool) {
	walk(node, nil, fn)
}

func walk(node *VNode, path []int, fn func(*VNode, []int) bool) {
	if node == nil {
		return
	}
	if !fn(node, path) {
		return
	}
	for i, child := range node.Children {
		walk(child, append(path[:len(path):len(path)], i), fn)
	}
}

// Count returns the number of nodes in the tree.
func Count(node *VNode) int {
	n := 0
	Walk(node, func(*VNode, []int) bool {
		n++
		return true
	})
	return n
}

// DuplicateKeyError reports two siblings carrying the same key.
type DuplicateKeyError struct {
	Path   []int   // Path of the parent element
	Key    NodeKey // The colliding key
	First  int     // Index of the first sibling with Key
	Second int     // Index of the second sibling with Key
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %s at %s: children %d and %d",
		e.Key, FormatPath(e.Path), e.First, e.Second)
}

// ValidateKeys checks that keys are unique among siblings everywhere in the
// tree and that every node has a known kind. It returns the first problem
// found, or nil.
func ValidateKeys(node *VNode) error {
	var err error
	Walk(node, func(n *VNode, path []int) bool {
		if err != nil {
			return false
		}
		if !n.Kind.Valid() {
			err = fmt.Errorf("unknown node kind %d at %s", n.Kind, FormatPath(path))
			return false
		}
		seen := make(map[NodeKey]int, len(n.Children))
		for i, child := range n.Children {
			if child == nil || !child.Key.IsSet() {
				continue
			}
			if first, dup := seen[child.Key]; dup {
				err = &DuplicateKeyError{
					Path:   append([]int(nil), path...),
					Key:    child.Key,
					First:  first,
					Second: i,
				}
				return false
			}
			seen[child.Key] = i
		}
		return true
	})
	return err
}

// FormatPath renders a child-index path as "/0/2/1"; the root is "/".
func FormatPath(path []int) string {
	if len(path) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, i := range path {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}
