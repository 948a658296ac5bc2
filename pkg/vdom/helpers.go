package vdom

import "fmt"

// Text creates a text node.
func Text(content string) *VNode {
	return &VNode{
		Kind: KindText,
		Text: content,
	}
}

// Textf creates a formatted text node.
func Textf(format string, args ...any) *VNode {
	return Text(fmt.Sprintf(format, args...))
}

// KeyArg is the builder argument produced by Key.
type KeyArg struct {
	key NodeKey
}

// Key creates a reconciliation key argument for an element builder.
// Strings become string keys and integers become integer keys.
//
//	Li(Key(item.ID), Text(item.Title))
func Key(key any) KeyArg {
	return KeyArg{key: KeyOf(key)}
}

// WithKey returns a shallow copy of v carrying key. The receiver is not
// modified. It is mostly useful for text nodes, which take no builder
// arguments.
//
//	Text("A").WithKey(1)
func (v *VNode) WithKey(key any) *VNode {
	if v == nil {
		return nil
	}
	cp := *v
	cp.Key = KeyOf(key)
	return &cp
}

// If returns the node if condition is true, nil otherwise.
func If(condition bool, node *VNode) *VNode {
	if condition {
		return node
	}
	return nil
}

// IfElse returns the first node if condition is true, the second otherwise.
func IfElse(condition bool, ifTrue, ifFalse *VNode) *VNode {
	if condition {
		return ifTrue
	}
	return ifFalse
}

// When is like If but with lazy evaluation.
// The function is only called if condition is true.
func When(condition bool, fn func() *VNode) *VNode {
	if condition {
		return fn()
	}
	return nil
}

// Unless returns the node if condition is false, nil otherwise.
func Unless(condition bool, node *VNode) *VNode {
	return If(!condition, node)
}

// Range maps items to nodes, skipping nil results.
// Give each node a Key so the reconciler can track items across renders.
func Range[T any](items []T, fn func(item T, index int) *VNode) []*VNode {
	result := make([]*VNode, 0, len(items))
	for i, item := range items {
		if node := fn(item, i); node != nil {
			result = append(result, node)
		}
	}
	return result
}

// Repeat creates n nodes using the given function.
func Repeat(n int, fn func(i int) *VNode) []*VNode {
	result := make([]*VNode, 0, n)
	for i := 0; i < n; i++ {
		if node := fn(i); node != nil {
			result = append(result, node)
		}
	}
	return result
}
