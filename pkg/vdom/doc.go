// Package vdom provides the declarative tree model consumed by the reconciler.
//
// A tree is built from immutable VNode values. Each node is either an
// element (tag, ordered attributes, ordered children) or a text node
// (string payload only). Nodes may carry a Key that identifies them among
// their siblings across successive renders.
//
// # Core Types
//
// VNode is the tagged node variant, discriminated by VKind. NodeKey is the
// optional sibling identity token (string or integer). Attrs is the ordered
// attribute list of an element.
//
// # Element API
//
// Elements are created using variadic factory functions:
//
//	Ul(Class("todo"),
//	    Li(Key("a"), Text("Buy milk")),
//	    Li(Key("b"), Text("Walk dog")),
//	)
//
// Arguments may be attributes (Attr, []Attr), keys (Key), children
// (*VNode, []*VNode) or strings, which become text children. A nil argument
// is ignored, which makes conditional attributes and children convenient.
//
// # Immutability
//
// Builders return fresh nodes. Nothing in this module writes to a VNode after
// it has been returned by a builder; consumers such as the reconciler only
// read trees.
package vdom
