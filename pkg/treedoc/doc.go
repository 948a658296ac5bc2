// Package treedoc reads and writes VNode trees as documents.
//
// A YAML (or JSON) document is one node:
//
//	tag: ul
//	attrs:
//	  class: list
//	children:
//	  - tag: li
//	    key: 1
//	    children: [one]
//	  - text: loose text
//	    key: t
//
// A bare scalar in a children list is a text node. Keys written as YAML
// integers become integer keys; quoted or non-numeric keys become string
// keys.
//
// HTML documents must have a single root element. A data-key (or key)
// attribute becomes the node key and is removed from the attributes.
// Whitespace-only text is ignored.
package treedoc
