package vdom

import (
	"fmt"
	"strconv"
)

type keyKind uint8

const (
	keyNone keyKind = iota
	keyString
	keyInt
)

// NodeKey identifies a node among its siblings. It is either a string or an
// integer; the zero value means "no key". StrKey("1") and IntKey(1) are
// different keys. NodeKey is comparable and may be used as a map key.
type NodeKey struct {
	kind keyKind
	s    string
	n    int64
}

// NoKey is the zero NodeKey.
var NoKey NodeKey

// StrKey returns a string key.
func StrKey(s string) NodeKey {
	return NodeKey{kind: keyString, s: s}
}

// IntKey returns an integer key.
func IntKey(n int64) NodeKey {
	return NodeKey{kind: keyInt, n: n}
}

// KeyOf converts a Go value to a NodeKey. Strings become string keys,
// integer types become integer keys, a NodeKey is returned as is, and
// anything else is formatted with %v into a string key.
func KeyOf(v any) NodeKey {
	switch k := v.(type) {
	case nil:
		return NoKey
	case NodeKey:
		return k
	case string:
		return StrKey(k)
	case int:
		return IntKey(int64(k))
	case int8:
		return IntKey(int64(k))
	case int16:
		return IntKey(int64(k))
	case int32:
		return IntKey(int64(k))
	case int64:
		return IntKey(k)
	case uint:
		return IntKey(int64(k))
	case uint8:
		return IntKey(int64(k))
	case uint16:
		return IntKey(int64(k))
	case uint32:
		return IntKey(int64(k))
	case uint64:
		return IntKey(int64(k))
	default:
		return StrKey(fmt.Sprintf("%v", v))
	}
}

// IsSet reports whether k is a real key.
func (k NodeKey) IsSet() bool {
	return k.kind != keyNone
}

// IsInt reports whether k is an integer key.
func (k NodeKey) IsInt() bool {
	return k.kind == keyInt
}

// Int returns the integer payload of an integer key.
func (k NodeKey) Int() (int64, bool) {
	return k.n, k.kind == keyInt
}

// Str returns the string payload of a string key.
func (k NodeKey) Str() (string, bool) {
	return k.s, k.kind == keyString
}

// String formats the key for logs and error messages. Integer keys print
// bare, string keys print quoted, so the two kinds stay distinguishable.
func (k NodeKey) String() string {
	switch k.kind {
	case keyString:
		return strconv.Quote(k.s)
	case keyInt:
		return strconv.FormatInt(k.n, 10)
	default:
		return "<none>"
	}
}
