package vdom

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement VKind = iota // <div>, <li>, etc.
	KindText                 // Plain text node
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	default:
		return "Unknown"
	}
}

// Valid reports whether k is a known node kind.
func (k VKind) Valid() bool {
	return k == KindElement || k == KindText
}

// VNode is a declarative tree node.
//
// Elements use Tag, Attrs and Children. Text nodes use Text only.
// A VNode must not be modified after it has been handed to a consumer.
type VNode struct {
	Kind     VKind    // Node type
	Tag      string   // Element tag name (e.g., "div")
	Attrs    Attrs    // Element attributes, in declaration order
	Children []*VNode // Child nodes
	Key      NodeKey  // Reconciliation key (zero value = unkeyed)
	Text     string   // For KindText
}

// IsElement reports whether v is an element node.
func (v *VNode) IsElement() bool {
	return v != nil && v.Kind == KindElement
}

// IsText reports whether v is a text node.
func (v *VNode) IsText() bool {
	return v != nil && v.Kind == KindText
}

// HasKey reports whether v carries a reconciliation key.
func (v *VNode) HasKey() bool {
	return v != nil && v.Key.IsSet()
}

// SameElement reports whether prev and next may be patched in place rather
// than replaced: same kind, and for elements the same tag. Slot resolution
// (by key or by position) is the caller's concern.
func SameElement(prev, next *VNode) bool {
	if prev == nil || next == nil {
		return false
	}
	if prev.Kind != next.Kind {
		return false
	}
	switch prev.Kind {
	case KindElement:
		return prev.Tag == next.Tag
	case KindText:
		return true
	default:
		return false
	}
}

// Attr represents a single attribute.
type Attr struct {
	Name  string
	Value string
}

// IsEmpty returns true if this is an empty/nil attribute.
func (a Attr) IsEmpty() bool {
	return a.Name == ""
}

// Attrs is an ordered list of attributes with unique names.
type Attrs []Attr

// Get returns the value of the named attribute.
func (as Attrs) Get(name string) (string, bool) {
	for _, a := range as {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Has reports whether the named attribute is present.
func (as Attrs) Has(name string) bool {
	_, ok := as.Get(name)
	return ok
}

// Names returns attribute names in declaration order.
func (as Attrs) Names() []string {
	names := make([]string, len(as))
	for i, a := range as {
		names[i] = a.Name
	}
	return names
}

// Map returns the attributes as a map.
func (as Attrs) Map() map[string]string {
	m := make(map[string]string, len(as))
	for _, a := range as {
		m[a.Name] = a.Value
	}
	return m
}

// Set returns as with name set to value. An existing entry is updated in
// place so the first declaration keeps its position; like append, the
// result may share storage with as.
func (as Attrs) Set(name, value string) Attrs {
	for i := range as {
		if as[i].Name == name {
			as[i].Value = value
			return as
		}
	}
	return append(as, Attr{Name: name, Value: value})
}

// Delete returns as without the named attribute. The result may share
// storage with as.
func (as Attrs) Delete(name string) Attrs {
	for i := range as {
		if as[i].Name == name {
			return append(as[:i], as[i+1:]...)
		}
	}
	return as
}

// Clone returns a copy of as that shares no storage with it.
func (as Attrs) Clone() Attrs {
	if as == nil {
		return nil
	}
	return append(Attrs(nil), as...)
}
