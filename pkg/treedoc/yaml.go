package treedoc

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Document fields.
const (
	fieldTag      = "tag"
	fieldText     = "text"
	fieldKey      = "key"
	fieldAttrs    = "attrs"
	fieldChildren = "children"
)

// yamlParser turns a yaml.Node document into a VNode tree. JSON documents go
// through the same path since YAML is a superset of JSON.
type yamlParser struct {
	file string
}

func (p *yamlParser) parse(r io.Reader) (*vdom.VNode, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.New("E010").WithDetail("document is empty")
		}
		e := errors.New("E010").Wrap(err)
		if p.file != "" {
			e.Location = &errors.Location{File: p.file}
		}
		return nil, e
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, p.fail(&doc, "document is empty")
	}
	return p.node(doc.Content[0])
}

func (p *yamlParser) fail(n *yaml.Node, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	e := errors.New("E010")
	if p.file != "" {
		return e.WithLocation(p.file, n.Line, n.Column).WithDetail(msg)
	}
	return e.WithDetail(fmt.Sprintf("line %d, column %d: %s", n.Line, n.Column, msg))
}

func (p *yamlParser) node(n *yaml.Node) (*vdom.VNode, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return vdom.Text(scalarValue(n)), nil
	case yaml.MappingNode:
		return p.mapping(n)
	case yaml.AliasNode:
		return p.node(n.Alias)
	default:
		return nil, p.fail(n, "a node must be a mapping or a text scalar")
	}
}

func (p *yamlParser) mapping(n *yaml.Node) (*vdom.VNode, error) {
	var (
		tag, text       *yaml.Node
		key             vdom.NodeKey
		attrs, children *yaml.Node
	)

	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch k.Value {
		case fieldTag:
			tag = v
		case fieldText:
			text = v
		case fieldKey:
			if v.Kind != yaml.ScalarNode {
				return nil, p.fail(v, "key must be a string or an integer")
			}
			key = scalarKey(v)
		case fieldAttrs:
			attrs = v
		case fieldChildren:
			children = v
		default:
			return nil, p.fail(k, "unknown field %q", k.Value)
		}
	}

	switch {
	case tag != nil && text != nil:
		return nil, p.fail(n, "a node has either a tag or a text field, not both")
	case text != nil:
		if attrs != nil || children != nil {
			return nil, p.fail(n, "a text node cannot have attrs or children")
		}
		if text.Kind != yaml.ScalarNode {
			return nil, p.fail(text, "text must be a scalar")
		}
		node := vdom.Text(scalarValue(text))
		node.Key = key
		return node, nil
	case tag == nil:
		return nil, p.fail(n, "a node needs a tag or a text field")
	}

	if tag.Kind != yaml.ScalarNode || tag.Value == "" {
		return nil, p.fail(tag, "tag must be a non-empty string")
	}
	node := &vdom.VNode{Kind: vdom.KindElement, Tag: tag.Value, Key: key}

	if attrs != nil {
		if attrs.Kind != yaml.MappingNode {
			return nil, p.fail(attrs, "attrs must be a mapping")
		}
		for i := 0; i+1 < len(attrs.Content); i += 2 {
			name, val := attrs.Content[i], attrs.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return nil, p.fail(val, "attribute %q must have a scalar value", name.Value)
			}
			if node.Attrs.Has(name.Value) {
				return nil, p.fail(name, "attribute %q is repeated", name.Value)
			}
			node.Attrs = append(node.Attrs, vdom.Attr{Name: name.Value, Value: scalarValue(val)})
		}
	}

	if children != nil {
		if children.Kind != yaml.SequenceNode {
			return nil, p.fail(children, "children must be a sequence")
		}
		for _, c := range children.Content {
			child, err := p.node(c)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}
	}
	return node, nil
}

func scalarValue(n *yaml.Node) string {
	if n.ShortTag() == "!!null" {
		return ""
	}
	return n.Value
}

// scalarKey keeps the distinction between 1 and "1".
func scalarKey(n *yaml.Node) vdom.NodeKey {
	if n.ShortTag() == "!!int" {
		if i, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return vdom.IntKey(i)
		}
	}
	return vdom.StrKey(n.Value)
}

// encodeYAML writes node as a YAML document.
func encodeYAML(w io.Writer, node *vdom.VNode) error {
	if node == nil {
		return fmt.Errorf("treedoc: cannot encode a nil tree")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toYAML(node, true)); err != nil {
		return err
	}
	return enc.Close()
}

func toYAML(node *vdom.VNode, root bool) *yaml.Node {
	// Unkeyed text children collapse to bare scalars.
	if node.Kind == vdom.KindText && !root && !node.Key.IsSet() {
		return strScalar(node.Text)
	}

	m := &yaml.Node{Kind: yaml.MappingNode}
	add := func(name string, v *yaml.Node) {
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, v)
	}

	if node.Kind == vdom.KindText {
		add(fieldText, strScalar(node.Text))
	} else {
		add(fieldTag, &yaml.Node{Kind: yaml.ScalarNode, Value: node.Tag})
	}

	if n, ok := node.Key.Int(); ok {
		add(fieldKey, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(n, 10)})
	} else if s, ok := node.Key.Str(); ok {
		add(fieldKey, strScalar(s))
	}

	if node.Kind == vdom.KindText {
		return m
	}

	if len(node.Attrs) > 0 {
		attrs := &yaml.Node{Kind: yaml.MappingNode}
		for _, a := range node.Attrs {
			attrs.Content = append(attrs.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: a.Name}, strScalar(a.Value))
		}
		add(fieldAttrs, attrs)
	}
	if len(node.Children) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, c := range node.Children {
			if c != nil {
				seq.Content = append(seq.Content, toYAML(c, false))
			}
		}
		add(fieldChildren, seq)
	}
	return m
}

// strScalar forces string typing so "1", "true" or "" survive a round trip.
func strScalar(s string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	if _, err := strconv.ParseFloat(s, 64); err == nil || s == "" || isYAMLKeyword(s) {
		n.Style = yaml.DoubleQuotedStyle
	}
	return n
}

func isYAMLKeyword(s string) bool {
	switch s {
	case "true", "false", "True", "False", "TRUE", "FALSE",
		"yes", "no", "on", "off", "null", "Null", "NULL", "~":
		return true
	}
	return false
}
