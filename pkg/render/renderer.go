package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

// RendererConfig configures the HTML renderer.
type RendererConfig struct {
	// Pretty enables pretty-printed HTML output with indentation.
	Pretty bool

	// Indent is the string used for each indentation level in pretty mode.
	// Defaults to two spaces if not specified.
	Indent string

	// KeyAttr, when set, renders node keys as an attribute with this name
	// (usually "data-key") so the output can be parsed back with its keys.
	KeyAttr string
}

// Renderer writes VNode trees as HTML.
type Renderer struct {
	config RendererConfig
}

// NewRenderer creates a new Renderer with the given configuration.
func NewRenderer(config RendererConfig) *Renderer {
	if config.Indent == "" {
		config.Indent = "  "
	}
	return &Renderer{config: config}
}

// RenderToString renders a VNode tree to an HTML string.
func (r *Renderer) RenderToString(node *vdom.VNode) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToWriter(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter streams a VNode tree to the given writer.
func (r *Renderer) RenderToWriter(w io.Writer, node *vdom.VNode) error {
	return r.renderNode(w, node, 0)
}

// RenderAll renders sibling trees one after another.
func (r *Renderer) RenderAll(w io.Writer, nodes []*vdom.VNode) error {
	for _, n := range nodes {
		if err := r.renderNode(w, n, 0); err != nil {
			return err
		}
	}
	return nil
}

// renderNode dispatches rendering based on node kind.
func (r *Renderer) renderNode(w io.Writer, node *vdom.VNode, depth int) error {
	if node == nil {
		return nil
	}

	switch node.Kind {
	case vdom.KindElement:
		return r.renderElement(w, node, depth)
	case vdom.KindText:
		return r.renderText(w, node, depth)
	default:
		return fmt.Errorf("unknown node kind: %d", node.Kind)
	}
}

// renderElement renders an HTML element with its attributes and children.
func (r *Renderer) renderElement(w io.Writer, node *vdom.VNode, depth int) error {
	tag := node.Tag

	if r.config.Pretty && depth > 0 {
		r.writeIndent(w, depth)
	}

	if _, err := fmt.Fprintf(w, "<%s", tag); err != nil {
		return err
	}
	if err := r.renderAttributes(w, node); err != nil {
		return err
	}
	if _, err := w.Write([]byte{'>'}); err != nil {
		return err
	}

	if vdom.IsVoidElement(tag) {
		if r.config.Pretty && depth >= 0 {
			w.Write([]byte{'\n'})
		}
		return nil
	}

	// Inline elements and text-only elements keep their children on one line.
	block := r.config.Pretty && depth >= 0 && !isInlineElement(tag) && hasElementChild(node)
	if block {
		w.Write([]byte{'\n'})
	}

	childDepth := depth + 1
	if !block {
		childDepth = -1
	}
	for _, child := range node.Children {
		if err := r.renderNode(w, child, childDepth); err != nil {
			return err
		}
	}

	if block {
		r.writeIndent(w, depth)
	}
	if _, err := fmt.Fprintf(w, "</%s>", tag); err != nil {
		return err
	}
	if r.config.Pretty && depth >= 0 {
		w.Write([]byte{'\n'})
	}
	return nil
}

// renderText renders a text node with HTML escaping. In pretty mode a text
// node inside a block element gets its own line.
func (r *Renderer) renderText(w io.Writer, node *vdom.VNode, depth int) error {
	if r.config.Pretty && depth > 0 {
		r.writeIndent(w, depth)
	}
	if _, err := io.WriteString(w, escapeHTML(node.Text)); err != nil {
		return err
	}
	if r.config.Pretty && depth > 0 {
		w.Write([]byte{'\n'})
	}
	return nil
}

// renderAttributes renders attributes in declaration order. Boolean
// attributes with an empty value are written as a bare name.
func (r *Renderer) renderAttributes(w io.Writer, node *vdom.VNode) error {
	if r.config.KeyAttr != "" && node.Key.IsSet() && !node.Attrs.Has(r.config.KeyAttr) {
		if _, err := fmt.Fprintf(w, ` %s="%s"`, r.config.KeyAttr, escapeAttr(keyText(node.Key))); err != nil {
			return err
		}
	}

	for _, a := range node.Attrs {
		if a.IsEmpty() {
			continue
		}
		if a.Value == "" && isBooleanAttr(a.Name) {
			if _, err := fmt.Fprintf(w, " %s", a.Name); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, ` %s="%s"`, a.Name, escapeAttr(a.Value)); err != nil {
			return err
		}
	}
	return nil
}

func hasElementChild(node *vdom.VNode) bool {
	for _, c := range node.Children {
		if c != nil && c.Kind == vdom.KindElement {
			return true
		}
	}
	return false
}

func keyText(k vdom.NodeKey) string {
	if n, ok := k.Int(); ok {
		return fmt.Sprintf("%d", n)
	}
	s, _ := k.Str()
	return s
}

// writeIndent writes indentation for pretty printing.
func (r *Renderer) writeIndent(w io.Writer, depth int) {
	for i := 0; i < depth; i++ {
		io.WriteString(w, r.config.Indent)
	}
}
