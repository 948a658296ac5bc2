package treedoc

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/render"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// KeyAttr is the attribute that carries node keys in HTML documents. The
// bare "key" attribute is accepted on input too.
const KeyAttr = "data-key"

func parseHTML(r io.Reader) (*vdom.VNode, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, body)
	if err != nil {
		return nil, errors.New("E010").Wrap(err)
	}

	var roots []*vdom.VNode
	for _, n := range nodes {
		v := fromHTML(n)
		if v != nil {
			roots = append(roots, v)
		}
	}
	switch len(roots) {
	case 0:
		return nil, errors.New("E010").WithDetail("document is empty")
	case 1:
		return roots[0], nil
	default:
		return nil, errors.New("E010").
			WithDetail(fmt.Sprintf("document has %d root nodes, want 1", len(roots))).
			WithSuggestion("Wrap the content in a single element.")
	}
}

// fromHTML converts a parsed node. Comments, doctypes and whitespace-only
// text are dropped.
func fromHTML(n *html.Node) *vdom.VNode {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return nil
		}
		return vdom.Text(n.Data)
	case html.ElementNode:
	default:
		return nil
	}

	node := &vdom.VNode{Kind: vdom.KindElement, Tag: n.Data}
	for _, a := range n.Attr {
		if a.Namespace == "" && (a.Key == KeyAttr || a.Key == "key") {
			node.Key = htmlKey(a.Val)
			continue
		}
		node.Attrs = node.Attrs.Set(a.Key, a.Val)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if child := fromHTML(c); child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}

// htmlKey reads attribute text as a key. All-digit values become integer
// keys.
func htmlKey(s string) vdom.NodeKey {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && !strings.HasPrefix(s, "+") {
		return vdom.IntKey(n)
	}
	return vdom.StrKey(s)
}

func encodeHTML(w io.Writer, node *vdom.VNode) error {
	r := render.NewRenderer(render.RendererConfig{Pretty: true, KeyAttr: KeyAttr})
	return r.RenderToWriter(w, node)
}
