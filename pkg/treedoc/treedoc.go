package treedoc

import (
	"bytes"
	"io"
	"os"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Parse reads a tree document in the given format.
func Parse(format Format, r io.Reader) (*vdom.VNode, error) {
	return parse(format, r, "")
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(format Format, data []byte) (*vdom.VNode, error) {
	return parse(format, bytes.NewReader(data), "")
}

// ParseFile reads a tree document, picking the format from the file
// extension. Errors carry the file location when one is known.
func ParseFile(path string) (*vdom.VNode, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New("E010").Wrap(err)
	}
	defer f.Close()
	return parse(format, f, path)
}

func parse(format Format, r io.Reader, file string) (*vdom.VNode, error) {
	switch format {
	case FormatYAML, FormatJSON:
		p := &yamlParser{file: file}
		return p.parse(r)
	case FormatHTML:
		return parseHTML(r)
	default:
		return nil, unsupported(string(format))
	}
}

// Encode writes node as a document. YAML output keeps key types; HTML
// output carries keys in the data-key attribute. JSON output is not
// supported.
func Encode(format Format, w io.Writer, node *vdom.VNode) error {
	switch format {
	case FormatYAML:
		return encodeYAML(w, node)
	case FormatHTML:
		return encodeHTML(w, node)
	default:
		return unsupported("cannot encode " + string(format))
	}
}

// Marshal is Encode into a byte slice.
func Marshal(format Format, node *vdom.VNode) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(format, &buf, node); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
