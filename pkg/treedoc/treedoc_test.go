package treedoc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

func TestParseYAML(t *testing.T) {
	doc := `
tag: ul
attrs:
  class: list
  hidden:
children:
  - tag: li
    key: 1
    children: [one]
  - tag: li
    key: "1"
    children:
      - text: two
  - tag: li
    key: b
  - text: loose
    key: 7
  - 42
`
	got, err := Parse(FormatYAML, strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}

	want := vdom.Ul(vdom.Class("list"), vdom.Hidden(),
		vdom.Li(vdom.Key(1), "one"),
		vdom.Li(vdom.Key("1"), "two"),
		vdom.Li(vdom.Key("b")),
		vdom.Text("loose").WithKey(7),
		"42",
	)
	if !vdom.Equal(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParseJSON(t *testing.T) {
	doc := `{"tag": "div", "attrs": {"id": "main", "title": null},
	"children": [{"tag": "p", "key": 3, "children": ["hi"]}, {"text": "x", "key": "k"}]}`

	got, err := ParseBytes(FormatJSON, []byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	want := vdom.Div(vdom.ID("main"), vdom.TitleAttr(""),
		vdom.P(vdom.Key(3), "hi"),
		vdom.Text("x").WithKey("k"),
	)
	if !vdom.Equal(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParseHTML(t *testing.T) {
	doc := `
<ul class="list">
  <!-- items -->
  <li data-key="1">one</li>
  <li key="b" id="x">two</li>
  <li data-key="-2"></li>
</ul>
`
	got, err := Parse(FormatHTML, strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	want := vdom.Ul(vdom.Class("list"),
		vdom.Li(vdom.Key(1), "one"),
		vdom.Li(vdom.Key("b"), vdom.ID("x"), "two"),
		vdom.Li(vdom.Key(-2)),
	)
	if !vdom.Equal(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		doc    string
		code   string
		detail string
	}{
		{"empty yaml", FormatYAML, "", "E010", "empty"},
		{"syntax", FormatYAML, "tag: [", "E010", ""},
		{"unknown field", FormatYAML, "tag: div\nstyle: x\n", "E010", `unknown field "style"`},
		{"tag and text", FormatYAML, "tag: div\ntext: x\n", "E010", "not both"},
		{"no tag", FormatYAML, "attrs: {}\n", "E010", "needs a tag"},
		{"text with children", FormatYAML, "text: x\nchildren: []\n", "E010", "cannot have"},
		{"sequence root", FormatYAML, "- a\n", "E010", "mapping"},
		{"attrs not mapping", FormatYAML, "tag: div\nattrs: [a]\n", "E010", "attrs must be"},
		{"children not sequence", FormatYAML, "tag: div\nchildren: x\n", "E010", "children must be"},
		{"nested attr value", FormatYAML, "tag: div\nattrs:\n  a: [1]\n", "E010", "scalar value"},
		{"key not scalar", FormatYAML, "tag: div\nkey: [1]\n", "E010", "key must be"},
		{"empty tag", FormatYAML, "tag: ''\n", "E010", "non-empty"},
		{"two html roots", FormatHTML, "<p></p><p></p>", "E010", "2 root nodes"},
		{"empty html", FormatHTML, "  <!-- x -->  ", "E010", "empty"},
		{"bad format", Format("toml"), "", "E011", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.format, strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if code := errors.CodeOf(err); code != tt.code {
				t.Errorf("code = %q, want %q (err %v)", code, tt.code, err)
			}
			if tt.detail != "" {
				ve := errors.FromError(err, "")
				if !strings.Contains(ve.Detail, tt.detail) {
					t.Errorf("detail = %q, want it to contain %q", ve.Detail, tt.detail)
				}
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse(FormatYAML, strings.NewReader("tag: div\nchildren:\n  - tag: p\n    bogus: 1\n"))
	ve := errors.FromError(err, "")
	if ve == nil || !strings.HasPrefix(ve.Detail, "line 4, column 5:") {
		t.Errorf("error = %v, want position line 4, column 5", err)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "tree.yml")
	if err := os.WriteFile(good, []byte("tag: p\nchildren: [hi]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ParseFile(good)
	if err != nil {
		t.Fatal(err)
	}
	if !vdom.Equal(got, vdom.P("hi")) {
		t.Errorf("ParseFile() = %+v", got)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("tag: p\n\nwat: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = ParseFile(bad)
	ve := errors.FromError(err, "")
	if ve == nil || ve.Location == nil {
		t.Fatalf("error = %v, want a located error", err)
	}
	if ve.Location.File != bad || ve.Location.Line != 3 || len(ve.Context) == 0 {
		t.Errorf("location = %+v, context = %v", ve.Location, ve.Context)
	}

	if _, err := ParseFile(filepath.Join(dir, "tree.txt")); errors.CodeOf(err) != "E011" {
		t.Errorf("unknown extension error = %v, want E011", err)
	}
	if _, err := ParseFile(filepath.Join(dir, "missing.json")); errors.CodeOf(err) != "E010" {
		t.Errorf("missing file error = %v, want E010", err)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	trees := []*vdom.VNode{
		vdom.Text("root text"),
		vdom.Text("keyed").WithKey("k"),
		vdom.Ul(vdom.Class("list"),
			vdom.Li(vdom.Key(1), "one"),
			vdom.Li(vdom.Key("1"), "1"),
			vdom.Li(vdom.Key("true"), "yes"),
			vdom.Li(vdom.Data("n", "3.5"), vdom.Hidden(), ""),
			vdom.Text("null").WithKey(2),
		),
		vdom.Div(vdom.P("multi\nline"), vdom.Span(vdom.TitleAttr("a: b"), "# not a comment")),
	}
	for _, tree := range trees {
		data, err := Marshal(FormatYAML, tree)
		if err != nil {
			t.Fatal(err)
		}
		got, err := ParseBytes(FormatYAML, data)
		if err != nil {
			t.Fatalf("parse of\n%s\nfailed: %v", data, err)
		}
		if !vdom.Equal(got, tree) {
			t.Errorf("round trip of\n%s\ngave %+v", data, got)
		}
	}
}

func TestEncodeYAMLShape(t *testing.T) {
	data, err := Marshal(FormatYAML, vdom.Ul(vdom.Li(vdom.Key(1), "one")))
	if err != nil {
		t.Fatal(err)
	}
	want := "tag: ul\nchildren:\n  - tag: li\n    key: 1\n    children:\n      - one\n"
	if string(data) != want {
		t.Errorf("Marshal() =\n%s\nwant\n%s", data, want)
	}
}

func TestHTMLRoundTrip(t *testing.T) {
	tree := vdom.Ul(vdom.Class("list"),
		vdom.Li(vdom.Key(1), "one"),
		vdom.Li(vdom.Key("b"), vdom.Input(vdom.Type("text"))),
	)
	data, err := Marshal(FormatHTML, tree)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseBytes(FormatHTML, data)
	if err != nil {
		t.Fatal(err)
	}
	if !vdom.Equal(got, tree) {
		t.Errorf("round trip of\n%s\ngave %+v", data, got)
	}
}

func TestEncodeErrors(t *testing.T) {
	if _, err := Marshal(FormatJSON, vdom.Div()); errors.CodeOf(err) != "E011" {
		t.Errorf("JSON encode error = %v, want E011", err)
	}
	if _, err := Marshal(FormatYAML, nil); err == nil {
		t.Error("encoding a nil tree should fail")
	}
}

func TestFormats(t *testing.T) {
	paths := map[string]Format{"a.yaml": FormatYAML, "b.YML": FormatYAML, "c.json": FormatJSON, "d.htm": FormatHTML}
	for path, want := range paths {
		if got, err := FormatFromPath(path); err != nil || got != want {
			t.Errorf("FormatFromPath(%q) = %q, %v", path, got, err)
		}
	}
	if _, err := FormatFromPath("noext"); errors.CodeOf(err) != "E011" {
		t.Errorf("FormatFromPath(noext) error = %v", err)
	}

	types := map[string]Format{
		"":                         FormatYAML,
		"application/json":         FormatJSON,
		"text/html; charset=utf-8": FormatHTML,
		"application/x-yaml":       FormatYAML,
	}
	for ct, want := range types {
		if got, err := FormatFromContentType(ct); err != nil || got != want {
			t.Errorf("FormatFromContentType(%q) = %q, %v", ct, got, err)
		}
	}
	if _, err := FormatFromContentType("image/png"); errors.CodeOf(err) != "E011" {
		t.Errorf("FormatFromContentType(image/png) error = %v", err)
	}
	if FormatJSON.ContentType() != "application/json" || FormatYAML.ContentType() != "application/yaml" {
		t.Error("ContentType()")
	}
}
