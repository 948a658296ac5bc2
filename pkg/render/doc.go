// Package render writes VNode trees as HTML.
//
// Text and attribute values are escaped. Void elements (input, br, img)
// get no closing tag, and boolean attributes with an empty value (disabled,
// checked) are written as a bare name. Attributes keep their declaration
// order, so output is deterministic.
//
//	renderer := render.NewRenderer(render.RendererConfig{})
//	html, err := renderer.RenderToString(node)
//
// Pretty mode puts block elements on their own indented lines. KeyAttr
// writes node keys as an attribute so the HTML can be parsed back into a
// keyed tree.
package render
