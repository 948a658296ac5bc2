package vdom

import (
	"strconv"
	"strings"
)

// attr creates an Attr with the given name and value.
func attr(name, value string) Attr {
	return Attr{Name: name, Value: value}
}

// AttrOf creates an arbitrary attribute.
func AttrOf(name, value string) Attr { return attr(name, value) }

// Identity attributes

// ID sets the id attribute.
func ID(id string) Attr { return attr("id", id) }

// Class sets the class attribute, joining multiple classes with spaces.
func Class(classes ...string) Attr { return attr("class", strings.Join(classes, " ")) }

// StyleAttr sets the style attribute.
func StyleAttr(style string) Attr { return attr("style", style) }

// Data creates a data-* attribute.
// Example: Data("id", "123") → data-id="123"
func Data(key, value string) Attr { return attr("data-"+key, value) }

// Accessibility attributes

// Role sets the role attribute.
func Role(role string) Attr { return attr("role", role) }

// AriaLabel sets the aria-label attribute.
func AriaLabel(label string) Attr { return attr("aria-label", label) }

// AriaHidden sets the aria-hidden attribute.
func AriaHidden(hidden bool) Attr { return attr("aria-hidden", strconv.FormatBool(hidden)) }

// TabIndex sets the tabindex attribute.
func TabIndex(index int) Attr { return attr("tabindex", strconv.Itoa(index)) }

// TitleAttr sets the title attribute (named to avoid conflict with a Title element).
func TitleAttr(title string) Attr { return attr("title", title) }

// Hidden sets the hidden attribute.
func Hidden() Attr { return attr("hidden", "") }

// Link and media attributes

func Href(url string) Attr { return attr("href", url) }
func Src(url string) Attr { return attr("src", url) }
func Alt(text string) Attr { return attr("alt", text) }
func Target(t string) Attr { return attr("target", t) }
func Rel(rel string) Attr { return attr("rel", rel) }
func Width(px int) Attr { return attr("width", strconv.Itoa(px)) }
func Height(px int) Attr { return attr("height", strconv.Itoa(px)) }
func Name(name string) Attr { return attr("name", name) }
func Value(v string) Attr { return attr("value", v) }
func Type(t string) Attr { return attr("type", t) }
func For(id string) Attr { return attr("for", id) }

// Placeholder sets the placeholder attribute.
func Placeholder(s string) Attr { return attr("placeholder", s) }

// Boolean attributes. A false condition yields an empty Attr, which
// element builders ignore.

func Disabled(on bool) Attr { return boolAttr("disabled", on) }
func Checked(on bool) Attr { return boolAttr("checked", on) }
func Selected(on bool) Attr { return boolAttr("selected", on) }

func boolAttr(name string, on bool) Attr {
	if !on {
		return Attr{}
	}
	return attr(name, "")
}
