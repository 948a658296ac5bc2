package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiRed   = "\033[31m"
	ansiBlue  = "\033[34m"
	ansiCyan  = "\033[36m"
	ansiGray  = "\033[90m"
)

// colorEnabled controls whether Format emits ANSI escapes.
var colorEnabled = os.Getenv("NO_COLOR") == ""

// DisableColors turns ANSI output off.
func DisableColors() { colorEnabled = false }

// EnableColors turns ANSI output on.
func EnableColors() { colorEnabled = true }

func paint(text string, codes ...string) string {
	if !colorEnabled || len(codes) == 0 {
		return text
	}
	return strings.Join(codes, "") + text + ansiReset
}

// Format renders the error for a terminal: a header with code and category,
// the document excerpt around Location, the detail, the cause chain, and the
// hint and docs link.
func (e *VdiffError) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(paint("ERROR "+e.Code+":", ansiRed, ansiBold))
	} else {
		b.WriteString(paint("ERROR:", ansiRed, ansiBold))
	}
	b.WriteString(" ")
	b.WriteString(paint(e.Message, ansiBold))
	if e.Category != "" {
		b.WriteString(paint(" ("+string(e.Category)+")", ansiGray))
	}
	b.WriteString("\n\n")

	if e.Location != nil {
		fmt.Fprintf(&b, "  %s\n\n", paint(e.Location.String(), ansiCyan))
		if len(e.Context) > 0 {
			e.writeExcerpt(&b)
			b.WriteString("\n")
		}
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		b.WriteString("\n")
	}

	if cause := e.cause(); cause != "" {
		fmt.Fprintf(&b, "  %s %s\n\n", paint("Caused by:", ansiGray), cause)
	}

	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s %s\n\n", paint("Hint:", ansiCyan), e.Suggestion)
	}

	if e.DocURL != "" {
		fmt.Fprintf(&b, "  %s %s\n", paint("Learn more:", ansiGray), paint(e.DocURL, ansiBlue))
	}

	return b.String()
}

// writeExcerpt prints the context lines with numbers, marking the error line
// and, when known, its column.
func (e *VdiffError) writeExcerpt(b *strings.Builder) {
	first := e.Location.Line - len(e.Context)/2
	gutter := paint(" | ", ansiGray)
	for i, line := range e.Context {
		n := first + i
		if n != e.Location.Line {
			fmt.Fprintf(b, "    %4d%s%s\n", n, gutter, line)
			continue
		}
		fmt.Fprintf(b, "  %s%4d%s%s\n", paint("> ", ansiRed), n, gutter, line)
		if e.Location.Column > 0 {
			pad := strings.Repeat(" ", e.Location.Column-1)
			fmt.Fprintf(b, "        %s%s%s\n", paint("| ", ansiGray), pad, paint("^", ansiRed))
		}
	}
}

// cause returns the message of the first wrapped error that is not itself a
// VdiffError, or "" when there is none.
func (e *VdiffError) cause() string {
	if e.Wrapped == nil {
		return ""
	}
	var inner *VdiffError
	if errors.As(e.Wrapped, &inner) {
		return ""
	}
	return e.Wrapped.Error()
}

// FormatCompact renders the error on one line: "file:line:col: CODE: message".
func (e *VdiffError) FormatCompact() string {
	var parts []string
	if e.Location != nil {
		parts = append(parts, e.Location.String())
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	return strings.Join(append(parts, e.Message), ": ")
}

type jsonLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type jsonError struct {
	Code       string        `json:"code,omitempty"`
	Category   Category      `json:"category"`
	Message    string        `json:"message"`
	Detail     string        `json:"detail,omitempty"`
	Location   *jsonLocation `json:"location,omitempty"`
	Cause      string        `json:"cause,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
	DocURL     string        `json:"docUrl,omitempty"`
}

// FormatJSON renders the error as a single JSON object.
func (e *VdiffError) FormatJSON() string {
	out := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Cause:      e.cause(),
		Suggestion: e.Suggestion,
		DocURL:     e.DocURL,
	}
	if l := e.Location; l != nil {
		out.Location = &jsonLocation{File: l.File, Line: l.Line, Column: l.Column}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Message)
	}
	return string(data)
}

// wrapText breaks text into lines of at most width characters on word
// boundaries. A single word longer than width gets its own line.
func wrapText(text string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}

// Fprint writes a formatted error to w. Coded errors anywhere in the chain
// use Format; other errors print as a single line.
func Fprint(w io.Writer, err error) {
	var ve *VdiffError
	if errors.As(err, &ve) {
		fmt.Fprint(w, ve.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", paint("ERROR:", ansiRed, ansiBold), err.Error())
}
