package errors

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

// Category represents the type of error.
type Category string

const (
	CategoryReconcile Category = "reconcile"
	CategorySink      Category = "sink"
	CategoryDocument  Category = "document"
	CategoryProtocol  Category = "protocol"
	CategoryStorage   Category = "storage"
	CategoryConfig    Category = "config"
	CategoryCLI       Category = "cli"
)

// Location represents a position in a source document.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// VdiffError is a structured error with a code, optional document location,
// suggestions, and documentation.
type VdiffError struct {
	// Code is a unique error identifier (e.g., "E001").
	Code string

	// Category is the error type (reconcile, sink, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the document location where the error occurred.
	Location *Location

	// Context contains surrounding document lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *VdiffError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *VdiffError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a document location to the error and, when the file is
// readable, the lines around it.
func (e *VdiffError) WithLocation(file string, line, column int) *VdiffError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *VdiffError) WithSuggestion(s string) *VdiffError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *VdiffError) WithDetail(d string) *VdiffError {
	e.Detail = d
	return e
}

// WithContext adds custom context lines to the error.
func (e *VdiffError) WithContext(lines []string) *VdiffError {
	e.Context = lines
	return e
}

// Wrap wraps another error.
func (e *VdiffError) Wrap(err error) *VdiffError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates a VdiffError from a registered error code.
func New(code string) *VdiffError {
	template, ok := registry[code]
	if !ok {
		return &VdiffError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &VdiffError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new VdiffError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *VdiffError {
	return &VdiffError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a VdiffError. An error that already
// is (or wraps) a VdiffError is returned as that VdiffError.
func FromError(err error, code string) *VdiffError {
	if err == nil {
		return nil
	}
	var ve *VdiffError
	if errors.As(err, &ve) {
		return ve
	}
	return New(code).Wrap(err)
}

// CodeOf returns the code of the first VdiffError in err's chain, or "".
func CodeOf(err error) string {
	var ve *VdiffError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
