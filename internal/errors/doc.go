// Package errors provides structured, coded errors for vdiff.
//
// Every error raised by the reconciler, the sinks, the document parsers, the
// wire protocol, the snapshot stores and the configuration loader carries a
// short code (e.g. "E001") that maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A documentation URL
//
// # Error Categories
//
//   - reconcile: contract violations detected while reconciling
//   - sink: output sink failures (stale or unknown handles)
//   - document: tree document parse errors
//   - protocol: wire protocol decode errors
//   - storage: snapshot store errors
//   - config: configuration errors
//   - cli: command line usage errors
//
// # Usage
//
//	err := errors.New("E010").
//	    WithLocation("next.yaml", 12, 5).
//	    WithSuggestion("A node needs either a tag or a text field")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E010: Invalid tree document
//	//
//	//   next.yaml:12:5
//	//
//	//        10 │   - tag: li
//	//        11 │     key: b
//	//   →    12 │   - attrs: {}
//	//           │     ^
//	//
//	//   Hint: A node needs either a tag or a text field
//	//
//	//   Learn more: https://vdiff.dev/docs/errors/E010
//
// Coded errors support errors.Is and errors.As through Unwrap, so callers
// can match the sentinel errors of the package that raised them.
package errors
