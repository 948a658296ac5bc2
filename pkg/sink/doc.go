// Package sink provides reconcile.Sink implementations.
//
//   - Memory keeps an in-memory display tree and can snapshot it back to a
//     VNode or render it as HTML.
//   - Recorder records every mutation, optionally forwarding to another sink.
//   - Tee applies each mutation to two sinks.
package sink
