// Package protocol implements the binary wire format that streams
// reconciler output from a server to watchers.
//
// # Wire Format
//
// All messages are framed with a 4-byte header, a frame type followed by a
// 3-byte big-endian payload length:
//
//	┌─────────────┬───────────────────────────────────────────┐
//	│ Frame Type  │ Payload Length                            │
//	│ (1 byte)    │ (3 bytes, big-endian)                     │
//	└─────────────┴───────────────────────────────────────────┘
//
// # Frame Types
//
//   - FrameSync (0x01): the whole tree as Create patches; replaces the
//     watcher's state
//   - FramePatches (0x02): one reconcile pass
//   - FrameControl (0x03): resync requests and close notices
//   - FrameError (0x04): an ErrorMessage
//
// # Encoding
//
//   - Varint: protobuf-style unsigned integers
//   - ZigZag: signed integers encoded as unsigned varints
//   - Length-prefixed: strings prefixed with their varint length
//
// # Patches
//
// A Patch is a reconcile.Mutation with handles replaced by numeric IDs:
//
//	[Op: byte][ID: varint][op-specific fields]
//
// IDs are allocated by Sink and never reused in a stream; ID 0 is the mount
// container. A Mirror applies patches to a sink.Memory and can describe its
// state as a sync batch for late joiners.
//
// Decoding enforces MaxStringLen and MaxCollectionCount so length prefixes
// from an untrusted peer cannot force large allocations.
package protocol
