package protocol

import "errors"

// Allocation limits applied while decoding, so a malicious length prefix
// cannot make the decoder allocate unbounded memory.
const (
	// MaxStringLen caps a single decoded string (tag, attribute, text).
	MaxStringLen = 4 * 1024 * 1024

	// MaxCollectionCount caps the number of patches in a frame and the
	// number of attributes on a created element.
	MaxCollectionCount = 100_000

	// MaxPayloadSize is the largest frame payload the 3-byte length field
	// can describe.
	MaxPayloadSize = 1<<24 - 1
)

// Decoding errors.
var (
	ErrVarintOverflow     = errors.New("protocol: varint overflow")
	ErrInvalidBool        = errors.New("protocol: invalid boolean value")
	ErrAllocationTooLarge = errors.New("protocol: allocation size exceeds limit")
	ErrCollectionTooLarge = errors.New("protocol: collection count exceeds limit")
	ErrFrameTooLarge      = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType   = errors.New("protocol: invalid frame type")
	ErrInvalidPatchOp     = errors.New("protocol: invalid patch op")
	ErrInvalidNodeKind    = errors.New("protocol: invalid node kind")
	ErrTrailingBytes      = errors.New("protocol: trailing bytes after payload")
)
