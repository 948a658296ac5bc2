package protocol

import "io"

// FrameHeaderSize is the size of the frame header in bytes.
const FrameHeaderSize = 4

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameSync    FrameType = 0x01 // Full tree as Create patches
	FramePatches FrameType = 0x02 // Incremental patches
	FrameControl FrameType = 0x03 // Resync requests, close notices
	FrameError   FrameType = 0x04 // Error message
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameSync:
		return "Sync"
	case FramePatches:
		return "Patches"
	case FrameControl:
		return "Control"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Valid reports whether ft is a known frame type.
func (ft FrameType) Valid() bool {
	return ft >= FrameSync && ft <= FrameError
}

// Frame is a protocol frame with header and payload.
//
// Wire format (4 bytes header + variable payload):
//
//	┌─────────────┬───────────────────────────────────────────┐
//	│ Frame Type  │ Payload Length                            │
//	│ (1 byte)    │ (3 bytes, big-endian)                     │
//	└─────────────┴───────────────────────────────────────────┘
//	│  Payload (variable length)                              │
//	└─────────────────────────────────────────────────────────┘
type Frame struct {
	Type    FrameType
	Payload []byte
}

// NewFrame creates a frame with the given type and payload.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode encodes the frame to bytes including the header.
func (f *Frame) Encode() ([]byte, error) {
	length := len(f.Payload)
	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, FrameHeaderSize+length)
	buf[0] = byte(f.Type)
	buf[1] = byte(length >> 16)
	buf[2] = byte(length >> 8)
	buf[3] = byte(length)
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf, nil
}

func decodeHeader(header []byte) (FrameType, int, error) {
	ft := FrameType(header[0])
	if !ft.Valid() {
		return 0, 0, ErrInvalidFrameType
	}
	length := int(header[1])<<16 | int(header[2])<<8 | int(header[3])
	return ft, length, nil
}

// DecodeFrame decodes one frame that fills data exactly.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	ft, length, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	switch {
	case len(data) < FrameHeaderSize+length:
		return nil, io.ErrUnexpectedEOF
	case len(data) > FrameHeaderSize+length:
		return nil, ErrTrailingBytes
	}

	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:])
	return &Frame{Type: ft, Payload: payload}, nil
}

// ReadFrame reads a complete frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	ft, length, err := decodeHeader(header)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return &Frame{Type: ft, Payload: payload}, nil
}

// WriteFrame writes a complete frame to w.
func WriteFrame(w io.Writer, f *Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
