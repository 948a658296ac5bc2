package protocol

import "github.com/vango-dev/vdiff/internal/errors"

// ErrorMessage is the payload of a FrameError frame. Code is a vdiff error
// code ("E021") when one is known.
type ErrorMessage struct {
	Code    string
	Message string
	Fatal   bool // If true, the sender closes the stream
}

// NewErrorMessage builds an ErrorMessage from err, keeping its code.
func NewErrorMessage(err error, fatal bool) *ErrorMessage {
	return &ErrorMessage{
		Code:    errors.CodeOf(err),
		Message: err.Error(),
		Fatal:   fatal,
	}
}

// EncodeErrorMessage encodes an ErrorMessage to bytes.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	e.WriteString(em.Code)
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
	return e.Bytes()
}

// DecodeErrorMessage decodes an ErrorMessage from bytes.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)

	code, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	message, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	fatal, err := d.ReadBool()
	if err != nil {
		return nil, err
	}

	return &ErrorMessage{
		Code:    code,
		Message: message,
		Fatal:   fatal,
	}, nil
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	msg := em.Message
	if em.Fatal {
		msg = "fatal: " + msg
	}
	return "remote: " + msg
}

// ErrorFrame builds a FrameError frame for err.
func ErrorFrame(err error, fatal bool) *Frame {
	return NewFrame(FrameError, EncodeErrorMessage(NewErrorMessage(err, fatal)))
}
