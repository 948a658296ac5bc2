package protocol

// ControlType identifies the type of control message.
type ControlType uint8

const (
	ControlResync ControlType = 0x01 // Client asks for a fresh sync frame
	ControlClose  ControlType = 0x02 // Stream is ending
)

// String returns the string representation of the control type.
func (ct ControlType) String() string {
	switch ct {
	case ControlResync:
		return "Resync"
	case ControlClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// CloseReason indicates why a stream is closing.
type CloseReason uint8

const (
	CloseNormal         CloseReason = 0x00 // Normal closure
	CloseUnmounted      CloseReason = 0x01 // The mount was deleted
	CloseServerShutdown CloseReason = 0x02 // Server shutting down
	CloseError          CloseReason = 0x03 // Error occurred
)

// String returns the string representation of the close reason.
func (cr CloseReason) String() string {
	switch cr {
	case CloseNormal:
		return "Normal"
	case CloseUnmounted:
		return "Unmounted"
	case CloseServerShutdown:
		return "ServerShutdown"
	case CloseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Control is the payload of a FrameControl frame. LastSeq is set on resync
// requests; Reason and Message on close notices.
type Control struct {
	Type    ControlType
	LastSeq uint64
	Reason  CloseReason
	Message string
}

// EncodeControl encodes a control message to bytes.
func EncodeControl(c *Control) []byte {
	e := NewEncoder()
	e.WriteByte(byte(c.Type))
	switch c.Type {
	case ControlResync:
		e.WriteUvarint(c.LastSeq)
	case ControlClose:
		e.WriteByte(byte(c.Reason))
		e.WriteString(c.Message)
	}
	return e.Bytes()
}

// DecodeControl decodes a control message.
func DecodeControl(data []byte) (*Control, error) {
	d := NewDecoder(data)
	ct, err := d.ReadByte()
	if err != nil {
		return nil, err
	}

	c := &Control{Type: ControlType(ct)}
	switch c.Type {
	case ControlResync:
		if c.LastSeq, err = d.ReadUvarint(); err != nil {
			return nil, err
		}
	case ControlClose:
		reason, err := d.ReadByte()
		if err != nil {
			return nil, err
		}
		c.Reason = CloseReason(reason)
		if c.Message, err = d.ReadString(); err != nil {
			return nil, err
		}
	default:
		return nil, ErrInvalidFrameType
	}
	return c, nil
}

// ResyncFrame builds a resync request frame.
func ResyncFrame(lastSeq uint64) *Frame {
	return NewFrame(FrameControl, EncodeControl(&Control{Type: ControlResync, LastSeq: lastSeq}))
}

// CloseFrame builds a close notice frame.
func CloseFrame(reason CloseReason, message string) *Frame {
	return NewFrame(FrameControl, EncodeControl(&Control{Type: ControlClose, Reason: reason, Message: message}))
}
