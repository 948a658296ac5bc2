package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/vdiff/pkg/protocol"
)

// ClosedError is returned by Watcher.Next once the server has sent a close
// notice.
type ClosedError struct {
	Reason  protocol.CloseReason
	Message string
}

// Error returns the close reason and message.
func (e *ClosedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server: stream closed: %s", e.Reason)
	}
	return fmt.Sprintf("server: stream closed: %s: %s", e.Reason, e.Message)
}

// Watcher follows one mount over a WebSocket and mirrors its output.
type Watcher struct {
	conn   *websocket.Conn
	mirror *protocol.Mirror

	writeMu sync.Mutex
	// resyncing is set between a resync request and the sync frame that
	// answers it; patch batches in between are skipped.
	resyncing bool
}

// Dial connects to a mount's WebSocket endpoint, e.g.
// "ws://localhost:7070/mounts/todo/ws".
func Dial(ctx context.Context, url string) (*Watcher, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("server: dial %s: %w", url, err)
	}
	return &Watcher{conn: conn, mirror: protocol.NewMirror()}, nil
}

// Mirror returns the mirrored output.
func (w *Watcher) Mirror() *protocol.Mirror {
	return w.mirror
}

// HTML renders the mirrored output.
func (w *Watcher) HTML(pretty bool) (string, error) {
	return w.mirror.HTML(pretty)
}

// Next reads one frame and applies it to the mirror. A batch that does not
// follow the mirror's sequence, or that the mirror rejects, triggers a
// resync request; the frame is still returned. Error frames are returned
// as *protocol.ErrorMessage errors and close notices as *ClosedError.
func (w *Watcher) Next() (*protocol.Frame, error) {
	_, msg, err := w.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	f, err := protocol.DecodeFrame(msg)
	if err != nil {
		return nil, err
	}

	switch f.Type {
	case protocol.FrameSync:
		if err := w.mirror.ApplyFrame(f); err != nil {
			return f, err
		}
		w.resyncing = false

	case protocol.FramePatches:
		if w.resyncing {
			return f, nil
		}
		pf, err := protocol.DecodePatches(f.Payload)
		if err != nil {
			return f, err
		}
		if pf.Seq != w.mirror.Seq()+1 || w.mirror.Apply(pf) != nil {
			return f, w.Resync()
		}

	case protocol.FrameControl:
		c, err := protocol.DecodeControl(f.Payload)
		if err != nil {
			return f, err
		}
		if c.Type == protocol.ControlClose {
			return f, &ClosedError{Reason: c.Reason, Message: c.Message}
		}

	case protocol.FrameError:
		em, err := protocol.DecodeErrorMessage(f.Payload)
		if err != nil {
			return f, err
		}
		return f, em
	}
	return f, nil
}

// Resync asks the server for a fresh sync frame.
func (w *Watcher) Resync() error {
	w.resyncing = true
	return w.send(protocol.ResyncFrame(w.mirror.Seq()))
}

func (w *Watcher) send(f *protocol.Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Watch calls fn after every frame until the stream closes, fn returns an
// error, or ctx is canceled. A normal close from the server ends Watch with
// a nil error. Error frames that are not fatal are passed to fn as frames.
func (w *Watcher) Watch(ctx context.Context, fn func(f *protocol.Frame) error) error {
	stop := context.AfterFunc(ctx, func() { w.conn.Close() })
	defer stop()

	for {
		f, err := w.Next()
		var em *protocol.ErrorMessage
		var closed *ClosedError
		switch {
		case err == nil:
		case stderrors.As(err, &em) && !em.Fatal:
		case stderrors.As(err, &closed):
			if closed.Reason == protocol.CloseNormal || closed.Reason == protocol.CloseUnmounted {
				return nil
			}
			return err
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
}

// Close tells the server the watcher is leaving and closes the connection.
func (w *Watcher) Close() error {
	w.send(protocol.CloseFrame(protocol.CloseNormal, ""))
	w.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	w.writeMu.Unlock()
	return w.conn.Close()
}
