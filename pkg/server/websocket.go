package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/vdiff/pkg/middleware"
	"github.com/vango-dev/vdiff/pkg/protocol"
)

// maxClientFrame bounds frames read from watchers; they only send control
// frames.
const maxClientFrame = 4096

type outFrame struct {
	data []byte
	typ  protocol.FrameType
}

// watcher is one WebSocket connection following a mount.
type watcher struct {
	conn   *websocket.Conn
	remote string
	config *ServerConfig
	logger *slog.Logger

	send chan outFrame
	done chan struct{}

	closeOnce  sync.Once
	closeFrame []byte
}

func newWatcher(conn *websocket.Conn, config *ServerConfig, logger *slog.Logger) *watcher {
	remote := conn.RemoteAddr().String()
	return &watcher{
		conn:   conn,
		remote: remote,
		config: config,
		logger: logger.With("remote", remote),
		send:   make(chan outFrame, config.SendBuffer),
		done:   make(chan struct{}),
	}
}

// enqueue queues an encoded frame. It returns false when the queue is full.
// Frames queued after close are dropped.
func (w *watcher) enqueue(data []byte, typ protocol.FrameType) bool {
	select {
	case <-w.done:
		return true
	default:
	}
	select {
	case w.send <- outFrame{data: data, typ: typ}:
		return true
	default:
		return false
	}
}

// close asks the write loop to flush queued frames, send a close notice and
// hang up.
func (w *watcher) close(reason protocol.CloseReason, message string) {
	w.closeOnce.Do(func() {
		if data, err := protocol.CloseFrame(reason, message).Encode(); err == nil {
			w.closeFrame = data
		}
		close(w.done)
	})
}

func (w *watcher) write(f outFrame) error {
	w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	if err := w.conn.WriteMessage(websocket.BinaryMessage, f.data); err != nil {
		w.logger.Debug("write error", "error", err)
		middleware.RecordWebSocketError("write")
		return err
	}
	middleware.RecordFrameSent(f.typ.String())
	return nil
}

// writeLoop sends queued frames and heartbeat pings until the watcher is
// closed or a write fails.
func (w *watcher) writeLoop() {
	ticker := time.NewTicker(w.config.PingInterval)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case f := <-w.send:
			if err := w.write(f); err != nil {
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(w.config.WriteTimeout)
			if err := w.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				w.logger.Debug("ping error", "error", err)
				return
			}

		case <-w.done:
			w.drain()
			return
		}
	}
}

// drain writes whatever is still queued, then the close notice.
func (w *watcher) drain() {
	for {
		select {
		case f := <-w.send:
			if err := w.write(f); err != nil {
				return
			}
		default:
			if w.closeFrame != nil {
				w.write(outFrame{data: w.closeFrame, typ: protocol.FrameControl})
			}
			deadline := time.Now().Add(w.config.WriteTimeout)
			w.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

// readLoop handles control frames from the watcher until the connection
// drops. It blocks.
func (w *watcher) readLoop(m *liveMount) {
	defer func() {
		m.detach(w)
		w.close(protocol.CloseNormal, "")
	}()

	w.conn.SetReadLimit(maxClientFrame)
	w.conn.SetReadDeadline(time.Now().Add(w.config.PongTimeout))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(w.config.PongTimeout))
	})

	for {
		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				w.logger.Error("read error", "error", err)
				middleware.RecordWebSocketError("read")
			}
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(w.config.PongTimeout))

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			w.logger.Warn("frame decode error", "error", err)
			w.sendError(err)
			continue
		}
		if frame.Type != protocol.FrameControl {
			w.logger.Warn("unexpected frame type", "type", frame.Type)
			continue
		}

		c, err := protocol.DecodeControl(frame.Payload)
		if err != nil {
			w.logger.Warn("control decode error", "error", err)
			w.sendError(err)
			continue
		}
		switch c.Type {
		case protocol.ControlResync:
			w.logger.Info("resync requested", "last_seq", c.LastSeq)
			m.resync(w)
		case protocol.ControlClose:
			w.logger.Debug("watcher closing", "reason", c.Reason, "message", c.Message)
			return
		}
	}
}

func (w *watcher) sendError(err error) {
	f := protocol.ErrorFrame(err, false)
	if data, encErr := f.Encode(); encErr == nil {
		w.enqueue(data, f.Type)
	}
}
