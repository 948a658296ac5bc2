package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vango-dev/vdiff/pkg/middleware"
	"github.com/vango-dev/vdiff/pkg/protocol"
	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// liveMount is one named mount: a reconcile.Mount rendering into a
// protocol sink, the mirror built from the flushed batches, and the
// watchers those batches are broadcast to.
//
// mu orders render, flush and broadcast, so every watcher sees batches in
// sequence and a joining watcher's sync frame is never interleaved with a
// batch.
type liveMount struct {
	name   string
	mount  *reconcile.Mount
	sink   *protocol.Sink
	mirror *protocol.Mirror
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[*watcher]struct{}
	closed   bool
}

func newLiveMount(name string, config *ServerConfig, logger *slog.Logger) *liveMount {
	s := protocol.NewSink(nil)
	rec := reconcile.New(s,
		reconcile.WithStrictKeys(config.StrictKeys),
		reconcile.WithLogger(logger),
	)
	return &liveMount{
		name: name,
		mount: reconcile.NewMount(rec, nil,
			reconcile.WithName(name),
			reconcile.WithMiddleware(config.Middleware...),
		),
		sink:     s,
		mirror:   protocol.NewMirror(),
		logger:   logger.With("mount", name),
		watchers: make(map[*watcher]struct{}),
	}
}

// render reconciles next and broadcasts the resulting batch. Patches
// emitted before a failure are still broadcast, since the sink has already
// handed out their IDs.
func (m *liveMount) render(ctx context.Context, next *vdom.VNode) (reconcile.Stats, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return reconcile.Stats{}, 0, ErrServerClosed
	}
	stats, err := m.mount.Render(ctx, next)
	m.flushLocked()
	return stats, m.mirror.Seq(), err
}

func (m *liveMount) flushLocked() {
	pf := m.sink.Flush()
	if pf == nil {
		return
	}
	if err := m.mirror.Apply(pf); err != nil {
		// Sink and mirror disagree; resync every watcher from the mirror.
		m.logger.Error("mirror apply failed", "error", err, "seq", pf.Seq)
		m.broadcastLocked(protocol.ErrorFrame(err, false))
		m.resyncAllLocked()
		return
	}
	m.broadcastLocked(protocol.PatchesFrameOf(pf))
}

func (m *liveMount) broadcastLocked(f *protocol.Frame) {
	if len(m.watchers) == 0 {
		return
	}
	data, err := f.Encode()
	if err != nil {
		m.logger.Error("frame encode failed", "error", err, "type", f.Type)
		return
	}
	for w := range m.watchers {
		if !w.enqueue(data, f.Type) {
			m.logger.Warn("dropping slow watcher", "remote", w.remote)
			middleware.RecordWebSocketError("overflow")
			m.detachLocked(w)
			w.close(protocol.CloseError, ErrSlowWatcher.Error())
		}
	}
}

func (m *liveMount) syncFrameLocked() (*protocol.Frame, []byte, error) {
	f := protocol.SyncFrameOf(m.mirror.SyncPatches())
	data, err := f.Encode()
	return f, data, err
}

// attach registers w and queues its sync frame.
func (m *liveMount) attach(w *watcher) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrServerClosed
	}
	f, data, err := m.syncFrameLocked()
	if err != nil {
		return err
	}
	w.enqueue(data, f.Type)
	m.watchers[w] = struct{}{}
	middleware.RecordWatcherConnect()
	m.logger.Info("watcher attached", "remote", w.remote, "watchers", len(m.watchers))
	return nil
}

func (m *liveMount) detach(w *watcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detachLocked(w)
}

func (m *liveMount) detachLocked(w *watcher) {
	if _, ok := m.watchers[w]; !ok {
		return
	}
	delete(m.watchers, w)
	middleware.RecordWatcherDisconnect()
	m.logger.Info("watcher detached", "remote", w.remote, "watchers", len(m.watchers))
}

// resync sends w a fresh sync frame.
func (m *liveMount) resync(w *watcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watchers[w]; !ok {
		return
	}
	m.resyncLocked(w)
}

func (m *liveMount) resyncLocked(w *watcher) {
	f, data, err := m.syncFrameLocked()
	if err != nil {
		m.logger.Error("sync encode failed", "error", err)
		return
	}
	if !w.enqueue(data, f.Type) {
		m.detachLocked(w)
		w.close(protocol.CloseError, ErrSlowWatcher.Error())
	}
}

func (m *liveMount) resyncAllLocked() {
	for w := range m.watchers {
		m.resyncLocked(w)
	}
}

// html renders the mirror.
func (m *liveMount) html(pretty bool) (string, error) {
	return m.mirror.HTML(pretty)
}

// current returns the last successfully rendered tree, keys included.
func (m *liveMount) current() *vdom.VNode {
	if inst := m.mount.Current(); inst != nil {
		return inst.Node()
	}
	return nil
}

// drop unmounts the tree, broadcasts the removal and closes every watcher
// with CloseUnmounted.
func (m *liveMount) drop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	_, err := m.mount.Unmount(ctx)
	m.flushLocked()
	m.closeLocked(protocol.CloseUnmounted, "mount deleted")
	return err
}

// shutdown closes every watcher and refuses further renders. The rendered
// tree is left in place.
func (m *liveMount) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closeLocked(protocol.CloseServerShutdown, "server shutting down")
	}
}

func (m *liveMount) closeLocked(reason protocol.CloseReason, message string) {
	m.closed = true
	for w := range m.watchers {
		m.detachLocked(w)
		w.close(reason, message)
	}
}
