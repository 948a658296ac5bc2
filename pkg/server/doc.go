// Package server hosts named mounts and streams their patches to watchers.
//
// Each mount owns a reconcile.Mount rendering into a protocol.Sink. After
// every render the sink is flushed into one numbered batch, applied to a
// server-side protocol.Mirror and broadcast to every watcher of the mount.
// The mirror is the source of GET responses and of the sync frame a new
// watcher receives on connect.
//
// # Routes
//
//	GET    /healthz
//	GET    /mounts                     mount names
//	PUT    /mounts/{name}              render a document (YAML, JSON or HTML)
//	GET    /mounts/{name}              current HTML (?pretty=1, ?format=yaml)
//	DELETE /mounts/{name}              unmount and drop
//	GET    /mounts/{name}/ws           WebSocket stream
//	POST   /mounts/{name}/snapshot     save the tree (?as=other)
//	POST   /mounts/{name}/restore      render a saved tree (?from=other)
//	GET    /snapshots                  stored snapshots
//
// # Stream
//
// A watcher first receives a FrameSync carrying the current tree, then one
// FramePatches per render. Frames are queued per watcher; a watcher that
// falls SendBuffer frames behind is disconnected. The server pings every
// PingInterval and drops watchers silent for PongTimeout. A watcher may
// send a resync control frame at any time to get a fresh FrameSync.
//
// Dial connects a Watcher, which mirrors the stream client-side:
//
//	w, err := server.Dial(ctx, "ws://localhost:7070/mounts/todo/ws")
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	return w.Watch(ctx, func(*protocol.Frame) error {
//	    html, _ := w.HTML(true)
//	    fmt.Println(html)
//	    return nil
//	})
package server
