package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/middleware"
	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/snapshot"
	"github.com/vango-dev/vdiff/pkg/treedoc"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Server hosts named mounts over HTTP and streams their patches to
// WebSocket watchers.
type Server struct {
	config   *ServerConfig
	router   chi.Router
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	mounts map[string]*liveMount
	closed bool

	// conns tracks watcher goroutines so Shutdown can wait for them.
	conns sync.WaitGroup

	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server. Unset config fields take their defaults.
func New(config *ServerConfig) *Server {
	config = config.withDefaults()
	s := &Server{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		mounts: make(map[string]*liveMount),
		logger: slog.Default().With("component", "server"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.config.MetricsPath != "" {
		r.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.config.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/mounts", s.handleList)
	r.Route("/mounts/{name}", func(r chi.Router) {
		r.Get("/", s.handleGet)
		r.Put("/", s.handlePut)
		r.Delete("/", s.handleDelete)
		r.Get("/ws", s.handleWebSocket)
		r.Post("/snapshot", s.handleSnapshot)
		r.Post("/restore", s.handleRestore)
	})
	r.Get("/snapshots", s.handleSnapshots)
	return r
}

// logRequests logs each request at debug level with slog.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Config returns the effective server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// SetLogger sets the server logger. Call it before serving.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// lookup returns the named mount, creating it when create is set.
func (s *Server) lookup(name string, create bool) (*liveMount, error) {
	s.mu.RLock()
	m, ok := s.mounts[name]
	closed := s.closed
	s.mu.RUnlock()
	if ok {
		return m, nil
	}
	if closed {
		return nil, ErrServerClosed
	}
	if !create {
		return nil, mountNotFound(name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServerClosed
	}
	if m, ok := s.mounts[name]; ok {
		return m, nil
	}
	m = newLiveMount(name, s.config, s.logger)
	s.mounts[name] = m
	middleware.RecordMountCreate()
	s.logger.Info("mount created", "mount", name)
	return m, nil
}

// RenderResult reports one render.
type RenderResult struct {
	Mount string          `json:"mount"`
	Seq   uint64          `json:"seq"`
	Stats reconcile.Stats `json:"stats"`
}

// Render renders node into the named mount, creating the mount on first
// use, and broadcasts the resulting patches.
func (s *Server) Render(ctx context.Context, name string, node *vdom.VNode) (*RenderResult, error) {
	m, err := s.lookup(name, true)
	if err != nil {
		return nil, err
	}
	stats, seq, err := m.render(ctx, node)
	if err != nil {
		return nil, err
	}
	return &RenderResult{Mount: name, Seq: seq, Stats: stats}, nil
}

// Unmount removes the named mount's tree, notifies its watchers and drops
// the mount.
func (s *Server) Unmount(ctx context.Context, name string) error {
	s.mu.Lock()
	m, ok := s.mounts[name]
	if ok {
		delete(s.mounts, name)
	}
	s.mu.Unlock()
	if !ok {
		return mountNotFound(name)
	}

	middleware.RecordMountDestroy()
	s.logger.Info("mount deleted", "mount", name)
	return m.drop(ctx)
}

// HTML returns the named mount's current output.
func (s *Server) HTML(name string, pretty bool) (string, error) {
	m, err := s.lookup(name, false)
	if err != nil {
		return "", err
	}
	return m.html(pretty)
}

// Tree returns the named mount's last rendered tree, or nil when nothing is
// rendered.
func (s *Server) Tree(name string) (*vdom.VNode, error) {
	m, err := s.lookup(name, false)
	if err != nil {
		return nil, err
	}
	return m.current(), nil
}

// Mounts returns the mount names, sorted.
func (s *Server) Mounts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.mounts))
	for name := range s.mounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot stores the named mount's tree under as (the mount name if empty).
func (s *Server) Snapshot(ctx context.Context, name, as string) error {
	if s.config.Store == nil {
		return ErrSnapshotsDisabled
	}
	node, err := s.Tree(name)
	if err != nil {
		return err
	}
	if as == "" {
		as = name
	}
	return s.config.Store.Save(ctx, as, node)
}

// Restore renders the snapshot stored under from (the mount name if empty)
// into the named mount.
func (s *Server) Restore(ctx context.Context, name, from string) (*RenderResult, error) {
	if s.config.Store == nil {
		return nil, ErrSnapshotsDisabled
	}
	if from == "" {
		from = name
	}
	node, err := s.config.Store.Load(ctx, from)
	if err != nil {
		return nil, err
	}
	return s.Render(ctx, name, node)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"mounts": s.Mounts()})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty"))

	format := r.URL.Query().Get("format")
	if format == "" || format == "html" {
		html, err := s.HTML(name, pretty)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", treedoc.FormatHTML.ContentType())
		io.WriteString(w, html)
		return
	}

	f, err := treedoc.ParseFormat(format)
	if err != nil {
		writeError(w, err)
		return
	}
	node, err := s.Tree(name)
	if err != nil {
		writeError(w, err)
		return
	}
	if node == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	data, err := treedoc.Marshal(f, node)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Write(data)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	format, err := treedoc.FormatFromContentType(r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		writeError(w, err)
		return
	}
	node, err := treedoc.ParseBytes(format, body)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.Render(r.Context(), name, node)
	if err != nil {
		s.logger.Warn("render failed", "mount", name, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.Unmount(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	as := r.URL.Query().Get("as")
	if err := s.Snapshot(r.Context(), name, as); err != nil {
		writeError(w, err)
		return
	}
	if as == "" {
		as = name
	}
	writeJSON(w, http.StatusCreated, map[string]string{"mount": name, "snapshot": as})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	res, err := s.Restore(r.Context(), chi.URLParam(r, "name"), r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.config.Store == nil {
		writeError(w, ErrSnapshotsDisabled)
		return
	}
	infos, err := s.config.Store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if infos == nil {
		infos = []snapshot.Info{}
	}
	writeJSON(w, http.StatusOK, map[string][]snapshot.Info{"snapshots": infos})
}

// handleWebSocket upgrades the connection and streams the mount. Watching
// a mount that does not exist yet creates it empty.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m, err := s.lookup(name, true)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		middleware.RecordWebSocketError("upgrade")
		return
	}

	wt := newWatcher(conn, s.config, m.logger)
	s.conns.Add(2)
	if err := m.attach(wt); err != nil {
		s.conns.Add(-2)
		deadline := time.Now().Add(s.config.WriteTimeout)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()), deadline)
		conn.Close()
		return
	}

	go func() {
		defer s.conns.Done()
		wt.writeLoop()
	}()
	defer s.conns.Done()
	wt.readLoop(m)
}

// Run listens on the configured address until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Newf(errors.CategoryCLI, "listen on %s", s.config.Address).Wrap(err)

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every watcher, refuses new renders, and stops the HTTP
// server. Rendered trees are kept so snapshots still see them.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	s.closed = true
	mounts := make([]*liveMount, 0, len(s.mounts))
	for _, m := range s.mounts {
		mounts = append(mounts, m)
	}
	s.mu.Unlock()

	for _, m := range mounts {
		m.shutdown()
	}

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("watchers did not close in time")
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return fmt.Errorf("server: shutdown: %w", err)
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
