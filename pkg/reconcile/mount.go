package reconcile

import (
	"context"
	"sync"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Cycle describes one render of a Mount as seen by middleware.
type Cycle struct {
	ctx context.Context

	// Mount is the name of the mount being rendered.
	Mount string

	// Next is the tree being rendered; nil for an unmount.
	Next *vdom.VNode

	// Prev is the instance rendered by the previous successful cycle.
	Prev *Instance

	// Stats is filled in once the reconcile pass has run.
	Stats Stats
}

// Context returns the context the pass runs under.
func (c *Cycle) Context() context.Context {
	return c.ctx
}

// SetContext replaces the context used by the rest of the chain.
// Tracing middleware uses it to hand a span context down.
func (c *Cycle) SetContext(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}

// Middleware wraps a render cycle.
type Middleware interface {
	// Handle processes the cycle and optionally calls next.
	// Returning without calling next skips the reconcile pass.
	Handle(c *Cycle, next func() error) error
}

// MiddlewareFunc is a function adapter for Middleware.
type MiddlewareFunc func(c *Cycle, next func() error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(c *Cycle, next func() error) error {
	return f(c, next)
}

// Chain combines several middleware into one, run first to last.
func Chain(mw ...Middleware) Middleware {
	return MiddlewareFunc(func(c *Cycle, next func() error) error {
		return compose(c, mw, next)
	})
}

func compose(c *Cycle, mw []Middleware, handler func() error) error {
	chain := handler
	for i := len(mw) - 1; i >= 0; i-- {
		m := mw[i]
		next := chain
		chain = func() error {
			return m.Handle(c, next)
		}
	}
	return chain()
}

// Mount owns one rendered root under a fixed parent handle. It keeps the
// last applied instance between renders and serializes Render calls.
type Mount struct {
	name   string
	rec    *Reconciler
	parent Handle
	mw     []Middleware

	mu      sync.Mutex
	current *Instance
}

// MountOption configures a Mount.
type MountOption func(*Mount)

// WithName sets the mount name reported to middleware.
func WithName(name string) MountOption {
	return func(m *Mount) {
		m.name = name
	}
}

// WithMiddleware appends middleware to the render chain.
func WithMiddleware(mw ...Middleware) MountOption {
	return func(m *Mount) {
		m.mw = append(m.mw, mw...)
	}
}

// NewMount creates an empty mount rendering under parent.
func NewMount(r *Reconciler, parent Handle, opts ...MountOption) *Mount {
	m := &Mount{
		name:   "default",
		rec:    r,
		parent: parent,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the mount name.
func (m *Mount) Name() string {
	return m.name
}

// Parent returns the handle the mount renders under.
func (m *Mount) Parent() Handle {
	return m.parent
}

// Current returns the last successfully applied instance, or nil.
func (m *Mount) Current() *Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Render reconciles next against the last applied tree. On success next
// becomes the retained tree. On failure the retained tree is left as it was;
// mutations already emitted are not rolled back.
func (m *Mount) Render(ctx context.Context, next *vdom.VNode) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &Cycle{ctx: ctx, Mount: m.name, Next: next, Prev: m.current}
	err := compose(c, m.mw, func() error {
		inst, stats, err := m.rec.Reconcile(c.ctx, m.parent, c.Next, c.Prev)
		c.Stats = stats
		if err != nil {
			return err
		}
		m.current = inst
		return nil
	})
	return c.Stats, err
}

// Unmount removes the rendered tree, if any.
func (m *Mount) Unmount(ctx context.Context) (Stats, error) {
	return m.Render(ctx, nil)
}
