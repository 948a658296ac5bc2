package reconcile

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// ErrInvariantViolation is returned in strict mode when the next tree breaks
// an input contract, such as duplicate sibling keys.
var ErrInvariantViolation = stderrors.New("reconcile: invariant violation")

// Instance is a rendered tree: the VNode it was built from plus the sink
// handle of every node. Instances are produced by Reconcile and must be
// treated as read-only.
type Instance struct {
	node     *vdom.VNode
	handle   Handle
	children []*Instance
}

// Node returns the VNode this instance was rendered from.
func (in *Instance) Node() *vdom.VNode {
	if in == nil {
		return nil
	}
	return in.node
}

// Handle returns the sink handle of the root node.
func (in *Instance) Handle() Handle {
	if in == nil {
		return nil
	}
	return in.handle
}

// Children returns the child instances in order.
func (in *Instance) Children() []*Instance {
	if in == nil {
		return nil
	}
	return in.children
}

// Reconciler applies tree changes to a Sink. It holds no per-pass state, so
// one Reconciler may serve several independent roots, provided passes over
// the same output are not run concurrently.
type Reconciler struct {
	sink   Sink
	strict bool
	logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithStrictKeys makes Reconcile validate the next tree before emitting any
// mutation and fail with ErrInvariantViolation on duplicate sibling keys.
func WithStrictKeys(strict bool) Option {
	return func(r *Reconciler) {
		r.strict = strict
	}
}

// WithLogger sets the logger used for per-pass debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Reconciler that emits mutations to sink.
func New(sink Sink, opts ...Option) *Reconciler {
	r := &Reconciler{
		sink:   sink,
		logger: slog.Default().With("component", "reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sink returns the sink this reconciler writes to.
func (r *Reconciler) Sink() Sink {
	return r.sink
}

// Reconcile transforms the output under parent from prev's shape into next's
// shape and returns the new Instance (nil when next is nil).
//
//   - prev nil, next set: the whole next subtree is created under parent.
//   - next nil, prev set: prev's root handle is removed.
//   - both nil: no-op.
//   - different kind or tag: prev is removed, then next is created.
//   - otherwise the root is patched in place and children are reconciled.
//
// ctx is checked once before the pass starts; a pass is never interrupted.
func (r *Reconciler) Reconcile(ctx context.Context, parent Handle, next *vdom.VNode, prev *Instance) (*Instance, Stats, error) {
	if err := ctx.Err(); err != nil {
		return prev, Stats{}, err
	}
	if r.strict {
		if err := vdom.ValidateKeys(next); err != nil {
			return prev, Stats{}, invariantError(err)
		}
	}

	p := &pass{sink: r.sink}
	inst, err := p.reconcile(parent, nil, next, prev)
	if err != nil {
		r.logger.Debug("reconcile failed", "error", err, "mutations", p.stats.Total())
		return inst, p.stats, err
	}

	r.logger.Debug("reconciled",
		"creates", p.stats.Creates,
		"removes", p.stats.Removes,
		"moves", p.stats.Moves,
		"set_attrs", p.stats.SetAttrs,
		"clear_attrs", p.stats.ClearAttrs,
		"set_texts", p.stats.SetTexts,
	)
	return inst, p.stats, nil
}

func invariantError(err error) error {
	var dup *vdom.DuplicateKeyError
	if stderrors.As(err, &dup) {
		return errors.New("E001").
			WithDetail(dup.Error()).
			WithSuggestion("Give every sibling a distinct key").
			Wrap(fmt.Errorf("%w: %w", ErrInvariantViolation, err))
	}
	return errors.New("E003").
		WithDetail(err.Error()).
		Wrap(fmt.Errorf("%w: %w", ErrInvariantViolation, err))
}

// pass is the state of one Reconcile call.
type pass struct {
	sink  Sink
	stats Stats
}

func (p *pass) reconcile(parent, before Handle, next *vdom.VNode, prev *Instance) (*Instance, error) {
	switch {
	case next == nil && prev == nil:
		return nil, nil
	case prev == nil:
		return p.mount(parent, before, next)
	case next == nil:
		return nil, p.remove(prev)
	case !vdom.SameElement(prev.node, next):
		if err := p.remove(prev); err != nil {
			return prev, err
		}
		return p.mount(parent, before, next)
	default:
		return p.patch(prev, next)
	}
}

// mount creates node and its whole subtree. The root goes before before;
// descendants are appended in order.
func (p *pass) mount(parent, before Handle, node *vdom.VNode) (*Instance, error) {
	if !node.Kind.Valid() {
		return nil, unknownKind(node)
	}

	h, err := p.sink.Create(node, parent, before)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %s: %w", OpCreate, err)
	}
	p.stats.add(OpCreate)

	inst := &Instance{node: node, handle: h}
	if node.Kind == vdom.KindText {
		return inst, nil
	}

	for _, child := range node.Children {
		if child == nil {
			continue
		}
		ci, err := p.mount(h, nil, child)
		if err != nil {
			return inst, err
		}
		inst.children = append(inst.children, ci)
	}
	return inst, nil
}

// patch updates prev in place to look like next. The caller has checked
// SameElement.
func (p *pass) patch(prev *Instance, next *vdom.VNode) (*Instance, error) {
	p.stats.Visited++
	inst := &Instance{node: next, handle: prev.handle}

	switch next.Kind {
	case vdom.KindText:
		if prev.node.Text != next.Text {
			if err := p.setText(prev.handle, next.Text); err != nil {
				return prev, err
			}
		}
		return inst, nil

	case vdom.KindElement:
		if err := p.patchAttrs(prev.handle, prev.node.Attrs, next.Attrs); err != nil {
			return prev, err
		}
		children, err := p.reconcileChildren(prev.handle, prev.children, next.Children)
		if err != nil {
			return prev, err
		}
		inst.children = children
		return inst, nil

	default:
		return prev, unknownKind(next)
	}
}

// patchAttrs clears attributes missing from next, then sets attributes that
// are new or changed. Unchanged attributes are left alone.
func (p *pass) patchAttrs(h Handle, prev, next vdom.Attrs) error {
	for _, a := range prev {
		if !next.Has(a.Name) {
			if err := p.clearAttr(h, a.Name); err != nil {
				return err
			}
		}
	}
	for _, a := range next {
		if old, ok := prev.Get(a.Name); ok && old == a.Value {
			continue
		}
		if err := p.setAttr(h, a.Name, a.Value); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) remove(prev *Instance) error {
	if err := p.sink.Remove(prev.handle); err != nil {
		return fmt.Errorf("reconcile: %s: %w", OpRemove, err)
	}
	p.stats.add(OpRemove)
	return nil
}

func (p *pass) move(h, before Handle) error {
	if err := p.sink.Move(h, before); err != nil {
		return fmt.Errorf("reconcile: %s: %w", OpMove, err)
	}
	p.stats.add(OpMove)
	return nil
}

func (p *pass) setAttr(h Handle, name, value string) error {
	if err := p.sink.SetAttribute(h, name, value); err != nil {
		return fmt.Errorf("reconcile: %s %s: %w", OpSetAttribute, name, err)
	}
	p.stats.add(OpSetAttribute)
	return nil
}

func (p *pass) clearAttr(h Handle, name string) error {
	if err := p.sink.ClearAttribute(h, name); err != nil {
		return fmt.Errorf("reconcile: %s %s: %w", OpClearAttribute, name, err)
	}
	p.stats.add(OpClearAttribute)
	return nil
}

func (p *pass) setText(h Handle, value string) error {
	if err := p.sink.SetText(h, value); err != nil {
		return fmt.Errorf("reconcile: %s: %w", OpSetText, err)
	}
	p.stats.add(OpSetText)
	return nil
}

func unknownKind(node *vdom.VNode) error {
	return errors.New("E003").
		WithDetail(fmt.Sprintf("node kind %d is neither Element nor Text", node.Kind)).
		Wrap(ErrInvariantViolation)
}
