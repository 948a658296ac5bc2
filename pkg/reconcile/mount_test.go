package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/sink"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

func TestMountRenderSequence(t *testing.T) {
	mem := sink.NewMemory()
	m := reconcile.NewMount(reconcile.New(mem), mem.Root(), reconcile.WithName("todo"))

	if m.Name() != "todo" || m.Parent() != mem.Root() {
		t.Errorf("Name() = %q, Parent() = %v", m.Name(), m.Parent())
	}
	if m.Current() != nil {
		t.Error("new mount should have no current instance")
	}

	ctx := context.Background()
	first := keyedList(1, 2)
	stats, err := m.Render(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Creates != 5 {
		t.Errorf("first render Creates = %d, want 5", stats.Creates)
	}
	if m.Current().Node() != first {
		t.Error("Current() should hold the last rendered tree")
	}

	stats, err = m.Render(ctx, keyedList(2, 1))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Moves != 1 || stats.Creates != 0 {
		t.Errorf("second render stats = %+v", stats)
	}

	stats, err = m.Unmount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Removes != 1 || m.Current() != nil || mem.Len() != 0 {
		t.Errorf("unmount stats = %+v, current = %v, live = %d", stats, m.Current(), mem.Len())
	}
}

func TestMountKeepsTreeOnError(t *testing.T) {
	mem := sink.NewMemory()
	m := reconcile.NewMount(reconcile.New(mem, reconcile.WithStrictKeys(true)), nil)
	ctx := context.Background()

	good := vdom.Ul(vdom.Li(vdom.Key(1)))
	if _, err := m.Render(ctx, good); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Render(ctx, vdom.Ul(vdom.Li(vdom.Key(1)), vdom.Li(vdom.Key(1)))); !errors.Is(err, reconcile.ErrInvariantViolation) {
		t.Fatalf("error = %v, want ErrInvariantViolation", err)
	}
	if m.Current().Node() != good {
		t.Error("failed render must keep the previous tree")
	}
}

func TestMountMiddlewareOrder(t *testing.T) {
	var calls []string
	trace := func(name string) reconcile.Middleware {
		return reconcile.MiddlewareFunc(func(c *reconcile.Cycle, next func() error) error {
			calls = append(calls, name+":before")
			err := next()
			calls = append(calls, name+":after")
			return err
		})
	}

	mem := sink.NewMemory()
	m := reconcile.NewMount(reconcile.New(mem), nil,
		reconcile.WithName("app"),
		reconcile.WithMiddleware(trace("outer"), reconcile.Chain(trace("a"), trace("b"))),
		reconcile.WithMiddleware(reconcile.MiddlewareFunc(func(c *reconcile.Cycle, next func() error) error {
			if c.Mount != "app" || c.Next == nil || c.Prev != nil {
				t.Errorf("cycle = %+v", c)
			}
			err := next()
			if c.Stats.Creates != 1 {
				t.Errorf("stats not filled in after next: %+v", c.Stats)
			}
			return err
		})),
	)

	if _, err := m.Render(context.Background(), vdom.Div()); err != nil {
		t.Fatal(err)
	}

	want := []string{"outer:before", "a:before", "b:before", "b:after", "a:after", "outer:after"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("middleware order mismatch (-want +got):\n%s", diff)
	}
}

func TestMountMiddlewareCanSkip(t *testing.T) {
	mem := sink.NewMemory()
	skip := reconcile.MiddlewareFunc(func(c *reconcile.Cycle, next func() error) error {
		return nil
	})
	m := reconcile.NewMount(reconcile.New(mem), nil, reconcile.WithMiddleware(skip))

	if _, err := m.Render(context.Background(), vdom.Div()); err != nil {
		t.Fatal(err)
	}
	if mem.Len() != 0 || m.Current() != nil {
		t.Error("skipped cycle should not render")
	}
}

type ctxKey struct{}

func TestCycleSetContext(t *testing.T) {
	mem := sink.NewMemory()
	var seen any
	m := reconcile.NewMount(reconcile.New(mem), nil, reconcile.WithMiddleware(
		reconcile.MiddlewareFunc(func(c *reconcile.Cycle, next func() error) error {
			c.SetContext(context.WithValue(c.Context(), ctxKey{}, "v"))
			c.SetContext(nil)
			return next()
		}),
		reconcile.MiddlewareFunc(func(c *reconcile.Cycle, next func() error) error {
			seen = c.Context().Value(ctxKey{})
			return next()
		}),
	))

	if _, err := m.Render(context.Background(), vdom.Div()); err != nil {
		t.Fatal(err)
	}
	if seen != "v" {
		t.Errorf("context value = %v, want v", seen)
	}
}

func TestMountConcurrentRenders(t *testing.T) {
	mem := sink.NewMemory()
	m := reconcile.NewMount(reconcile.New(mem), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []int{i, i + 1, i + 2}
			if _, err := m.Render(context.Background(), keyedList(keys...)); err != nil {
				t.Errorf("Render() error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if !vdom.EqualContent(mem.Snapshot(), m.Current().Node()) {
		t.Error("sink does not match the retained tree after concurrent renders")
	}
}
