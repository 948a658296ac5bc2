package middleware

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	vderrors "github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/sink"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

func resetGlobalMetricsForTest() {
	globalMetricsMu.Lock()
	globalMetrics = nil
	globalMetricsMu.Unlock()
}

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func keyedList(keys ...int) *vdom.VNode {
	items := make([]*vdom.VNode, len(keys))
	for i, k := range keys {
		items[i] = vdom.Li(vdom.Key(k), vdom.Text(fmt.Sprint(k)))
	}
	return vdom.Ul(items)
}

func newMount(name string, mw ...reconcile.Middleware) *reconcile.Mount {
	mem := sink.NewMemory()
	r := reconcile.New(mem, reconcile.WithStrictKeys(true))
	return reconcile.NewMount(r, mem.Root(), reconcile.WithName(name), reconcile.WithMiddleware(mw...))
}

func TestPrometheusMiddleware_RecordsSuccessAndError(t *testing.T) {
	t.Run("success increments success counter and mutations", func(t *testing.T) {
		resetGlobalMetricsForTest()
		reg := prometheus.NewRegistry()

		m := newMount("todo", Prometheus(WithRegistry(reg)))
		ctx := context.Background()
		if _, err := m.Render(ctx, keyedList(1, 2)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := m.Render(ctx, keyedList(2, 1)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		c := GetMetrics()
		if c == nil {
			t.Fatal("expected GetMetrics to return collector after initialization")
		}

		if got := metricCounterValue(t, c.rendersTotal.WithLabelValues("todo", "success")); got != 2 {
			t.Fatalf("renders_total(success)=%v, want 2", got)
		}
		if got := metricCounterValue(t, c.rendersTotal.WithLabelValues("todo", "error")); got != 0 {
			t.Fatalf("renders_total(error)=%v, want 0", got)
		}
		if got := metricHistogramCount(t, c.renderDuration.WithLabelValues("todo")); got != 2 {
			t.Fatalf("render_duration_seconds count=%v, want 2", got)
		}
		if got := metricCounterValue(t, c.mutationsTotal.WithLabelValues("Create")); got != 5 {
			t.Fatalf("mutations_total(Create)=%v, want 5", got)
		}
		if got := metricCounterValue(t, c.mutationsTotal.WithLabelValues("Move")); got != 1 {
			t.Fatalf("mutations_total(Move)=%v, want 1", got)
		}
	})

	t.Run("error increments error counter and categorizes", func(t *testing.T) {
		resetGlobalMetricsForTest()
		reg := prometheus.NewRegistry()

		m := newMount("todo", Prometheus(WithRegistry(reg)))
		_, err := m.Render(context.Background(), keyedList(1, 1))
		if err == nil {
			t.Fatal("expected error to propagate")
		}

		c := GetMetrics()
		if got := metricCounterValue(t, c.rendersTotal.WithLabelValues("todo", "error")); got != 1 {
			t.Fatalf("renders_total(error)=%v, want 1", got)
		}
		if got := metricCounterValue(t, c.renderErrors.WithLabelValues("todo", "duplicate_key")); got != 1 {
			t.Fatalf("render_errors_total(duplicate_key)=%v, want 1", got)
		}
	})
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{vderrors.New("E002"), "stale_handle"},
		{vderrors.New("E003"), "unknown_kind"},
		{fmt.Errorf("render: %w", context.Canceled), "canceled"},
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("%w: bad tree", reconcile.ErrInvariantViolation), "invariant"},
		{errors.New("disk full"), "sink"},
	}
	for _, tc := range tests {
		if got := categorizeError(tc.err); got != tc.want {
			t.Errorf("categorizeError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestPrometheusMiddleware_CanceledRender(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	m := newMount("todo", Prometheus(WithRegistry(reg)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Render(ctx, keyedList(1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Render() error = %v, want context.Canceled", err)
	}

	c := GetMetrics()
	if got := metricCounterValue(t, c.renderErrors.WithLabelValues("todo", "canceled")); got != 1 {
		t.Fatalf("render_errors_total(canceled)=%v, want 1", got)
	}
}

func TestPrometheusMiddleware_SharesCollectors(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	a := newMount("a", Prometheus(WithRegistry(reg)))
	b := newMount("b", Prometheus(WithRegistry(reg)))
	ctx := context.Background()
	if _, err := a.Render(ctx, keyedList(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Render(ctx, keyedList(1)); err != nil {
		t.Fatal(err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "vdiff_renders_total" {
			found = true
			if n := len(f.GetMetric()); n != 2 {
				t.Errorf("vdiff_renders_total has %d series, want 2", n)
			}
		}
	}
	if !found {
		t.Fatal("vdiff_renders_total not registered")
	}
}

func TestMetricsRecordFunctions_WithInitializedMetrics(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	_ = Prometheus(WithRegistry(reg)) // initialize global metrics
	c := GetMetrics()
	if c == nil {
		t.Fatal("expected GetMetrics to return collector after initialization")
	}

	RecordMountCreate()
	RecordMountCreate()
	RecordMountDestroy()
	RecordWatcherConnect()
	RecordWatcherDisconnect()
	RecordFrameSent("Patches")
	RecordFrameSent("Patches")
	RecordWebSocketError("write")

	if got := metricGaugeValue(t, c.activeMounts); got != 1 {
		t.Fatalf("active_mounts=%v, want 1", got)
	}
	if got := metricGaugeValue(t, c.watchers); got != 0 {
		t.Fatalf("watchers=%v, want 0", got)
	}
	if got := metricCounterValue(t, c.framesSent.WithLabelValues("Patches")); got != 2 {
		t.Fatalf("frames_sent_total(Patches)=%v, want 2", got)
	}
	if got := metricCounterValue(t, c.wsErrors.WithLabelValues("write")); got != 1 {
		t.Fatalf("websocket_errors_total(write)=%v, want 1", got)
	}
}

func TestMetricsRecordFunctions_WithoutInitialization(t *testing.T) {
	resetGlobalMetricsForTest()

	RecordMountCreate()
	RecordMountDestroy()
	RecordWatcherConnect()
	RecordWatcherDisconnect()
	RecordFrameSent("Sync")
	RecordWebSocketError("read")

	if GetMetrics() != nil {
		t.Fatal("record functions should not initialize metrics")
	}
}
