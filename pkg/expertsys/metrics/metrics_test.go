package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cognicore/expertsys/pkg/expertsys/inference/simple"
	"github.com/cognicore/expertsys/pkg/expertsys/kb"
)

func TestRecorderCountsSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewRecorder(reg)

	base := kb.New()
	if err := base.AddRule("R1", kb.Facts("a"), kb.Facts("b", "c"), 1, ""); err != nil {
		t.Fatal(err)
	}
	if err := base.AddRule("R2", kb.Facts("b"), kb.Facts("d"), 1, ""); err != nil {
		t.Fatal(err)
	}
	if err := base.AddRule("Rx", kb.Facts("y"), kb.Facts("x"), 1, ""); err != nil {
		t.Fatal(err)
	}
	if err := base.AddRule("Ry", kb.Facts("x"), kb.Facts("y"), 1, ""); err != nil {
		t.Fatal(err)
	}
	e := simple.New(base, simple.WithObserver(rec))
	ctx := context.Background()

	if _, err := e.ForwardChaining(ctx, kb.Facts("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.BackwardChaining(ctx, "x", nil); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(rec.sessions.WithLabelValues("forward", "derived")); got != 1 {
		t.Errorf("forward sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.sessions.WithLabelValues("backward", "none")); got != 1 {
		t.Errorf("backward sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.ruleFirings.WithLabelValues("R1")); got != 1 {
		t.Errorf("R1 firings = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.factsInferred); got != 3 {
		t.Errorf("facts inferred = %v, want 3", got)
	}
	if got := testutil.ToFloat64(rec.cycleStops); got != 1 {
		t.Errorf("cycle stops = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(rec.forwardPasses); n != 1 {
		t.Errorf("forward passes series = %d, want 1", n)
	}
}

func TestRecorderRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	NewRecorder(reg)
}
