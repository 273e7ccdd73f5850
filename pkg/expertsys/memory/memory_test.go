package memory

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/expertsys/pkg/expertsys/kb"
)

func TestAddFactIsIdempotent(t *testing.T) {
	m := New()
	m.AddFact("fever")
	m.AddFact("fever")

	if m.Len() != 1 {
		t.Errorf("Expected 1 fact, got %d", m.Len())
	}
	if len(m.Trace()) != 0 {
		t.Error("AddFact must not write trace entries")
	}
}

func TestRecordInputTracesOnce(t *testing.T) {
	m := New()
	m.RecordInput("fever")
	m.RecordInput("fever")

	trace := m.Trace()
	if len(trace) != 1 {
		t.Fatalf("Expected 1 trace entry, got %d", len(trace))
	}
	if trace[0].Origin.Kind != Input {
		t.Errorf("Expected input origin, got %v", trace[0].Origin.Kind)
	}
}

func TestAddInferredFactCommitOnce(t *testing.T) {
	m := New()

	if !m.AddInferredFact("common_cold", "R001", "cold") {
		t.Fatal("first insert should report newly added")
	}
	if m.AddInferredFact("common_cold", "R099", "other") {
		t.Error("second insert should be a no-op")
	}

	want := []TraceEntry{{Fact: "common_cold", Origin: InferredOrigin("R001", "cold")}}
	if diff := cmp.Diff(want, m.Trace()); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestAddInferredFactOnInputIsNoop(t *testing.T) {
	m := New()
	m.RecordInput("fever")
	if m.AddInferredFact("fever", "R1", "") {
		t.Error("known input fact must not be re-derived")
	}
	if len(m.Trace()) != 1 {
		t.Error("trace should keep only the input entry")
	}
}

func TestTraceOrderAndCopy(t *testing.T) {
	m := New()
	m.RecordInput("a")
	m.AddInferredFact("b", "R1", "x")
	m.AddInferredFact("c", "R2", "y")

	trace := m.Trace()
	got := []kb.Fact{}
	for _, e := range trace {
		got = append(got, e.Fact)
	}
	if diff := cmp.Diff(kb.Facts("a", "b", "c"), got); diff != "" {
		t.Errorf("trace order mismatch (-want +got):\n%s", diff)
	}

	trace[0].Fact = "mutated"
	if m.Trace()[0].Fact != "a" {
		t.Error("Trace must return a copy")
	}
}

func TestUsedRules(t *testing.T) {
	m := New()
	m.MarkUsed("R2")
	m.MarkUsed("R1")
	m.MarkUsed("R2")

	if !m.IsUsed("R1") || m.IsUsed("R3") {
		t.Error("IsUsed returned wrong membership")
	}
	if diff := cmp.Diff([]string{"R2", "R1"}, m.UsedRules()); diff != "" {
		t.Errorf("used rules mismatch (-want +got):\n%s", diff)
	}
}

func TestClearResetsEverything(t *testing.T) {
	m := New()
	m.RecordInput("a")
	m.AddInferredFact("b", "R1", "")
	m.MarkUsed("R1")
	old := m.Trace()

	m.Clear()

	if m.Len() != 0 || len(m.Trace()) != 0 || len(m.UsedRules()) != 0 {
		t.Fatal("Clear left state behind")
	}
	if m.HasFact("a") || m.IsUsed("R1") {
		t.Error("state from a prior session leaked")
	}

	m.RecordInput("z")
	if old[0].Fact != "a" {
		t.Error("earlier trace copy was overwritten after Clear")
	}
	if !m.AddInferredFact("a", "R2", "") {
		t.Error("fact from prior session should be insertable again")
	}
}

func TestAllFactsSorted(t *testing.T) {
	m := New()
	m.AddFact("c")
	m.AddFact("a")
	m.AddInferredFact("b", "R1", "")

	if diff := cmp.Diff(kb.Facts("a", "b", "c"), m.AllFacts()); diff != "" {
		t.Errorf("facts mismatch (-want +got):\n%s", diff)
	}
}

func TestOriginKindString(t *testing.T) {
	if Input.String() != "input" || Inferred.String() != "inferred" {
		t.Error("unexpected origin names")
	}
}
