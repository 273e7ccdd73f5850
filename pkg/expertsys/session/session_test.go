package session

import (
	"bytes"
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/oklog/ulid/v2"

	"github.com/cognicore/expertsys/pkg/expertsys/inference"
	"github.com/cognicore/expertsys/pkg/expertsys/kb"
	"github.com/cognicore/expertsys/pkg/expertsys/memory"
)

var fixed = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleTrace() []memory.TraceEntry {
	return []memory.TraceEntry{
		{Fact: "a", Origin: memory.InputOrigin()},
		{Fact: "b", Origin: memory.InferredOrigin("R1", "a gives b")},
	}
}

func TestForwardSession(t *testing.T) {
	b := NewWithSource(bytes.NewReader(make([]byte, 64)), func() time.Time { return fixed })

	s := b.Forward(kb.Facts("a"), kb.Facts("b"), sampleTrace())

	if s.Mode != inference.Forward || !s.Proven {
		t.Errorf("unexpected session: %+v", s)
	}
	if diff := cmp.Diff([]string{"b"}, s.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	id, err := ulid.Parse(s.ID)
	if err != nil {
		t.Fatalf("invalid ULID %q: %v", s.ID, err)
	}
	if !ulid.Time(id.Time()).Equal(fixed) {
		t.Errorf("ULID time %v, want %v", ulid.Time(id.Time()), fixed)
	}
}

func TestBackwardSession(t *testing.T) {
	b := New()
	res := &inference.ProofResult{Confidence: 0.7, ProofChain: kb.Facts("a", "b"), SourceRule: "R1"}

	s := b.Backward("b", inference.BestConfidence, kb.Facts("a"), res, sampleTrace())
	if !s.Proven || s.Confidence != 0.7 || s.SourceRule != "R1" || s.Goal != "b" {
		t.Errorf("unexpected session: %+v", s)
	}
	if s.Policy != "best-confidence" {
		t.Errorf("unexpected policy %q", s.Policy)
	}

	miss := b.Backward("z", inference.FirstMatch, nil, nil, nil)
	if miss.Proven || len(miss.Results) != 0 {
		t.Errorf("unproven session should be empty: %+v", miss)
	}
}

func TestIDsAreMonotonic(t *testing.T) {
	b := NewWithSource(rand.Reader, func() time.Time { return fixed })
	first := b.Forward(nil, nil, nil).ID
	second := b.Forward(nil, nil, nil).ID
	if !(first < second) {
		t.Errorf("expected increasing ids, got %s then %s", first, second)
	}
}

func TestStepsRoundTrip(t *testing.T) {
	trace := sampleTrace()
	if diff := cmp.Diff(trace, TraceEntries(Steps(trace))); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
