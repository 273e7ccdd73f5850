package session

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/expertsys/pkg/expertsys/inference"
	"github.com/cognicore/expertsys/pkg/expertsys/kb"
	"github.com/cognicore/expertsys/pkg/expertsys/memory"
)

// Builder turns finished reasoning runs into archivable session records
type Builder struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New creates a new session builder
func New() *Builder {
	return NewWithSource(rand.Reader, time.Now)
}

// NewWithSource creates a builder with explicit entropy and clock, for tests.
func NewWithSource(r io.Reader, now func() time.Time) *Builder {
	return &Builder{
		entropy: ulid.Monotonic(r, 0),
		now:     now,
	}
}

// Session is a structured, explainable record of one reasoning run
type Session struct {
	ID         string
	Mode       inference.Mode
	Goal       string
	Policy     string
	Inputs     []string
	Results    []string // diagnoses (forward) or the proof chain (backward)
	Proven     bool
	Confidence float64
	SourceRule string
	Trace      []Step
	CreatedAt  time.Time
}

// Step is one trace entry in storable form.
type Step struct {
	Fact        string `json:"fact"`
	Origin      string `json:"origin"`
	RuleID      string `json:"rule_id,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Forward builds a record for a forward-chaining run.
func (b *Builder) Forward(inputs, diagnoses []kb.Fact, trace []memory.TraceEntry) Session {
	s := b.base(inference.Forward, inputs, trace)
	s.Results = kb.Strings(diagnoses)
	s.Proven = len(diagnoses) > 0
	return s
}

// Backward builds a record for a backward-chaining run. res may be nil.
func (b *Builder) Backward(goal kb.Fact, policy inference.Policy, inputs []kb.Fact, res *inference.ProofResult, trace []memory.TraceEntry) Session {
	s := b.base(inference.Backward, inputs, trace)
	s.Goal = string(goal)
	s.Policy = policy.String()
	s.Results = []string{}
	if res != nil {
		s.Proven = true
		s.Confidence = res.Confidence
		s.SourceRule = res.SourceRule
		s.Results = kb.Strings(res.ProofChain)
	}
	return s
}

func (b *Builder) base(mode inference.Mode, inputs []kb.Fact, trace []memory.TraceEntry) Session {
	b.mu.Lock()
	now := b.now()
	id := ulid.MustNew(ulid.Timestamp(now), b.entropy).String()
	b.mu.Unlock()

	return Session{
		ID:        id,
		Mode:      mode,
		Inputs:    kb.Strings(inputs),
		Trace:     Steps(trace),
		CreatedAt: now.UTC(),
	}
}

// Steps converts a working-memory trace into storable steps.
func Steps(trace []memory.TraceEntry) []Step {
	out := make([]Step, 0, len(trace))
	for _, e := range trace {
		out = append(out, Step{
			Fact:        string(e.Fact),
			Origin:      e.Origin.Kind.String(),
			RuleID:      e.Origin.RuleID,
			Explanation: e.Origin.Explanation,
		})
	}
	return out
}

// TraceEntries converts stored steps back into trace entries.
func TraceEntries(steps []Step) []memory.TraceEntry {
	out := make([]memory.TraceEntry, 0, len(steps))
	for _, s := range steps {
		origin := memory.InputOrigin()
		if s.Origin == memory.Inferred.String() {
			origin = memory.InferredOrigin(s.RuleID, s.Explanation)
		}
		out = append(out, memory.TraceEntry{Fact: kb.Fact(s.Fact), Origin: origin})
	}
	return out
}
