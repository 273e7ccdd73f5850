package memory

import (
	"fmt"
	"sort"

	"github.com/cognicore/expertsys/pkg/expertsys/kb"
)

// OriginKind tags how a fact entered working memory.
type OriginKind int

const (
	// Input facts were supplied by the caller.
	Input OriginKind = iota
	// Inferred facts were derived by firing a rule.
	Inferred
)

func (k OriginKind) String() string {
	switch k {
	case Input:
		return "input"
	case Inferred:
		return "inferred"
	default:
		return fmt.Sprintf("origin(%d)", int(k))
	}
}

// Origin is a tagged variant: Input, or Inferred with the rule that fired.
// RuleID and Explanation are only meaningful for Inferred.
type Origin struct {
	Kind        OriginKind
	RuleID      string
	Explanation string
}

// InputOrigin returns the origin recorded for a caller-supplied fact.
func InputOrigin() Origin { return Origin{Kind: Input} }

// InferredOrigin returns the origin recorded for a rule-derived fact.
func InferredOrigin(ruleID, explanation string) Origin {
	return Origin{Kind: Inferred, RuleID: ruleID, Explanation: explanation}
}

// TraceEntry records the moment a fact was established.
type TraceEntry struct {
	Fact   kb.Fact
	Origin Origin
}

// WorkingMemory holds the facts and trace of one reasoning session.
// It is not safe for concurrent use.
type WorkingMemory struct {
	facts     map[kb.Fact]struct{}
	traced    map[kb.Fact]struct{}
	trace     []TraceEntry
	usedRules []string
	used      map[string]struct{}
}

// New creates an empty working memory.
func New() *WorkingMemory {
	return &WorkingMemory{
		facts:  make(map[kb.Fact]struct{}),
		traced: make(map[kb.Fact]struct{}),
		used:   make(map[string]struct{}),
	}
}

// AddFact inserts f without touching the trace. Idempotent.
func (m *WorkingMemory) AddFact(f kb.Fact) {
	m.facts[f] = struct{}{}
}

// RecordInput adds f as a caller-supplied fact with an Input trace entry.
// Repeated inputs leave a single entry.
func (m *WorkingMemory) RecordInput(f kb.Fact) {
	m.AddFact(f)
	if _, ok := m.traced[f]; ok {
		return
	}
	m.traced[f] = struct{}{}
	m.trace = append(m.trace, TraceEntry{Fact: f, Origin: InputOrigin()})
}

// AddInferredFact commits a derived fact. It returns false, changing nothing,
// when f is already known; the first establishing entry stays authoritative.
func (m *WorkingMemory) AddInferredFact(f kb.Fact, ruleID, explanation string) bool {
	if m.HasFact(f) {
		return false
	}
	m.facts[f] = struct{}{}
	m.traced[f] = struct{}{}
	m.trace = append(m.trace, TraceEntry{Fact: f, Origin: InferredOrigin(ruleID, explanation)})
	return true
}

// HasFact reports whether f is known.
func (m *WorkingMemory) HasFact(f kb.Fact) bool {
	_, ok := m.facts[f]
	return ok
}

// AllFacts returns the known facts, sorted.
func (m *WorkingMemory) AllFacts() []kb.Fact {
	out := make([]kb.Fact, 0, len(m.facts))
	for f := range m.facts {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len reports the number of known facts.
func (m *WorkingMemory) Len() int { return len(m.facts) }

// MarkUsed records that a rule fired in this session.
func (m *WorkingMemory) MarkUsed(ruleID string) {
	if _, ok := m.used[ruleID]; ok {
		return
	}
	m.used[ruleID] = struct{}{}
	m.usedRules = append(m.usedRules, ruleID)
}

// IsUsed reports whether a rule already fired in this session.
func (m *WorkingMemory) IsUsed(ruleID string) bool {
	_, ok := m.used[ruleID]
	return ok
}

// UsedRules returns fired rule ids in firing order.
func (m *WorkingMemory) UsedRules() []string {
	return append([]string(nil), m.usedRules...)
}

// Trace returns a copy of the trace in insertion order.
func (m *WorkingMemory) Trace() []TraceEntry {
	return append([]TraceEntry(nil), m.trace...)
}

// Clear resets facts, trace and fired rules for a new session.
func (m *WorkingMemory) Clear() {
	clear(m.facts)
	clear(m.traced)
	clear(m.used)
	m.trace = m.trace[:0]
	m.usedRules = m.usedRules[:0]
}
