package explain

import (
	"fmt"
	"io"

	"github.com/cognicore/expertsys/pkg/expertsys/inference"
	"github.com/cognicore/expertsys/pkg/expertsys/kb"
	"github.com/cognicore/expertsys/pkg/expertsys/memory"
)

// TraceSource provides the trace of the last reasoning session.
type TraceSource interface {
	Explanation() []memory.TraceEntry
}

// Explainer renders reasoning results as human-readable lines.
// It never mutates the engine or its working memory.
type Explainer struct {
	kb    *kb.KnowledgeBase
	trace TraceSource
}

// New creates an explainer over a knowledge base and a trace source.
func New(base *kb.KnowledgeBase, src TraceSource) *Explainer {
	return &Explainer{kb: base, trace: src}
}

// ForwardTrace renders one numbered step per trace entry.
func (x *Explainer) ForwardTrace() []string {
	trace := x.trace.Explanation()
	if len(trace) == 0 {
		return []string{"No reasoning performed yet."}
	}

	lines := make([]string, 0, len(trace)*2+1)
	lines = append(lines, "Step-by-step reasoning process:")
	for i, entry := range trace {
		switch entry.Origin.Kind {
		case memory.Input:
			lines = append(lines,
				fmt.Sprintf("%d. INPUT: %s", i+1, entry.Fact),
				fmt.Sprintf("   User reported symptom: %s", entry.Fact))
		case memory.Inferred:
			lines = append(lines,
				fmt.Sprintf("%d. INFERRED: %s", i+1, entry.Fact),
				fmt.Sprintf("   Rule: %s", entry.Origin.RuleID),
				fmt.Sprintf("   Explanation: %s", entry.Origin.Explanation))
		}
	}
	return lines
}

// BackwardProof renders a proof result followed by the raw trace.
// A nil result renders as not proven.
func (x *Explainer) BackwardProof(goal kb.Fact, res *inference.ProofResult) []string {
	lines := []string{fmt.Sprintf("Goal: %s", goal)}
	if res != nil {
		lines = append(lines,
			fmt.Sprintf("Result: PROVEN (Confidence: %.2f)", res.Confidence),
			fmt.Sprintf("Proof chain: %s", res.ChainString()))
		if res.SourceRule != "" {
			lines = append(lines, fmt.Sprintf("Key rule: %s", res.SourceRule))
		}
	} else {
		lines = append(lines, "Result: NOT PROVEN")
	}

	lines = append(lines, "", "Reasoning trace:")
	for i, entry := range x.trace.Explanation() {
		switch entry.Origin.Kind {
		case memory.Input:
			lines = append(lines, fmt.Sprintf("%d. Given: %s", i+1, entry.Fact))
		case memory.Inferred:
			lines = append(lines, fmt.Sprintf("%d. Inferred: %s (Rule: %s)", i+1, entry.Fact, entry.Origin.RuleID))
		}
	}
	return lines
}

// Rule renders a single rule, or a not-found message.
func (x *Explainer) Rule(id string) []string {
	r, ok := x.kb.Rule(id)
	if !ok {
		return []string{fmt.Sprintf("Rule %s not found.", id)}
	}
	return []string{
		fmt.Sprintf("Rule ID: %s", r.ID),
		fmt.Sprintf("Rule: %s", r),
		fmt.Sprintf("Confidence: %.2f", r.Confidence),
		fmt.Sprintf("Explanation: %s", r.Explanation),
	}
}

// KnowledgeBase renders every rule with its confidence and explanation.
func (x *Explainer) KnowledgeBase() []string {
	var lines []string
	for _, r := range x.kb.Rules() {
		lines = append(lines,
			r.String(),
			fmt.Sprintf("  Confidence: %.2f", r.Confidence),
			fmt.Sprintf("  Explanation: %s", r.Explanation),
			"")
	}
	return lines
}

// Write prints lines to w, one per line.
func Write(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
