package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cognicore/expertsys/pkg/expertsys/kb"
	"github.com/cognicore/expertsys/pkg/expertsys/memory"
)

// Reasoner runs chaining sessions over a knowledge base.
// This interface allows swapping implementations (the simple scanning engine,
// an indexed agenda engine, etc.)
type Reasoner interface {
	// ForwardChaining derives everything reachable from facts and returns the
	// derived diagnoses in the knowledge base's sorted diagnosis order.
	ForwardChaining(ctx context.Context, facts []kb.Fact) ([]kb.Fact, error)

	// BackwardChaining tries to prove goal from facts.
	// A nil result with a nil error means "not proven".
	BackwardChaining(ctx context.Context, goal kb.Fact, facts []kb.Fact) (*ProofResult, error)

	// Explanation returns the trace of the last session.
	Explanation() []memory.TraceEntry
}

// ProofResult is a successful backward-chaining proof.
type ProofResult struct {
	Confidence float64   // weakest link along the chain
	ProofChain []kb.Fact // supporting facts, ending in the goal
	SourceRule string    // rule that concluded the goal
}

// Goal returns the proven fact.
func (p *ProofResult) Goal() kb.Fact {
	if p == nil || len(p.ProofChain) == 0 {
		return ""
	}
	return p.ProofChain[len(p.ProofChain)-1]
}

// ChainString joins the proof chain with arrows.
func (p *ProofResult) ChainString() string {
	if p == nil {
		return ""
	}
	return strings.Join(kb.Strings(p.ProofChain), " -> ")
}

// Policy selects how backward chaining chooses among provable rules.
type Policy int

const (
	// FirstMatch returns the first rule, in knowledge-base order, that proves
	// the goal. Later rules are never tried.
	FirstMatch Policy = iota
	// BestConfidence tries every candidate rule and keeps the proof with the
	// highest confidence. Ties go to the earliest rule.
	BestConfidence
)

func (p Policy) String() string {
	switch p {
	case FirstMatch:
		return "first-match"
	case BestConfidence:
		return "best-confidence"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a policy name to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first-match", "first":
		return FirstMatch, nil
	case "best-confidence", "best":
		return BestConfidence, nil
	}
	return FirstMatch, fmt.Errorf("unknown policy %q", s)
}

// Mode names a chaining direction.
type Mode string

const (
	Forward  Mode = "forward"
	Backward Mode = "backward"
)

// Stats summarizes the last session.
type Stats struct {
	Mode       Mode
	Passes     int // forward fixpoint passes, including the final quiet pass
	Firings    int // rules that fired
	Inferred   int // facts added by rules
	Calls      int // backward prove calls
	CycleStops int // subgoals rejected by the cycle guard
	Duration   time.Duration
}

// Observer receives per-session notifications. Implementations must be cheap;
// they run inline with reasoning.
type Observer interface {
	RuleFired(ruleID string, added int)
	SessionDone(stats Stats, proven bool)
}
