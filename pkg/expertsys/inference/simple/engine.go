package simple

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/expertsys/pkg/expertsys/inference"
	"github.com/cognicore/expertsys/pkg/expertsys/kb"
	"github.com/cognicore/expertsys/pkg/expertsys/memory"
)

// Engine is a scanning forward/backward chaining engine in pure Go.
// It keeps one WorkingMemory, so calls must not overlap.
type Engine struct {
	kb       *kb.KnowledgeBase
	wm       *memory.WorkingMemory
	policy   inference.Policy
	logger   *zap.Logger
	observer inference.Observer
	stats    inference.Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the backward-chaining rule selection policy.
func WithPolicy(p inference.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLogger sets a structured logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers a session observer, e.g. a metrics recorder.
func WithObserver(o inference.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an engine bound to a knowledge base.
func New(base *kb.KnowledgeBase, opts ...Option) *Engine {
	e := &Engine{
		kb:     base,
		wm:     memory.New(),
		policy: inference.FirstMatch,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// KnowledgeBase returns the rules the engine reasons over.
func (e *Engine) KnowledgeBase() *kb.KnowledgeBase { return e.kb }

// Memory exposes the working memory of the last session for read-only use.
func (e *Engine) Memory() *memory.WorkingMemory { return e.wm }

// Policy returns the backward-chaining policy.
func (e *Engine) Policy() inference.Policy { return e.policy }

// Stats returns counters for the last session.
func (e *Engine) Stats() inference.Stats { return e.stats }

// Explanation returns the trace of the last session.
func (e *Engine) Explanation() []memory.TraceEntry { return e.wm.Trace() }

func (e *Engine) reset(mode inference.Mode, facts []kb.Fact) {
	e.wm.Clear()
	e.stats = inference.Stats{Mode: mode}
	for _, f := range facts {
		e.wm.RecordInput(f)
	}
}

// ForwardChaining applies rules in knowledge-base order until a full pass adds
// nothing. Each rule fires at most once per session.
func (e *Engine) ForwardChaining(ctx context.Context, facts []kb.Fact) ([]kb.Fact, error) {
	start := time.Now()
	e.reset(inference.Forward, facts)
	rules := e.kb.Rules()

	e.logger.Debug("forward chaining started", zap.Int("inputs", len(facts)), zap.Int("rules", len(rules)))

	for changed := true; changed; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed = false
		e.stats.Passes++

		for _, rule := range rules {
			if e.wm.IsUsed(rule.ID) || !e.satisfied(rule) {
				continue
			}
			added := 0
			for _, c := range rule.Conclusions() {
				if e.wm.AddInferredFact(c, rule.ID, rule.Explanation) {
					added++
				}
			}
			if added == 0 {
				continue
			}
			e.wm.MarkUsed(rule.ID)
			e.fired(rule, added)
			changed = true
		}
	}

	var diagnoses []kb.Fact
	for _, d := range e.kb.Diagnoses() {
		if e.wm.HasFact(d) {
			diagnoses = append(diagnoses, d)
		}
	}

	e.finish(start, len(diagnoses) > 0)
	e.logger.Info("forward chaining completed",
		zap.Int("passes", e.stats.Passes),
		zap.Int("firings", e.stats.Firings),
		zap.Strings("diagnoses", kb.Strings(diagnoses)))
	return diagnoses, nil
}

func (e *Engine) satisfied(rule kb.Rule) bool {
	for _, c := range rule.Conditions() {
		if !e.wm.HasFact(c) {
			return false
		}
	}
	return true
}

// BackwardChaining searches for a proof of goal. It returns (nil, nil) when
// the goal cannot be proven; an error only reports cancellation.
func (e *Engine) BackwardChaining(ctx context.Context, goal kb.Fact, facts []kb.Fact) (*inference.ProofResult, error) {
	start := time.Now()
	e.reset(inference.Backward, facts)

	e.logger.Debug("backward chaining started",
		zap.String("goal", string(goal)),
		zap.Int("inputs", len(facts)),
		zap.Stringer("policy", e.policy))

	res, err := e.prove(ctx, goal, nil, 0)
	if err != nil {
		return nil, err
	}

	e.finish(start, res != nil)
	if res != nil {
		e.logger.Info("goal proven",
			zap.String("goal", string(goal)),
			zap.Float64("confidence", res.Confidence),
			zap.String("rule", res.SourceRule),
			zap.String("chain", res.ChainString()))
	} else {
		e.logger.Info("goal not proven", zap.String("goal", string(goal)))
	}
	return res, nil
}

// prove is the recursive step. visited holds the goals on the current descent
// only; every subgoal receives its own extended copy, so siblings may re-derive
// a shared subgoal while true cycles are cut.
func (e *Engine) prove(ctx context.Context, goal kb.Fact, visited map[kb.Fact]struct{}, depth int) (*inference.ProofResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.stats.Calls++

	if _, seen := visited[goal]; seen {
		e.stats.CycleStops++
		e.logger.Debug("cycle guard", zap.String("goal", string(goal)), zap.Int("depth", depth))
		return nil, nil
	}
	if e.wm.HasFact(goal) {
		return &inference.ProofResult{Confidence: 1.0, ProofChain: []kb.Fact{goal}}, nil
	}

	candidates := e.kb.RulesWithConclusion(goal)
	if len(candidates) == 0 {
		return nil, nil
	}

	branch := make(map[kb.Fact]struct{}, len(visited)+1)
	for f := range visited {
		branch[f] = struct{}{}
	}
	branch[goal] = struct{}{}

	var best *inference.ProofResult
	var bestRule kb.Rule
	for _, rule := range candidates {
		res, err := e.tryRule(ctx, goal, rule, branch, depth)
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		if e.policy == inference.FirstMatch {
			best, bestRule = res, rule
			break
		}
		if best == nil || res.Confidence > best.Confidence {
			best, bestRule = res, rule
		}
	}
	if best == nil {
		return nil, nil
	}

	if e.wm.AddInferredFact(goal, bestRule.ID, bestRule.Explanation) {
		e.fired(bestRule, 1)
	}
	e.wm.MarkUsed(bestRule.ID)
	return best, nil
}

// tryRule proves each condition in order, stopping at the first failure.
func (e *Engine) tryRule(ctx context.Context, goal kb.Fact, rule kb.Rule, visited map[kb.Fact]struct{}, depth int) (*inference.ProofResult, error) {
	e.logger.Debug("trying rule", zap.String("goal", string(goal)), zap.String("rule", rule.ID), zap.Int("depth", depth))

	confidence := rule.Confidence
	var chain []kb.Fact
	for _, cond := range rule.Conditions() {
		sub, err := e.prove(ctx, cond, visited, depth+1)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, nil
		}
		confidence = min(confidence, sub.Confidence)
		chain = append(chain, sub.ProofChain...)
	}
	return &inference.ProofResult{
		Confidence: confidence,
		ProofChain: append(chain, goal),
		SourceRule: rule.ID,
	}, nil
}

func (e *Engine) fired(rule kb.Rule, added int) {
	e.stats.Firings++
	e.stats.Inferred += added
	e.logger.Debug("rule fired",
		zap.String("rule", rule.ID),
		zap.Int("added", added),
		zap.Float64("confidence", rule.Confidence))
	if e.observer != nil {
		e.observer.RuleFired(rule.ID, added)
	}
}

func (e *Engine) finish(start time.Time, proven bool) {
	e.stats.Duration = time.Since(start)
	if e.observer != nil {
		e.observer.SessionDone(e.stats, proven)
	}
}

var _ inference.Reasoner = (*Engine)(nil)
