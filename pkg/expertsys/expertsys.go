package expertsys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cognicore/expertsys/pkg/expertsys/explain"
	"github.com/cognicore/expertsys/pkg/expertsys/inference"
	"github.com/cognicore/expertsys/pkg/expertsys/inference/simple"
	"github.com/cognicore/expertsys/pkg/expertsys/internalerr"
	"github.com/cognicore/expertsys/pkg/expertsys/kb"
	"github.com/cognicore/expertsys/pkg/expertsys/memory"
	"github.com/cognicore/expertsys/pkg/expertsys/session"
	"github.com/cognicore/expertsys/pkg/expertsys/store"
)

// System is the main expert system facade. It serializes reasoning calls so a
// single engine and working memory can serve concurrent callers.
type System struct {
	mu       sync.Mutex
	engine   *simple.Engine
	explain  *explain.Explainer
	store    store.Store
	sessions *session.Builder
	logger   *zap.Logger
}

// Options configures a System instance
type Options struct {
	KnowledgeBase *kb.KnowledgeBase
	Store         store.Store // optional; nil disables session archiving
	Policy        inference.Policy
	Logger        *zap.Logger
	Observer      inference.Observer
}

// New creates a System with the given dependencies
func New(opts Options) (*System, error) {
	if opts.KnowledgeBase == nil {
		return nil, fmt.Errorf("knowledge base: %w", internalerr.ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engineOpts := []simple.Option{
		simple.WithPolicy(opts.Policy),
		simple.WithLogger(logger.Named("engine")),
	}
	if opts.Observer != nil {
		engineOpts = append(engineOpts, simple.WithObserver(opts.Observer))
	}
	engine := simple.New(opts.KnowledgeBase, engineOpts...)

	return &System{
		engine:   engine,
		explain:  explain.New(opts.KnowledgeBase, engine),
		store:    opts.Store,
		sessions: session.New(),
		logger:   logger,
	}, nil
}

// Close cleanly shuts down the System, closing its store if any
func (s *System) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// KnowledgeBase returns the rules in use.
func (s *System) KnowledgeBase() *kb.KnowledgeBase { return s.engine.KnowledgeBase() }

// ForwardResult is the outcome of a forward-chaining run
type ForwardResult struct {
	Diagnoses   []kb.Fact
	Explanation []string
	Trace       []memory.TraceEntry
	Stats       inference.Stats
	SessionID   string // empty when archiving is disabled
}

// Forward derives every reachable diagnosis from the given symptoms.
func (s *System) Forward(ctx context.Context, symptoms []string) (ForwardResult, error) {
	facts := s.resolveAll(symptoms)

	s.mu.Lock()
	diagnoses, err := s.engine.ForwardChaining(ctx, facts)
	if err != nil {
		s.mu.Unlock()
		return ForwardResult{}, err
	}
	res := ForwardResult{
		Diagnoses:   diagnoses,
		Explanation: s.explain.ForwardTrace(),
		Trace:       s.engine.Explanation(),
		Stats:       s.engine.Stats(),
	}
	s.mu.Unlock()

	if s.store != nil {
		rec := s.sessions.Forward(facts, diagnoses, res.Trace)
		if err := s.store.SaveSession(ctx, rec); err != nil {
			return res, fmt.Errorf("archive session: %w", err)
		}
		res.SessionID = rec.ID
		s.logger.Debug("session archived", zap.String("id", rec.ID), zap.String("mode", string(rec.Mode)))
	}
	return res, nil
}

// BackwardResult is the outcome of a backward-chaining run
type BackwardResult struct {
	Goal        kb.Fact
	Proof       *inference.ProofResult // nil when not proven
	Explanation []string
	Trace       []memory.TraceEntry
	Stats       inference.Stats
	SessionID   string
}

// Proven reports whether the goal was established.
func (r BackwardResult) Proven() bool { return r.Proof != nil }

// Backward tries to prove goal from the given symptoms.
func (s *System) Backward(ctx context.Context, goal string, symptoms []string) (BackwardResult, error) {
	g, _ := s.Resolve(goal)
	if g == "" {
		return BackwardResult{}, fmt.Errorf("goal: %w", internalerr.ErrInvalidInput)
	}
	facts := s.resolveAll(symptoms)

	s.mu.Lock()
	proof, err := s.engine.BackwardChaining(ctx, g, facts)
	if err != nil {
		s.mu.Unlock()
		return BackwardResult{}, err
	}
	res := BackwardResult{
		Goal:        g,
		Proof:       proof,
		Explanation: s.explain.BackwardProof(g, proof),
		Trace:       s.engine.Explanation(),
		Stats:       s.engine.Stats(),
	}
	s.mu.Unlock()

	if s.store != nil {
		rec := s.sessions.Backward(g, s.engine.Policy(), facts, proof, res.Trace)
		if err := s.store.SaveSession(ctx, rec); err != nil {
			return res, fmt.Errorf("archive session: %w", err)
		}
		res.SessionID = rec.ID
		s.logger.Debug("session archived", zap.String("id", rec.ID), zap.String("mode", string(rec.Mode)))
	}
	return res, nil
}

// ExplainRule renders a single rule. An id with no exact match is looked up
// case-insensitively.
func (s *System) ExplainRule(id string) []string {
	id = strings.TrimSpace(id)
	base := s.engine.KnowledgeBase()
	if _, ok := base.Rule(id); !ok {
		for _, r := range base.Rules() {
			if strings.EqualFold(r.ID, id) {
				id = r.ID
				break
			}
		}
	}
	return s.explain.Rule(id)
}

// DescribeKnowledgeBase renders every rule.
func (s *System) DescribeKnowledgeBase() []string {
	return s.explain.KnowledgeBase()
}

// Sessions lists archived sessions, newest first.
func (s *System) Sessions(ctx context.Context, limit int) ([]session.Session, error) {
	if s.store == nil {
		return nil, internalerr.ErrStoreUnavailable
	}
	return s.store.ListSessions(ctx, limit)
}

// Session fetches one archived session.
func (s *System) Session(ctx context.Context, id string) (session.Session, error) {
	if s.store == nil {
		return session.Session{}, internalerr.ErrStoreUnavailable
	}
	sess, ok, err := s.store.GetSession(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if !ok {
		return session.Session{}, fmt.Errorf("session %s: %w", id, internalerr.ErrNotFound)
	}
	return sess, nil
}

// IsNotFound reports whether err means a missing rule set or session.
func IsNotFound(err error) bool {
	return errors.Is(err, internalerr.ErrNotFound)
}

// Resolve maps user input to a fact name. Facts compare by exact value, so a
// name the knowledge base already uses is returned unchanged. Otherwise the
// input is tried lower-cased with inner whitespace joined by underscores, so
// "Runny Nose" finds runny_nose. Unknown names come back trimmed, with
// known set to false.
func (s *System) Resolve(raw string) (f kb.Fact, known bool) {
	f = kb.Fact(strings.TrimSpace(raw))
	if f == "" {
		return "", false
	}
	base := s.engine.KnowledgeBase()
	if inKnowledgeBase(base, f) {
		return f, true
	}
	canon := kb.Fact(strings.Join(strings.Fields(strings.ToLower(string(f))), "_"))
	if inKnowledgeBase(base, canon) {
		return canon, true
	}
	return f, false
}

func (s *System) resolveAll(in []string) []kb.Fact {
	out := make([]kb.Fact, 0, len(in))
	for _, raw := range in {
		if f, _ := s.Resolve(raw); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func inKnowledgeBase(base *kb.KnowledgeBase, f kb.Fact) bool {
	return base.IsDiagnosis(f) || len(base.RulesWithCondition(f)) > 0
}
