package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/expertsys/pkg/expertsys/config"
	"github.com/cognicore/expertsys/pkg/expertsys/internalerr"
	"github.com/cognicore/expertsys/pkg/expertsys/session"
	"github.com/cognicore/expertsys/pkg/expertsys/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu       sync.RWMutex
	ruleSets map[string]*config.RuleSet
	sessions map[string]session.Session
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		ruleSets: make(map[string]*config.RuleSet),
		sessions: make(map[string]session.Session),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRuleSet stores a copy of rs under its name.
func (s *Store) SaveRuleSet(ctx context.Context, rs *config.RuleSet) error {
	if rs == nil || rs.Name == "" {
		return fmt.Errorf("rule set name: %w", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ruleSets[rs.Name] = copyRuleSet(rs)
	return nil
}

// LoadRuleSet returns the named rule set or internalerr.ErrNotFound.
func (s *Store) LoadRuleSet(ctx context.Context, name string) (*config.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.ruleSets[name]
	if !ok {
		return nil, fmt.Errorf("rule set %q: %w", name, internalerr.ErrNotFound)
	}
	return copyRuleSet(rs), nil
}

// RuleSetNames returns stored rule set names, sorted.
func (s *Store) RuleSetNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.ruleSets))
	for n := range s.ruleSets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// SaveSession inserts or replaces a session keyed by ID.
func (s *Store) SaveSession(ctx context.Context, sess session.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id: %w", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// GetSession looks up a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (session.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, false, nil
	}
	return copySession(sess), true, nil
}

// ListSessions returns up to limit sessions, newest first. limit <= 0 means all.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, copySession(sess))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyRuleSet(rs *config.RuleSet) *config.RuleSet {
	cp := &config.RuleSet{Name: rs.Name, Rules: make([]config.RuleSpec, len(rs.Rules))}
	for i, r := range rs.Rules {
		r.Conditions = append([]string(nil), r.Conditions...)
		r.Conclusions = append([]string(nil), r.Conclusions...)
		if r.Confidence != nil {
			c := *r.Confidence
			r.Confidence = &c
		}
		cp.Rules[i] = r
	}
	return cp
}

func copySession(s session.Session) session.Session {
	s.Inputs = append([]string(nil), s.Inputs...)
	s.Results = append([]string(nil), s.Results...)
	s.Trace = append([]session.Step(nil), s.Trace...)
	return s
}

var _ store.Store = (*Store)(nil)
