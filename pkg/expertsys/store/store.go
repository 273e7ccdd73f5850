package store

import (
	"context"

	"github.com/cognicore/expertsys/pkg/expertsys/config"
	"github.com/cognicore/expertsys/pkg/expertsys/session"
)

// Store persists rule sets and archived reasoning sessions.
// The reasoning core never touches a Store; callers archive results after a run.
type Store interface {
	Close() error

	// Rule sets, stored in rule order. Saving replaces any set with the same name.
	SaveRuleSet(ctx context.Context, rs *config.RuleSet) error
	LoadRuleSet(ctx context.Context, name string) (*config.RuleSet, error)
	RuleSetNames(ctx context.Context) ([]string, error)

	// Sessions
	SaveSession(ctx context.Context, s session.Session) error
	GetSession(ctx context.Context, id string) (session.Session, bool, error)
	ListSessions(ctx context.Context, limit int) ([]session.Session, error)
}
