package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/cognicore/expertsys/pkg/expertsys/config"
	"github.com/cognicore/expertsys/pkg/expertsys/inference"
	"github.com/cognicore/expertsys/pkg/expertsys/internalerr"
	"github.com/cognicore/expertsys/pkg/expertsys/session"
	"github.com/cognicore/expertsys/pkg/expertsys/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
// An optional logger can be passed; if omitted, logging is discarded.
func OpenSQLite(ctx context.Context, path string, logger ...*zap.Logger) (store.Store, error) {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	l.Debug("sqlite store opened", zap.String("path", path))
	return &sqliteStore{db: db, logger: l}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS rule_sets (
	name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS rules (
	set_name TEXT NOT NULL,
	position INTEGER NOT NULL,
	id TEXT NOT NULL,
	conditions TEXT NOT NULL,
	conclusions TEXT NOT NULL,
	confidence REAL NOT NULL,
	explanation TEXT,
	PRIMARY KEY(set_name, id),
	FOREIGN KEY(set_name) REFERENCES rule_sets(name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	goal TEXT,
	policy TEXT,
	inputs TEXT NOT NULL,
	results TEXT NOT NULL,
	proven INTEGER NOT NULL,
	confidence REAL,
	source_rule TEXT,
	trace TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRuleSet replaces the named rule set
func (s *sqliteStore) SaveRuleSet(ctx context.Context, rs *config.RuleSet) error {
	if rs == nil || rs.Name == "" {
		return fmt.Errorf("rule set name: %w", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE set_name = ?`, rs.Name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rule_sets WHERE name = ?`, rs.Name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO rule_sets (name) VALUES (?)`, rs.Name); err != nil {
		return err
	}

	const stmt = `
INSERT INTO rules (set_name, position, id, conditions, conclusions, confidence, explanation)
VALUES (?, ?, ?, ?, ?, ?, ?)
`
	for i, r := range rs.Rules {
		conds, err := json.Marshal(r.Conditions)
		if err != nil {
			return err
		}
		concls, err := json.Marshal(r.Conclusions)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, rs.Name, i, r.ID, string(conds), string(concls), r.ConfidenceOrDefault(), r.Explanation); err != nil {
			return fmt.Errorf("insert rule %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("rule set saved", zap.String("name", rs.Name), zap.Int("rules", len(rs.Rules)))
	return nil
}

// LoadRuleSet reads a rule set back in its stored order
func (s *sqliteStore) LoadRuleSet(ctx context.Context, name string) (*config.RuleSet, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM rule_sets WHERE name = ?`, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule set %q: %w", name, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, conditions, conclusions, confidence, explanation
FROM rules WHERE set_name = ? ORDER BY position`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rs := &config.RuleSet{Name: name, Rules: []config.RuleSpec{}}
	for rows.Next() {
		var (
			r             config.RuleSpec
			conds, concls string
			confidence    float64
			explanation   sql.NullString
		)
		if err := rows.Scan(&r.ID, &conds, &concls, &confidence, &explanation); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(conds), &r.Conditions); err != nil {
			return nil, fmt.Errorf("rule %s conditions: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(concls), &r.Conclusions); err != nil {
			return nil, fmt.Errorf("rule %s conclusions: %w", r.ID, err)
		}
		r.Confidence = &confidence
		r.Explanation = explanation.String
		rs.Rules = append(rs.Rules, r)
	}
	return rs, rows.Err()
}

// RuleSetNames lists stored rule sets, sorted by name
func (s *sqliteStore) RuleSetNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM rule_sets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// SaveSession inserts or replaces a session
func (s *sqliteStore) SaveSession(ctx context.Context, sess session.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id: %w", internalerr.ErrInvalidInput)
	}

	inputs, err := json.Marshal(nonNil(sess.Inputs))
	if err != nil {
		return err
	}
	results, err := json.Marshal(nonNil(sess.Results))
	if err != nil {
		return err
	}
	trace, err := json.Marshal(sess.Trace)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO sessions (id, mode, goal, policy, inputs, results, proven, confidence, source_rule, trace, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	mode=excluded.mode,
	goal=excluded.goal,
	policy=excluded.policy,
	inputs=excluded.inputs,
	results=excluded.results,
	proven=excluded.proven,
	confidence=excluded.confidence,
	source_rule=excluded.source_rule,
	trace=excluded.trace,
	created_at=excluded.created_at
`
	_, err = s.db.ExecContext(ctx, stmt,
		sess.ID,
		string(sess.Mode),
		sess.Goal,
		sess.Policy,
		string(inputs),
		string(results),
		boolToInt(sess.Proven),
		sess.Confidence,
		sess.SourceRule,
		string(trace),
		sess.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	s.logger.Debug("session archived", zap.String("id", sess.ID), zap.String("mode", string(sess.Mode)))
	return nil
}

const sessionColumns = `id, mode, goal, policy, inputs, results, proven, confidence, source_rule, trace, created_at`

// GetSession fetches a session by id
func (s *sqliteStore) GetSession(ctx context.Context, id string) (session.Session, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, false, nil
	}
	if err != nil {
		return session.Session{}, false, err
	}
	return sess, true, nil
}

// ListSessions returns sessions newest first; ULIDs sort by creation time
func (s *sqliteStore) ListSessions(ctx context.Context, limit int) ([]session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []session.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (session.Session, error) {
	var (
		sess                   session.Session
		mode                   string
		goal, policy, source   sql.NullString
		inputs, results, trace string
		proven                 int
		confidence             sql.NullFloat64
		createdAt              string
	)
	if err := row.Scan(&sess.ID, &mode, &goal, &policy, &inputs, &results, &proven, &confidence, &source, &trace, &createdAt); err != nil {
		return sess, err
	}

	sess.Mode = inference.Mode(mode)
	sess.Goal = goal.String
	sess.Policy = policy.String
	sess.Proven = proven != 0
	sess.Confidence = confidence.Float64
	sess.SourceRule = source.String

	if err := json.Unmarshal([]byte(inputs), &sess.Inputs); err != nil {
		return sess, fmt.Errorf("session %s inputs: %w", sess.ID, err)
	}
	if err := json.Unmarshal([]byte(results), &sess.Results); err != nil {
		return sess, fmt.Errorf("session %s results: %w", sess.ID, err)
	}
	if err := json.Unmarshal([]byte(trace), &sess.Trace); err != nil {
		return sess, fmt.Errorf("session %s trace: %w", sess.ID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return sess, fmt.Errorf("session %s created_at: %w", sess.ID, err)
	}
	sess.CreatedAt = t
	return sess, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
