package config

import (
	"fmt"

	"github.com/cognicore/expertsys/pkg/expertsys/kb"
	"github.com/cognicore/expertsys/pkg/expertsys/medical"
)

// Loader loads the configured rule sources and builds a knowledge base
type Loader struct {
	RulesPath string // YAML rules file; empty means the built-in medical rules
	ExtraPath string // optional second file appended after the first
}

// Load builds the knowledge base. Rule order follows file order.
func (l *Loader) Load() (*kb.KnowledgeBase, error) {
	var (
		rs  *RuleSet
		err error
	)
	if l.RulesPath != "" {
		rs, err = LoadRuleSet(l.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
	} else {
		rs, err = ParseRuleSet(medical.RulesYAML)
		if err != nil {
			return nil, fmt.Errorf("parse built-in rules: %w", err)
		}
	}

	base, err := rs.Build()
	if err != nil {
		return nil, err
	}

	if l.ExtraPath != "" {
		extra, err := LoadRuleSet(l.ExtraPath)
		if err != nil {
			return nil, fmt.Errorf("load extra rules: %w", err)
		}
		if err := extra.AddTo(base); err != nil {
			return nil, err
		}
	}
	return base, nil
}
