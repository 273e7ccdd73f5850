package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/expertsys/pkg/expertsys/internalerr"
	"github.com/cognicore/expertsys/pkg/expertsys/kb"
)

// RuleSpec is a rule descriptor as written in a rules file.
type RuleSpec struct {
	ID          string   `yaml:"id"`
	Conditions  []string `yaml:"conditions"`
	Conclusions []string `yaml:"conclusions"`
	Confidence  *float64 `yaml:"confidence,omitempty"`
	Explanation string   `yaml:"explanation,omitempty"`
}

// ConfidenceOrDefault returns the declared confidence, or 1.0 when omitted.
func (r RuleSpec) ConfidenceOrDefault() float64 {
	if r.Confidence == nil {
		return 1.0
	}
	return *r.Confidence
}

// RuleSet represents a rules file
type RuleSet struct {
	Name  string     `yaml:"name,omitempty"`
	Rules []RuleSpec `yaml:"rules"`
}

// LoadRuleSet loads a rule set from a YAML file
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRuleSet(data)
}

// ParseRuleSet decodes a rule set from YAML.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return &rs, nil
}

// Build constructs a knowledge base, failing on the first invalid rule.
func (rs *RuleSet) Build() (*kb.KnowledgeBase, error) {
	base := kb.New()
	if err := rs.AddTo(base); err != nil {
		return nil, err
	}
	return base, nil
}

// AddTo appends the rule set to an existing knowledge base.
func (rs *RuleSet) AddTo(base *kb.KnowledgeBase) error {
	for i, r := range rs.Rules {
		err := base.AddRule(r.ID, kb.Facts(r.Conditions...), kb.Facts(r.Conclusions...), r.ConfidenceOrDefault(), r.Explanation)
		if err != nil {
			return fmt.Errorf("rule #%d: %w", i+1, err)
		}
	}
	return nil
}

// FromKnowledgeBase converts a knowledge base back into descriptors.
func FromKnowledgeBase(name string, base *kb.KnowledgeBase) *RuleSet {
	rs := &RuleSet{Name: name, Rules: make([]RuleSpec, 0, base.Len())}
	for _, r := range base.Rules() {
		conf := r.Confidence
		rs.Rules = append(rs.Rules, RuleSpec{
			ID:          r.ID,
			Conditions:  kb.Strings(r.Conditions()),
			Conclusions: kb.Strings(r.Conclusions()),
			Confidence:  &conf,
			Explanation: r.Explanation,
		})
	}
	return rs
}

// Settings holds runtime options
type Settings struct {
	RulesPath string `yaml:"rules"`
	DBPath    string `yaml:"db"`
	Policy    string `yaml:"policy"`
	LogLevel  string `yaml:"log_level"`
	Archive   bool   `yaml:"archive"`
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		Policy:   "first-match",
		LogLevel: "info",
		Archive:  true,
	}
}

// LoadSettings loads runtime settings from a YAML file, on top of defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return s, nil
}
