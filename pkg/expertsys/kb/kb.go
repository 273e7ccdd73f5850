package kb

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cognicore/expertsys/pkg/expertsys/internalerr"
)

// Fact is an atomic proposition such as a symptom, diagnosis or recommendation.
type Fact string

// Rule is a weighted implication: IF all Conditions THEN every Conclusion.
// Rules are immutable once added to a KnowledgeBase.
type Rule struct {
	ID          string
	conditions  []Fact
	conclusions []Fact
	Confidence  float64
	Explanation string
}

// Conditions returns a copy of the rule's condition list (AND semantics).
func (r Rule) Conditions() []Fact {
	return append([]Fact(nil), r.conditions...)
}

// Conclusions returns a copy of the rule's conclusion list.
func (r Rule) Conclusions() []Fact {
	return append([]Fact(nil), r.conclusions...)
}

// String renders the rule clause, e.g. "Rule R001: IF a AND b THEN c, d".
func (r Rule) String() string {
	return fmt.Sprintf("Rule %s: IF %s THEN %s",
		r.ID, joinFacts(r.conditions, " AND "), joinFacts(r.conclusions, ", "))
}

// KnowledgeBase is an ordered rule repository with inverted indices.
// Insertion order is the priority order both chaining algorithms scan in.
// It is built once and treated as read-only while reasoning.
type KnowledgeBase struct {
	rules        []Rule
	byID         map[string]int
	byCondition  map[Fact][]int
	byConclusion map[Fact][]int
	symptoms     map[Fact]struct{}
	diagnoses    map[Fact]struct{}
}

// New creates an empty knowledge base.
func New() *KnowledgeBase {
	return &KnowledgeBase{
		byID:         make(map[string]int),
		byCondition:  make(map[Fact][]int),
		byConclusion: make(map[Fact][]int),
		symptoms:     make(map[Fact]struct{}),
		diagnoses:    make(map[Fact]struct{}),
	}
}

// AddRule validates and appends a rule, updating the indices and the
// cumulative symptom/diagnosis sets.
func (kb *KnowledgeBase) AddRule(id string, conditions, conclusions []Fact, confidence float64, explanation string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("rule id: %w", internalerr.ErrInvalidInput)
	}
	if _, exists := kb.byID[id]; exists {
		return fmt.Errorf("rule %s: %w", id, internalerr.ErrDuplicateRuleID)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return fmt.Errorf("rule %s: confidence %v: %w", id, confidence, internalerr.ErrInvalidConfidence)
	}
	if len(conditions) == 0 || len(conclusions) == 0 {
		return fmt.Errorf("rule %s: %w", id, internalerr.ErrEmptyClause)
	}

	idx := len(kb.rules)
	kb.rules = append(kb.rules, Rule{
		ID:          id,
		conditions:  append([]Fact(nil), conditions...),
		conclusions: append([]Fact(nil), conclusions...),
		Confidence:  confidence,
		Explanation: explanation,
	})
	kb.byID[id] = idx

	for _, f := range uniqueFacts(conditions) {
		kb.byCondition[f] = append(kb.byCondition[f], idx)
		kb.symptoms[f] = struct{}{}
	}
	for _, f := range uniqueFacts(conclusions) {
		kb.byConclusion[f] = append(kb.byConclusion[f], idx)
		kb.diagnoses[f] = struct{}{}
	}
	return nil
}

// Rules returns all rules in insertion order.
func (kb *KnowledgeBase) Rules() []Rule {
	return append([]Rule(nil), kb.rules...)
}

// Len reports the number of rules.
func (kb *KnowledgeBase) Len() int { return len(kb.rules) }

// Rule looks up a rule by id.
func (kb *KnowledgeBase) Rule(id string) (Rule, bool) {
	idx, ok := kb.byID[id]
	if !ok {
		return Rule{}, false
	}
	return kb.rules[idx], true
}

// Symptoms returns every fact used as a condition, sorted.
func (kb *KnowledgeBase) Symptoms() []Fact {
	return sortedFacts(kb.symptoms)
}

// Diagnoses returns every fact used as a conclusion, sorted.
func (kb *KnowledgeBase) Diagnoses() []Fact {
	return sortedFacts(kb.diagnoses)
}

// IsDiagnosis reports whether f is the conclusion of some rule.
func (kb *KnowledgeBase) IsDiagnosis(f Fact) bool {
	_, ok := kb.diagnoses[f]
	return ok
}

// RulesWithCondition returns the rules using f as a condition, in insertion order.
func (kb *KnowledgeBase) RulesWithCondition(f Fact) []Rule {
	return kb.collect(kb.byCondition[f])
}

// RulesWithConclusion returns the rules concluding f, in insertion order.
func (kb *KnowledgeBase) RulesWithConclusion(f Fact) []Rule {
	return kb.collect(kb.byConclusion[f])
}

func (kb *KnowledgeBase) collect(idxs []int) []Rule {
	out := make([]Rule, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, kb.rules[i])
	}
	return out
}

func sortedFacts(set map[Fact]struct{}) []Fact {
	out := make([]Fact, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func uniqueFacts(facts []Fact) []Fact {
	seen := make(map[Fact]struct{}, len(facts))
	out := make([]Fact, 0, len(facts))
	for _, f := range facts {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func joinFacts(facts []Fact, sep string) string {
	parts := make([]string, len(facts))
	for i, f := range facts {
		parts[i] = string(f)
	}
	return strings.Join(parts, sep)
}

// Facts converts plain strings into facts.
func Facts(names ...string) []Fact {
	out := make([]Fact, len(names))
	for i, n := range names {
		out[i] = Fact(n)
	}
	return out
}

// Strings converts facts back into plain strings.
func Strings(facts []Fact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = string(f)
	}
	return out
}
