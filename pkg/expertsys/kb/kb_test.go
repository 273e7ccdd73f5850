package kb

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/expertsys/pkg/expertsys/internalerr"
)

func buildKB(t *testing.T) *KnowledgeBase {
	t.Helper()
	k := New()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("AddRule: %v", err)
		}
	}
	must(k.AddRule("R001", Facts("runny_nose", "sneezing", "sore_throat"), Facts("common_cold"), 0.85, "cold"))
	must(k.AddRule("R003", Facts("sore_throat", "fever", "swollen_lymph_nodes"), Facts("strep_throat"), 0.75, "strep"))
	must(k.AddRule("R011", Facts("common_cold"), Facts("rest", "drink_fluids"), 0.90, "rest"))
	return k
}

func TestAddRuleAndLookup(t *testing.T) {
	k := buildKB(t)

	if k.Len() != 3 {
		t.Fatalf("Expected 3 rules, got %d", k.Len())
	}

	ids := []string{}
	for _, r := range k.Rules() {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"R001", "R003", "R011"}, ids); diff != "" {
		t.Errorf("rule order mismatch (-want +got):\n%s", diff)
	}

	r, ok := k.Rule("R011")
	if !ok {
		t.Fatal("Expected R011 to be found")
	}
	if r.Confidence != 0.90 {
		t.Errorf("Expected confidence 0.90, got %v", r.Confidence)
	}
	if _, ok := k.Rule("R999"); ok {
		t.Error("R999 should not exist")
	}
}

func TestSymptomsAndDiagnosesSorted(t *testing.T) {
	k := buildKB(t)

	wantSymptoms := Facts("common_cold", "fever", "runny_nose", "sneezing", "sore_throat", "swollen_lymph_nodes")
	if diff := cmp.Diff(wantSymptoms, k.Symptoms()); diff != "" {
		t.Errorf("symptoms mismatch (-want +got):\n%s", diff)
	}

	wantDiagnoses := Facts("common_cold", "drink_fluids", "rest", "strep_throat")
	if diff := cmp.Diff(wantDiagnoses, k.Diagnoses()); diff != "" {
		t.Errorf("diagnoses mismatch (-want +got):\n%s", diff)
	}

	if !k.IsDiagnosis("rest") || k.IsDiagnosis("fever") {
		t.Error("IsDiagnosis returned wrong membership")
	}
}

func TestIndexLookupsPreserveOrder(t *testing.T) {
	k := buildKB(t)

	got := k.RulesWithCondition("sore_throat")
	if len(got) != 2 || got[0].ID != "R001" || got[1].ID != "R003" {
		t.Errorf("unexpected rules for sore_throat: %v", got)
	}

	got = k.RulesWithConclusion("drink_fluids")
	if len(got) != 1 || got[0].ID != "R011" {
		t.Errorf("unexpected rules concluding drink_fluids: %v", got)
	}

	none := k.RulesWithConclusion("unknown")
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func TestAddRuleValidation(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		conditions  []Fact
		conclusions []Fact
		confidence  float64
		want        error
	}{
		{"duplicate id", "R001", Facts("a"), Facts("b"), 0.5, internalerr.ErrDuplicateRuleID},
		{"confidence above one", "X1", Facts("a"), Facts("b"), 1.01, internalerr.ErrInvalidConfidence},
		{"negative confidence", "X2", Facts("a"), Facts("b"), -0.1, internalerr.ErrInvalidConfidence},
		{"nan confidence", "X3", Facts("a"), Facts("b"), math.NaN(), internalerr.ErrInvalidConfidence},
		{"empty conditions", "X4", nil, Facts("b"), 0.5, internalerr.ErrEmptyClause},
		{"empty conclusions", "X5", Facts("a"), []Fact{}, 0.5, internalerr.ErrEmptyClause},
		{"blank id", "  ", Facts("a"), Facts("b"), 0.5, internalerr.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := buildKB(t)
			err := k.AddRule(tt.id, tt.conditions, tt.conclusions, tt.confidence, "")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if k.Len() != 3 {
				t.Errorf("failed AddRule must not append, have %d rules", k.Len())
			}
		})
	}
}

func TestBoundaryConfidenceAccepted(t *testing.T) {
	k := New()
	if err := k.AddRule("Z0", Facts("a"), Facts("b"), 0, ""); err != nil {
		t.Errorf("confidence 0 should be accepted: %v", err)
	}
	if err := k.AddRule("Z1", Facts("b"), Facts("c"), 1, ""); err != nil {
		t.Errorf("confidence 1 should be accepted: %v", err)
	}
}

func TestRuleIsImmutable(t *testing.T) {
	k := New()
	conds := Facts("a", "b")
	if err := k.AddRule("R1", conds, Facts("c"), 1, ""); err != nil {
		t.Fatal(err)
	}
	conds[0] = "mutated"

	r, _ := k.Rule("R1")
	got := r.Conditions()
	if got[0] != "a" {
		t.Errorf("caller mutation leaked into rule: %v", got)
	}
	got[1] = "mutated"
	if r.Conditions()[1] != "b" {
		t.Error("accessor returned shared slice")
	}
}

func TestDuplicateFactInClauseIndexedOnce(t *testing.T) {
	k := New()
	if err := k.AddRule("R1", Facts("a", "a"), Facts("b"), 1, ""); err != nil {
		t.Fatal(err)
	}
	if n := len(k.RulesWithCondition("a")); n != 1 {
		t.Errorf("expected rule indexed once, got %d", n)
	}
}

func TestRuleString(t *testing.T) {
	k := buildKB(t)
	r, _ := k.Rule("R011")
	want := "Rule R011: IF common_cold THEN rest, drink_fluids"
	if r.String() != want {
		t.Errorf("got %q, want %q", r.String(), want)
	}
}
