package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/cognicore/expertsys/pkg/expertsys/config"
	"github.com/cognicore/expertsys/pkg/expertsys/internalerr"
	"github.com/cognicore/expertsys/pkg/expertsys/session"
)

func TestRuleSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := New()
	conf := 0.5
	rs := &config.RuleSet{Name: "tiny", Rules: []config.RuleSpec{
		{ID: "R1", Conditions: []string{"a"}, Conclusions: []string{"b"}, Confidence: &conf},
	}}

	if err := st.SaveRuleSet(ctx, rs); err != nil {
		t.Fatalf("SaveRuleSet: %v", err)
	}
	rs.Rules[0].Conditions[0] = "mutated"

	got, err := st.LoadRuleSet(ctx, "tiny")
	if err != nil {
		t.Fatalf("LoadRuleSet: %v", err)
	}
	if got.Rules[0].Conditions[0] != "a" {
		t.Error("store kept a reference to the caller's slice")
	}

	names, _ := st.RuleSetNames(ctx)
	if diff := cmp.Diff([]string{"tiny"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	if _, err := st.LoadRuleSet(ctx, "missing"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := st.SaveRuleSet(ctx, &config.RuleSet{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSessionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	st := New()
	now := time.Now().UTC()

	for _, id := range []string{"01A", "01C", "01B"} {
		if err := st.SaveSession(ctx, session.Session{ID: id, Mode: "forward", CreatedAt: now}); err != nil {
			t.Fatal(err)
		}
	}

	list, err := st.ListSessions(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "01C" || list[1].ID != "01B" {
		t.Errorf("unexpected order: %+v", list)
	}

	got, ok, err := st.GetSession(ctx, "01A")
	if err != nil || !ok {
		t.Fatalf("GetSession: %v %v", ok, err)
	}
	want := session.Session{ID: "01A", Mode: "forward", CreatedAt: now}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	if _, ok, _ := st.GetSession(ctx, "nope"); ok {
		t.Error("unexpected session found")
	}
	if err := st.SaveSession(ctx, session.Session{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
