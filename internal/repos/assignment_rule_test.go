package repos

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/waypointcpa/taskpool-backend/internal/types"
)

func seedRule(t *testing.T, repo AssignmentRuleRepo, name string, priority int, active bool) *types.AssignmentRule {
	t.Helper()
	conditions, _ := json.Marshal([]types.RuleCondition{
		{Field: "subject", Operator: types.OpContains, Value: "tax"},
	})
	rule, err := repo.Create(context.Background(), nil, &types.AssignmentRule{
		Name:              name,
		IsActive:          active,
		Priority:          priority,
		Conditions:        conditions,
		ConditionOperator: types.ConditionOperatorAnd,
	})
	if err != nil {
		t.Fatalf("create rule %q: %v", name, err)
	}
	return rule
}

func TestAssignmentRuleRepoListActive_OrderedByPriority(t *testing.T) {
	repo := NewAssignmentRuleRepo(testDB(t), testLogger(t))
	seedRule(t, repo, "low", 1, true)
	seedRule(t, repo, "high", 10, true)
	seedRule(t, repo, "disabled", 99, false)
	seedRule(t, repo, "mid", 5, true)

	rules, err := repo.ListActive(context.Background(), nil)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 active rules, got %d", len(rules))
	}
	wantOrder := []string{"high", "mid", "low"}
	for i, want := range wantOrder {
		if rules[i].Name != want {
			t.Fatalf("position %d: want %q got %q", i, want, rules[i].Name)
		}
	}
}

func TestAssignmentRuleRepoRecordOutcome_IncrementsCounters(t *testing.T) {
	repo := NewAssignmentRuleRepo(testDB(t), testLogger(t))
	rule := seedRule(t, repo, "counted", 1, true)

	for i := 0; i < 3; i++ {
		if err := repo.RecordOutcome(context.Background(), nil, rule.ID, true, false); err != nil {
			t.Fatalf("record match %d: %v", i, err)
		}
	}
	if err := repo.RecordOutcome(context.Background(), nil, rule.ID, false, true); err != nil {
		t.Fatalf("record override: %v", err)
	}

	got, err := repo.GetByID(context.Background(), nil, rule.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.TimesMatched != 3 {
		t.Fatalf("expected times_matched=3, got %d", got.TimesMatched)
	}
	if got.TimesOverridden != 1 {
		t.Fatalf("expected times_overridden=1, got %d", got.TimesOverridden)
	}
	if got.LastMatchedAt == nil {
		t.Fatalf("expected last_matched_at set")
	}
}
