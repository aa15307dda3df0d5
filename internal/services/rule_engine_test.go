package services

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/waypointcpa/taskpool-backend/internal/types"
)

func testRule(t *testing.T, name string, priority int, operator string, conditions []types.RuleCondition) *types.AssignmentRule {
	t.Helper()
	raw, err := json.Marshal(conditions)
	if err != nil {
		t.Fatalf("marshal conditions: %v", err)
	}
	return &types.AssignmentRule{
		ID:                uuid.New(),
		Name:              name,
		IsActive:          true,
		Priority:          priority,
		Conditions:        raw,
		ConditionOperator: operator,
	}
}

func TestEvaluateRules_HigherPriorityWins(t *testing.T) {
	high := testRule(t, "high", 10, types.ConditionOperatorAnd, []types.RuleCondition{
		{Field: "subject", Operator: types.OpContains, Value: "tax"},
	})
	low := testRule(t, "low", 1, types.ConditionOperatorAnd, []types.RuleCondition{
		{Field: "subject", Operator: types.OpContains, Value: "tax"},
	})

	got := EvaluateRules([]*types.AssignmentRule{high, low}, map[string]string{"subject": "Tax question"})
	if got == nil {
		t.Fatalf("expected a match")
	}
	if got.Rule.Name != "high" {
		t.Fatalf("expected high priority rule to win, got %q", got.Rule.Name)
	}
}

func TestEvaluateRules_FallsThroughToLowerPriority(t *testing.T) {
	high := testRule(t, "high", 10, types.ConditionOperatorAnd, []types.RuleCondition{
		{Field: "sender_email", Operator: types.OpEndsWith, Value: "@bigcorp.com"},
	})
	mid := testRule(t, "mid", 5, types.ConditionOperatorAnd, []types.RuleCondition{
		{Field: "subject", Operator: types.OpStartsWith, Value: "urgent"},
	})
	low := testRule(t, "low", 1, types.ConditionOperatorAnd, []types.RuleCondition{
		{Field: "source_type", Operator: types.OpEquals, Value: "email"},
	})

	fields := map[string]string{
		"source_type":  "email",
		"sender_email": "someone@example.com",
		"subject":      "quick question",
	}
	got := EvaluateRules([]*types.AssignmentRule{high, mid, low}, fields)
	if got == nil || got.Rule.Name != "low" {
		t.Fatalf("expected low rule to win, got %#v", got)
	}
}

func TestEvaluateRules_NoMatchReturnsNil(t *testing.T) {
	rule := testRule(t, "r", 1, types.ConditionOperatorAnd, []types.RuleCondition{
		{Field: "subject", Operator: types.OpEquals, Value: "payroll"},
	})
	if got := EvaluateRules([]*types.AssignmentRule{rule}, map[string]string{"subject": "invoices"}); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func TestEvaluateRules_SkipsInactiveRules(t *testing.T) {
	inactive := testRule(t, "inactive", 10, types.ConditionOperatorAnd, []types.RuleCondition{
		{Field: "subject", Operator: types.OpContains, Value: "tax"},
	})
	inactive.IsActive = false
	active := testRule(t, "active", 1, types.ConditionOperatorAnd, []types.RuleCondition{
		{Field: "subject", Operator: types.OpContains, Value: "tax"},
	})

	got := EvaluateRules([]*types.AssignmentRule{inactive, active}, map[string]string{"subject": "tax help"})
	if got == nil || got.Rule.Name != "active" {
		t.Fatalf("expected inactive rule skipped, got %#v", got)
	}
}

func TestEvaluateRules_SkipsRuleWithNoConditions(t *testing.T) {
	empty := testRule(t, "empty", 10, types.ConditionOperatorAnd, nil)
	backing := testRule(t, "backing", 1, types.ConditionOperatorAnd, []types.RuleCondition{
		{Field: "category", Operator: types.OpEquals, Value: "billing"},
	})
	got := EvaluateRules([]*types.AssignmentRule{empty, backing}, map[string]string{"category": "billing"})
	if got == nil || got.Rule.Name != "backing" {
		t.Fatalf("expected conditionless rule skipped, got %#v", got)
	}
}

func TestConditionsPass_AndRequiresAll(t *testing.T) {
	conditions := []types.RuleCondition{
		{Field: "subject", Operator: types.OpContains, Value: "tax"},
		{Field: "sender_email", Operator: types.OpEndsWith, Value: "@client.com"},
	}
	fields := map[string]string{
		"subject":      "tax deadline",
		"sender_email": "bob@other.com",
	}
	if conditionsPass(conditions, types.ConditionOperatorAnd, fields) {
		t.Fatalf("expected and-combination to fail with one false clause")
	}
	fields["sender_email"] = "bob@client.com"
	if !conditionsPass(conditions, types.ConditionOperatorAnd, fields) {
		t.Fatalf("expected and-combination to pass with all clauses true")
	}
}

func TestConditionsPass_OrRequiresAny(t *testing.T) {
	conditions := []types.RuleCondition{
		{Field: "subject", Operator: types.OpContains, Value: "payroll"},
		{Field: "subject", Operator: types.OpContains, Value: "tax"},
	}
	if !conditionsPass(conditions, types.ConditionOperatorOr, map[string]string{"subject": "tax form"}) {
		t.Fatalf("expected or-combination to pass with one true clause")
	}
	if conditionsPass(conditions, types.ConditionOperatorOr, map[string]string{"subject": "hello"}) {
		t.Fatalf("expected or-combination to fail with no true clause")
	}
}

func TestEvaluateCondition_Operators(t *testing.T) {
	fields := map[string]string{"sender_email": "Alice@Example.COM"}

	cases := []struct {
		name     string
		operator string
		value    string
		want     bool
	}{
		{"equals case insensitive", types.OpEquals, "alice@example.com", true},
		{"equals mismatch", types.OpEquals, "bob@example.com", false},
		{"not_equals", types.OpNotEquals, "bob@example.com", true},
		{"contains", types.OpContains, "@example", true},
		{"not_contains", types.OpNotContains, "@gmail", true},
		{"starts_with", types.OpStartsWith, "alice", true},
		{"not_starts_with", types.OpNotStartsWith, "bob", true},
		{"ends_with", types.OpEndsWith, ".com", true},
		{"not_ends_with", types.OpNotEndsWith, ".org", true},
		{"unknown operator", "matches_regex", ".*", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cond := types.RuleCondition{Field: "sender_email", Operator: tc.operator, Value: tc.value}
			if got := evaluateCondition(cond, fields); got != tc.want {
				t.Fatalf("operator %q value %q: got %v want %v", tc.operator, tc.value, got, tc.want)
			}
		})
	}
}

func TestEvaluateCondition_MissingFieldTreatedAsEmpty(t *testing.T) {
	cond := types.RuleCondition{Field: "transcript", Operator: types.OpContains, Value: "refund"}
	if evaluateCondition(cond, map[string]string{}) {
		t.Fatalf("contains on a missing field must not match")
	}
	notCond := types.RuleCondition{Field: "transcript", Operator: types.OpNotContains, Value: "refund"}
	if !evaluateCondition(notCond, map[string]string{}) {
		t.Fatalf("not_contains on a missing field should match")
	}
}

func TestRuleEffectiveness_Ratio(t *testing.T) {
	rule := &types.AssignmentRule{TimesMatched: 10, TimesOverridden: 3}
	if got := rule.Effectiveness(); got != 0.7 {
		t.Fatalf("expected 0.7, got %v", got)
	}
	zero := &types.AssignmentRule{}
	if got := zero.Effectiveness(); got != 0 {
		t.Fatalf("expected 0 for unused rule, got %v", got)
	}
}
