package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	"github.com/waypointcpa/taskpool-backend/internal/repos"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

// RuleMatch is the single winning rule for an evaluated item plus the action
// descriptor the pipeline applies.
type RuleMatch struct {
	Rule   *types.AssignmentRule
	Action types.RuleAction
}

type RuleEngineService interface {
	// Evaluate loads the active rule set and returns the highest-priority rule
	// whose conditions pass, or nil when nothing matches. It never writes.
	Evaluate(ctx context.Context, fields map[string]string) (*RuleMatch, error)
	// RecordOutcome persists the usage counters for a rule after the caller
	// has applied (or seen a human override) its suggestion.
	RecordOutcome(ctx context.Context, ruleID uuid.UUID, matched, overridden bool) error
}

type ruleEngineService struct {
	db       *gorm.DB
	log      *logger.Logger
	ruleRepo repos.AssignmentRuleRepo
}

func NewRuleEngineService(db *gorm.DB, log *logger.Logger, ruleRepo repos.AssignmentRuleRepo) RuleEngineService {
	serviceLog := log.With("service", "RuleEngineService")
	return &ruleEngineService{db: db, log: serviceLog, ruleRepo: ruleRepo}
}

func (rs *ruleEngineService) Evaluate(ctx context.Context, fields map[string]string) (*RuleMatch, error) {
	rules, err := rs.ruleRepo.ListActive(ctx, nil)
	if err != nil {
		return nil, err
	}
	match := EvaluateRules(rules, fields)
	if match != nil && match.Rule != nil {
		rs.log.Debug("Rule matched", "rule_id", match.Rule.ID, "rule_name", match.Rule.Name, "priority", match.Rule.Priority)
	}
	return match, nil
}

func (rs *ruleEngineService) RecordOutcome(ctx context.Context, ruleID uuid.UUID, matched, overridden bool) error {
	return rs.ruleRepo.RecordOutcome(ctx, nil, ruleID, matched, overridden)
}

// EvaluateRules is the pure evaluation core: rules must already be sorted
// priority DESC (ties broken by insertion order), evaluation stops at the
// first active rule whose condition set passes. Returns nil when no rule
// matches; that is a normal outcome, not an error.
func EvaluateRules(rules []*types.AssignmentRule, fields map[string]string) *RuleMatch {
	for _, rule := range rules {
		if rule == nil || !rule.IsActive {
			continue
		}
		conditions, err := rule.ParsedConditions()
		if err != nil || len(conditions) == 0 {
			continue
		}
		if conditionsPass(conditions, rule.ConditionOperator, fields) {
			return &RuleMatch{Rule: rule, Action: rule.Action()}
		}
	}
	return nil
}

func conditionsPass(conditions []types.RuleCondition, operator string, fields map[string]string) bool {
	isOr := strings.EqualFold(strings.TrimSpace(operator), types.ConditionOperatorOr)
	for _, cond := range conditions {
		passed := evaluateCondition(cond, fields)
		if isOr && passed {
			return true
		}
		if !isOr && !passed {
			return false
		}
	}
	return !isOr
}

// evaluateCondition applies one (field, operator, value) clause. Operators
// compare case-insensitively; an unknown operator never matches.
func evaluateCondition(cond types.RuleCondition, fields map[string]string) bool {
	fieldVal := strings.ToLower(strings.TrimSpace(fields[strings.TrimSpace(cond.Field)]))
	condVal := strings.ToLower(strings.TrimSpace(cond.Value))

	switch strings.TrimSpace(cond.Operator) {
	case types.OpEquals:
		return fieldVal == condVal
	case types.OpNotEquals:
		return fieldVal != condVal
	case types.OpContains:
		return condVal != "" && strings.Contains(fieldVal, condVal)
	case types.OpNotContains:
		return condVal == "" || !strings.Contains(fieldVal, condVal)
	case types.OpStartsWith:
		return condVal != "" && strings.HasPrefix(fieldVal, condVal)
	case types.OpNotStartsWith:
		return condVal == "" || !strings.HasPrefix(fieldVal, condVal)
	case types.OpEndsWith:
		return condVal != "" && strings.HasSuffix(fieldVal, condVal)
	case types.OpNotEndsWith:
		return condVal == "" || !strings.HasSuffix(fieldVal, condVal)
	}
	return false
}
