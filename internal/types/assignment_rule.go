package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ConditionOperatorAnd = "and"
	ConditionOperatorOr  = "or"
)

const (
	OpEquals        = "equals"
	OpNotEquals     = "not_equals"
	OpContains      = "contains"
	OpNotContains   = "not_contains"
	OpStartsWith    = "starts_with"
	OpNotStartsWith = "not_starts_with"
	OpEndsWith      = "ends_with"
	OpNotEndsWith   = "not_ends_with"
)

// RuleCondition is one (field, operator, value) clause. Conditions are stored
// on the rule as a JSON array and combined with the rule's ConditionOperator.
type RuleCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// RuleAction is the descriptor a winning rule hands back to the pipeline. The
// engine never applies it to storage itself.
type RuleAction struct {
	AssignToUserID *uuid.UUID `json:"assign_to_user_id,omitempty"`
	AssignToColumn string     `json:"assign_to_column,omitempty"`
	SetPriority    string     `json:"set_priority,omitempty"`
	AddTags        []string   `json:"add_tags,omitempty"`
	AutoCreateTask bool       `json:"auto_create_task,omitempty"`
	TaskTemplateID *uuid.UUID `json:"task_template_id,omitempty"`
}

// AssignmentRule is a user-authored conditional rule. Higher priority rules
// evaluate first; exactly one active rule wins per evaluated item. The usage
// counters only ever increase.
type AssignmentRule struct {
	gorm.Model
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string         `gorm:"not null;column:name" json:"name"`
	IsActive          bool           `gorm:"not null;default:true;column:is_active" json:"is_active"`
	Priority          int            `gorm:"not null;default:0;index;column:priority" json:"priority"`
	Conditions        datatypes.JSON `gorm:"column:conditions" json:"conditions"`
	ConditionOperator string         `gorm:"not null;default:'and';column:condition_operator" json:"condition_operator"`
	AssignToUserID    *uuid.UUID     `gorm:"type:uuid;column:assign_to_user_id" json:"assign_to_user_id"`
	AssignToColumn    string         `gorm:"column:assign_to_column" json:"assign_to_column"`
	SetPriority       string         `gorm:"column:set_priority" json:"set_priority"`
	AddTags           datatypes.JSON `gorm:"column:add_tags" json:"add_tags"`
	AutoCreateTask    bool           `gorm:"not null;default:false;column:auto_create_task" json:"auto_create_task"`
	TaskTemplateID    *uuid.UUID     `gorm:"type:uuid;column:task_template_id" json:"task_template_id"`
	TimesMatched      int64          `gorm:"not null;default:0;column:times_matched" json:"times_matched"`
	TimesOverridden   int64          `gorm:"not null;default:0;column:times_overridden" json:"times_overridden"`
	LastMatchedAt     *time.Time     `gorm:"column:last_matched_at" json:"last_matched_at"`
	CreatedBy         *uuid.UUID     `gorm:"type:uuid;column:created_by" json:"created_by"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
}

func (AssignmentRule) TableName() string {
	return "assignment_rule"
}

func (r *AssignmentRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ParsedConditions decodes the JSON condition list. A rule with no stored
// conditions parses to an empty slice, never an error.
func (r *AssignmentRule) ParsedConditions() ([]RuleCondition, error) {
	if len(r.Conditions) == 0 {
		return []RuleCondition{}, nil
	}
	var conditions []RuleCondition
	if err := json.Unmarshal(r.Conditions, &conditions); err != nil {
		return nil, err
	}
	return conditions, nil
}

// Action builds the descriptor for this rule's configured outcome.
func (r *AssignmentRule) Action() RuleAction {
	action := RuleAction{
		AssignToUserID: r.AssignToUserID,
		AssignToColumn: r.AssignToColumn,
		SetPriority:    r.SetPriority,
		AutoCreateTask: r.AutoCreateTask,
		TaskTemplateID: r.TaskTemplateID,
	}
	if len(r.AddTags) > 0 {
		var tags []string
		if err := json.Unmarshal(r.AddTags, &tags); err == nil {
			action.AddTags = tags
		}
	}
	return action
}

// Effectiveness is (times_matched - times_overridden) / times_matched, the
// display metric for how often a rule's suggestion sticks.
func (r *AssignmentRule) Effectiveness() float64 {
	if r.TimesMatched == 0 {
		return 0
	}
	return float64(r.TimesMatched-r.TimesOverridden) / float64(r.TimesMatched)
}
