package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pkgerrors "github.com/waypointcpa/taskpool-backend/internal/pkg/errors"
	"github.com/waypointcpa/taskpool-backend/internal/repos"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type RuleHandler struct {
	ruleRepo repos.AssignmentRuleRepo
}

func NewRuleHandler(ruleRepo repos.AssignmentRuleRepo) *RuleHandler {
	return &RuleHandler{ruleRepo: ruleRepo}
}

type ruleView struct {
	*types.AssignmentRule
	Effectiveness float64 `json:"effectiveness"`
}

func (rh *RuleHandler) List(c *gin.Context) {
	rules, err := rh.ruleRepo.List(c.Request.Context(), nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]ruleView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, ruleView{AssignmentRule: rule, Effectiveness: rule.Effectiveness()})
	}
	c.JSON(http.StatusOK, gin.H{"rules": views})
}

type ruleRequest struct {
	Name              string                `json:"name" binding:"required"`
	IsActive          *bool                 `json:"is_active"`
	Priority          int                   `json:"priority"`
	Conditions        []types.RuleCondition `json:"conditions" binding:"required"`
	ConditionOperator string                `json:"condition_operator"`
	AssignToUserID    *string               `json:"assign_to_user_id"`
	AssignToColumn    string                `json:"assign_to_column"`
	SetPriority       string                `json:"set_priority"`
	AddTags           []string              `json:"add_tags"`
	AutoCreateTask    bool                  `json:"auto_create_task"`
	TaskTemplateID    *string               `json:"task_template_id"`
}

func (rh *RuleHandler) Create(c *gin.Context) {
	rule, ok := rh.bindRule(c)
	if !ok {
		return
	}
	created, err := rh.ruleRepo.Create(c.Request.Context(), nil, rule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule": created})
}

func (rh *RuleHandler) Update(c *gin.Context) {
	ruleID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	existing, err := rh.ruleRepo.GetByID(c.Request.Context(), nil, ruleID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rule, ok := rh.bindRule(c)
	if !ok {
		return
	}
	rule.ID = existing.ID
	rule.TimesMatched = existing.TimesMatched
	rule.TimesOverridden = existing.TimesOverridden
	rule.LastMatchedAt = existing.LastMatchedAt
	rule.CreatedAt = existing.CreatedAt
	updated, err := rh.ruleRepo.Update(c.Request.Context(), nil, rule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": updated})
}

func (rh *RuleHandler) Delete(c *gin.Context) {
	ruleID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := rh.ruleRepo.Delete(c.Request.Context(), nil, ruleID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RecordOverride marks a human override of a rule's suggestion, bumping
// times_overridden for the effectiveness display.
func (rh *RuleHandler) RecordOverride(c *gin.Context) {
	ruleID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := rh.ruleRepo.RecordOutcome(c.Request.Context(), nil, ruleID, false, true); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (rh *RuleHandler) bindRule(c *gin.Context) (*types.AssignmentRule, bool) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	operator := req.ConditionOperator
	if operator == "" {
		operator = types.ConditionOperatorAnd
	}
	if operator != types.ConditionOperatorAnd && operator != types.ConditionOperatorOr {
		c.JSON(http.StatusBadRequest, gin.H{"error": "condition_operator must be and|or"})
		return nil, false
	}
	conditions, err := json.Marshal(req.Conditions)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	rule := &types.AssignmentRule{
		Name:              req.Name,
		IsActive:          true,
		Priority:          req.Priority,
		Conditions:        conditions,
		ConditionOperator: operator,
		AssignToColumn:    req.AssignToColumn,
		SetPriority:       req.SetPriority,
		AutoCreateTask:    req.AutoCreateTask,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.AssignToUserID != nil {
		id, err := uuid.Parse(*req.AssignToUserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assign_to_user_id"})
			return nil, false
		}
		rule.AssignToUserID = &id
	}
	if req.TaskTemplateID != nil {
		id, err := uuid.Parse(*req.TaskTemplateID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task_template_id"})
			return nil, false
		}
		rule.TaskTemplateID = &id
	}
	if len(req.AddTags) > 0 {
		if tags, err := json.Marshal(req.AddTags); err == nil {
			rule.AddTags = tags
		}
	}
	return rule, true
}
