package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	pkgerrors "github.com/waypointcpa/taskpool-backend/internal/pkg/errors"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type AssignmentRuleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rule *types.AssignmentRule) (*types.AssignmentRule, error)
	Update(ctx context.Context, tx *gorm.DB, rule *types.AssignmentRule) (*types.AssignmentRule, error)
	Delete(ctx context.Context, tx *gorm.DB, ruleID uuid.UUID) error
	GetByID(ctx context.Context, tx *gorm.DB, ruleID uuid.UUID) (*types.AssignmentRule, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.AssignmentRule, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*types.AssignmentRule, error)
	RecordOutcome(ctx context.Context, tx *gorm.DB, ruleID uuid.UUID, matched, overridden bool) error
}

type assignmentRuleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssignmentRuleRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRuleRepo {
	repoLog := baseLog.With("repo", "AssignmentRuleRepo")
	return &assignmentRuleRepo{db: db, log: repoLog}
}

func (rr *assignmentRuleRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return rr.db
}

func (rr *assignmentRuleRepo) Create(ctx context.Context, tx *gorm.DB, rule *types.AssignmentRule) (*types.AssignmentRule, error) {
	if rule == nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	if err := rr.handle(tx).WithContext(ctx).Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

func (rr *assignmentRuleRepo) Update(ctx context.Context, tx *gorm.DB, rule *types.AssignmentRule) (*types.AssignmentRule, error) {
	if rule == nil || rule.ID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	if err := rr.handle(tx).WithContext(ctx).Save(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

func (rr *assignmentRuleRepo) Delete(ctx context.Context, tx *gorm.DB, ruleID uuid.UUID) error {
	return rr.handle(tx).WithContext(ctx).
		Where("id = ?", ruleID).
		Delete(&types.AssignmentRule{}).Error
}

func (rr *assignmentRuleRepo) GetByID(ctx context.Context, tx *gorm.DB, ruleID uuid.UUID) (*types.AssignmentRule, error) {
	var rule types.AssignmentRule
	if err := rr.handle(tx).WithContext(ctx).
		Where("id = ?", ruleID).
		First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

func (rr *assignmentRuleRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.AssignmentRule, error) {
	var rules []*types.AssignmentRule
	if err := rr.handle(tx).WithContext(ctx).
		Order("priority DESC, created_at ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// ListActive returns active rules sorted priority DESC. Priority ties break on
// created_at ASC so evaluation order is stable across runs.
func (rr *assignmentRuleRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.AssignmentRule, error) {
	var rules []*types.AssignmentRule
	if err := rr.handle(tx).WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority DESC, created_at ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// RecordOutcome bumps the usage counters with atomic in-database increments so
// concurrent evaluations never lose updates.
func (rr *assignmentRuleRepo) RecordOutcome(ctx context.Context, tx *gorm.DB, ruleID uuid.UUID, matched, overridden bool) error {
	handle := rr.handle(tx).WithContext(ctx)
	if matched {
		if err := handle.Model(&types.AssignmentRule{}).
			Where("id = ?", ruleID).
			Updates(map[string]interface{}{
				"times_matched":   gorm.Expr("times_matched + 1"),
				"last_matched_at": time.Now().UTC(),
			}).Error; err != nil {
			return err
		}
	}
	if overridden {
		if err := handle.Model(&types.AssignmentRule{}).
			Where("id = ?", ruleID).
			Update("times_overridden", gorm.Expr("times_overridden + 1")).Error; err != nil {
			return err
		}
	}
	return nil
}
