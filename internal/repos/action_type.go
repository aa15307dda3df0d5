package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type ActionTypeRepo interface {
	ListActive(ctx context.Context, tx *gorm.DB) ([]*types.ActionType, error)
	Seed(ctx context.Context, tx *gorm.DB, actionTypes []*types.ActionType) error
}

type actionTypeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActionTypeRepo(db *gorm.DB, baseLog *logger.Logger) ActionTypeRepo {
	repoLog := baseLog.With("repo", "ActionTypeRepo")
	return &actionTypeRepo{db: db, log: repoLog}
}

func (ar *actionTypeRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}

func (ar *actionTypeRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.ActionType, error) {
	var results []*types.ActionType
	if err := ar.handle(tx).WithContext(ctx).
		Where("is_active = ?", true).
		Order("code ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Seed inserts the vocabulary idempotently; existing codes are left alone.
func (ar *actionTypeRepo) Seed(ctx context.Context, tx *gorm.DB, actionTypes []*types.ActionType) error {
	if len(actionTypes) == 0 {
		return nil
	}
	return ar.handle(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(&actionTypes).Error
}
