package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	pkgerrors "github.com/waypointcpa/taskpool-backend/internal/pkg/errors"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type ActivityLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *types.ActivityLog) (*types.ActivityLog, error)
	ListByTask(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) ([]*types.ActivityLog, error)
}

type activityLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityLogRepo(db *gorm.DB, baseLog *logger.Logger) ActivityLogRepo {
	repoLog := baseLog.With("repo", "ActivityLogRepo")
	return &activityLogRepo{db: db, log: repoLog}
}

func (lr *activityLogRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return lr.db
}

func (lr *activityLogRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.ActivityLog) (*types.ActivityLog, error) {
	if entry == nil || entry.TaskID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	if err := lr.handle(tx).WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (lr *activityLogRepo) ListByTask(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) ([]*types.ActivityLog, error) {
	var entries []*types.ActivityLog
	if err := lr.handle(tx).WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
