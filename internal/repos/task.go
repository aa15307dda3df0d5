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

type TaskListFilter struct {
	Status     string
	Priority   string
	AssigneeID *uuid.UUID
	ClientID   *uuid.UUID
	Unclaimed  bool
	Limit      int
	Offset     int
}

type TaskRepo interface {
	Create(ctx context.Context, tx *gorm.DB, task *types.Task) (*types.Task, error)
	Update(ctx context.Context, tx *gorm.DB, task *types.Task) (*types.Task, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, taskID uuid.UUID, status string) error
	Delete(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) error
	GetByID(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) (*types.Task, error)
	GetBySource(ctx context.Context, tx *gorm.DB, sourceType, sourceID string) ([]*types.Task, error)
	List(ctx context.Context, tx *gorm.DB, filter TaskListFilter) ([]*types.Task, error)
	Claim(ctx context.Context, tx *gorm.DB, taskID, userID uuid.UUID) (*types.Task, error)
	Release(ctx context.Context, tx *gorm.DB, taskID, userID uuid.UUID) (*types.Task, error)
	Assign(ctx context.Context, tx *gorm.DB, taskID, assigneeID uuid.UUID) (*types.Task, error)
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	repoLog := baseLog.With("repo", "TaskRepo")
	return &taskRepo{db: db, log: repoLog}
}

func (tr *taskRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return tr.db
}

func (tr *taskRepo) Create(ctx context.Context, tx *gorm.DB, task *types.Task) (*types.Task, error) {
	if task == nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	if err := tr.handle(tx).WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

func (tr *taskRepo) Update(ctx context.Context, tx *gorm.DB, task *types.Task) (*types.Task, error) {
	if task == nil || task.ID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	if err := tr.handle(tx).WithContext(ctx).Save(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

func (tr *taskRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, taskID uuid.UUID, status string) error {
	if !types.ValidTaskStatus(status) {
		return pkgerrors.ErrInvalidArgument
	}
	res := tr.handle(tx).WithContext(ctx).
		Model(&types.Task{}).
		Where("id = ?", taskID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}

func (tr *taskRepo) Delete(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) error {
	return tr.handle(tx).WithContext(ctx).
		Where("id = ?", taskID).
		Delete(&types.Task{}).Error
}

func (tr *taskRepo) GetByID(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) (*types.Task, error) {
	var task types.Task
	if err := tr.handle(tx).WithContext(ctx).
		Where("id = ?", taskID).
		First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (tr *taskRepo) GetBySource(ctx context.Context, tx *gorm.DB, sourceType, sourceID string) ([]*types.Task, error) {
	var tasks []*types.Task
	if err := tr.handle(tx).WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (tr *taskRepo) List(ctx context.Context, tx *gorm.DB, filter TaskListFilter) ([]*types.Task, error) {
	query := tr.handle(tx).WithContext(ctx).Model(&types.Task{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.AssigneeID != nil {
		query = query.Where("assignee_id = ?", *filter.AssigneeID)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Unclaimed {
		query = query.Where("claimed_by IS NULL AND assignee_id IS NULL")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var tasks []*types.Task
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Claim is a conditional update: it succeeds only while the task is still in
// the pool (no claimant, no assignee), so concurrent claimants are serialized
// by the database and exactly one wins. A read-then-write here would race.
func (tr *taskRepo) Claim(ctx context.Context, tx *gorm.DB, taskID, userID uuid.UUID) (*types.Task, error) {
	handle := tr.handle(tx).WithContext(ctx)
	now := time.Now().UTC()
	res := handle.Model(&types.Task{}).
		Where("id = ? AND claimed_by IS NULL AND assignee_id IS NULL", taskID).
		Updates(map[string]interface{}{
			"claimed_by": userID,
			"claimed_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := tr.GetByID(ctx, tx, taskID); err != nil {
			return nil, err
		}
		return nil, pkgerrors.ErrAlreadyClaimed
	}
	return tr.GetByID(ctx, tx, taskID)
}

// Release drops a claim, but only for the user holding it.
func (tr *taskRepo) Release(ctx context.Context, tx *gorm.DB, taskID, userID uuid.UUID) (*types.Task, error) {
	handle := tr.handle(tx).WithContext(ctx)
	res := handle.Model(&types.Task{}).
		Where("id = ? AND claimed_by = ?", taskID, userID).
		Updates(map[string]interface{}{
			"claimed_by": nil,
			"claimed_at": nil,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := tr.GetByID(ctx, tx, taskID); err != nil {
			return nil, err
		}
		return nil, pkgerrors.ErrNotClaimant
	}
	return tr.GetByID(ctx, tx, taskID)
}

// Assign routes the task to a specific person and clears any claim, whatever
// its current claim state.
func (tr *taskRepo) Assign(ctx context.Context, tx *gorm.DB, taskID, assigneeID uuid.UUID) (*types.Task, error) {
	handle := tr.handle(tx).WithContext(ctx)
	res := handle.Model(&types.Task{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"assignee_id": assigneeID,
			"claimed_by":  nil,
			"claimed_at":  nil,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.ErrNotFound
	}
	return tr.GetByID(ctx, tx, taskID)
}
