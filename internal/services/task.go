package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	pkgerrors "github.com/waypointcpa/taskpool-backend/internal/pkg/errors"
	"github.com/waypointcpa/taskpool-backend/internal/repos"
	"github.com/waypointcpa/taskpool-backend/internal/requestdata"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

// allowedStatusTransitions layers the lifecycle on top of the claim state.
// Completed and cancelled are terminal.
var allowedStatusTransitions = map[string][]string{
	types.TaskStatusPending:    {types.TaskStatusInProgress, types.TaskStatusCancelled, types.TaskStatusOnHold},
	types.TaskStatusInProgress: {types.TaskStatusCompleted, types.TaskStatusCancelled, types.TaskStatusOnHold},
	types.TaskStatusOnHold:     {types.TaskStatusPending, types.TaskStatusInProgress, types.TaskStatusCancelled},
}

type TaskService interface {
	Create(ctx context.Context, task *types.Task) (*types.Task, error)
	Get(ctx context.Context, taskID uuid.UUID) (*types.Task, error)
	List(ctx context.Context, filter repos.TaskListFilter) ([]*types.Task, error)
	UpdateStatus(ctx context.Context, taskID uuid.UUID, status string) (*types.Task, error)
	Claim(ctx context.Context, taskID uuid.UUID) (*types.Task, error)
	Release(ctx context.Context, taskID uuid.UUID) (*types.Task, error)
	Assign(ctx context.Context, taskID, assigneeID uuid.UUID) (*types.Task, error)
	Delete(ctx context.Context, taskID uuid.UUID) error
	Activity(ctx context.Context, taskID uuid.UUID) ([]*types.ActivityLog, error)
}

type taskService struct {
	db           *gorm.DB
	log          *logger.Logger
	taskRepo     repos.TaskRepo
	activityRepo repos.ActivityLogRepo
	notifier     NotifierService
}

func NewTaskService(db *gorm.DB, log *logger.Logger, taskRepo repos.TaskRepo, activityRepo repos.ActivityLogRepo, notifier NotifierService) TaskService {
	serviceLog := log.With("service", "TaskService")
	return &taskService{
		db:           db,
		log:          serviceLog,
		taskRepo:     taskRepo,
		activityRepo: activityRepo,
		notifier:     notifier,
	}
}

func actor(ctx context.Context) *uuid.UUID {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil
	}
	id := rd.UserID
	return &id
}

func actorRole(ctx context.Context) string {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return ""
	}
	return rd.Role
}

func (ts *taskService) Create(ctx context.Context, task *types.Task) (*types.Task, error) {
	if task == nil || task.Title == "" {
		return nil, fmt.Errorf("%w: task title required", pkgerrors.ErrInvalidArgument)
	}
	if task.Status == "" {
		task.Status = types.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = types.TaskPriorityMedium
	}
	if !types.ValidTaskStatus(task.Status) || !types.ValidTaskPriority(task.Priority) {
		return nil, pkgerrors.ErrInvalidArgument
	}
	task.CreatedBy = actor(ctx)

	created, err := ts.taskRepo.Create(ctx, nil, task)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	ts.recordActivity(ctx, created.ID, "created", types.ActivitySourceManual, "task created manually", nil)
	ts.notifier.TaskCreated(ctx, created, actor(ctx))
	if created.AssigneeID != nil {
		ts.notifier.TaskAssigned(ctx, created, actor(ctx))
	}
	return created, nil
}

func (ts *taskService) Get(ctx context.Context, taskID uuid.UUID) (*types.Task, error) {
	return ts.taskRepo.GetByID(ctx, nil, taskID)
}

func (ts *taskService) List(ctx context.Context, filter repos.TaskListFilter) ([]*types.Task, error) {
	return ts.taskRepo.List(ctx, nil, filter)
}

func (ts *taskService) UpdateStatus(ctx context.Context, taskID uuid.UUID, status string) (*types.Task, error) {
	if !types.ValidTaskStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", pkgerrors.ErrInvalidArgument, status)
	}
	task, err := ts.taskRepo.GetByID(ctx, nil, taskID)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(task.Status, status) {
		return nil, fmt.Errorf("%w: cannot move task from %s to %s", pkgerrors.ErrInvalidArgument, task.Status, status)
	}
	if err := ts.taskRepo.UpdateStatus(ctx, nil, taskID, status); err != nil {
		return nil, err
	}
	ts.recordActivity(ctx, taskID, "status_changed", types.ActivitySourceManual,
		fmt.Sprintf("status %s -> %s", task.Status, status), nil)
	return ts.taskRepo.GetByID(ctx, nil, taskID)
}

func transitionAllowed(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range allowedStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Claim picks the task up from the shared pool. The conditional update in the
// repo serializes racing claimants.
func (ts *taskService) Claim(ctx context.Context, taskID uuid.UUID) (*types.Task, error) {
	userID := actor(ctx)
	if userID == nil {
		return nil, pkgerrors.ErrUnauthorized
	}
	task, err := ts.taskRepo.Claim(ctx, nil, taskID, *userID)
	if err != nil {
		return nil, err
	}
	ts.recordActivity(ctx, taskID, "claimed", types.ActivitySourceManual, "claimed from pool", nil)
	ts.notifier.TaskClaimed(ctx, task, userID)
	return task, nil
}

func (ts *taskService) Release(ctx context.Context, taskID uuid.UUID) (*types.Task, error) {
	userID := actor(ctx)
	if userID == nil {
		return nil, pkgerrors.ErrUnauthorized
	}
	task, err := ts.taskRepo.Release(ctx, nil, taskID, *userID)
	if err != nil {
		return nil, err
	}
	ts.recordActivity(ctx, taskID, "released", types.ActivitySourceManual, "claim released", nil)
	return task, nil
}

// Assign explicitly routes the task. Requires admin or owner role; clears any
// existing claim regardless of who holds it.
func (ts *taskService) Assign(ctx context.Context, taskID, assigneeID uuid.UUID) (*types.Task, error) {
	role := actorRole(ctx)
	if role != types.RoleAdmin && role != types.RoleOwner {
		return nil, pkgerrors.ErrUnauthorized
	}
	task, err := ts.taskRepo.Assign(ctx, nil, taskID, assigneeID)
	if err != nil {
		return nil, err
	}
	meta, _ := json.Marshal(map[string]string{"assignee_id": assigneeID.String()})
	ts.recordActivity(ctx, taskID, "assigned", types.ActivitySourceManual, "explicitly assigned", meta)
	ts.notifier.TaskAssigned(ctx, task, actor(ctx))
	return task, nil
}

// Delete is a soft delete and restricted to admin or owner.
func (ts *taskService) Delete(ctx context.Context, taskID uuid.UUID) error {
	role := actorRole(ctx)
	if role != types.RoleAdmin && role != types.RoleOwner {
		return pkgerrors.ErrUnauthorized
	}
	return ts.taskRepo.Delete(ctx, nil, taskID)
}

func (ts *taskService) Activity(ctx context.Context, taskID uuid.UUID) ([]*types.ActivityLog, error) {
	return ts.activityRepo.ListByTask(ctx, nil, taskID)
}

func (ts *taskService) recordActivity(ctx context.Context, taskID uuid.UUID, action, source, reason string, meta []byte) {
	entry := &types.ActivityLog{
		TaskID:  taskID,
		ActorID: actor(ctx),
		Action:  action,
		Source:  source,
		Reason:  reason,
	}
	if meta != nil {
		entry.Meta = meta
	}
	if _, err := ts.activityRepo.Create(ctx, nil, entry); err != nil {
		ts.log.Warn("Activity log write failed", "task_id", taskID, "action", action, "error", err)
	}
}
