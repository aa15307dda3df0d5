package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/waypointcpa/taskpool-backend/internal/clients/twilio"
	"github.com/waypointcpa/taskpool-backend/internal/logger"
	"github.com/waypointcpa/taskpool-backend/internal/realtime"
	"github.com/waypointcpa/taskpool-backend/internal/realtime/bus"
	"github.com/waypointcpa/taskpool-backend/internal/repos"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

// NotifierService fans out task events. The contract is fire-and-forget:
// dispatch failures are logged and must never fail the operation that
// triggered them.
type NotifierService interface {
	TaskCreated(ctx context.Context, task *types.Task, actorID *uuid.UUID)
	TaskClaimed(ctx context.Context, task *types.Task, actorID *uuid.UUID)
	TaskAssigned(ctx context.Context, task *types.Task, actorID *uuid.UUID)
}

type notifierService struct {
	log      *logger.Logger
	eventBus bus.Bus
	sms      twilio.Client
	userRepo repos.UserRepo
}

func NewNotifierService(log *logger.Logger, eventBus bus.Bus, sms twilio.Client, userRepo repos.UserRepo) NotifierService {
	serviceLog := log.With("service", "NotifierService")
	return &notifierService{log: serviceLog, eventBus: eventBus, sms: sms, userRepo: userRepo}
}

func (ns *notifierService) TaskCreated(ctx context.Context, task *types.Task, actorID *uuid.UUID) {
	if task == nil {
		return
	}
	ns.publish(ctx, realtime.TaskEvent{
		Type:       realtime.EventTaskCreated,
		TaskID:     task.ID,
		AssigneeID: task.AssigneeID,
		ActorID:    actorID,
		Title:      task.Title,
		Priority:   task.Priority,
		OccurredAt: time.Now().UTC(),
	})
}

// TaskClaimed announces a pool pickup so open streams can drop the task from
// their unclaimed views. No SMS; the claimant acted themselves.
func (ns *notifierService) TaskClaimed(ctx context.Context, task *types.Task, actorID *uuid.UUID) {
	if task == nil {
		return
	}
	ns.publish(ctx, realtime.TaskEvent{
		Type:       realtime.EventTaskClaimed,
		TaskID:     task.ID,
		AssigneeID: task.AssigneeID,
		ActorID:    actorID,
		Title:      task.Title,
		Priority:   task.Priority,
		OccurredAt: time.Now().UTC(),
	})
}

// TaskAssigned notifies the assignee unless they performed the assignment
// themselves.
func (ns *notifierService) TaskAssigned(ctx context.Context, task *types.Task, actorID *uuid.UUID) {
	if task == nil || task.AssigneeID == nil {
		return
	}
	if actorID != nil && *actorID == *task.AssigneeID {
		return
	}
	ns.publish(ctx, realtime.TaskEvent{
		Type:       realtime.EventTaskAssigned,
		TaskID:     task.ID,
		AssigneeID: task.AssigneeID,
		ActorID:    actorID,
		Title:      task.Title,
		Priority:   task.Priority,
		OccurredAt: time.Now().UTC(),
	})
	ns.smsAssignee(ctx, task)
}

func (ns *notifierService) publish(ctx context.Context, event realtime.TaskEvent) {
	if ns.eventBus == nil {
		return
	}
	if err := ns.eventBus.Publish(ctx, event); err != nil {
		ns.log.Warn("Task event publish failed", "type", event.Type, "task_id", event.TaskID, "error", err)
	}
}

func (ns *notifierService) smsAssignee(ctx context.Context, task *types.Task) {
	if ns.sms == nil || ns.userRepo == nil || task.AssigneeID == nil {
		return
	}
	assignee, err := ns.userRepo.GetByID(ctx, nil, *task.AssigneeID)
	if err != nil {
		ns.log.Warn("Assignee lookup for SMS failed", "user_id", *task.AssigneeID, "error", err)
		return
	}
	if assignee.Phone == "" {
		return
	}
	body := fmt.Sprintf("New task assigned to you: %s (%s priority)", task.Title, task.Priority)
	if _, err := ns.sms.SendSMS(ctx, assignee.Phone, body); err != nil {
		ns.log.Warn("Assignment SMS failed", "user_id", assignee.ID, "error", err)
	}
}
