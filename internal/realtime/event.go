package realtime

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTaskAssigned = "task.assigned"
	EventTaskClaimed  = "task.claimed"
	EventTaskCreated  = "task.created"
)

// TaskEvent is the payload published on the notification bus whenever the
// pipeline or a user routes a task.
type TaskEvent struct {
	Type       string     `json:"type"`
	TaskID     uuid.UUID  `json:"task_id"`
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Title      string     `json:"title,omitempty"`
	Priority   string     `json:"priority,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
