package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
	TaskStatusOnHold     = "on_hold"
)

const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)

// Task is the persisted unit of work. Assignee and claimant are distinct:
// a claim is a worker's provisional pickup from the shared pool, assignment
// is an explicit routing that clears any claim.
type Task struct {
	gorm.Model
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string         `gorm:"not null;column:title" json:"title"`
	Description    string         `gorm:"type:text;column:description" json:"description"`
	Status         string         `gorm:"not null;default:'pending';index;column:status" json:"status"`
	Priority       string         `gorm:"not null;default:'medium';column:priority" json:"priority"`
	DueDate        *time.Time     `gorm:"column:due_date" json:"due_date"`
	AssigneeID     *uuid.UUID     `gorm:"type:uuid;index;column:assignee_id" json:"assignee_id"`
	ClaimedBy      *uuid.UUID     `gorm:"type:uuid;index;column:claimed_by" json:"claimed_by"`
	ClaimedAt      *time.Time     `gorm:"column:claimed_at" json:"claimed_at"`
	Column         string         `gorm:"column:board_column" json:"column"`
	Tags           datatypes.JSON `gorm:"column:tags" json:"tags"`
	ClientID       *uuid.UUID     `gorm:"type:uuid;index;column:client_id" json:"client_id"`
	SourceType     string         `gorm:"index:idx_task_source;column:source_type" json:"source_type"`
	SourceID       string         `gorm:"index:idx_task_source;column:source_id" json:"source_id"`
	AIConfidence   *float64       `gorm:"column:ai_confidence" json:"ai_confidence"`
	AIRawData      datatypes.JSON `gorm:"column:ai_raw_data" json:"ai_raw_data"`
	ActionTypeCode string         `gorm:"column:action_type_code" json:"action_type_code"`
	NextTaskID     *uuid.UUID     `gorm:"type:uuid;column:next_task_id" json:"next_task_id"`
	CreatedBy      *uuid.UUID     `gorm:"type:uuid;column:created_by" json:"created_by"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (Task) TableName() string {
	return "task"
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func ValidTaskStatus(status string) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled, TaskStatusOnHold:
		return true
	}
	return false
}

func ValidTaskPriority(priority string) bool {
	switch priority {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}
