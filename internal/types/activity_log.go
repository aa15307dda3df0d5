package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActivitySourceAIExtraction = "ai_extraction"
	ActivitySourceRuleEngine   = "rule_engine"
	ActivitySourceManual       = "manual"
)

// ActivityLog is the append-only audit trail for task changes: what happened,
// who or what decided it, and why.
type ActivityLog struct {
	gorm.Model
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID    uuid.UUID      `gorm:"type:uuid;index;not null;column:task_id" json:"task_id"`
	ActorID   *uuid.UUID     `gorm:"type:uuid;column:actor_id" json:"actor_id"`
	Action    string         `gorm:"not null;column:action" json:"action"`
	Source    string         `gorm:"column:source" json:"source"`
	Reason    string         `gorm:"column:reason" json:"reason"`
	Meta      datatypes.JSON `gorm:"column:meta" json:"meta"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (ActivityLog) TableName() string {
	return "activity_log"
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
