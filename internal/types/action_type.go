package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActionType is the vocabulary of task classifications the AI extractor is
// allowed to emit. The extraction prompt is built from the active set; codes
// outside it are dropped on parse.
type ActionType struct {
	gorm.Model
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string    `gorm:"uniqueIndex;not null;column:code" json:"code"`
	Label       string    `gorm:"not null;column:label" json:"label"`
	Description string    `gorm:"column:description" json:"description"`
	IsActive    bool      `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (ActionType) TableName() string {
	return "action_type"
}

func (a *ActionType) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
