package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MatchTypeExactEmail = "exact_email"
	MatchTypeDomain     = "domain"
	MatchTypeName       = "name_match"
	MatchTypePhone      = "phone_match"
	MatchTypeCompany    = "company_match"
	MatchTypeManual     = "manual"
)

// ClientMatch records the matcher's best-guess linkage of an inbound item to a
// registry client. One row per inbound item; a manual verification overwrites
// the computed result with confidence 1.0.
type ClientMatch struct {
	gorm.Model
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	InboundItemID uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null;column:inbound_item_id" json:"inbound_item_id"`
	ClientID      *uuid.UUID     `gorm:"type:uuid;index;column:client_id" json:"client_id"`
	MatchType     string         `gorm:"column:match_type" json:"match_type"`
	Confidence    float64        `gorm:"column:confidence" json:"confidence"`
	Reason        string         `gorm:"column:reason" json:"reason"`
	Alternatives  datatypes.JSON `gorm:"column:alternatives" json:"alternatives"`
	SearchTerms   datatypes.JSON `gorm:"column:search_terms" json:"search_terms"`
	IsVerified    bool           `gorm:"not null;default:false;column:is_verified" json:"is_verified"`
	VerifiedBy    *uuid.UUID     `gorm:"type:uuid;column:verified_by" json:"verified_by"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (ClientMatch) TableName() string {
	return "client_match"
}

func (m *ClientMatch) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
