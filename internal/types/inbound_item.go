package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SourceEmail     = "email"
	SourcePhoneCall = "phone_call"
	SourceWebForm   = "web_form"
	SourceSMS       = "sms"
	SourceChat      = "chat"
)

// InboundItem is the normalized capture of an email, call, form submission,
// SMS or chat message that may produce tasks. Immutable once written; the
// pipeline only ever references it.
type InboundItem struct {
	gorm.Model
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SourceType    string         `gorm:"not null;uniqueIndex:idx_inbound_source;column:source_type" json:"source_type"`
	SourceID      string         `gorm:"not null;uniqueIndex:idx_inbound_source;column:source_id" json:"source_id"`
	SenderName    string         `gorm:"column:sender_name" json:"sender_name"`
	SenderEmail   string         `gorm:"index;column:sender_email" json:"sender_email"`
	SenderPhone   string         `gorm:"column:sender_phone" json:"sender_phone"`
	SenderCompany string         `gorm:"column:sender_company" json:"sender_company"`
	Subject       string         `gorm:"column:subject" json:"subject"`
	Body          string         `gorm:"type:text;column:body" json:"body"`
	Category      string         `gorm:"column:category" json:"category"`
	Payload       datatypes.JSON `gorm:"column:payload" json:"payload"`
	ReceivedAt    time.Time      `gorm:"not null;column:received_at" json:"received_at"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (InboundItem) TableName() string {
	return "inbound_item"
}

func (i *InboundItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// NormalizedFields flattens the variant payload into the string map the rule
// engine evaluates. Each source type contributes the same core keys so rules
// written against "subject" or "sender_email" apply across sources.
func (i *InboundItem) NormalizedFields() map[string]string {
	fields := map[string]string{
		"source_type":    i.SourceType,
		"sender_name":    i.SenderName,
		"sender_email":   i.SenderEmail,
		"sender_phone":   i.SenderPhone,
		"sender_company": i.SenderCompany,
		"subject":        i.Subject,
		"body":           i.Body,
		"category":       i.Category,
	}
	switch i.SourceType {
	case SourcePhoneCall:
		fields["transcript"] = i.Body
	case SourceWebForm:
		fields["form_body"] = i.Body
	}
	return fields
}
