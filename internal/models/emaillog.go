package models

import (
	"encoding/json"
	"time"
)

// EmailLog is an append-only audit record written once per successful send.
// Rows are never mutated or deleted by this service; external reporting tools
// read them. The provider message id carries a unique index so a replayed
// write is a no-op rather than a duplicate row.
type EmailLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ToEmail   string    `json:"to_email" gorm:"not null"`
	Subject   string    `json:"subject" gorm:"not null"`
	Template  string    `json:"template" gorm:"not null;index"`
	Status    string    `json:"status" gorm:"not null"`
	MessageID string    `json:"message_id" gorm:"uniqueIndex;not null"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the gorm default.
func (EmailLog) TableName() string { return "email_logs" }

// EmailLogMetadata is marshalled into EmailLog.Metadata.
type EmailLogMetadata struct {
	UserID    string `json:"user_id,omitempty"`
	Version   string `json:"version"`
	MessageID string `json:"message_id"`
	SentBy    string `json:"sent_by,omitempty"`
}

// Encode returns the metadata as a JSON string for storage.
func (m EmailLogMetadata) Encode() string {
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}
