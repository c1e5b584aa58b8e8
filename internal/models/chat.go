package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage belongs to exactly one contract request and one sender.
type ChatMessage struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ContractID uuid.UUID `gorm:"type:uuid;not null;index" json:"contract_id"`
	SenderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`

	Sender *Profile `gorm:"foreignKey:SenderID" json:"-"`
}
