package chat

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Delivery states for a locally-initiated message. Settled is terminal for
// the message itself; its attachment set can still change independently.
// There is no transition from Failed back to Optimistic: a failed send is
// resubmitted as a brand-new optimistic entry.
type DeliveryState string

const (
	DeliveryOptimistic DeliveryState = "optimistic"
	DeliverySettled    DeliveryState = "settled"
	DeliveryFailed     DeliveryState = "failed"
)

// AttachmentPlaceholder is the content used for attachment-only sends.
const AttachmentPlaceholder = "📎 Anexo enviado"

// Message represents the messages table. AuthorID is null for
// system/admin-originated messages.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	AuthorID       uuid.NullUUID
	Content        sql.NullString
	CreatedAt      time.Time

	Attachments []Attachment `gorm:"foreignKey:MessageID"`
}

func (Message) TableName() string {
	return "messages"
}

// Author returns the author id, or uuid.Nil for system messages.
func (m Message) Author() uuid.UUID {
	if m.AuthorID.Valid {
		return m.AuthorID.UUID
	}
	return uuid.Nil
}
