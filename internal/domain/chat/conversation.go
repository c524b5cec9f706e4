package chat

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Conversation types
const (
	ConversationDirect  = "direct"
	ConversationGroup   = "group"
	ConversationSupport = "support"
)

// Conversation represents the conversations table.
// Conversations are created by the admin console or a support flow; this
// service reads them and advances read positions, it never deletes them.
type Conversation struct {
	ID             uuid.UUID
	Type           string
	Name           sql.NullString
	OrganizationID uuid.NullUUID
	CreatedBy      uuid.NullUUID
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Participants []Participant
}

// Participant represents the conversation_participants table
type Participant struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	Role           string
	JoinedAt       time.Time
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "conversation_participants"
}
