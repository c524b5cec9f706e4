package chat

import (
	"time"

	"github.com/google/uuid"
)

// ReadPosition tracks per-viewer read progress in a conversation.
// LastReadAt is monotonic: it never decreases.
type ReadPosition struct {
	ConversationID uuid.UUID `gorm:"primaryKey"`
	ViewerID       uuid.UUID `gorm:"primaryKey"`
	LastReadAt     time.Time
	UpdatedAt      time.Time
}

func (ReadPosition) TableName() string {
	return "read_positions"
}
