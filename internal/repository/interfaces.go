package repository

import (
	"context"
	"time"

	"medshift-chat/internal/domain/chat"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, m *chat.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (chat.Message, error)
	// GetConversationMessages returns the full history ascending by
	// creation time, attachments joined.
	GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error)
	// GetLatestByAuthor is the best-effort fallback correlation used when
	// a send's server identity is only known via the change feed.
	GetLatestByAuthor(ctx context.Context, conversationID, authorID uuid.UUID) (chat.Message, error)
}

type AttachmentRepository interface {
	Create(ctx context.Context, a *chat.Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (chat.Attachment, error)
	// LinkToMessage sets the owning message on already-uploaded attachments.
	LinkToMessage(ctx context.Context, attachmentIDs []uuid.UUID, messageID uuid.UUID) error
	// UpdateStatus records a reviewer decision (accepted/rejected).
	UpdateStatus(ctx context.Context, id uuid.UUID, status, reason string) (chat.Attachment, error)
}

type ReadPositionRepository interface {
	// Upsert advances the read position; it must never regress it.
	Upsert(ctx context.Context, conversationID, viewerID uuid.UUID, at time.Time) error
	Get(ctx context.Context, conversationID, viewerID uuid.UUID) (chat.ReadPosition, error)
}

type ConversationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (chat.Conversation, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID) ([]chat.Conversation, error)
}
