package services

import (
	"context"
	"time"

	"medshift-chat/internal/domain/chat"
	"medshift-chat/internal/events"
	"medshift-chat/internal/repository"
	"medshift-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatService is the relational backend for conversations and messages.
// Every insert is echoed onto the conversation's change-feed channel so
// open views observe their own sends settle.
type ChatService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	publisher     *events.Publisher
	log           *logger.Logger
}

func NewChatService(messages repository.MessageRepository, conversations repository.ConversationRepository, publisher *events.Publisher, log *logger.Logger) *ChatService {
	return &ChatService{
		messages:      messages,
		conversations: conversations,
		publisher:     publisher,
		log:           log,
	}
}

// Create persists a message, assigning its identity, and publishes the
// echo. Publish failure is logged, not returned: subscribers recover via
// resync, and the insert already succeeded.
func (s *ChatService) Create(ctx context.Context, m *chat.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, m.ConversationID, events.MessageInserted{Message: *m}); err != nil {
		s.log.Error("message echo publish failed",
			zap.String("message_id", m.ID.String()), zap.Error(err))
	}
	return nil
}

func (s *ChatService) GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error) {
	return s.messages.GetConversationMessages(ctx, conversationID)
}

func (s *ChatService) GetLatestByAuthor(ctx context.Context, conversationID, authorID uuid.UUID) (chat.Message, error) {
	return s.messages.GetLatestByAuthor(ctx, conversationID, authorID)
}

func (s *ChatService) GetConversation(ctx context.Context, id uuid.UUID) (chat.Conversation, error) {
	return s.conversations.GetByID(ctx, id)
}

func (s *ChatService) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]chat.Conversation, error) {
	return s.conversations.GetUserConversations(ctx, userID)
}
