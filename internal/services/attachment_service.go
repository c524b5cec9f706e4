package services

import (
	"context"
	"fmt"

	"medshift-chat/internal/domain/chat"
	"medshift-chat/internal/events"
	"medshift-chat/internal/repository"
	"medshift-chat/internal/storage"
	medshift_errors "medshift-chat/pkg/errors"
	"medshift-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AttachmentService persists attachment rows and publishes their feed
// events. Status transitions come from reviewers (the admin console); the
// sync core only ever observes them.
type AttachmentService struct {
	attachments repository.AttachmentRepository
	storage     *storage.Client
	publisher   *events.Publisher
	log         *logger.Logger
}

func NewAttachmentService(attachments repository.AttachmentRepository, st *storage.Client, publisher *events.Publisher, log *logger.Logger) *AttachmentService {
	return &AttachmentService{
		attachments: attachments,
		storage:     st,
		publisher:   publisher,
		log:         log,
	}
}

// Create records a pending attachment and announces it on the feed.
func (s *AttachmentService) Create(ctx context.Context, a *chat.Attachment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if err := s.attachments.Create(ctx, a); err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, a.ConversationID, events.AttachmentInserted{Attachment: *a}); err != nil {
		s.log.Error("attachment publish failed",
			zap.String("attachment_id", a.ID.String()), zap.Error(err))
	}
	return nil
}

// LinkToMessage sets the owning message and re-announces each attachment
// so views holding it in their pending table can resolve the reference.
func (s *AttachmentService) LinkToMessage(ctx context.Context, attachmentIDs []uuid.UUID, messageID uuid.UUID) error {
	if err := s.attachments.LinkToMessage(ctx, attachmentIDs, messageID); err != nil {
		return err
	}
	for _, id := range attachmentIDs {
		a, err := s.attachments.GetByID(ctx, id)
		if err != nil {
			s.log.Error("linked attachment reload failed",
				zap.String("attachment_id", id.String()), zap.Error(err))
			continue
		}
		if err := s.publisher.Publish(ctx, a.ConversationID, events.AttachmentInserted{Attachment: a}); err != nil {
			s.log.Error("attachment link publish failed",
				zap.String("attachment_id", id.String()), zap.Error(err))
		}
	}
	return nil
}

// Review applies a reviewer decision and publishes the status change.
func (s *AttachmentService) Review(ctx context.Context, id uuid.UUID, status, reason string) (chat.Attachment, error) {
	if status != chat.AttachmentAccepted && status != chat.AttachmentRejected {
		return chat.Attachment{}, fmt.Errorf("%w: status %q", medshift_errors.ErrInvalidInput, status)
	}
	a, err := s.attachments.UpdateStatus(ctx, id, status, reason)
	if err != nil {
		return chat.Attachment{}, err
	}
	if err := s.publisher.Publish(ctx, a.ConversationID, events.AttachmentStatusChanged{Attachment: a}); err != nil {
		s.log.Error("status change publish failed",
			zap.String("attachment_id", a.ID.String()), zap.Error(err))
	}
	return a, nil
}

// ViewURL returns a signed URL for viewing/downloading an attachment.
func (s *AttachmentService) ViewURL(ctx context.Context, id uuid.UUID) (string, error) {
	a, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.storage.PresignGet(ctx, a.ObjectKey)
}
