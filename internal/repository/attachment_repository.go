package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"medshift-chat/internal/domain/chat"
	medshift_errors "medshift-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresAttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &PostgresAttachmentRepository{db: db}
}

func (r *PostgresAttachmentRepository) Create(ctx context.Context, a *chat.Attachment) error {
	res := r.db.WithContext(ctx).Create(a)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return medshift_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresAttachmentRepository) GetByID(ctx context.Context, id uuid.UUID) (chat.Attachment, error) {
	var a chat.Attachment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Attachment{}, medshift_errors.ErrNotFound
		}
		return chat.Attachment{}, err
	}
	return a, nil
}

func (r *PostgresAttachmentRepository) LinkToMessage(ctx context.Context, attachmentIDs []uuid.UUID, messageID uuid.UUID) error {
	if len(attachmentIDs) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&chat.Attachment{}).
		Where("id IN ?", attachmentIDs).
		Updates(map[string]interface{}{
			"message_id": messageID,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return medshift_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresAttachmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status, reason string) (chat.Attachment, error) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if status == chat.AttachmentRejected {
		updates["rejected_reason"] = sql.NullString{String: reason, Valid: reason != ""}
	}
	res := r.db.WithContext(ctx).
		Model(&chat.Attachment{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return chat.Attachment{}, res.Error
	}
	if res.RowsAffected == 0 {
		return chat.Attachment{}, medshift_errors.ErrNotFound
	}
	return r.GetByID(ctx, id)
}
