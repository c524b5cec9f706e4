package repository

import (
	"context"
	"errors"
	"time"

	"medshift-chat/internal/domain/chat"
	medshift_errors "medshift-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresReadPositionRepository struct {
	db *gorm.DB
}

func NewReadPositionRepository(db *gorm.DB) ReadPositionRepository {
	return &PostgresReadPositionRepository{db: db}
}

// Upsert advances last_read_at. The WHERE guard on the conflict update
// keeps the column monotonic even under concurrent writers.
func (r *PostgresReadPositionRepository) Upsert(ctx context.Context, conversationID, viewerID uuid.UUID, at time.Time) error {
	pos := chat.ReadPosition{
		ConversationID: conversationID,
		ViewerID:       viewerID,
		LastReadAt:     at,
		UpdatedAt:      time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "conversation_id"}, {Name: "viewer_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_read_at": at,
				"updated_at":   time.Now(),
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Lt{Column: "read_positions.last_read_at", Value: at},
			}},
		}).
		Create(&pos).Error
}

func (r *PostgresReadPositionRepository) Get(ctx context.Context, conversationID, viewerID uuid.UUID) (chat.ReadPosition, error) {
	var pos chat.ReadPosition
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND viewer_id = ?", conversationID, viewerID).
		First(&pos).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.ReadPosition{}, medshift_errors.ErrNotFound
		}
		return chat.ReadPosition{}, err
	}
	return pos, nil
}
