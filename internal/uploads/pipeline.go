package uploads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medshift-chat/internal/domain/chat"
	medredis "medshift-chat/internal/redis"
	"medshift-chat/internal/storage"
	medshift_errors "medshift-chat/pkg/errors"
	"medshift-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// File is one locally-picked file handed to the pipeline.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileResult is the per-file outcome. Partial success is expected and
// reported, not exceptional.
type FileResult struct {
	Name         string
	AttachmentID uuid.UUID
	Err          error
}

// ObjectStore is the slice of the storage client the pipeline needs.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
}

// AttachmentStore persists pending attachment rows and their message link.
type AttachmentStore interface {
	Create(ctx context.Context, a *chat.Attachment) error
	LinkToMessage(ctx context.Context, attachmentIDs []uuid.UUID, messageID uuid.UUID) error
}

// QuotaChecker is the backend-owned upload counter. Its rejection is a
// normal per-file failure, never fatal.
type QuotaChecker interface {
	Allow(ctx context.Context, userID string) (*medredis.QuotaResult, error)
}

// Pipeline uploads picked files to object storage and records pending
// attachment rows. Files are independent: one failure never aborts the
// others. Size and kind are enforced before anything touches the network.
type Pipeline struct {
	store       ObjectStore
	attachments AttachmentStore
	quota       QuotaChecker
	log         *logger.Logger
	maxFileSize int64
}

func NewPipeline(store ObjectStore, attachments AttachmentStore, quota QuotaChecker, log *logger.Logger, maxFileSize int64) *Pipeline {
	return &Pipeline{
		store:       store,
		attachments: attachments,
		quota:       quota,
		log:         log,
		maxFileSize: maxFileSize,
	}
}

// Upload processes each file independently and concurrently, returning one
// result per input file in input order.
func (p *Pipeline) Upload(ctx context.Context, files []File, conversationID, organizationID, authorID uuid.UUID) []FileResult {
	results := make([]FileResult, len(files))
	g := new(errgroup.Group)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			results[i] = p.uploadOne(ctx, f, conversationID, organizationID, authorID)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) uploadOne(ctx context.Context, f File, conversationID, organizationID, authorID uuid.UUID) FileResult {
	res := FileResult{Name: f.Name}

	kind, err := p.validate(f)
	if err != nil {
		res.Err = err
		return res
	}

	if p.quota != nil {
		q, err := p.quota.Allow(ctx, authorID.String())
		if err != nil {
			res.Err = fmt.Errorf("quota check for %s: %w", f.Name, err)
			return res
		}
		if !q.Allowed {
			res.Err = fmt.Errorf("%s: %w", f.Name, medshift_errors.ErrQuotaExceeded)
			return res
		}
	}

	att := chat.Attachment{
		ID:             uuid.New(),
		ConversationID: conversationID,
		OrganizationID: organizationID,
		UploaderID:     authorID,
		MessageID:      uuid.NullUUID{},
		FileName:       f.Name,
		Kind:           kind,
		MimeType:       f.ContentType,
		SizeBytes:      int64(len(f.Data)),
		Status:         chat.AttachmentPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	att.ObjectKey = storage.ObjectKey(conversationID, att.ID, f.Name)

	if err := p.store.Upload(ctx, att.ObjectKey, f.ContentType, f.Data); err != nil {
		res.Err = fmt.Errorf("upload %s: %w", f.Name, err)
		return res
	}

	if err := p.attachments.Create(ctx, &att); err != nil {
		res.Err = fmt.Errorf("record attachment %s: %w", f.Name, err)
		return res
	}

	res.AttachmentID = att.ID
	return res
}

// LinkToMessage establishes the attachment→message link. The link step can
// race ahead of message confirmation, so a handful of retries cover the
// window where the message row is not yet visible.
func (p *Pipeline) LinkToMessage(ctx context.Context, attachmentIDs []uuid.UUID, messageID uuid.UUID) error {
	if len(attachmentIDs) == 0 {
		return nil
	}
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = p.attachments.LinkToMessage(ctx, attachmentIDs, messageID); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 200 * time.Millisecond):
		}
	}
	p.log.Error("attachment link failed",
		zap.String("message_id", messageID.String()),
		zap.Int("attachments", len(attachmentIDs)),
		zap.Error(err))
	return err
}

func (p *Pipeline) validate(f File) (string, error) {
	if int64(len(f.Data)) > p.maxFileSize {
		return "", fmt.Errorf("%s (%d bytes): %w", f.Name, len(f.Data), medshift_errors.ErrTooLarge)
	}
	kind, err := KindFromContentType(f.ContentType)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.Name, err)
	}
	return kind, nil
}

// KindFromContentType maps a MIME type to a file kind. Only images and PDF
// documents are accepted.
func KindFromContentType(contentType string) (string, error) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return chat.FileKindImage, nil
	case contentType == "application/pdf":
		return chat.FileKindDocument, nil
	default:
		return "", medshift_errors.ErrUnsupportedFileKind
	}
}
