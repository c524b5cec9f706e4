package chat

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Attachment review statuses. Transitions (pending→accepted,
// pending→rejected) are driven by a reviewer and only observed here.
const (
	AttachmentPending  = "pending"
	AttachmentAccepted = "accepted"
	AttachmentRejected = "rejected"
)

// File kinds accepted by the upload pipeline.
const (
	FileKindImage    = "image"
	FileKindDocument = "document"
)

// Attachment represents the attachments table. MessageID is null until the
// owning message is confirmed server-side; the link is a second step and an
// attachment may outlive a failed link (orphaned but retrievable by
// conversation and uploader).
type Attachment struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	OrganizationID uuid.UUID
	UploaderID     uuid.UUID
	MessageID      uuid.NullUUID
	FileName       string
	Kind           string
	MimeType       string
	SizeBytes      int64
	ObjectKey      string
	Status         string
	RejectedReason sql.NullString
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Attachment) TableName() string {
	return "attachments"
}
