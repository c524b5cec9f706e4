package handler

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"time"

	"medshift-chat/internal/domain/chat"
	"medshift-chat/internal/middleware"
	"medshift-chat/internal/services"
	"medshift-chat/internal/uploads"
	medshift_errors "medshift-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	chats    *services.ChatService
	pipeline *uploads.Pipeline
}

func NewMessageHandler(chats *services.ChatService, pipeline *uploads.Pipeline) *MessageHandler {
	return &MessageHandler{chats: chats, pipeline: pipeline}
}

type fileResultResponse struct {
	Name         string `json:"name"`
	AttachmentID string `json:"attachment_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Send accepts a multipart form with a "content" field and zero or more
// "files". Files are processed independently; the message is created with
// whichever attachments succeeded, and partial failures are reported
// per-file in the response.
func (h *MessageHandler) Send(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no session"})
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	content := c.PostForm("content")
	files, err := readFiles(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed upload"})
		return
	}
	if content == "" && len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		return
	}

	// Tenant attribution must be resolvable before any network step.
	if len(files) > 0 {
		if err := sess.RequireOrganization(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": medshift_errors.ErrOrgUnresolved.Error()})
			return
		}
	}

	var (
		results       []uploads.FileResult
		attachmentIDs []uuid.UUID
	)
	if len(files) > 0 {
		results = h.pipeline.Upload(c.Request.Context(), files, conversationID, sess.OrganizationID, sess.ViewerID)
		for _, r := range results {
			if r.Err == nil {
				attachmentIDs = append(attachmentIDs, r.AttachmentID)
			}
		}
	}

	if content == "" {
		content = chat.AttachmentPlaceholder
	}
	msg := chat.Message{
		ConversationID: conversationID,
		AuthorID:       uuid.NullUUID{UUID: sess.ViewerID, Valid: true},
		Content:        sql.NullString{String: content, Valid: true},
		CreatedAt:      time.Now(),
	}
	if err := h.chats.Create(c.Request.Context(), &msg); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, medshift_errors.ErrAlreadyExists) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": "message not sent", "retryable": true})
		return
	}

	// Message delivery takes precedence over linkage consistency: a link
	// failure leaves orphaned-but-retrievable attachments, not data loss.
	if len(attachmentIDs) > 0 {
		_ = h.pipeline.LinkToMessage(c.Request.Context(), attachmentIDs, msg.ID)
	}

	out := make([]fileResultResponse, 0, len(results))
	for _, r := range results {
		fr := fileResultResponse{Name: r.Name}
		if r.Err != nil {
			fr.Error = r.Err.Error()
		} else {
			fr.AttachmentID = r.AttachmentID.String()
		}
		out = append(out, fr)
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg, "files": out})
}

func readFiles(c *gin.Context) ([]uploads.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	var out []uploads.File
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, uploads.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return out, nil
}
