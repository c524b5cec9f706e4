package handler

import (
	"errors"
	"net/http"

	"medshift-chat/internal/services"
	medshift_errors "medshift-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AttachmentHandler struct {
	attachments *services.AttachmentService
}

func NewAttachmentHandler(attachments *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments}
}

// ViewURL returns a signed URL for viewing/downloading the attachment.
func (h *AttachmentHandler) ViewURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment id"})
		return
	}
	url, err := h.attachments.ViewURL(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, medshift_errors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign url"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

type reviewRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// Review applies a reviewer decision (accepted/rejected) and publishes the
// status change to any open views.
func (h *AttachmentHandler) Review(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment id"})
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed review"})
		return
	}
	a, err := h.attachments.Review(c.Request.Context(), id, req.Status, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, medshift_errors.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, medshift_errors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "review failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachment": a})
}
