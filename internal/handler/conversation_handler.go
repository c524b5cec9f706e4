package handler

import (
	"errors"
	"net/http"
	"time"

	"medshift-chat/internal/domain/chat"
	"medshift-chat/internal/middleware"
	"medshift-chat/internal/readpos"
	"medshift-chat/internal/services"
	medshift_errors "medshift-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	chats   *services.ChatService
	tracker *readpos.Tracker
}

func NewConversationHandler(chats *services.ChatService, tracker *readpos.Tracker) *ConversationHandler {
	return &ConversationHandler{chats: chats, tracker: tracker}
}

type conversationResponse struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Name           string `json:"name,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toConversationResponse(c chat.Conversation) conversationResponse {
	resp := conversationResponse{
		ID:        c.ID.String(),
		Type:      c.Type,
		Name:      c.Name.String,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
	if c.OrganizationID.Valid {
		resp.OrganizationID = c.OrganizationID.UUID.String()
	}
	return resp
}

// List returns the viewer's conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no session"})
		return
	}
	conversations, err := h.chats.GetUserConversations(c.Request.Context(), sess.ViewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	out := make([]conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, toConversationResponse(conv))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// Get returns one conversation's metadata.
func (h *ConversationHandler) Get(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	conv, err := h.chats.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, medshift_errors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": toConversationResponse(conv)})
}

// History returns the full ordered message history with attachments; the
// client treats it as a bulk load.
func (h *ConversationHandler) History(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	messages, err := h.chats.GetConversationMessages(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, medshift_errors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// MarkRead advances the viewer's read position to now.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
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
	if err := h.tracker.MarkRead(c.Request.Context(), conversationID, sess.ViewerID, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	c.Status(http.StatusNoContent)
}
