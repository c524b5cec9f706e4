package notify

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Payload is the push notification contract consumed on tap. This service
// never produces pushes; it only routes them.
type Payload struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	AttachmentID   string `json:"attachment_id,omitempty"`
	FileName       string `json:"file_name,omitempty"`
	RejectedReason string `json:"rejected_reason,omitempty"`
}

// Route targets.
const (
	TargetConversation     = "conversation"
	TargetConversationList = "conversation_list"
)

// Route is where a tapped notification should navigate.
type Route struct {
	Target         string
	ConversationID uuid.UUID
}

func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("malformed notification payload: %w", err)
	}
	return p, nil
}

// Route resolves the navigation target: the named conversation when a
// valid id is present, otherwise the conversation list.
func (p Payload) Route() Route {
	if p.ConversationID != "" {
		if id, err := uuid.Parse(p.ConversationID); err == nil {
			return Route{Target: TargetConversation, ConversationID: id}
		}
	}
	return Route{Target: TargetConversationList}
}
