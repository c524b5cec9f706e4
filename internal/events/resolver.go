package events

import (
	"github.com/google/uuid"
)

// ConversationChannel returns the pub/sub channel for a conversation.
func ConversationChannel(conversationID uuid.UUID) string {
	return ChannelPrefixConversation + conversationID.String()
}
