package events

import (
	"encoding/json"
	"fmt"
	"time"

	"medshift-chat/internal/domain/chat"
)

// Envelope is the wire form of a feed event.
type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// FeedEvent is the tagged union delivered by the change feed:
// MessageInserted | AttachmentInserted | AttachmentStatusChanged.
type FeedEvent interface {
	feedEvent()
}

type MessageInserted struct {
	Message chat.Message
}

type AttachmentInserted struct {
	Attachment chat.Attachment
}

type AttachmentStatusChanged struct {
	Attachment chat.Attachment
}

func (MessageInserted) feedEvent()         {}
func (AttachmentInserted) feedEvent()      {}
func (AttachmentStatusChanged) feedEvent() {}

// Encode wraps a typed event into its wire envelope.
func Encode(ev FeedEvent) (Envelope, error) {
	var (
		env     Envelope
		payload interface{}
	)
	switch e := ev.(type) {
	case MessageInserted:
		env.EventType = EventTypeMessageInserted
		env.AggregateType = AggregateTypeMessage
		env.AggregateID = e.Message.ID.String()
		payload = e.Message
	case AttachmentInserted:
		env.EventType = EventTypeAttachmentInserted
		env.AggregateType = AggregateTypeAttachment
		env.AggregateID = e.Attachment.ID.String()
		payload = e.Attachment
	case AttachmentStatusChanged:
		env.EventType = EventTypeAttachmentStatusChanged
		env.AggregateType = AggregateTypeAttachment
		env.AggregateID = e.Attachment.ID.String()
		payload = e.Attachment
	default:
		return Envelope{}, fmt.Errorf("unknown feed event %T", ev)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	env.Payload = raw
	env.OccurredAt = time.Now().UTC()
	return env, nil
}

// Decode unwraps an envelope into its typed event.
func Decode(env Envelope) (FeedEvent, error) {
	switch env.EventType {
	case EventTypeMessageInserted:
		var m chat.Message
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message payload: %w", err)
		}
		return MessageInserted{Message: m}, nil
	case EventTypeAttachmentInserted:
		var a chat.Attachment
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachment payload: %w", err)
		}
		return AttachmentInserted{Attachment: a}, nil
	case EventTypeAttachmentStatusChanged:
		var a chat.Attachment
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachment payload: %w", err)
		}
		return AttachmentStatusChanged{Attachment: a}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.EventType)
	}
}
