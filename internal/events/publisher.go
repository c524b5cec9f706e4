package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher pushes feed events onto a conversation's channel. The backend
// calls it after every row insert/update so open views see the change.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, conversationID uuid.UUID, ev FeedEvent) error {
	env, err := Encode(ev)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return p.client.Publish(ctx, ConversationChannel(conversationID), data).Err()
}
