package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"medshift-chat/internal/events"
	"medshift-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sink receives the demultiplexed event stream for one open conversation.
// OnResync signals that events may have been missed and the caller must do
// a full bulk reload; missed events are never individually replayed.
type Sink interface {
	OnEvent(ev events.FeedEvent)
	OnResync()
}

// Subscriber opens one pub/sub subscription per open conversation.
type Subscriber struct {
	client *redis.Client
	logger *logger.Logger
}

func NewSubscriber(client *redis.Client, log *logger.Logger) *Subscriber {
	return &Subscriber{client: client, logger: log}
}

// Subscription is a cancellable feed subscription.
type Subscription interface {
	Close()
}

// Handle is a cancellable subscription. Close is idempotent and blocks
// until the listen goroutine has exited, so no events are delivered to a
// closed conversation view.
type Handle struct {
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}

// Open subscribes to the conversation's channel and pumps decoded events
// into the sink until the handle is closed. Transient transport errors are
// retried silently; the sink only sees a resync signal.
func (s *Subscriber) Open(conversationID uuid.UUID, sink Sink) (Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	channel := events.ConversationChannel(conversationID)
	pubsub := s.client.Subscribe(ctx, channel)

	// Fail fast if the initial subscribe cannot be established.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer pubsub.Close()

		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("feed receive failed, resynchronizing",
					zap.String("conversation_id", conversationID.String()),
					zap.Error(err))
				sink.OnResync()
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			var env events.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.logger.Error("malformed feed envelope", zap.Error(err))
				continue
			}
			ev, err := events.Decode(env)
			if err != nil {
				s.logger.Error("undecodable feed event",
					zap.String("event_type", env.EventType), zap.Error(err))
				continue
			}
			sink.OnEvent(ev)
		}
	}()

	return h, nil
}
