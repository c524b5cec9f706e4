package server

import (
	"net/http"
	"time"

	"medshift-chat/internal/events"
	"medshift-chat/internal/feed"
	"medshift-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsEvent is the frame pushed to thin clients: either a feed event or a
// resync marker telling the client to re-run its bulk load.
type wsEvent struct {
	Kind       string      `json:"kind"` // message_inserted | attachment_inserted | attachment_status_changed | resync
	Message    interface{} `json:"message,omitempty"`
	Attachment interface{} `json:"attachment,omitempty"`
}

// wsSink serializes feed events onto one websocket through a send channel
// so the feed goroutine never writes the socket directly.
type wsSink struct {
	send chan wsEvent
}

func (s *wsSink) OnEvent(ev events.FeedEvent) {
	var frame wsEvent
	switch typed := ev.(type) {
	case events.MessageInserted:
		frame = wsEvent{Kind: "message_inserted", Message: typed.Message}
	case events.AttachmentInserted:
		frame = wsEvent{Kind: "attachment_inserted", Attachment: typed.Attachment}
	case events.AttachmentStatusChanged:
		frame = wsEvent{Kind: "attachment_status_changed", Attachment: typed.Attachment}
	default:
		return
	}
	select {
	case s.send <- frame:
	default:
		// Slow consumer: drop the event, the client recovers via resync.
	}
}

func (s *wsSink) OnResync() {
	select {
	case s.send <- wsEvent{Kind: "resync"}:
	default:
	}
}

// FeedSocket bridges one conversation's change feed to a websocket. The
// subscription is closed as soon as the client goes away.
func FeedSocket(subscriber *feed.Subscriber, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		sink := &wsSink{send: make(chan wsEvent, 64)}
		sub, err := subscriber.Open(conversationID, sink)
		if err != nil {
			log.Error("feed open failed", zap.Error(err))
			_ = conn.Close()
			return
		}

		done := make(chan struct{})

		// Reader only watches for the client closing.
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			defer sub.Close()
			defer conn.Close()
			for {
				select {
				case <-done:
					return
				case frame := <-sink.send:
					_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
					if err := conn.WriteJSON(frame); err != nil {
						return
					}
				}
			}
		}()
	}
}
