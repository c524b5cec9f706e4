package chatsync

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"medshift-chat/internal/domain/chat"
	"medshift-chat/internal/events"
	"medshift-chat/internal/feed"
	"medshift-chat/internal/session"
	"medshift-chat/internal/uploads"
	medshift_errors "medshift-chat/pkg/errors"
	"medshift-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageBackend is the relational side of a send and a bulk load. The
// backend may or may not assign the message id synchronously on Create;
// when it does not, the engine falls back to the latest-by-author query
// before linking attachments.
type MessageBackend interface {
	Create(ctx context.Context, m *chat.Message) error
	GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error)
	GetLatestByAuthor(ctx context.Context, conversationID, authorID uuid.UUID) (chat.Message, error)
}

// ReadMarker advances the viewer's read position.
type ReadMarker interface {
	MarkRead(ctx context.Context, conversationID, viewerID uuid.UUID, at time.Time) error
}

// Uploader runs the attachment pipeline for a send.
type Uploader interface {
	Upload(ctx context.Context, files []uploads.File, conversationID, organizationID, authorID uuid.UUID) []uploads.FileResult
	LinkToMessage(ctx context.Context, attachmentIDs []uuid.UUID, messageID uuid.UUID) error
}

// FeedSource opens one change-feed subscription per conversation.
type FeedSource interface {
	Open(conversationID uuid.UUID, sink feed.Sink) (feed.Subscription, error)
}

// Options bound the engine's reconciliation behavior.
type Options struct {
	GraceWindow   time.Duration
	SettleTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		GraceWindow:   15 * time.Second,
		SettleTimeout: 30 * time.Second,
	}
}

// SendResult reports one send attempt: the optimistic correlation token,
// per-file upload outcomes, and the restored text when the send itself was
// rejected (so the user can retry).
type SendResult struct {
	Token        uuid.UUID
	Files        []uploads.FileResult
	MessageID    uuid.NullUUID
	RestoredText string
}

// Engine keeps one open conversation consistent between bulk loads, local
// optimistic sends, the push feed, and out-of-band attachment reviews.
// The session is injected at construction; Close tears down the feed
// subscription and discards all view state.
type Engine struct {
	sess     session.Session
	backend  MessageBackend
	reader   ReadMarker
	uploader Uploader
	source   FeedSource
	log      *logger.Logger
	opts     Options

	mu     sync.Mutex
	store  *Store
	sub    feed.Subscription
	gen    uint64
	sweep  chan struct{}
	closed bool
}

func NewEngine(sess session.Session, backend MessageBackend, reader ReadMarker, uploader Uploader, source FeedSource, log *logger.Logger, opts Options) *Engine {
	if opts.GraceWindow <= 0 {
		opts.GraceWindow = DefaultOptions().GraceWindow
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = DefaultOptions().SettleTimeout
	}
	return &Engine{
		sess:     sess,
		backend:  backend,
		reader:   reader,
		uploader: uploader,
		source:   source,
		log:      log,
		opts:     opts,
	}
}

// engineSink routes feed events for one Open generation. Events arriving
// after the view moved on (reopen or close) are discarded, never applied
// to a stale or absent store.
type engineSink struct {
	e   *Engine
	gen uint64
}

func (s engineSink) OnEvent(ev events.FeedEvent) { s.e.onEvent(s.gen, ev) }
func (s engineSink) OnResync()                   { s.e.onResync(s.gen) }

// Open switches the engine to a conversation: the previous subscription is
// closed first so events cannot leak across conversations, then history is
// bulk-loaded and the feed attached.
func (e *Engine) Open(ctx context.Context, conversationID uuid.UUID) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return medshift_errors.ErrSubscriptionClosed
	}
	prev := e.sub
	e.sub = nil
	e.gen++
	gen := e.gen
	e.store = NewStore(conversationID, e.opts.GraceWindow)
	store := e.store
	e.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	history, err := e.backend.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("bulk load: %w", err)
	}
	store.BulkLoad(history)

	if err := e.reader.MarkRead(ctx, conversationID, e.sess.ViewerID, time.Now()); err != nil {
		e.log.Warn("initial read mark failed", zap.Error(err))
	}

	sub, err := e.source.Open(conversationID, engineSink{e: e, gen: gen})
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}

	e.mu.Lock()
	if e.closed || e.gen != gen {
		e.mu.Unlock()
		sub.Close()
		return medshift_errors.ErrSubscriptionClosed
	}
	e.sub = sub
	if e.sweep == nil {
		e.sweep = make(chan struct{})
		go e.sweepLoop(e.sweep)
	}
	e.mu.Unlock()
	return nil
}

// Send appends an optimistic entry immediately, uploads any files
// concurrently, inserts the message, and links the successful attachments.
// The optimistic entry settles when the server echo arrives on the feed.
func (e *Engine) Send(ctx context.Context, text string, files []uploads.File) (SendResult, error) {
	store := e.currentStore()
	if store == nil {
		return SendResult{}, medshift_errors.ErrSubscriptionClosed
	}

	if len(files) > 0 {
		if err := e.sess.RequireOrganization(); err != nil {
			return SendResult{}, err
		}
	}

	content := text
	if content == "" && len(files) > 0 {
		content = chat.AttachmentPlaceholder
	}
	if content == "" {
		return SendResult{}, medshift_errors.ErrInvalidInput
	}

	conversationID := store.ConversationID()
	local := chat.Message{
		ConversationID: conversationID,
		AuthorID:       uuid.NullUUID{UUID: e.sess.ViewerID, Valid: true},
		Content:        sql.NullString{String: content, Valid: true},
		CreatedAt:      time.Now(),
	}
	token := store.ApplyOptimistic(local)
	result := SendResult{Token: token}

	// Uploads run before the insert so the echo can already carry the
	// attachment rows once linked. Failures are per-file; the send
	// proceeds with whatever succeeded.
	var attachmentIDs []uuid.UUID
	if len(files) > 0 {
		result.Files = e.uploader.Upload(ctx, files, conversationID, e.sess.OrganizationID, e.sess.ViewerID)
		for _, fr := range result.Files {
			if fr.Err == nil {
				attachmentIDs = append(attachmentIDs, fr.AttachmentID)
			}
		}
	}

	insert := chat.Message{
		ConversationID: conversationID,
		AuthorID:       local.AuthorID,
		Content:        local.Content,
		CreatedAt:      local.CreatedAt,
	}
	if err := e.backend.Create(ctx, &insert); err != nil {
		// Roll back the optimistic entry and hand the text back for retry.
		if m, ok := store.RemoveOptimistic(token); ok {
			result.RestoredText = m.Content.String
		}
		return result, fmt.Errorf("%w: %v", medshift_errors.ErrSendRejected, err)
	}

	// Sending implies the viewer has seen everything up to now.
	if err := e.reader.MarkRead(ctx, conversationID, e.sess.ViewerID, time.Now()); err != nil {
		e.log.Warn("read mark after send failed", zap.Error(err))
	}

	messageID := insert.ID
	if messageID == uuid.Nil && len(attachmentIDs) > 0 {
		// Identity only arrives via the feed: fall back to the latest
		// message by this author. Best-effort; unsafe under concurrent
		// sends by the same author, which the UI cannot produce.
		latest, err := e.backend.GetLatestByAuthor(ctx, conversationID, e.sess.ViewerID)
		if err != nil {
			e.log.Error("fallback message correlation failed", zap.Error(err))
		} else {
			messageID = latest.ID
		}
	}
	if messageID != uuid.Nil {
		result.MessageID = uuid.NullUUID{UUID: messageID, Valid: true}
	}

	if len(attachmentIDs) > 0 && messageID != uuid.Nil {
		// Linking failure does not roll back the sent message: an
		// orphaned attachment is a recoverable degraded state.
		if err := e.uploader.LinkToMessage(ctx, attachmentIDs, messageID); err != nil {
			e.log.Error("attachment linkage failed after send",
				zap.String("message_id", messageID.String()), zap.Error(err))
		}
	}

	return result, nil
}

// Snapshot exposes the store's ordered collection for rendering.
func (e *Engine) Snapshot() []Entry {
	store := e.currentStore()
	if store == nil {
		return nil
	}
	return store.Snapshot()
}

// Close tears down the subscription and discards the view state. In-flight
// uploads may finish in the background; their results no longer reach any
// store.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	sub := e.sub
	e.sub = nil
	e.store = nil
	sweep := e.sweep
	e.sweep = nil
	e.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if sweep != nil {
		close(sweep)
	}
}

func (e *Engine) currentStore() *Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	return e.store
}

func (e *Engine) storeForGen(gen uint64) *Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.gen != gen {
		return nil
	}
	return e.store
}

func (e *Engine) onEvent(gen uint64, ev events.FeedEvent) {
	store := e.storeForGen(gen)
	if store == nil {
		return
	}
	switch typed := ev.(type) {
	case events.MessageInserted:
		store.Reconcile(typed.Message)
		if typed.Message.Author() != e.sess.ViewerID {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = e.reader.MarkRead(ctx, store.ConversationID(), e.sess.ViewerID, time.Now())
			cancel()
		}
	case events.AttachmentInserted:
		store.ApplyAttachment(typed.Attachment)
	case events.AttachmentStatusChanged:
		store.ApplyAttachmentStatus(typed.Attachment)
	}
}

// onResync re-runs the bulk load: events missed during a transport drop
// are not replayed individually.
func (e *Engine) onResync(gen uint64) {
	store := e.storeForGen(gen)
	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	history, err := e.backend.GetConversationMessages(ctx, store.ConversationID())
	if err != nil {
		e.log.Error("resync bulk load failed", zap.Error(err))
		return
	}
	store.BulkLoad(history)
	_ = e.reader.MarkRead(ctx, store.ConversationID(), e.sess.ViewerID, time.Now())
}

// sweepLoop turns stuck optimistic entries into Failed after the settle
// timeout.
func (e *Engine) sweepLoop(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			store := e.currentStore()
			if store == nil {
				continue
			}
			for _, token := range store.FailStalled(e.opts.SettleTimeout, now) {
				e.log.Warn("optimistic message timed out",
					zap.String("token", token.String()),
					zap.String("conversation_id", store.ConversationID().String()))
			}
		}
	}
}
