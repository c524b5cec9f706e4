package readpos

import (
	"context"
	"sync"
	"time"

	"medshift-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store persists read positions. Upsert must itself be monotonic; the
// tracker adds a local guard on top so callers racing with themselves
// cannot even issue a regressing write.
type Store interface {
	Upsert(ctx context.Context, conversationID, viewerID uuid.UUID, at time.Time) error
}

// Tracker advances a viewer's "read up to" marker. Called once after bulk
// load and once per settled inbound message not authored by the viewer.
type Tracker struct {
	store Store
	log   *logger.Logger

	mu   sync.Mutex
	seen map[posKey]time.Time
}

type posKey struct {
	conversationID uuid.UUID
	viewerID       uuid.UUID
}

func NewTracker(store Store, log *logger.Logger) *Tracker {
	return &Tracker{
		store: store,
		log:   log,
		seen:  make(map[posKey]time.Time),
	}
}

// MarkRead records "read up to at". A timestamp at or before the last
// recorded value is a no-op; the marker never decreases.
func (t *Tracker) MarkRead(ctx context.Context, conversationID, viewerID uuid.UUID, at time.Time) error {
	key := posKey{conversationID: conversationID, viewerID: viewerID}

	t.mu.Lock()
	if last, ok := t.seen[key]; ok && !at.After(last) {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.store.Upsert(ctx, conversationID, viewerID, at); err != nil {
		t.log.Error("read position update failed",
			zap.String("conversation_id", conversationID.String()),
			zap.String("viewer_id", viewerID.String()),
			zap.Error(err))
		return err
	}

	// Only a persisted position counts; a failed write must stay
	// retryable with the same timestamp.
	t.mu.Lock()
	if last, ok := t.seen[key]; !ok || at.After(last) {
		t.seen[key] = at
	}
	t.mu.Unlock()
	return nil
}

// LastKnown returns the tracker's local view of the marker, if any.
func (t *Tracker) LastKnown(conversationID, viewerID uuid.UUID) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.seen[posKey{conversationID: conversationID, viewerID: viewerID}]
	return at, ok
}
