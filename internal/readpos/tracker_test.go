package readpos

import (
	"context"
	"errors"
	"testing"
	"time"

	"medshift-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upsertCall struct {
	conversationID uuid.UUID
	viewerID       uuid.UUID
	at             time.Time
}

type fakeStore struct {
	calls    []upsertCall
	fail     error
	failOnce error
}

func (f *fakeStore) Upsert(ctx context.Context, conversationID, viewerID uuid.UUID, at time.Time) error {
	if f.failOnce != nil {
		err := f.failOnce
		f.failOnce = nil
		return err
	}
	if f.fail != nil {
		return f.fail
	}
	f.calls = append(f.calls, upsertCall{conversationID: conversationID, viewerID: viewerID, at: at})
	return nil
}

func TestMarkReadNeverRegresses(t *testing.T) {
	store := &fakeStore{}
	tr := NewTracker(store, logger.NewNop())
	conv, viewer := uuid.New(), uuid.New()
	base := time.Now()

	require.NoError(t, tr.MarkRead(context.Background(), conv, viewer, base))
	require.NoError(t, tr.MarkRead(context.Background(), conv, viewer, base.Add(-time.Hour)))
	require.NoError(t, tr.MarkRead(context.Background(), conv, viewer, base))

	require.Len(t, store.calls, 1, "older or equal timestamps must not be written")
	assert.Equal(t, base, store.calls[0].at)

	last, ok := tr.LastKnown(conv, viewer)
	require.True(t, ok)
	assert.Equal(t, base, last)
}

func TestMarkReadAdvances(t *testing.T) {
	store := &fakeStore{}
	tr := NewTracker(store, logger.NewNop())
	conv, viewer := uuid.New(), uuid.New()
	base := time.Now()

	require.NoError(t, tr.MarkRead(context.Background(), conv, viewer, base))
	require.NoError(t, tr.MarkRead(context.Background(), conv, viewer, base.Add(time.Minute)))

	require.Len(t, store.calls, 2)
	assert.Equal(t, base.Add(time.Minute), store.calls[1].at)
}

func TestMarkReadIsPerConversationPerViewer(t *testing.T) {
	store := &fakeStore{}
	tr := NewTracker(store, logger.NewNop())
	viewer := uuid.New()
	base := time.Now()

	require.NoError(t, tr.MarkRead(context.Background(), uuid.New(), viewer, base))
	require.NoError(t, tr.MarkRead(context.Background(), uuid.New(), viewer, base.Add(-time.Hour)))

	assert.Len(t, store.calls, 2, "markers in different conversations are independent")
}

func TestMarkReadReportsStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	tr := NewTracker(&fakeStore{fail: boom}, logger.NewNop())

	err := tr.MarkRead(context.Background(), uuid.New(), uuid.New(), time.Now())
	require.ErrorIs(t, err, boom)
}

func TestMarkReadRetryAfterStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	store := &fakeStore{failOnce: boom}
	tr := NewTracker(store, logger.NewNop())
	conv, viewer := uuid.New(), uuid.New()
	at := time.Now()

	require.ErrorIs(t, tr.MarkRead(context.Background(), conv, viewer, at), boom)
	_, ok := tr.LastKnown(conv, viewer)
	assert.False(t, ok, "a failed write must not advance the local marker")

	// The retry carries the same timestamp and must reach the store.
	require.NoError(t, tr.MarkRead(context.Background(), conv, viewer, at))
	require.Len(t, store.calls, 1)
	assert.Equal(t, at, store.calls[0].at)
}
