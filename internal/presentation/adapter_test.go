package presentation

import (
	"database/sql"
	"testing"
	"time"

	"medshift-chat/internal/chatsync"
	"medshift-chat/internal/domain/chat"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryAt(content string, at time.Time, state chat.DeliveryState) chatsync.Entry {
	return chatsync.Entry{
		Message: chat.Message{
			ID:        uuid.New(),
			AuthorID:  uuid.NullUUID{UUID: uuid.New(), Valid: true},
			Content:   sql.NullString{String: content, Valid: true},
			CreatedAt: at,
		},
		State:       state,
		EffectiveAt: at,
	}
}

func TestGroupByDateSplitsAtMidnight(t *testing.T) {
	loc := time.UTC
	night := time.Date(2026, 8, 30, 23, 50, 0, 0, loc)
	morning := time.Date(2026, 8, 31, 0, 10, 0, 0, loc)

	sections := GroupByDate([]chatsync.Entry{
		entryAt("boa noite", night, chat.DeliverySettled),
		entryAt("bom dia", morning, chat.DeliverySettled),
	}, loc)

	require.Len(t, sections, 2)
	assert.Equal(t, "2026-08-30", sections[0].Date)
	assert.Equal(t, "2026-08-31", sections[1].Date)
	require.Len(t, sections[0].Items, 1)
	require.Len(t, sections[1].Items, 1)
	assert.Equal(t, "boa noite", sections[0].Items[0].Content)
}

func TestGroupByDateUsesViewerLocation(t *testing.T) {
	// 23:50 UTC on the 30th is already the 31st at UTC+3.
	at := time.Date(2026, 8, 30, 23, 50, 0, 0, time.UTC)
	loc := time.FixedZone("UTC+3", 3*60*60)

	sections := GroupByDate([]chatsync.Entry{entryAt("oi", at, chat.DeliverySettled)}, loc)

	require.Len(t, sections, 1)
	assert.Equal(t, "2026-08-31", sections[0].Date)
}

func TestGroupByDatePreservesSnapshotOrder(t *testing.T) {
	base := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	sections := GroupByDate([]chatsync.Entry{
		entryAt("primeira", base, chat.DeliverySettled),
		entryAt("segunda", base.Add(time.Minute), chat.DeliverySettled),
		entryAt("terceira", base.Add(2*time.Minute), chat.DeliveryOptimistic),
	}, time.UTC)

	require.Len(t, sections, 1)
	require.Len(t, sections[0].Items, 3)
	assert.Equal(t, "primeira", sections[0].Items[0].Content)
	assert.Equal(t, "terceira", sections[0].Items[2].Content)
	assert.Equal(t, chat.DeliveryOptimistic, sections[0].Items[2].State)
}

func TestGroupByDateCarriesAttachmentViews(t *testing.T) {
	at := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	e := entryAt(chat.AttachmentPlaceholder, at, chat.DeliverySettled)
	e.Message.Attachments = []chat.Attachment{{
		ID:             uuid.New(),
		FileName:       "laudo.pdf",
		Kind:           chat.FileKindDocument,
		Status:         chat.AttachmentRejected,
		RejectedReason: sql.NullString{String: "Documento ilegível", Valid: true},
	}}

	sections := GroupByDate([]chatsync.Entry{e}, time.UTC)
	require.Len(t, sections, 1)
	require.Len(t, sections[0].Items[0].Attachments, 1)
	av := sections[0].Items[0].Attachments[0]
	assert.Equal(t, "laudo.pdf", av.FileName)
	assert.Equal(t, chat.AttachmentRejected, av.Status)
	assert.Equal(t, "Documento ilegível", av.RejectedReason)
}

func TestGroupByDateEmptySnapshot(t *testing.T) {
	assert.Empty(t, GroupByDate(nil, time.UTC))
}
