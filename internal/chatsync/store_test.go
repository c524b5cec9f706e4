package chatsync

import (
	"database/sql"
	"sort"
	"testing"
	"time"

	"medshift-chat/internal/domain/chat"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testConversation = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testAuthor       = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	testOther        = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

func serverMessage(author uuid.UUID, content string, at time.Time) chat.Message {
	return chat.Message{
		ID:             uuid.New(),
		ConversationID: testConversation,
		AuthorID:       uuid.NullUUID{UUID: author, Valid: true},
		Content:        sql.NullString{String: content, Valid: true},
		CreatedAt:      at,
	}
}

func localMessage(author uuid.UUID, content string, at time.Time) chat.Message {
	return chat.Message{
		ConversationID: testConversation,
		AuthorID:       uuid.NullUUID{UUID: author, Valid: true},
		Content:        sql.NullString{String: content, Valid: true},
		CreatedAt:      at,
	}
}

func assertAscending(t *testing.T, entries []Entry) {
	t.Helper()
	ok := sort.SliceIsSorted(entries, func(i, j int) bool {
		return entries[i].EffectiveAt.Before(entries[j].EffectiveAt)
	})
	assert.True(t, ok, "entries must be sorted ascending by effective timestamp")
}

func TestStoreOrderingUnderInterleaving(t *testing.T) {
	base := time.Now()
	store := NewStore(testConversation, 15*time.Second)

	store.BulkLoad([]chat.Message{
		serverMessage(testOther, "first", base.Add(-2*time.Minute)),
		serverMessage(testOther, "second", base.Add(-1*time.Minute)),
	})

	store.ApplyOptimistic(localMessage(testAuthor, "a", base))
	store.Reconcile(serverMessage(testOther, "inbound", base.Add(50*time.Millisecond)))
	store.ApplyOptimistic(localMessage(testAuthor, "b", base.Add(100*time.Millisecond)))
	store.Reconcile(serverMessage(testAuthor, "a", base.Add(200*time.Millisecond)))

	entries := store.Snapshot()
	require.Len(t, entries, 5)
	assertAscending(t, entries)
}

func TestStoreReconcileReplacesOptimisticEntry(t *testing.T) {
	base := time.Now()
	store := NewStore(testConversation, 15*time.Second)

	token := store.ApplyOptimistic(localMessage(testAuthor, "Oi", base))
	echo := serverMessage(testAuthor, "Oi", base.Add(time.Second))
	store.Reconcile(echo)

	entries := store.Snapshot()
	require.Len(t, entries, 1, "echo must settle the optimistic entry, not duplicate it")
	assert.Equal(t, chat.DeliverySettled, entries[0].State)
	assert.Equal(t, echo.ID, entries[0].Message.ID)
	assert.Equal(t, token, entries[0].Token)
	assert.Equal(t, echo.CreatedAt, entries[0].EffectiveAt)
}

func TestStoreReconcileOutsideGraceWindowAppends(t *testing.T) {
	base := time.Now()
	store := NewStore(testConversation, 5*time.Second)

	store.ApplyOptimistic(localMessage(testAuthor, "Oi", base))
	store.Reconcile(serverMessage(testAuthor, "Oi", base.Add(time.Minute)))

	entries := store.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, chat.DeliveryOptimistic, entries[0].State)
	assert.Equal(t, chat.DeliverySettled, entries[1].State)
}

func TestStoreReconcilePrefersClosestMatch(t *testing.T) {
	base := time.Now()
	store := NewStore(testConversation, 30*time.Second)

	store.ApplyOptimistic(localMessage(testAuthor, "early", base))
	tokenLate := store.ApplyOptimistic(localMessage(testAuthor, "late", base.Add(10*time.Second)))

	store.Reconcile(serverMessage(testAuthor, "late", base.Add(11*time.Second)))

	entries := store.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, chat.DeliveryOptimistic, entries[0].State)
	assert.Equal(t, chat.DeliverySettled, entries[1].State)
	assert.Equal(t, tokenLate, entries[1].Token)
}

func TestStoreDuplicateDeliveryIsIdempotent(t *testing.T) {
	base := time.Now()
	store := NewStore(testConversation, 15*time.Second)

	msg := serverMessage(testOther, "hello", base)
	store.Reconcile(msg)
	store.Reconcile(msg)

	require.Len(t, store.Snapshot(), 1)
}

func TestStoreBulkLoadKeepsOutstandingOptimistic(t *testing.T) {
	base := time.Now()
	store := NewStore(testConversation, 15*time.Second)

	token := store.ApplyOptimistic(localMessage(testAuthor, "in flight", base))
	store.BulkLoad([]chat.Message{
		serverMessage(testOther, "history", base.Add(-time.Minute)),
	})

	entries := store.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, token, entries[1].Token)
	assert.Equal(t, chat.DeliveryOptimistic, entries[1].State)
}

func TestStoreBulkLoadSettlesMissedEcho(t *testing.T) {
	base := time.Now()
	store := NewStore(testConversation, 15*time.Second)

	token := store.ApplyOptimistic(localMessage(testAuthor, "Oi", base))

	// The echo was missed during a transport drop and arrives as part of
	// the resync history instead.
	echo := serverMessage(testAuthor, "Oi", base.Add(2*time.Second))
	store.BulkLoad([]chat.Message{
		serverMessage(testOther, "history", base.Add(-time.Minute)),
		echo,
	})

	entries := store.Snapshot()
	require.Len(t, entries, 2, "the echo must settle the optimistic entry, not duplicate it")
	assert.Equal(t, chat.DeliverySettled, entries[1].State)
	assert.Equal(t, echo.ID, entries[1].Message.ID)
	assert.Equal(t, token, entries[1].Token)

	// Nothing is left for the settle-timeout sweep to fail.
	assert.Empty(t, store.FailStalled(time.Nanosecond, base.Add(time.Hour)))
}

func TestStorePendingAttachmentReconciliation(t *testing.T) {
	base := time.Now()
	store := NewStore(testConversation, 15*time.Second)

	msg := serverMessage(testAuthor, chat.AttachmentPlaceholder, base)
	att := chat.Attachment{
		ID:             uuid.New(),
		ConversationID: testConversation,
		UploaderID:     testAuthor,
		MessageID:      uuid.NullUUID{UUID: msg.ID, Valid: true},
		FileName:       "scan.pdf",
		Kind:           chat.FileKindDocument,
		Status:         chat.AttachmentPending,
	}

	// AttachmentInserted arrives before MessageInserted.
	store.ApplyAttachment(att)
	require.Empty(t, store.Snapshot())

	store.Reconcile(msg)

	entries := store.Snapshot()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Message.Attachments, 1)
	assert.Equal(t, att.ID, entries[0].Message.Attachments[0].ID)
}

func TestStoreAttachmentStatusUpdatesInPlace(t *testing.T) {
	base := time.Now()
	store := NewStore(testConversation, 15*time.Second)

	msg := serverMessage(testAuthor, chat.AttachmentPlaceholder, base)
	att := chat.Attachment{
		ID:             uuid.New(),
		ConversationID: testConversation,
		MessageID:      uuid.NullUUID{UUID: msg.ID, Valid: true},
		FileName:       "doc.pdf",
		Status:         chat.AttachmentPending,
	}
	msg.Attachments = []chat.Attachment{att}
	store.Reconcile(msg)
	before := store.Snapshot()

	rejected := att
	rejected.Status = chat.AttachmentRejected
	rejected.RejectedReason = sql.NullString{String: "Documento ilegível", Valid: true}
	store.ApplyAttachmentStatus(rejected)

	after := store.Snapshot()
	require.Len(t, after, len(before))
	assert.Equal(t, before[0].Message.Content, after[0].Message.Content)
	require.Len(t, after[0].Message.Attachments, 1)
	assert.Equal(t, chat.AttachmentRejected, after[0].Message.Attachments[0].Status)
	assert.Equal(t, "Documento ilegível", after[0].Message.Attachments[0].RejectedReason.String)
}

func TestStoreFailStalled(t *testing.T) {
	base := time.Now()
	store := NewStore(testConversation, 15*time.Second)

	token := store.ApplyOptimistic(localMessage(testAuthor, "stuck", base))
	failed := store.FailStalled(30*time.Second, base.Add(31*time.Second))

	require.Equal(t, []uuid.UUID{token}, failed)
	entries := store.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, chat.DeliveryFailed, entries[0].State)

	// Failed is terminal: a later echo must not resurrect the entry.
	store.Reconcile(serverMessage(testAuthor, "stuck", base.Add(32*time.Second)))
	entries = store.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, chat.DeliveryFailed, entries[0].State)
}

func TestStoreRemoveOptimisticRestoresContent(t *testing.T) {
	store := NewStore(testConversation, 15*time.Second)

	token := store.ApplyOptimistic(localMessage(testAuthor, "rolled back", time.Now()))
	m, ok := store.RemoveOptimistic(token)

	require.True(t, ok)
	assert.Equal(t, "rolled back", m.Content.String)
	assert.Empty(t, store.Snapshot())
}
