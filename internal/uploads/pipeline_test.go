package uploads

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"medshift-chat/internal/domain/chat"
	medredis "medshift-chat/internal/redis"
	medshift_errors "medshift-chat/pkg/errors"
	"medshift-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    error
}

func (m *memObjectStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return nil
}

type memAttachmentStore struct {
	mu        sync.Mutex
	created   []chat.Attachment
	linkErrs  []error
	linkCalls int
	linkedIDs []uuid.UUID
	linkedMsg uuid.UUID
}

func (m *memAttachmentStore) Create(ctx context.Context, a *chat.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, *a)
	return nil
}

func (m *memAttachmentStore) LinkToMessage(ctx context.Context, attachmentIDs []uuid.UUID, messageID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.linkCalls
	m.linkCalls++
	if call < len(m.linkErrs) && m.linkErrs[call] != nil {
		return m.linkErrs[call]
	}
	m.linkedIDs = attachmentIDs
	m.linkedMsg = messageID
	return nil
}

type stubQuota struct {
	mu      sync.Mutex
	allowed int
	calls   int
}

func (s *stubQuota) Allow(ctx context.Context, userID string) (*medredis.QuotaResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls > s.allowed {
		return &medredis.QuotaResult{Allowed: false}, nil
	}
	return &medredis.QuotaResult{Allowed: true, Remaining: s.allowed - s.calls}, nil
}

func testPipeline(store ObjectStore, attachments AttachmentStore, quota QuotaChecker) *Pipeline {
	return NewPipeline(store, attachments, quota, logger.NewNop(), 10<<20)
}

func TestUploadPartialFailureIsIndependent(t *testing.T) {
	objects := &memObjectStore{}
	attachments := &memAttachmentStore{}
	p := testPipeline(objects, attachments, nil)

	files := []File{
		{Name: "frente.jpg", ContentType: "image/jpeg", Data: []byte("ok")},
		{Name: "verso.jpg", ContentType: "image/jpeg", Data: bytes.Repeat([]byte("x"), 11<<20)},
		{Name: "laudo.pdf", ContentType: "application/pdf", Data: []byte("ok")},
	}

	results := p.Upload(context.Background(), files, uuid.New(), uuid.New(), uuid.New())
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	require.ErrorIs(t, results[1].Err, medshift_errors.ErrTooLarge)
	assert.NoError(t, results[2].Err)

	// Results stay in input order regardless of completion order.
	assert.Equal(t, "frente.jpg", results[0].Name)
	assert.Equal(t, "verso.jpg", results[1].Name)
	assert.Equal(t, "laudo.pdf", results[2].Name)

	assert.Len(t, attachments.created, 2, "the oversized file must not produce a row")
	assert.Len(t, objects.objects, 2)
}

func TestUploadRejectsUnsupportedKindBeforeNetwork(t *testing.T) {
	objects := &memObjectStore{}
	attachments := &memAttachmentStore{}
	p := testPipeline(objects, attachments, nil)

	results := p.Upload(context.Background(), []File{
		{Name: "escala.xlsx", ContentType: "application/vnd.ms-excel", Data: []byte("x")},
	}, uuid.New(), uuid.New(), uuid.New())

	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, medshift_errors.ErrUnsupportedFileKind)
	assert.Empty(t, objects.objects, "validation failures must not reach object storage")
	assert.Empty(t, attachments.created)
}

func TestUploadQuotaExceededIsPerFileFailure(t *testing.T) {
	objects := &memObjectStore{}
	attachments := &memAttachmentStore{}
	quota := &stubQuota{allowed: 1}
	p := testPipeline(objects, attachments, quota)

	results := p.Upload(context.Background(), []File{
		{Name: "a.jpg", ContentType: "image/png", Data: []byte("a")},
		{Name: "b.jpg", ContentType: "image/png", Data: []byte("b")},
	}, uuid.New(), uuid.New(), uuid.New())

	require.Len(t, results, 2)
	var failed int
	for _, r := range results {
		if r.Err != nil {
			require.ErrorIs(t, r.Err, medshift_errors.ErrQuotaExceeded)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Len(t, attachments.created, 1)
}

func TestUploadRecordsPendingAttachment(t *testing.T) {
	objects := &memObjectStore{}
	attachments := &memAttachmentStore{}
	p := testPipeline(objects, attachments, nil)

	conversationID := uuid.New()
	authorID := uuid.New()
	results := p.Upload(context.Background(), []File{
		{Name: "raio-x.png", ContentType: "image/png", Data: []byte("img")},
	}, conversationID, uuid.New(), authorID)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, attachments.created, 1)

	row := attachments.created[0]
	assert.Equal(t, results[0].AttachmentID, row.ID)
	assert.Equal(t, chat.AttachmentPending, row.Status)
	assert.Equal(t, chat.FileKindImage, row.Kind)
	assert.False(t, row.MessageID.Valid, "fresh uploads are not linked yet")
	assert.Equal(t, conversationID, row.ConversationID)
	assert.Equal(t, authorID, row.UploaderID)
	assert.Contains(t, objects.objects, row.ObjectKey)
}

func TestLinkToMessageRetriesTransientFailure(t *testing.T) {
	attachments := &memAttachmentStore{
		linkErrs: []error{errors.New("row not visible yet")},
	}
	p := testPipeline(&memObjectStore{}, attachments, nil)

	ids := []uuid.UUID{uuid.New()}
	msg := uuid.New()
	require.NoError(t, p.LinkToMessage(context.Background(), ids, msg))
	assert.Equal(t, 2, attachments.linkCalls)
	assert.Equal(t, ids, attachments.linkedIDs)
	assert.Equal(t, msg, attachments.linkedMsg)
}

func TestLinkToMessageNoopWithoutAttachments(t *testing.T) {
	attachments := &memAttachmentStore{}
	p := testPipeline(&memObjectStore{}, attachments, nil)

	require.NoError(t, p.LinkToMessage(context.Background(), nil, uuid.New()))
	assert.Zero(t, attachments.linkCalls)
}
