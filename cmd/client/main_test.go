package main

import (
	"bytes"
	"testing"
	"time"

	"medshift-chat/internal/domain/chat"
	"medshift-chat/internal/presentation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSections(t *testing.T) {
	at := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	sections := []presentation.DaySection{{
		Date: "2026-08-31",
		Items: []presentation.Item{
			{Content: "Oi", SentAt: at, State: chat.DeliverySettled},
			{Content: "plantão coberto?", SentAt: at.Add(time.Minute), State: chat.DeliveryOptimistic},
			{
				Content: chat.AttachmentPlaceholder,
				SentAt:  at.Add(2 * time.Minute),
				State:   chat.DeliverySettled,
				Attachments: []presentation.AttachmentView{{
					FileName:       "laudo.pdf",
					Status:         chat.AttachmentRejected,
					RejectedReason: "Documento ilegível",
				}},
			},
		},
	}}

	var buf bytes.Buffer
	renderSections(&buf, sections)
	out := buf.String()

	assert.Contains(t, out, "== 2026-08-31 ==")
	assert.Contains(t, out, "[14:30] Oi\n")
	assert.Contains(t, out, "plantão coberto? (sending)")
	assert.Contains(t, out, "laudo.pdf (rejected: Documento ilegível)")
}

func TestPrintRouteTargetsConversation(t *testing.T) {
	id := uuid.New()
	var buf bytes.Buffer
	require.NoError(t, printRoute(&buf, []byte(`{"type":"chat_message","conversation_id":"`+id.String()+`"}`)))
	assert.Contains(t, buf.String(), id.String())
}

func TestPrintRouteFallsBackToList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRoute(&buf, []byte(`{"type":"attachment_rejected"}`)))
	assert.Equal(t, "open conversation list\n", buf.String())
}
