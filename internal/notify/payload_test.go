package notify

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteToConversation(t *testing.T) {
	id := uuid.New()
	p, err := ParsePayload([]byte(`{"type":"chat_message","conversation_id":"` + id.String() + `"}`))
	require.NoError(t, err)

	r := p.Route()
	assert.Equal(t, TargetConversation, r.Target)
	assert.Equal(t, id, r.ConversationID)
}

func TestRouteFallsBackOnMissingConversation(t *testing.T) {
	p, err := ParsePayload([]byte(`{"type":"attachment_rejected","file_name":"laudo.pdf","rejected_reason":"Documento ilegível"}`))
	require.NoError(t, err)

	r := p.Route()
	assert.Equal(t, TargetConversationList, r.Target)
	assert.Equal(t, uuid.Nil, r.ConversationID)
}

func TestRouteFallsBackOnGarbageConversationID(t *testing.T) {
	p, err := ParsePayload([]byte(`{"type":"chat_message","conversation_id":"not-a-uuid"}`))
	require.NoError(t, err)

	assert.Equal(t, TargetConversationList, p.Route().Target)
}

func TestParsePayloadRejectsMalformedJSON(t *testing.T) {
	_, err := ParsePayload([]byte(`{"type":`))
	require.Error(t, err)
}
