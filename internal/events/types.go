package events

// Event type constants, format: domain.action
const (
	EventTypeMessageInserted         = "message.inserted"
	EventTypeAttachmentInserted      = "attachment.inserted"
	EventTypeAttachmentStatusChanged = "attachment.status_changed"
)

// Aggregate type constants
const (
	AggregateTypeMessage    = "message"
	AggregateTypeAttachment = "attachment"
)

// Redis channel prefixes. Exactly one conversation channel is subscribed
// per open conversation view.
const (
	ChannelPrefixConversation = "channel:conversation:"
)
