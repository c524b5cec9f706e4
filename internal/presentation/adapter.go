package presentation

import (
	"time"

	"medshift-chat/internal/chatsync"
	"medshift-chat/internal/domain/chat"

	"github.com/google/uuid"
)

// AttachmentView is a render-ready attachment row.
type AttachmentView struct {
	ID             uuid.UUID `json:"id"`
	FileName       string    `json:"file_name"`
	Kind           string    `json:"kind"`
	Status         string    `json:"status"`
	RejectedReason string    `json:"rejected_reason,omitempty"`
}

// Item is one render-ready message row.
type Item struct {
	MessageID   uuid.UUID          `json:"message_id,omitempty"`
	Token       uuid.UUID          `json:"token,omitempty"`
	AuthorID    uuid.UUID          `json:"author_id,omitempty"`
	Content     string             `json:"content"`
	SentAt      time.Time          `json:"sent_at"`
	State       chat.DeliveryState `json:"state"`
	Attachments []AttachmentView   `json:"attachments,omitempty"`
}

// DaySection groups items under one calendar day header.
type DaySection struct {
	Date  string `json:"date"` // YYYY-MM-DD in the viewer's location
	Items []Item `json:"items"`
}

// GroupByDate maps a store snapshot to date-grouped render items. It
// consumes the store's ordering guarantee and adds nothing to it: items
// appear in snapshot order, sections in first-appearance order.
func GroupByDate(entries []chatsync.Entry, loc *time.Location) []DaySection {
	if loc == nil {
		loc = time.Local
	}
	var sections []DaySection
	index := make(map[string]int)

	for _, e := range entries {
		item := Item{
			MessageID: e.Message.ID,
			Token:     e.Token,
			AuthorID:  e.Message.Author(),
			Content:   e.Message.Content.String,
			SentAt:    e.EffectiveAt,
			State:     e.State,
		}
		for _, a := range e.Message.Attachments {
			item.Attachments = append(item.Attachments, AttachmentView{
				ID:             a.ID,
				FileName:       a.FileName,
				Kind:           a.Kind,
				Status:         a.Status,
				RejectedReason: a.RejectedReason.String,
			})
		}

		day := e.EffectiveAt.In(loc).Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(sections)
			index[day] = i
			sections = append(sections, DaySection{Date: day})
		}
		sections[i].Items = append(sections[i].Items, item)
	}
	return sections
}
