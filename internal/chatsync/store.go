package chatsync

import (
	"sort"
	"sync"
	"time"

	"medshift-chat/internal/domain/chat"

	"github.com/google/uuid"
)

// clockSkewAllowance tolerates server timestamps slightly behind the local
// clock when correlating an echo with an optimistic entry.
const clockSkewAllowance = 2 * time.Second

// Entry is one row of the store's exposed collection. For optimistic
// entries EffectiveAt is the local send time; once settled it is the
// server-assigned creation time.
type Entry struct {
	Message     chat.Message
	State       chat.DeliveryState
	Token       uuid.UUID // correlation token, zero for server-originated entries
	EffectiveAt time.Time

	localAt time.Time
	seq     uint64
}

// Settled reports whether the entry has a server-assigned identity.
func (e Entry) Settled() bool {
	return e.State == chat.DeliverySettled
}

// Store holds the ordered, deduplicated message list for the one currently
// open conversation. It is owned by that view and discarded on close;
// durability lives in the backend. All methods are safe for use from the
// feed goroutine and the caller's goroutine concurrently.
//
// Reconciliation is heuristic: an echo correlates with the closest
// outstanding optimistic entry from the same author whose local timestamp
// precedes the echo's server timestamp by at most the grace window.
// Known limitation: two concurrent sends by one author inside a single
// grace window can pair with the wrong entry. The backend's send path
// makes this unobservable in practice, and it is deliberately not
// "fixed" here.
type Store struct {
	mu             sync.Mutex
	conversationID uuid.UUID
	graceWindow    time.Duration

	entries []*Entry
	pending []chat.Attachment // attachments whose owning message is not present yet
	nextSeq uint64
}

func NewStore(conversationID uuid.UUID, graceWindow time.Duration) *Store {
	return &Store{
		conversationID: conversationID,
		graceWindow:    graceWindow,
	}
}

func (s *Store) ConversationID() uuid.UUID {
	return s.conversationID
}

// BulkLoad replaces the settled contents with the given history.
// Outstanding optimistic entries survive: a resync after a transport drop
// must not silently discard an in-flight send. An echo that was missed
// during the drop arrives inside this history, so each incoming message
// runs through the same correlation as Reconcile; otherwise the kept
// optimistic entry and its history copy would render as two rows.
func (s *Store) BulkLoad(messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*Entry
	for _, e := range s.entries {
		if e.State == chat.DeliveryOptimistic || e.State == chat.DeliveryFailed {
			kept = append(kept, e)
		}
	}

	s.entries = kept
	for _, m := range messages {
		if e := s.bestOptimisticMatchLocked(m); e != nil {
			attachments := mergeAttachments(e.Message.Attachments, m.Attachments)
			e.Message = m
			e.Message.Attachments = attachments
			e.State = chat.DeliverySettled
			e.EffectiveAt = m.CreatedAt
			continue
		}
		s.entries = append(s.entries, &Entry{
			Message:     m,
			State:       chat.DeliverySettled,
			EffectiveAt: m.CreatedAt,
			seq:         s.bump(),
		})
	}
	s.attachPendingLocked()
	s.sortLocked()
}

// ApplyOptimistic appends a not-yet-settled entry and returns its
// correlation token. The message is shown immediately; settlement happens
// when the server echo arrives via the feed.
func (s *Store) ApplyOptimistic(m chat.Message) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := uuid.New()
	now := m.CreatedAt
	if now.IsZero() {
		now = time.Now()
		m.CreatedAt = now
	}
	s.entries = append(s.entries, &Entry{
		Message:     m,
		State:       chat.DeliveryOptimistic,
		Token:       token,
		EffectiveAt: now,
		localAt:     now,
		seq:         s.bump(),
	})
	s.sortLocked()
	return token
}

// Reconcile merges a server-confirmed message into the store. A duplicate
// delivery updates the existing settled entry in place; an echo of an
// outstanding optimistic entry replaces that entry (keeping its position
// in arrival order); anything else is appended.
func (s *Store) Reconcile(m chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.findByIDLocked(m.ID); e != nil {
		attachments := mergeAttachments(e.Message.Attachments, m.Attachments)
		e.Message = m
		e.Message.Attachments = attachments
		e.EffectiveAt = m.CreatedAt
		s.attachPendingLocked()
		s.sortLocked()
		return
	}

	if e := s.bestOptimisticMatchLocked(m); e != nil {
		attachments := mergeAttachments(e.Message.Attachments, m.Attachments)
		e.Message = m
		e.Message.Attachments = attachments
		e.State = chat.DeliverySettled
		e.EffectiveAt = m.CreatedAt
	} else {
		s.entries = append(s.entries, &Entry{
			Message:     m,
			State:       chat.DeliverySettled,
			EffectiveAt: m.CreatedAt,
			seq:         s.bump(),
		})
	}
	s.attachPendingLocked()
	s.sortLocked()
}

// RemoveOptimistic rolls back a failed send, returning the local message
// so its text can be restored to the input.
func (s *Store) RemoveOptimistic(token uuid.UUID) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.Token == token && e.State == chat.DeliveryOptimistic {
			m := e.Message
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return m, true
		}
	}
	return chat.Message{}, false
}

// FailStalled transitions optimistic entries older than timeout to Failed
// and returns their tokens. Failed is terminal: a retry is a brand-new
// optimistic entry.
func (s *Store) FailStalled(timeout time.Duration, now time.Time) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []uuid.UUID
	for _, e := range s.entries {
		if e.State == chat.DeliveryOptimistic && now.Sub(e.localAt) > timeout {
			e.State = chat.DeliveryFailed
			failed = append(failed, e.Token)
		}
	}
	return failed
}

// ApplyAttachment upserts an attachment. If its owning message is present
// it is attached (or updated) in place; otherwise it is held in the
// pending side table until the message settles or the reference resolves.
func (s *Store) ApplyAttachment(a chat.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateInPlaceLocked(a) {
		return
	}
	if a.MessageID.Valid {
		if e := s.findByIDLocked(a.MessageID.UUID); e != nil {
			e.Message.Attachments = mergeAttachments(e.Message.Attachments, []chat.Attachment{a})
			return
		}
	}
	s.upsertPendingLocked(a)
}

// ApplyAttachmentStatus records an externally-driven status transition
// (pending→accepted, pending→rejected) in place, wherever the attachment
// currently lives. Message order and content are untouched.
func (s *Store) ApplyAttachmentStatus(a chat.Attachment) {
	s.ApplyAttachment(a)
}

// Snapshot returns a copy of the exposed collection, sorted ascending by
// effective timestamp with arrival order breaking ties.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		copied := *e
		copied.Message.Attachments = append([]chat.Attachment(nil), e.Message.Attachments...)
		out = append(out, copied)
	}
	return out
}

func (s *Store) bump() uint64 {
	s.nextSeq++
	return s.nextSeq
}

func (s *Store) findByIDLocked(id uuid.UUID) *Entry {
	if id == uuid.Nil {
		return nil
	}
	for _, e := range s.entries {
		if e.State == chat.DeliverySettled && e.Message.ID == id {
			return e
		}
	}
	return nil
}

// bestOptimisticMatchLocked is first-fit by author with a preference for
// the closest local timestamp inside the grace window.
func (s *Store) bestOptimisticMatchLocked(m chat.Message) *Entry {
	var best *Entry
	var bestDiff time.Duration
	for _, e := range s.entries {
		if e.State != chat.DeliveryOptimistic {
			continue
		}
		if e.Message.Author() != m.Author() {
			continue
		}
		diff := m.CreatedAt.Sub(e.localAt)
		if diff < -clockSkewAllowance || diff > s.graceWindow {
			continue
		}
		abs := diff
		if abs < 0 {
			abs = -abs
		}
		if best == nil || abs < bestDiff {
			best = e
			bestDiff = abs
		}
	}
	return best
}

func (s *Store) updateInPlaceLocked(a chat.Attachment) bool {
	for _, e := range s.entries {
		for i := range e.Message.Attachments {
			if e.Message.Attachments[i].ID == a.ID {
				e.Message.Attachments[i] = a
				return true
			}
		}
	}
	for i := range s.pending {
		if s.pending[i].ID == a.ID {
			s.pending[i] = a
			s.attachPendingLocked()
			return true
		}
	}
	return false
}

func (s *Store) upsertPendingLocked(a chat.Attachment) {
	for i := range s.pending {
		if s.pending[i].ID == a.ID {
			s.pending[i] = a
			return
		}
	}
	s.pending = append(s.pending, a)
}

func (s *Store) attachPendingLocked() {
	var remaining []chat.Attachment
	for _, a := range s.pending {
		attached := false
		if a.MessageID.Valid {
			if e := s.findByIDLocked(a.MessageID.UUID); e != nil {
				e.Message.Attachments = mergeAttachments(e.Message.Attachments, []chat.Attachment{a})
				attached = true
			}
		}
		if !attached {
			remaining = append(remaining, a)
		}
	}
	s.pending = remaining
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		if s.entries[i].EffectiveAt.Equal(s.entries[j].EffectiveAt) {
			return s.entries[i].seq < s.entries[j].seq
		}
		return s.entries[i].EffectiveAt.Before(s.entries[j].EffectiveAt)
	})
}

// mergeAttachments unions by attachment id, with incoming entries winning.
func mergeAttachments(existing, incoming []chat.Attachment) []chat.Attachment {
	out := append([]chat.Attachment(nil), existing...)
	for _, in := range incoming {
		replaced := false
		for i := range out {
			if out[i].ID == in.ID {
				out[i] = in
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, in)
		}
	}
	return out
}
