// Package ledger tracks locally sent messages until their echo arrives on
// the push channel.
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultWindow is how long a pending entry can match an echo by content.
const DefaultWindow = 15 * time.Second

// Entry is one outbound message awaiting confirmation.
type Entry struct {
	TempID         string
	RequestID      string
	ConversationID string
	Content        string
	Normalized     string
	EnqueuedAt     time.Time
}

// Ledger holds pending entries in enqueue order. Not safe for concurrent
// use; it lives on the loop.
type Ledger struct {
	window  time.Duration
	entries []Entry
}

// New creates a ledger. A non-positive window uses DefaultWindow.
func New(window time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ledger{window: window}
}

// Normalize trims and case-folds content for comparison.
func Normalize(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}

// Add records a new pending send.
func (l *Ledger) Add(conversationID, content string, now time.Time) Entry {
	e := Entry{
		TempID:         "tmp-" + uuid.NewString(),
		RequestID:      uuid.NewString(),
		ConversationID: conversationID,
		Content:        content,
		Normalized:     Normalize(content),
		EnqueuedAt:     now,
	}
	l.entries = append(l.entries, e)
	return e
}

// Match finds and consumes the entry confirmed by an inbound message.
// An echoed request id is matched exactly. Without one, the first entry for
// the conversation with equal normalized content enqueued within the window
// wins. Empty content never matches by content.
func (l *Ledger) Match(conversationID, content, requestID string, now time.Time) (Entry, bool) {
	if requestID != "" {
		for i, e := range l.entries {
			if e.RequestID == requestID {
				l.removeAt(i)
				return e, true
			}
		}
	}
	norm := Normalize(content)
	if norm == "" {
		return Entry{}, false
	}
	for i, e := range l.entries {
		if e.ConversationID != conversationID || e.Normalized != norm {
			continue
		}
		if now.Sub(e.EnqueuedAt) > l.window {
			continue
		}
		l.removeAt(i)
		return e, true
	}
	return Entry{}, false
}

// Remove drops the entry with tempID. Reports whether it existed.
func (l *Ledger) Remove(tempID string) bool {
	for i, e := range l.entries {
		if e.TempID == tempID {
			l.removeAt(i)
			return true
		}
	}
	return false
}

// Prune drops entries that can no longer match by content and returns how
// many were removed.
func (l *Ledger) Prune(now time.Time) int {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if now.Sub(e.EnqueuedAt) <= l.window {
			kept = append(kept, e)
		}
	}
	n := len(l.entries) - len(kept)
	for i := len(kept); i < len(l.entries); i++ {
		l.entries[i] = Entry{}
	}
	l.entries = kept
	return n
}

// Len returns the number of pending entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Pending returns the entries for one conversation in enqueue order.
func (l *Ledger) Pending(conversationID string) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.ConversationID == conversationID {
			out = append(out, e)
		}
	}
	return out
}

// Window returns the content match window.
func (l *Ledger) Window() time.Duration { return l.window }

func (l *Ledger) removeAt(i int) {
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
}
