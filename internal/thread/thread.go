// Package thread holds the messages of the open conversation.
package thread

import (
	"slices"
	"time"
)

// Message is one rendered chat message.
type Message struct {
	ID        string
	Content   string
	At        time.Time
	Direction string
	Pending   bool
}

// View is told about every change to the thread.
type View interface {
	ShowThread(conversationID string, msgs []Message)
}

type nopView struct{}

func (nopView) ShowThread(string, []Message) {}

// Thread is the open conversation's message list. Loop-only.
type Thread struct {
	conversationID string
	msgs           []Message
	view           View
}

// New creates an empty thread. A nil view discards updates.
func New(v View) *Thread {
	if v == nil {
		v = nopView{}
	}
	return &Thread{view: v}
}

// Reset switches to another conversation and clears the messages.
func (t *Thread) Reset(conversationID string) {
	t.conversationID = conversationID
	t.msgs = nil
	t.notify()
}

// ConversationID returns the conversation the thread belongs to.
func (t *Thread) ConversationID() string { return t.conversationID }

// Replace sets the full message list, as loaded from the server. Pending
// optimistic messages not yet in the loaded list are kept at the end.
func (t *Thread) Replace(msgs []Message) {
	next := slices.Clone(msgs)
	for _, m := range t.msgs {
		if m.Pending {
			next = append(next, m)
		}
	}
	t.msgs = next
	t.notify()
}

// AppendOptimistic adds a locally sent message under a temporary id.
func (t *Thread) AppendOptimistic(tempID, content string, at time.Time) Message {
	m := Message{ID: tempID, Content: content, At: at, Direction: "outbound", Pending: true}
	t.msgs = append(t.msgs, m)
	t.notify()
	return m
}

// Confirm replaces a temporary id and timestamp with the server's. If the
// server message is already shown, the optimistic copy is dropped instead.
func (t *Thread) Confirm(tempID, serverID string, at time.Time) bool {
	i := t.index(tempID)
	if i < 0 {
		return false
	}
	if serverID != "" && t.index(serverID) >= 0 {
		t.msgs = slices.Delete(t.msgs, i, i+1)
		t.notify()
		return true
	}
	if serverID != "" {
		t.msgs[i].ID = serverID
	}
	if !at.IsZero() {
		t.msgs[i].At = at
	}
	t.msgs[i].Pending = false
	t.notify()
	return true
}

// Remove drops a message by id.
func (t *Thread) Remove(id string) bool {
	i := t.index(id)
	if i < 0 {
		return false
	}
	t.msgs = slices.Delete(t.msgs, i, i+1)
	t.notify()
	return true
}

// AppendInbound adds a server message. Messages whose id is already shown
// are ignored.
func (t *Thread) AppendInbound(m Message) bool {
	if m.ID != "" && t.index(m.ID) >= 0 {
		return false
	}
	m.Pending = false
	t.msgs = append(t.msgs, m)
	t.notify()
	return true
}

// Messages returns a copy of the messages in display order.
func (t *Thread) Messages() []Message { return slices.Clone(t.msgs) }

// Len returns the number of messages.
func (t *Thread) Len() int { return len(t.msgs) }

// Count returns how many messages have exactly this content.
func (t *Thread) Count(content string) int {
	n := 0
	for _, m := range t.msgs {
		if m.Content == content {
			n++
		}
	}
	return n
}

func (t *Thread) index(id string) int {
	return slices.IndexFunc(t.msgs, func(m Message) bool { return m.ID == id })
}

func (t *Thread) notify() {
	t.view.ShowThread(t.conversationID, slices.Clone(t.msgs))
}
