// Package convstore is the canonical set of conversation summaries and
// their display order.
package convstore

import (
	"fmt"
	"time"

	"github.com/matheus3301/leadsync/internal/badge"
)

// Summary is one conversation as shown in the list.
type Summary struct {
	ID                 string
	DisplayName        string
	LastMessagePreview string
	LastActivity       time.Time
	UnreadCount        int
	HasOffer           bool
	HasNewBank         bool
}

// Badge reports the value of a named badge flag.
func (s Summary) Badge(name string) bool {
	switch name {
	case badge.Offer:
		return s.HasOffer
	case badge.NewBank:
		return s.HasNewBank
	}
	return false
}

// Patch carries the fields to merge into a summary. Nil fields are left
// untouched.
type Patch struct {
	DisplayName        *string
	LastMessagePreview *string
	LastActivity       *time.Time
	UnreadCount        *int
}

// Presenter receives every store mutation synchronously, before the
// mutating call returns.
type Presenter interface {
	Render(list []Summary)
	UpsertRow(s Summary)
	UpdateUnread(id string, n int)
	SetBadge(id, name string, on bool)
	MoveToTop(id string)
}

type nopPresenter struct{}

func (nopPresenter) Render([]Summary) {}
func (nopPresenter) UpsertRow(Summary) {}
func (nopPresenter) UpdateUnread(string, int) {}
func (nopPresenter) SetBadge(string, string, bool) {}
func (nopPresenter) MoveToTop(string) {}

// Store holds summaries keyed by id plus a separately maintained display
// order. It is not locked: all calls happen on the loop.
type Store struct {
	byID      map[string]*Summary
	order     []string
	open      string
	presenter Presenter
}

// New creates an empty store. A nil presenter discards updates.
func New(p Presenter) *Store {
	if p == nil {
		p = nopPresenter{}
	}
	return &Store{byID: make(map[string]*Summary), presenter: p}
}

// Upsert merges patch into the summary for id, creating it at the end of
// the display order when absent. Unset fields are never cleared.
func (s *Store) Upsert(id string, patch Patch) Summary {
	sum, ok := s.byID[id]
	if !ok {
		sum = &Summary{ID: id}
		s.byID[id] = sum
		s.order = append(s.order, id)
	}
	if patch.DisplayName != nil {
		sum.DisplayName = *patch.DisplayName
	}
	if patch.LastMessagePreview != nil {
		sum.LastMessagePreview = *patch.LastMessagePreview
	}
	if patch.LastActivity != nil {
		sum.LastActivity = *patch.LastActivity
	}
	s.presenter.UpsertRow(*sum)
	if patch.UnreadCount != nil {
		s.SetUnread(id, *patch.UnreadCount)
	}
	return *sum
}

// SetUnread sets the unread count, clamped to zero and forced to zero for
// the open conversation. Unknown ids are ignored.
func (s *Store) SetUnread(id string, n int) {
	sum, ok := s.byID[id]
	if !ok {
		return
	}
	if n < 0 || id == s.open {
		n = 0
	}
	sum.UnreadCount = n
	s.presenter.UpdateUnread(id, n)
}

// IncrementUnread bumps the unread count by one unless id is open.
func (s *Store) IncrementUnread(id string) {
	if sum, ok := s.byID[id]; ok {
		s.SetUnread(id, sum.UnreadCount+1)
	}
}

// SetBadge sets a badge flag from any of its wire encodings.
func (s *Store) SetBadge(id, name string, value any) error {
	sum, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("set badge %s: unknown conversation %q", name, id)
	}
	on := badge.Truthy(value)
	switch name {
	case badge.Offer:
		sum.HasOffer = on
	case badge.NewBank:
		sum.HasNewBank = on
	default:
		return fmt.Errorf("unknown badge %q", name)
	}
	s.presenter.SetBadge(id, name, on)
	return nil
}

// MoveToTop makes id first in display order.
func (s *Store) MoveToTop(id string) {
	i := s.Index(id)
	if i < 0 {
		return
	}
	if i > 0 {
		copy(s.order[1:i+1], s.order[:i])
		s.order[0] = id
	}
	s.presenter.MoveToTop(id)
}

// ReplaceAll discards every summary and repopulates from list, keeping its
// order. Later duplicates overwrite earlier ones in place.
func (s *Store) ReplaceAll(list []Summary) {
	s.byID = make(map[string]*Summary, len(list))
	s.order = s.order[:0]
	s.merge(list)
	s.presenter.Render(s.Ordered())
}

// Append adds a page of summaries after the current display order without
// reordering it. Ids already present are updated where they stand.
func (s *Store) Append(list []Summary) {
	s.merge(list)
	s.presenter.Render(s.Ordered())
}

func (s *Store) merge(list []Summary) {
	for _, in := range list {
		if in.UnreadCount < 0 || in.ID == s.open {
			in.UnreadCount = 0
		}
		if existing, ok := s.byID[in.ID]; ok {
			*existing = in
			continue
		}
		s.byID[in.ID] = &in
		s.order = append(s.order, in.ID)
	}
}

// SetOpen marks id as the open conversation and clears its unread count.
// An empty id closes it.
func (s *Store) SetOpen(id string) {
	s.open = id
	if sum, ok := s.byID[id]; ok && sum.UnreadCount != 0 {
		s.SetUnread(id, 0)
	}
}

// Open returns the open conversation id, or "".
func (s *Store) Open() string { return s.open }

// Get returns the summary for id.
func (s *Store) Get(id string) (Summary, bool) {
	sum, ok := s.byID[id]
	if !ok {
		return Summary{}, false
	}
	return *sum, true
}

// Index returns id's position in display order, or -1.
func (s *Store) Index(id string) int {
	for i, v := range s.order {
		if v == id {
			return i
		}
	}
	return -1
}

// Ordered returns a copy of the summaries in display order.
func (s *Store) Ordered() []Summary {
	out := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// Len returns the number of conversations.
func (s *Store) Len() int { return len(s.order) }
