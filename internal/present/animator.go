// Package present turns conversation store changes into animated list
// updates on a Surface.
package present

import (
	"slices"
	"time"

	"github.com/matheus3301/leadsync/internal/badge"
	"github.com/matheus3301/leadsync/internal/convstore"
	"github.com/matheus3301/leadsync/internal/loop"
	"go.uber.org/zap"
)

// BadgePhase is the lifecycle stage of a badge decoration.
type BadgePhase int

const (
	BadgeEntering BadgePhase = iota
	BadgeShown
	BadgeExiting
	BadgeRemoved
)

func (p BadgePhase) String() string {
	switch p {
	case BadgeEntering:
		return "entering"
	case BadgeShown:
		return "shown"
	case BadgeExiting:
		return "exiting"
	case BadgeRemoved:
		return "removed"
	}
	return "unknown"
}

// Surface draws the list. Offsets are transient displacements measured in
// rows; Reorder commits a new row order.
type Surface interface {
	Render(rows []convstore.Summary)
	UpsertRow(row convstore.Summary)
	SetOffsets(offsets map[string]int)
	ClearOffsets()
	Reorder(ids []string)
	SetBadge(id, name string, phase BadgePhase)
	SetUnread(id string, n int, pulse bool)
	SetHighlight(id string, on bool)
}

// Timings controls animation durations.
type Timings struct {
	Move      time.Duration
	Highlight time.Duration
	Badge     time.Duration
	Pulse     time.Duration
}

// DefaultTimings returns the standard durations.
func DefaultTimings() Timings {
	return Timings{
		Move:      300 * time.Millisecond,
		Highlight: 1500 * time.Millisecond,
		Badge:     200 * time.Millisecond,
		Pulse:     400 * time.Millisecond,
	}
}

// Animator implements convstore.Presenter. It tracks the order the surface
// currently shows, which lags the store while a move is animating.
//
// Every full render bumps the generation. Timers scheduled under an older
// generation find it changed and do nothing.
type Animator struct {
	loop    *loop.Loop
	surface Surface
	timings Timings
	logger  *zap.Logger

	generation uint64
	order      []string
	unread     map[string]int
	badges     map[string]map[string]bool
	moving     map[string]bool
	highlights map[string]*loop.Timer
}

var _ convstore.Presenter = (*Animator)(nil)

// NewAnimator creates an animator drawing on surface. Zero timings fall
// back to DefaultTimings.
func NewAnimator(l *loop.Loop, surface Surface, timings Timings, logger *zap.Logger) *Animator {
	def := DefaultTimings()
	if timings.Move <= 0 {
		timings.Move = def.Move
	}
	if timings.Highlight <= 0 {
		timings.Highlight = def.Highlight
	}
	if timings.Badge <= 0 {
		timings.Badge = def.Badge
	}
	if timings.Pulse <= 0 {
		timings.Pulse = def.Pulse
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Animator{
		loop:       l,
		surface:    surface,
		timings:    timings,
		logger:     logger,
		unread:     make(map[string]int),
		badges:     make(map[string]map[string]bool),
		moving:     make(map[string]bool),
		highlights: make(map[string]*loop.Timer),
	}
}

// Generation returns the render generation.
func (a *Animator) Generation() uint64 { return a.generation }

// Order returns the row order the surface currently shows.
func (a *Animator) Order() []string { return slices.Clone(a.order) }

// Animating reports whether id is moving to the top.
func (a *Animator) Animating(id string) bool { return a.moving[id] }

// Render redraws the whole list. In-flight timers are left to expire
// against the old generation.
func (a *Animator) Render(list []convstore.Summary) {
	a.generation++
	a.order = a.order[:0]
	clear(a.unread)
	clear(a.badges)
	clear(a.moving)
	clear(a.highlights)
	for _, s := range list {
		a.order = append(a.order, s.ID)
		a.unread[s.ID] = s.UnreadCount
		a.badges[s.ID] = map[string]bool{}
		if s.HasOffer {
			a.badges[s.ID][badge.Offer] = true
		}
		if s.HasNewBank {
			a.badges[s.ID][badge.NewBank] = true
		}
	}
	a.surface.Render(list)
}

// UpsertRow refreshes a row's text, appending it when new.
func (a *Animator) UpsertRow(s convstore.Summary) {
	if !slices.Contains(a.order, s.ID) {
		a.order = append(a.order, s.ID)
		a.unread[s.ID] = s.UnreadCount
	}
	a.surface.UpsertRow(s)
}

// MoveToTop slides id to the first row. It is a no-op when id is already
// first on screen or already on its way there.
func (a *Animator) MoveToTop(id string) {
	idx := slices.Index(a.order, id)
	if idx <= 0 || a.moving[id] {
		return
	}
	offsets := map[string]int{id: -idx}
	for _, other := range a.order[:idx] {
		offsets[other] = 1
	}
	a.moving[id] = true
	a.surface.SetOffsets(offsets)

	gen := a.generation
	a.loop.AfterFunc(a.timings.Move, func() {
		if gen != a.generation {
			a.logger.Debug("discarding stale move", zap.String("id", id))
			return
		}
		delete(a.moving, id)
		if i := slices.Index(a.order, id); i > 0 {
			a.order = slices.Insert(slices.Delete(a.order, i, i+1), 0, id)
		}
		a.surface.Reorder(slices.Clone(a.order))
		a.surface.ClearOffsets()
	})
}

// SetBadge adds or removes a badge.
func (a *Animator) SetBadge(id, name string, on bool) {
	if on {
		a.AddBadge(id, name)
	} else {
		a.RemoveBadge(id, name)
	}
}

// AddBadge shows a badge with an enter phase. Adding a present badge does
// nothing.
func (a *Animator) AddBadge(id, name string) {
	set := a.badges[id]
	if set == nil {
		set = map[string]bool{}
		a.badges[id] = set
	}
	if set[name] {
		return
	}
	set[name] = true
	a.surface.SetBadge(id, name, BadgeEntering)

	gen := a.generation
	a.loop.AfterFunc(a.timings.Badge, func() {
		if gen == a.generation && a.badges[id][name] {
			a.surface.SetBadge(id, name, BadgeShown)
		}
	})
}

// RemoveBadge hides a badge with an exit phase.
func (a *Animator) RemoveBadge(id, name string) {
	if !a.badges[id][name] {
		return
	}
	delete(a.badges[id], name)
	a.surface.SetBadge(id, name, BadgeExiting)

	gen := a.generation
	a.loop.AfterFunc(a.timings.Badge, func() {
		if gen == a.generation && !a.badges[id][name] {
			a.surface.SetBadge(id, name, BadgeRemoved)
		}
	})
}

// UpdateUnread shows, updates or hides the unread indicator, pulsing it
// when the count goes up.
func (a *Animator) UpdateUnread(id string, n int) {
	prev := a.unread[id]
	a.unread[id] = n
	pulse := n > prev
	a.surface.SetUnread(id, n, pulse)
	if !pulse {
		return
	}
	gen := a.generation
	a.loop.AfterFunc(a.timings.Pulse, func() {
		if gen == a.generation {
			a.surface.SetUnread(id, a.unread[id], false)
		}
	})
}

// Highlight flashes a row. Repeated highlights extend the flash.
func (a *Animator) Highlight(id string) {
	a.highlights[id].Stop()
	a.surface.SetHighlight(id, true)

	gen := a.generation
	a.highlights[id] = a.loop.AfterFunc(a.timings.Highlight, func() {
		if gen != a.generation {
			return
		}
		delete(a.highlights, id)
		a.surface.SetHighlight(id, false)
	})
}
