package views

import (
	"fmt"
	"slices"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/leadsync/internal/badge"
	"github.com/matheus3301/leadsync/internal/convstore"
	"github.com/matheus3301/leadsync/internal/present"
	"github.com/matheus3301/leadsync/internal/tui/ui"
	"github.com/rivo/tview"
)

type listRow struct {
	sum       convstore.Summary
	badges    map[string]present.BadgePhase
	unread    int
	pulse     bool
	highlight bool
}

// ConversationList is the conversation table. It implements
// present.Surface; calls may come from any goroutine and are applied
// through the drawer.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	draw    *ui.Drawer
	now     func() time.Time
	order   []string
	rows    map[string]*listRow
	offsets map[string]int
	shown   []string
	search  string
}

var _ present.Surface = (*ConversationList)(nil)

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme, draw *ui.Drawer) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{
		Table: table,
		theme: theme,
		draw:  draw,
		now:   time.Now,
		rows:  make(map[string]*listRow),
	}
	cl.render()
	return cl
}

// Render implements present.Surface.
func (cl *ConversationList) Render(list []convstore.Summary) {
	cl.draw.Queue(func() {
		cl.order = make([]string, 0, len(list))
		clear(cl.rows)
		cl.offsets = nil
		for _, s := range list {
			cl.order = append(cl.order, s.ID)
			r := &listRow{sum: s, unread: s.UnreadCount, badges: map[string]present.BadgePhase{}}
			if s.HasOffer {
				r.badges[badge.Offer] = present.BadgeShown
			}
			if s.HasNewBank {
				r.badges[badge.NewBank] = present.BadgeShown
			}
			cl.rows[s.ID] = r
		}
		cl.render()
	})
}

// UpsertRow implements present.Surface.
func (cl *ConversationList) UpsertRow(s convstore.Summary) {
	cl.draw.Queue(func() {
		if r, ok := cl.rows[s.ID]; ok {
			r.sum = s
		} else {
			cl.order = append(cl.order, s.ID)
			cl.rows[s.ID] = &listRow{sum: s, unread: s.UnreadCount, badges: map[string]present.BadgePhase{}}
		}
		cl.render()
	})
}

// SetOffsets implements present.Surface. Rows are drawn shifted by their
// offset until the reorder commits.
func (cl *ConversationList) SetOffsets(offsets map[string]int) {
	cl.draw.Queue(func() {
		cl.offsets = offsets
		cl.render()
	})
}

// ClearOffsets implements present.Surface.
func (cl *ConversationList) ClearOffsets() {
	cl.draw.Queue(func() {
		cl.offsets = nil
		cl.render()
	})
}

// Reorder implements present.Surface.
func (cl *ConversationList) Reorder(ids []string) {
	cl.draw.Queue(func() {
		cl.order = slices.Clone(ids)
		cl.render()
	})
}

// SetBadge implements present.Surface.
func (cl *ConversationList) SetBadge(id, name string, phase present.BadgePhase) {
	cl.draw.Queue(func() {
		r, ok := cl.rows[id]
		if !ok {
			return
		}
		if phase == present.BadgeRemoved {
			delete(r.badges, name)
		} else {
			r.badges[name] = phase
		}
		cl.render()
	})
}

// SetUnread implements present.Surface.
func (cl *ConversationList) SetUnread(id string, n int, pulse bool) {
	cl.draw.Queue(func() {
		if r, ok := cl.rows[id]; ok {
			r.unread = n
			r.pulse = pulse
			cl.render()
		}
	})
}

// SetHighlight implements present.Surface.
func (cl *ConversationList) SetHighlight(id string, on bool) {
	cl.draw.Queue(func() {
		if r, ok := cl.rows[id]; ok {
			r.highlight = on
			cl.render()
		}
	})
}

// SetSearch shows the active search in the title.
func (cl *ConversationList) SetSearch(q string) {
	cl.draw.Queue(func() {
		cl.search = q
		cl.render()
	})
}

// Selected returns the id of the selected row. Call on the UI goroutine.
func (cl *ConversationList) Selected() string {
	row, _ := cl.GetSelection()
	return cl.IDAt(row)
}

// IDAt returns the id drawn at table row (1-based, below the header).
func (cl *ConversationList) IDAt(row int) string {
	if row < 1 || row > len(cl.shown) {
		return ""
	}
	return cl.shown[row-1]
}

// Summary returns the row data for id. Call on the UI goroutine.
func (cl *ConversationList) Summary(id string) (convstore.Summary, bool) {
	r, ok := cl.rows[id]
	if !ok {
		return convstore.Summary{}, false
	}
	return r.sum, true
}

// displayOrder applies in-flight offsets to the committed order.
func (cl *ConversationList) displayOrder() []string {
	ids := slices.Clone(cl.order)
	if len(cl.offsets) == 0 {
		return ids
	}
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i + cl.offsets[id]
	}
	slices.SortStableFunc(ids, func(a, b string) int { return pos[a] - pos[b] })
	return ids
}

func (cl *ConversationList) render() {
	selected := cl.Selected()
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" ", 0},
		{" TIME", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	cl.shown = cl.displayOrder()
	for i, id := range cl.shown {
		r := cl.rows[id]
		if r == nil {
			continue
		}
		row := i + 1
		bg := cl.theme.BgColor
		if r.highlight {
			bg = cl.theme.HighlightBg
		}

		name := sanitizeForTerminal(r.sum.DisplayName)
		if name == "" {
			name = r.sum.ID
		}
		nameCell := tview.NewTableCell(" " + tview.Escape(name)).
			SetExpansion(1).
			SetTextColor(cl.theme.FgColor).
			SetBackgroundColor(bg)
		if r.unread > 0 {
			nameCell.SetText(fmt.Sprintf(" (%d) %s", r.unread, tview.Escape(name))).
				SetTextColor(cl.theme.UnreadColor)
			if r.pulse {
				nameCell.SetAttributes(tcell.AttrBold)
			}
		}
		cl.SetCell(row, 0, nameCell)
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(r.sum.LastMessagePreview))).
			SetExpansion(2).
			SetTextColor(cl.theme.FgColor).
			SetBackgroundColor(bg))
		cl.SetCell(row, 2, tview.NewTableCell(cl.badgeText(r)).
			SetBackgroundColor(bg))
		cl.SetCell(row, 3, tview.NewTableCell(formatTimestamp(r.sum.LastActivity, cl.now())).
			SetTextColor(cl.theme.FgColor).
			SetBackgroundColor(bg).
			SetAlign(tview.AlignRight))
	}

	title := fmt.Sprintf(" Conversations (%d) ", len(cl.shown))
	if cl.search != "" {
		title = fmt.Sprintf(" Conversations (%d) search: %s ", len(cl.shown), tview.Escape(cl.search))
	}
	cl.SetTitle(title)

	if i := slices.Index(cl.shown, selected); i >= 0 {
		cl.Select(i+1, 0)
	}
}

func (cl *ConversationList) badgeText(r *listRow) string {
	var out string
	for _, b := range []struct {
		name  string
		label string
		color tcell.Color
	}{
		{badge.Offer, "OFFER", cl.theme.OfferColor},
		{badge.NewBank, "BANK", cl.theme.NewBankColor},
	} {
		phase, ok := r.badges[b.name]
		if !ok {
			continue
		}
		style := ""
		switch phase {
		case present.BadgeEntering:
			style = "::b"
		case present.BadgeExiting:
			style = "::d"
		}
		out += fmt.Sprintf(" [%s%s]%s[-:-:-]", ui.Tag(b.color), style, b.label)
	}
	return out
}

func formatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
