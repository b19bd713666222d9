package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/leadsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpSection is a titled group of key hints.
type HelpSection struct {
	Title string
	Hints []ui.MenuHint
}

// HelpView displays the key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	return &HelpView{
		TextView: tv,
		theme:    theme,
	}
}

// SetSections renders the given sections and the command reference.
// Must run on the UI goroutine or before the app starts.
func (hv *HelpView) SetSections(sections []HelpSection) {
	kc := ui.Tag(hv.theme.MenuKeyColor)

	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.Title)
		for _, h := range s.Hints {
			fmt.Fprintf(&b, "  [%s]%-8s[-:-:-] %s\n", kc, tview.Escape(h.Key), h.Description)
		}
	}

	b.WriteString("\n  [::b]Commands (: mode)[-:-:-]\n\n")
	for _, c := range [][2]string{
		{":open <id>", "Open conversation by id"},
		{":search <q>", "Reload the list filtered by q"},
		{":reload", "Reload the list"},
		{":more", "Load the next page"},
		{":reconnect", "Reconnect the push channel"},
		{":help", "Show this help"},
		{":quit", "Quit application"},
	} {
		fmt.Fprintf(&b, "  [%s]%-14s[-:-:-] %s\n", kc, tview.Escape(c[0]), c[1])
	}

	hv.Clear()
	_, _ = fmt.Fprint(hv, b.String())
}
