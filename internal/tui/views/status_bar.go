package views

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matheus3301/leadsync/internal/protocol"
	"github.com/matheus3301/leadsync/internal/status"
	"github.com/matheus3301/leadsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar displays the session, push connection state, the latest
// dashboard stats and document progress. It implements the engine's
// stats and document sinks.
type StatusBar struct {
	*tview.TextView
	theme    *ui.Theme
	draw     *ui.Drawer
	session  string
	state    status.State
	attempt  int
	stats    map[string]any
	document string
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme, draw *ui.Drawer, session string) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	sb := &StatusBar{
		TextView: tv,
		theme:    theme,
		draw:     draw,
		session:  session,
		state:    status.Disconnected,
	}
	sb.render()
	return sb
}

// SetState shows the push connection state.
func (sb *StatusBar) SetState(state status.State, attempt int) {
	sb.draw.Queue(func() {
		sb.state = state
		sb.attempt = attempt
		sb.render()
	})
}

// Stats implements the stats sink. Keys are shown sorted.
func (sb *StatusBar) Stats(stats map[string]any) {
	sb.draw.Queue(func() {
		sb.stats = stats
		sb.render()
	})
}

// Document implements the document sink.
func (sb *StatusBar) Document(eventType string, ev protocol.DocumentEvent) {
	sb.draw.Queue(func() {
		label := "doc"
		if eventType == protocol.TypeFCSStatus {
			label = "fcs"
		}
		text := fmt.Sprintf("%s %s", label, ev.ConversationID)
		if ev.Status != "" {
			text += " " + ev.Status
		}
		sb.document = sanitizeForTerminal(text)
		sb.render()
	})
}

// Line returns the rendered status line without color tags.
func (sb *StatusBar) Line() string {
	return sb.GetText(true)
}

func (sb *StatusBar) render() {
	sb.Clear()

	color := sb.theme.StateWarnColor
	switch sb.state {
	case status.Connected:
		color = sb.theme.StateOKColor
	case status.Failed, status.Disconnected:
		color = sb.theme.StateErrColor
	}
	state := string(sb.state)
	if sb.state == status.ReconnectScheduled && sb.attempt > 0 {
		state = fmt.Sprintf("%s #%d", state, sb.attempt)
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-]", tview.Escape(sb.session), ui.Tag(color), state)
	if len(sb.stats) > 0 {
		parts := make([]string, 0, len(sb.stats))
		for _, k := range slices.Sorted(maps.Keys(sb.stats)) {
			parts = append(parts, fmt.Sprintf("%s=%v", k, sb.stats[k]))
		}
		line += " | " + tview.Escape(sanitizeForTerminal(strings.Join(parts, " ")))
	}
	if sb.document != "" {
		line += " | " + tview.Escape(sb.document)
	}

	_, _ = fmt.Fprint(sb, line)
}
