package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/leadsync/internal/thread"
	"github.com/matheus3301/leadsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays the open conversation and a composer. It
// implements thread.View and the engine's composer capability.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	draw     *ui.Drawer
	messages *tview.TextView
	composer *tview.InputField
	convID   string
	title    string
	onSend   func(text string)
}

var _ thread.View = (*MessageThread)(nil)

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme, draw *ui.Drawer) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		draw:     draw,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			mt.submit()
		}
	})

	return mt
}

func (mt *MessageThread) submit() {
	text := strings.TrimSpace(mt.composer.GetText())
	if text == "" || mt.onSend == nil {
		return
	}
	mt.composer.SetText("")
	mt.onSend(text)
}

// SetOnSend sets the callback for a submitted composer line.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetConversationName sets the name shown above the messages.
func (mt *MessageThread) SetConversationName(name string) {
	mt.draw.Queue(func() {
		mt.title = name
		mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
	})
}

// ConversationID returns the conversation currently shown.
func (mt *MessageThread) ConversationID() string {
	return mt.convID
}

// ShowThread implements thread.View. Messages arrive oldest first.
func (mt *MessageThread) ShowThread(conversationID string, msgs []thread.Message) {
	mt.draw.Queue(func() {
		mt.convID = conversationID
		mt.messages.Clear()
		_, _ = fmt.Fprint(mt.messages, mt.format(msgs))
		mt.messages.ScrollToEnd()
	})
}

// Restore implements the composer capability: a failed send puts its
// text back unless the user already typed something new.
func (mt *MessageThread) Restore(text string) {
	mt.draw.Queue(func() {
		if mt.composer.GetText() == "" {
			mt.composer.SetText(text)
		}
	})
}

// Text returns the rendered thread, without color tags.
func (mt *MessageThread) Text() string {
	return mt.messages.GetText(true)
}

// Draft returns the composer content.
func (mt *MessageThread) Draft() string {
	return mt.composer.GetText()
}

func (mt *MessageThread) format(msgs []thread.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		sender := "Lead"
		color := ui.Tag(mt.theme.UnreadColor)
		if m.Direction == "outbound" {
			sender = "You"
			color = ui.Tag(mt.theme.MenuKeyColor)
		}
		ts := ""
		if !m.At.IsZero() {
			ts = m.At.Local().Format("01/02 15:04")
		}
		body := tview.Escape(sanitizeMultiline(m.Content))
		if m.Pending {
			fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s sending...[-:-:-]\n[%s]%s[-]\n\n",
				color, sender, ts, ui.Tag(mt.theme.PendingColor), body)
			continue
		}
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n", color, sender, ts, body)
	}
	return b.String()
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
