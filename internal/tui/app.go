// Package tui is the terminal console: a tview application rendering the
// sync engine's conversation list, open thread and connection status.
package tui

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/leadsync/internal/bus"
	"github.com/matheus3301/leadsync/internal/protocol"
	"github.com/matheus3301/leadsync/internal/status"
	"github.com/matheus3301/leadsync/internal/tui/keys"
	"github.com/matheus3301/leadsync/internal/tui/ui"
	"github.com/matheus3301/leadsync/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// Page names.
const (
	PageList   = "list"
	PageThread = "thread"
	PageHelp   = "help"
)

// Actions are the user actions the console posts to the sync engine.
type Actions interface {
	Open(id string)
	Close()
	Send(text string)
	ClearOffer(id string)
	Reload(search string)
	LoadMore()
	Reconnect()
	FocusRegained()
}

// Views holds the widgets the engine renders into. They exist before the
// engine so they can be handed to it as capabilities.
type Views struct {
	Theme  *ui.Theme
	Drawer *ui.Drawer
	List   *views.ConversationList
	Thread *views.MessageThread
	Status *views.StatusBar
	Help   *views.HelpView
	Flash  *ui.FlashModel
}

// NewViews creates the widgets for a session.
func NewViews(sessionName string) *Views {
	theme := ui.DefaultTheme()
	draw := ui.NewDrawer(tview.NewApplication())
	return &Views{
		Theme:  theme,
		Drawer: draw,
		List:   views.NewConversationList(theme, draw),
		Thread: views.NewMessageThread(theme, draw),
		Status: views.NewStatusBar(theme, draw, sessionName),
		Help:   views.NewHelpView(theme),
		Flash:  ui.NewFlashModel(),
	}
}

// App is the main TUI application shell.
type App struct {
	*Views
	actions  Actions
	bus      *bus.Dispatcher
	machine  *status.Machine
	logger   *zap.Logger
	pages    *tview.Pages
	root     *tview.Flex
	menu     *ui.Menu
	flashBar *ui.FlashBar
	prompt   *ui.Prompt
	registry *keys.Registry
	search   string
	done     chan struct{}
}

// NewApp creates the TUI application.
func NewApp(v *Views, actions Actions, d *bus.Dispatcher, machine *status.Machine, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Views:    v,
		actions:  actions,
		bus:      d,
		machine:  machine,
		logger:   logger.Named("tui"),
		pages:    tview.NewPages(),
		menu:     ui.NewMenu(v.Theme),
		flashBar: ui.NewFlashBar(v.Theme),
		prompt:   ui.NewPrompt(v.Theme),
		registry: keys.NewRegistry(),
		done:     make(chan struct{}),
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	a.Help.SetSections([]views.HelpSection{
		{Title: "Conversation List", Hints: a.registry.Hints(PageList)},
		{Title: "Conversation", Hints: a.registry.Hints(PageThread)},
	})

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: "Command",
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Description: "Help",
		Handler: func() { a.switchTo(PageHelp) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'R', Description: "Reconnect",
		Handler: func() { a.actions.Reconnect() },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "Quit",
		Handler: a.Stop,
	})

	a.registry.AddPage(PageList, &keys.Action{
		Key: tcell.KeyEnter, Description: "Open",
		Handler: func() { a.openConversation(a.List.Selected()) },
	})
	a.registry.AddPage(PageList, &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Description: "Search",
		Handler: func() { a.showPrompt(ui.PromptSearch) },
	})
	a.registry.AddPage(PageList, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Reload",
		Handler: func() { a.actions.Reload(a.search) },
	})
	a.registry.AddPage(PageList, &keys.Action{
		Key: tcell.KeyRune, Rune: 'm', Description: "More",
		Handler: func() { a.actions.LoadMore() },
	})
	a.registry.AddPage(PageList, &keys.Action{
		Key: tcell.KeyRune, Rune: 'x', Description: "Clear offer",
		Handler: func() {
			if id := a.List.Selected(); id != "" {
				a.actions.ClearOffer(id)
			}
		},
	})

	a.registry.AddPage(PageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "Compose",
		Handler: func() { a.Drawer.App().SetFocus(a.Thread.Composer()) },
	})
	a.registry.AddPage(PageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'x', Description: "Clear offer",
		Handler: func() {
			if id := a.Thread.ConversationID(); id != "" {
				a.actions.ClearOffer(id)
			}
		},
	})
	a.registry.AddPage(PageThread, &keys.Action{
		Key: tcell.KeyEscape, Label: "Esc", Description: "Back",
		Handler: a.closeConversation,
	})
	a.registry.AddPage(PageHelp, &keys.Action{
		Key: tcell.KeyEscape, Label: "Esc", Description: "Back",
		Handler: func() { a.switchTo(PageList) },
	})
}

func (a *App) setupCallbacks() {
	a.Thread.SetOnSend(func(text string) {
		a.actions.Send(text)
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptSearch:
			a.runSearch(text)
		case ui.PromptCommand:
			cmd, err := ParseCommand(text)
			if err != nil {
				a.Flash.Error("Invalid command", err)
				return
			}
			a.execCommand(cmd)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) setupLayout() {
	a.pages.AddPage(PageList, a.List, true, true)
	a.pages.AddPage(PageThread, a.Thread, true, false)
	a.pages.AddPage(PageHelp, a.Help, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.menu, 1, 0, false).
		AddItem(a.Status, 1, 0, false)
	a.menu.Update(a.registry.Hints(PageList))

	app := a.Drawer.App()
	app.SetRoot(a.root, true)
	app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	page := a.currentPage()

	// Text input widgets get every key; Esc leaves the composer.
	switch focused := a.Drawer.App().GetFocus().(type) {
	case *ui.Prompt:
		return event
	case *tview.InputField:
		if focused == a.Thread.Composer() && event.Key() == tcell.KeyEscape {
			a.Drawer.App().SetFocus(a.Thread.Messages())
			return nil
		}
		return event
	}

	if page == PageList && a.atListEnd(event) {
		a.actions.LoadMore()
	}

	if a.registry.HandleEvent(page, event) {
		return nil
	}
	return event
}

// atListEnd reports whether event moves past the last loaded row.
func (a *App) atListEnd(event *tcell.EventKey) bool {
	down := event.Key() == tcell.KeyDown ||
		(event.Key() == tcell.KeyRune && event.Rune() == 'j')
	if !down {
		return false
	}
	row, _ := a.List.GetSelection()
	return row > 0 && row == a.List.GetRowCount()-1
}

func (a *App) currentPage() string {
	name, _ := a.pages.GetFrontPage()
	return name
}

func (a *App) switchTo(page string) {
	a.pages.SwitchToPage(page)
	a.menu.Update(a.registry.Hints(page))
	switch page {
	case PageThread:
		a.Drawer.App().SetFocus(a.Thread.Messages())
	case PageHelp:
		a.Drawer.App().SetFocus(a.Help)
	default:
		a.Drawer.App().SetFocus(a.List)
	}
}

func (a *App) openConversation(id string) {
	if id == "" {
		return
	}
	name := id
	if s, ok := a.List.Summary(id); ok && s.DisplayName != "" {
		name = s.DisplayName
	}
	a.Thread.SetConversationName(name)
	a.actions.Open(id)
	a.switchTo(PageThread)
}

func (a *App) closeConversation() {
	a.actions.Close()
	a.switchTo(PageList)
}

func (a *App) runSearch(q string) {
	a.search = q
	a.List.SetSearch(q)
	a.actions.Reload(q)
}

func (a *App) execCommand(cmd Command) {
	switch cmd.Name {
	case "open":
		a.openConversation(cmd.Args)
	case "search":
		a.runSearch(cmd.Args)
	case "reload":
		a.actions.Reload(a.search)
	case "more":
		a.actions.LoadMore()
	case "reconnect":
		a.actions.Reconnect()
	case "help":
		a.switchTo(PageHelp)
	case "quit":
		a.Stop()
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.Drawer.App().SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.switchTo(a.currentPage())
}

// Run starts the TUI application and blocks until it stops.
func (a *App) Run() error {
	if a.machine != nil {
		a.Status.SetState(a.machine.Current(), a.machine.Attempt())
	}

	states, unwatch := a.bus.Watch(protocol.TypeConnectionState, 16)
	defer unwatch()
	go a.followState(states)
	go a.followFlash()

	cont := make(chan os.Signal, 1)
	signal.Notify(cont, syscall.SIGCONT)
	defer signal.Stop(cont)
	go a.followResume(cont)

	defer close(a.done)
	return a.Drawer.Run()
}

func (a *App) followState(states <-chan protocol.Envelope) {
	for {
		select {
		case env, ok := <-states:
			if !ok {
				return
			}
			// The watcher drops events when full; the machine has the latest.
			if a.machine != nil {
				a.Status.SetState(a.machine.Current(), a.machine.Attempt())
				continue
			}
			var cs protocol.ConnectionState
			if err := env.Unmarshal(&cs); err != nil {
				a.logger.Warn("bad connection_state event", zap.Error(err))
				continue
			}
			a.Status.SetState(status.State(cs.To), cs.Attempt)
		case <-a.done:
			return
		}
	}
}

func (a *App) followFlash() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.Flash.Watch():
		case <-ticker.C:
		case <-a.done:
			return
		}
		msg := a.Flash.Current()
		a.Drawer.Queue(func() { a.flashBar.Update(msg) })
	}
}

// followResume treats a resumed process (fg after ^Z) as regained focus.
func (a *App) followResume(cont <-chan os.Signal) {
	for {
		select {
		case <-cont:
			a.actions.FocusRegained()
		case <-a.done:
			return
		}
	}
}

// Stop stops the TUI. Run returns afterwards.
func (a *App) Stop() {
	a.Drawer.App().Stop()
}
