package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func runeEvent(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestPageBindingShadowsGlobal(t *testing.T) {
	r := NewRegistry()
	var got []string
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Handler: func() { got = append(got, "quit") }})
	r.AddPage("thread", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "Back", Handler: func() { got = append(got, "back") }})

	if !r.HandleEvent("thread", runeEvent('q')) {
		t.Fatal("HandleEvent(thread, q) = false")
	}
	if !r.HandleEvent("list", runeEvent('q')) {
		t.Fatal("HandleEvent(list, q) = false")
	}
	if len(got) != 2 || got[0] != "back" || got[1] != "quit" {
		t.Errorf("handlers ran %v, want [back quit]", got)
	}
	if r.HandleEvent("list", runeEvent('z')) {
		t.Error("unbound key reported as handled")
	}
}

func TestSpecialKeys(t *testing.T) {
	r := NewRegistry()
	hit := false
	r.AddPage("thread", &Action{Key: tcell.KeyEscape, Description: "Back", Handler: func() { hit = true }})

	if !r.HandleEvent("thread", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) || !hit {
		t.Error("Esc binding did not run")
	}
}

func TestHintsKeepOrder(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit"})
	r.AddPage("list", &Action{Key: tcell.KeyEnter, Description: "Open"})
	r.AddPage("list", &Action{Key: tcell.KeyRune, Rune: 'R', Description: "Reconnect"})
	r.AddPage("list", &Action{Key: tcell.KeyRune, Rune: 'j', Description: "Down", Hidden: true})

	hints := r.Hints("list")
	want := []string{"Enter:Open", "R:Reconnect", "q:Quit"}
	if len(hints) != len(want) {
		t.Fatalf("Hints() = %v, want %v", hints, want)
	}
	for i, h := range hints {
		if got := h.Key + ":" + h.Description; got != want[i] {
			t.Errorf("hint %d = %s, want %s", i, got, want[i])
		}
	}
}
