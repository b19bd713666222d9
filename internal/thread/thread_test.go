package thread

import (
	"testing"
	"time"
)

type recView struct {
	shows int
	last  []Message
}

func (v *recView) ShowThread(_ string, msgs []Message) {
	v.shows++
	v.last = msgs
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestConfirmReplacesTempID(t *testing.T) {
	v := &recView{}
	th := New(v)
	th.Reset("42")
	th.AppendOptimistic("tmp-1", "Hello", t0)

	if !th.Confirm("tmp-1", "srv-9", t0.Add(time.Second)) {
		t.Fatal("Confirm() = false")
	}
	msgs := th.Messages()
	if len(msgs) != 1 || msgs[0].ID != "srv-9" || msgs[0].Pending || !msgs[0].At.Equal(t0.Add(time.Second)) {
		t.Errorf("messages = %+v", msgs)
	}
	if len(v.last) != 1 {
		t.Errorf("view saw %d messages", len(v.last))
	}
}

func TestConfirmWhenServerCopyAlreadyShown(t *testing.T) {
	th := New(nil)
	th.AppendOptimistic("tmp-1", "Hello", t0)
	th.AppendInbound(Message{ID: "srv-9", Content: "Hello", At: t0})

	th.Confirm("tmp-1", "srv-9", t0)
	if th.Count("Hello") != 1 {
		t.Errorf("Count(Hello) = %d, want 1", th.Count("Hello"))
	}
}

func TestAppendInboundIgnoresDuplicates(t *testing.T) {
	th := New(nil)
	if !th.AppendInbound(Message{ID: "m1", Content: "a"}) {
		t.Fatal("first append rejected")
	}
	if th.AppendInbound(Message{ID: "m1", Content: "a"}) {
		t.Error("duplicate id appended")
	}
	if th.Len() != 1 {
		t.Errorf("Len() = %d, want 1", th.Len())
	}
}

func TestRemoveAndReplace(t *testing.T) {
	th := New(nil)
	th.AppendOptimistic("tmp-1", "a", t0)
	th.AppendOptimistic("tmp-2", "b", t0)

	if !th.Remove("tmp-1") || th.Remove("tmp-1") {
		t.Error("Remove() results wrong")
	}

	th.Replace([]Message{{ID: "m1", Content: "old"}})
	msgs := th.Messages()
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "tmp-2" {
		t.Errorf("after Replace = %+v, want loaded then pending", msgs)
	}
}

func TestResetClears(t *testing.T) {
	th := New(nil)
	th.AppendInbound(Message{ID: "m1"})
	th.Reset("7")
	if th.Len() != 0 || th.ConversationID() != "7" {
		t.Errorf("Len=%d id=%q", th.Len(), th.ConversationID())
	}
}
