package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/leadsync/internal/protocol"
)

func TestDispatchInRegistrationOrder(t *testing.T) {
	d := New(nil)
	var order []string
	d.On("new_message", func(protocol.Envelope) error { order = append(order, "first"); return nil })
	d.On("new_message", func(protocol.Envelope) error { order = append(order, "second"); return nil })
	d.On("pong", func(protocol.Envelope) error { order = append(order, "pong"); return nil })

	res := d.Dispatch([]byte(`{"type":"new_message"}`))
	if res.Delivered != 2 || res.Failed != 0 {
		t.Errorf("result = %+v, want 2 delivered", res)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestHandlerFailureDoesNotAbortDispatch(t *testing.T) {
	d := New(nil)
	ran := false
	d.On("x", func(protocol.Envelope) error { return errors.New("bad payload") })
	d.On("x", func(protocol.Envelope) error { panic("boom") })
	d.On("x", func(protocol.Envelope) error { ran = true; return nil })

	res := d.Dispatch([]byte(`{"type":"x"}`))
	if !ran {
		t.Error("handler after failing handlers did not run")
	}
	if res.Failed != 2 || res.Delivered != 1 {
		t.Errorf("result = %+v, want 2 failed 1 delivered", res)
	}

	// The dispatcher stays usable for later events.
	res = d.Dispatch([]byte(`{"type":"x"}`))
	if res.Delivered != 1 {
		t.Errorf("second dispatch result = %+v", res)
	}
}

func TestMalformedEnvelopesAreDropped(t *testing.T) {
	d := New(nil)
	calls := 0
	d.On("", func(protocol.Envelope) error { calls++; return nil })

	for _, raw := range []string{`not json`, `{"no":"type"}`, `{"type":""}`} {
		if res := d.Dispatch([]byte(raw)); res != (Result{}) {
			t.Errorf("Dispatch(%q) = %+v, want zero result", raw, res)
		}
	}
	if calls != 0 {
		t.Errorf("handler called %d times for malformed input", calls)
	}
}

func TestUnknownTypesAreForwarded(t *testing.T) {
	d := New(nil)
	var got protocol.Envelope
	d.On("lead_assigned", func(env protocol.Envelope) error { got = env; return nil })

	d.Dispatch([]byte(`{"type":"lead_assigned","leadId":9}`))
	if got.Type != "lead_assigned" {
		t.Fatalf("handler not invoked for unknown type")
	}
	var body struct {
		LeadID int `json:"leadId"`
	}
	if err := got.Unmarshal(&body); err != nil || body.LeadID != 9 {
		t.Errorf("payload = %+v, err = %v", body, err)
	}
}

func TestOffRemovesFirstMatchAndIsIdempotent(t *testing.T) {
	d := New(nil)
	calls := 0
	h := d.On("x", func(protocol.Envelope) error { calls++; return nil })
	d.On("x", func(protocol.Envelope) error { calls += 10; return nil })

	d.Off("x", h)
	d.Off("x", h)
	d.Off("missing", h)

	if n := d.Handlers("x"); n != 1 {
		t.Errorf("Handlers(x) = %d, want 1", n)
	}
	d.Dispatch([]byte(`{"type":"x"}`))
	if calls != 10 {
		t.Errorf("calls = %d, want 10", calls)
	}
}

func TestHandlerMayRegisterDuringDispatch(t *testing.T) {
	d := New(nil)
	d.On("x", func(protocol.Envelope) error {
		d.On("x", func(protocol.Envelope) error { return nil })
		return nil
	})

	res := d.Dispatch([]byte(`{"type":"x"}`))
	if res.Delivered != 1 {
		t.Errorf("first dispatch delivered %d, want 1 (table snapshot)", res.Delivered)
	}
	if n := d.Handlers("x"); n != 2 {
		t.Errorf("Handlers(x) = %d, want 2", n)
	}
}

func TestWatchPrefix(t *testing.T) {
	d := New(nil)
	ch, unwatch := d.Watch("connection_", 4)
	defer unwatch()

	d.Publish(protocol.MustNew("new_message", nil))
	d.Publish(protocol.MustNew(protocol.TypeConnectionState, protocol.ConnectionState{From: "CONNECTING", To: "CONNECTED"}))

	select {
	case env := <-ch:
		if env.Type != protocol.TypeConnectionState {
			t.Errorf("watched type = %q", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for watched envelope")
	}

	select {
	case env := <-ch:
		t.Errorf("unexpected envelope %q", env.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchDropsOnFullBuffer(t *testing.T) {
	d := New(nil)
	ch, unwatch := d.Watch("t", 1)
	defer unwatch()

	d.Publish(protocol.MustNew("t.one", nil))
	d.Publish(protocol.MustNew("t.two", nil))

	if env := <-ch; env.Type != "t.one" {
		t.Errorf("got %q, want t.one", env.Type)
	}
	select {
	case env := <-ch:
		t.Errorf("unexpected %q after full buffer", env.Type)
	default:
	}
}

func TestUnwatch(t *testing.T) {
	d := New(nil)
	ch, unwatch := d.Watch("", 4)
	unwatch()

	d.Publish(protocol.MustNew("anything", nil))
	select {
	case env := <-ch:
		t.Errorf("received %q after unwatch", env.Type)
	case <-time.After(50 * time.Millisecond):
	}
}
