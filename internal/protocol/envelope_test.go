package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"known type", `{"type":"new_message","conversationId":42}`, TypeNewMessage, false},
		{"unknown type passes", `{"type":"lead_assigned"}`, "lead_assigned", false},
		{"missing type", `{"conversationId":42}`, "", true},
		{"empty type", `{"type":""}`, "", true},
		{"not json", `hello`, "", true},
		{"array", `[1,2]`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if env.Type != tt.want {
				t.Errorf("Type = %q, want %q", env.Type, tt.want)
			}
		})
	}
}

func TestDecodeMissingTypeIsSentinel(t *testing.T) {
	_, err := Decode([]byte(`{}`))
	if !errors.Is(err, ErrMissingType) {
		t.Errorf("error = %v, want ErrMissingType", err)
	}
}

func TestNewMergesPayload(t *testing.T) {
	env := MustNew(TypeSubscribeConversation, ConversationRoom{ConversationID: "42"})

	var got map[string]string
	if err := json.Unmarshal(env.Raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != TypeSubscribeConversation || got["conversationId"] != "42" {
		t.Errorf("envelope = %v", got)
	}

	ping := MustNew(TypePing, nil)
	if string(ping.Raw) != `{"type":"ping"}` {
		t.Errorf("ping = %s, want {\"type\":\"ping\"}", ping.Raw)
	}
}

func TestSubscribeKeepsEnvelopeType(t *testing.T) {
	env := MustNew(TypeSubscribe, Subscribe{Data: SubscribeData{Type: SubscriptionConversations, UserID: "u1"}})
	decoded, err := Decode(env.Raw)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Type != TypeSubscribe {
		t.Errorf("Type = %q, want subscribe", decoded.Type)
	}
	var sub Subscribe
	if err := decoded.Unmarshal(&sub); err != nil {
		t.Fatal(err)
	}
	if sub.Data.Type != SubscriptionConversations || sub.Data.UserID != "u1" {
		t.Errorf("subscribe data = %+v", sub.Data)
	}
}

func TestIDAcceptsStringAndNumber(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":42,"b":"conv-7","c":null}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != "42" || v.B != "conv-7" || v.C != "" {
		t.Errorf("ids = %q %q %q", v.A, v.B, v.C)
	}

	if err := json.Unmarshal([]byte(`{"a":true}`), &v); err == nil {
		t.Error("expected error for boolean id")
	}
}

func TestTimestampForms(t *testing.T) {
	want := time.UnixMilli(1700000000000)
	for _, in := range []string{`1700000000000`, `"1700000000000"`, `"` + want.UTC().Format(time.RFC3339Nano) + `"`} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(in), &ts); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", in, err)
		}
		if !ts.Equal(want) {
			t.Errorf("Unmarshal(%s) = %v, want %v", in, ts.Time, want)
		}
	}

	var zero Timestamp
	if err := json.Unmarshal([]byte(`null`), &zero); err != nil || !zero.IsZero() {
		t.Errorf("null timestamp = %v, %v", zero.Time, err)
	}
}
