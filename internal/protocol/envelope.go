// Package protocol defines the push-channel wire format: one JSON object per
// message, discriminated by its "type" field.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Inbound event types.
const (
	TypePong                = "pong"
	TypeConversationUpdated = "conversation_updated"
	TypeNewMessage          = "new_message"
	TypeStatsUpdated        = "stats_updated"
	TypeFCSStatus           = "fcs_status"
	TypeDocumentProcessed   = "document_processed"
)

// Outbound control types.
const (
	TypeSubscribe               = "subscribe"
	TypePing                    = "ping"
	TypeSubscribeConversation   = "subscribe_conversation"
	TypeUnsubscribeConversation = "unsubscribe_conversation"
)

// Local event types published by the connection manager. They never cross
// the wire.
const (
	TypeConnected       = "connected"
	TypeConnectionState = "connection_state"
	TypeReconnectFailed = "reconnect_failed"
)

// ErrMissingType is returned for envelopes without a "type" field.
var ErrMissingType = errors.New("envelope missing type")

// Envelope is a decoded wire message. Raw holds the complete original
// object so handlers can decode their type-specific fields.
type Envelope struct {
	Type string
	Raw  json.RawMessage
}

// Decode parses one wire message.
func Decode(data []byte) (Envelope, error) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if head.Type == nil || *head.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return Envelope{Type: *head.Type, Raw: append(json.RawMessage(nil), data...)}, nil
}

// New builds an envelope from a type and a payload whose fields are merged
// next to "type". A nil payload produces {"type": t}.
func New(t string, payload any) (Envelope, error) {
	fields := map[string]json.RawMessage{}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
		}
		if err := json.Unmarshal(b, &fields); err != nil {
			return Envelope{}, fmt.Errorf("%s payload is not an object: %w", t, err)
		}
	}
	typ, _ := json.Marshal(t)
	fields["type"] = typ
	raw, err := json.Marshal(fields)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Raw: raw}, nil
}

// MustNew is New for payloads known to encode.
func MustNew(t string, payload any) Envelope {
	env, err := New(t, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Unmarshal decodes the envelope's fields into v.
func (e Envelope) Unmarshal(v any) error {
	if len(e.Raw) == 0 {
		return fmt.Errorf("decode %s: empty envelope", e.Type)
	}
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return nil
}

// ID is an identifier the server may send either as a JSON string or a
// number. It is always carried as a string.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %s", b)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier.
func (id ID) String() string { return string(id) }

// Timestamp accepts RFC 3339 strings or epoch milliseconds.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		ts.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "" {
			ts.Time = time.Time{}
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			ts.Time = time.UnixMilli(ms)
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		ts.Time = t
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("timestamp must be a string or number: %s", b)
	}
	ts.Time = time.UnixMilli(ms)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}
