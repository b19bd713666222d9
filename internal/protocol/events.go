package protocol

import "encoding/json"

// Message is a chat message as carried by new_message and the
// load-messages call.
type Message struct {
	ID              ID        `json:"id"`
	Content         string    `json:"content"`
	CreatedAt       Timestamp `json:"createdAt"`
	Direction       string    `json:"direction,omitempty"`
	ClientRequestID string    `json:"clientRequestId,omitempty"`
}

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// NewMessage is the new_message payload.
type NewMessage struct {
	ConversationID ID      `json:"conversationId"`
	DisplayName    string  `json:"displayName,omitempty"`
	Message        Message `json:"message"`
}

// ConversationUpdated is the conversation_updated payload. Badge flags stay
// raw because the server encodes them inconsistently; an absent field means
// "unchanged".
type ConversationUpdated struct {
	ConversationID ID              `json:"conversationId"`
	DisplayName    *string         `json:"displayName,omitempty"`
	LastMessage    *string         `json:"lastMessage,omitempty"`
	LastActivity   *Timestamp      `json:"lastActivity,omitempty"`
	UnreadCount    *int            `json:"unreadCount,omitempty"`
	HasOffer       json.RawMessage `json:"hasOffer,omitempty"`
	HasNewBank     json.RawMessage `json:"hasNewBank,omitempty"`
}

// StatsUpdated is the stats_updated payload.
type StatsUpdated struct {
	Stats map[string]any `json:"stats"`
}

// DocumentEvent covers fcs_status and document_processed. Fields other than
// the conversation are passed through untouched.
type DocumentEvent struct {
	ConversationID ID     `json:"conversationId"`
	DocumentID     ID     `json:"documentId,omitempty"`
	Status         string `json:"status,omitempty"`
}

// Subscribe announces the session after connect. The subscription body is
// nested under "data" because it carries its own "type" key.
type Subscribe struct {
	Data SubscribeData `json:"data"`
}

// SubscribeData names what the session subscribes to.
type SubscribeData struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// SubscriptionConversations is the only subscription kind the console uses.
const SubscriptionConversations = "conversations"

// ConversationRoom joins or leaves a per-conversation room.
type ConversationRoom struct {
	ConversationID string `json:"conversationId"`
}

// ConnectionState is the payload of the local connection_state event.
type ConnectionState struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Attempt int    `json:"attempt"`
}

// ReconnectFailed is the payload of the local reconnect_failed event.
type ReconnectFailed struct {
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}
