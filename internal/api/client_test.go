package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matheus3301/leadsync/internal/badge"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithTokenSource(staticToken("tok")))
}

func TestListConversations(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "50" || q.Get("offset") != "100" || q.Get("search") != "ana maria" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"conversations":[
			{"id":1,"displayName":"Ana","lastMessage":"oi","lastActivity":"2026-03-01T10:00:00Z","unreadCount":2,"hasOffer":"1"},
			{"id":"2","displayName":"Bia","unreadCount":0,"hasOffer":false,"hasNewBank":true}
		],"hasMore":true}`))
	})

	page, err := c.ListConversations(context.Background(), ListOptions{Limit: 50, Offset: 100, Search: "ana maria"})
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if !page.HasMore || len(page.Conversations) != 2 {
		t.Fatalf("page = %+v", page)
	}
	first := page.Conversations[0]
	if first.ID != "1" || first.UnreadCount != 2 || !badge.Truthy(first.HasOffer) {
		t.Errorf("first = %+v", first)
	}
	if first.LastActivity.IsZero() {
		t.Error("lastActivity not parsed")
	}
	second := page.Conversations[1]
	if badge.Truthy(second.HasOffer) || !badge.Truthy(second.HasNewBank) {
		t.Errorf("second flags = %s %s", second.HasOffer, second.HasNewBank)
	}
}

func TestListConversationsBareArray(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1},{"id":2}]`))
	})
	page, err := c.ListConversations(context.Background(), ListOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Conversations) != 2 || !page.HasMore {
		t.Errorf("page = %+v", page)
	}
}

func TestSendMessage(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/conversations/42/messages" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
			return
		}
		if body["content"] != "Hello" || body["clientRequestId"] != "req-1" {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"message":{"id":901,"content":"Hello","createdAt":1772359200000,"direction":"outbound","clientRequestId":"req-1"}}`))
	})

	msg, err := c.SendMessage(context.Background(), "42", "Hello", "req-1")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg.ID != "901" || msg.ClientRequestID != "req-1" || msg.CreatedAt.IsZero() {
		t.Errorf("message = %+v", msg)
	}
}

func TestStatusError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conversation locked", http.StatusConflict)
	})

	err := c.MarkRead(context.Background(), "42")
	if !IsStatus(err, http.StatusConflict) {
		t.Fatalf("MarkRead() error = %v, want 409 StatusError", err)
	}
	want := "POST /api/conversations/42/read: status 409: conversation locked"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestClearOfferAndMessages(t *testing.T) {
	var paths []string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.EscapedPath())
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"messages":[{"id":"m1","content":"a"},{"id":"m2","content":"b"}]}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.ClearOffer(context.Background(), "a/b"); err != nil {
		t.Fatalf("ClearOffer() error = %v", err)
	}
	msgs, err := c.Messages(context.Background(), "7")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "b" {
		t.Errorf("messages = %+v", msgs)
	}
	if len(paths) != 2 || paths[0] != "POST /api/conversations/a%2Fb/clear-offer" || paths[1] != "GET /api/conversations/7/messages" {
		t.Errorf("paths = %v", paths)
	}
}

func TestCancelledContext(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.MarkRead(ctx, "1"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
