package sync

import (
	"context"

	"github.com/matheus3301/leadsync/internal/api"
	"github.com/matheus3301/leadsync/internal/convstore"
	"github.com/matheus3301/leadsync/internal/protocol"
	"go.uber.org/zap"
)

// API is the collaborator HTTP surface the engine needs.
type API interface {
	ListConversations(ctx context.Context, opts api.ListOptions) (api.Page, error)
	Messages(ctx context.Context, conversationID string) ([]protocol.Message, error)
	SendMessage(ctx context.Context, conversationID, content, requestID string) (protocol.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
	ClearOffer(ctx context.Context, conversationID string) error
}

// Connection is the part of the push connection manager the engine drives.
// Methods are called on the loop.
type Connection interface {
	Reconnect()
	FocusRegained()
	SubscribeConversation(id string) error
	UnsubscribeConversation(id string) error
}

// Composer is the message input. Restore puts text back after a failed send.
type Composer interface {
	Restore(text string)
}

// Notifier surfaces messages to the user.
type Notifier interface {
	Info(msg string)
	Error(msg string, err error)
}

// StatsSink receives dashboard stats pushed by the server.
type StatsSink interface {
	Stats(stats map[string]any)
}

// DocumentSink receives document analysis progress.
type DocumentSink interface {
	Document(eventType string, ev protocol.DocumentEvent)
}

// Snapshots persists the conversation list between runs.
type Snapshots interface {
	LoadSnapshot() ([]convstore.Summary, error)
	SaveSnapshot(list []convstore.Summary) error
	SetState(key, value string) error
}

// Keys written through Snapshots.SetState.
const (
	StateLastConnected = "last_connected_at"
	StateLastReload    = "last_reload_at"
)

type nopComposer struct{}

func (nopComposer) Restore(string) {}

type nopStats struct{}

func (nopStats) Stats(map[string]any) {}

type nopDocuments struct{}

func (nopDocuments) Document(string, protocol.DocumentEvent) {}

type nopSnapshots struct{}

func (nopSnapshots) LoadSnapshot() ([]convstore.Summary, error) { return nil, nil }
func (nopSnapshots) SaveSnapshot([]convstore.Summary) error { return nil }
func (nopSnapshots) SetState(string, string) error { return nil }

// logNotifier is used when no user-facing notifier is registered.
type logNotifier struct {
	logger *zap.Logger
}

func (n logNotifier) Info(msg string) { n.logger.Info(msg) }

func (n logNotifier) Error(msg string, err error) { n.logger.Warn(msg, zap.Error(err)) }
