// Package sync reconciles pushed events, optimistic user actions and
// collaborator API results into one conversation list.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/leadsync/internal/api"
	"github.com/matheus3301/leadsync/internal/badge"
	"github.com/matheus3301/leadsync/internal/bus"
	"github.com/matheus3301/leadsync/internal/convstore"
	"github.com/matheus3301/leadsync/internal/ledger"
	"github.com/matheus3301/leadsync/internal/loop"
	"github.com/matheus3301/leadsync/internal/present"
	"github.com/matheus3301/leadsync/internal/protocol"
	"github.com/matheus3301/leadsync/internal/thread"
	"go.uber.org/zap"
)

// Engine owns the conversation list and the open thread. Its state is
// touched only on the loop; the exported actions post themselves there.
type Engine struct {
	cfg    Config
	loop   *loop.Loop
	bus    *bus.Dispatcher
	conn   Connection
	api    API
	logger *zap.Logger

	ledger   *ledger.Ledger
	store    *convstore.Store
	animator *present.Animator
	thread   *thread.Thread

	composer  Composer
	notifier  Notifier
	stats     StatsSink
	documents DocumentSink
	snapshots Snapshots

	ctx     context.Context
	cancel  context.CancelFunc
	handles []registration

	search      string
	reloadSeq   uint64
	openSeq     uint64
	nextOffset  int
	hasMore     bool
	loadingMore bool
	lastPong    time.Time

	// inflight maps the temp id of each send awaiting its HTTP response to
	// whether a push echo has confirmed it meanwhile.
	inflight map[string]bool
}

type registration struct {
	eventType string
	handle    bus.Handle
}

// Start registers the event handlers, shows the last saved list and loads
// a fresh one.
func (e *Engine) Start() {
	e.on(protocol.TypeNewMessage, e.onNewMessage)
	e.on(protocol.TypeConversationUpdated, e.onConversationUpdated)
	e.on(protocol.TypeStatsUpdated, e.onStatsUpdated)
	e.on(protocol.TypeFCSStatus, e.onDocument)
	e.on(protocol.TypeDocumentProcessed, e.onDocument)
	e.on(protocol.TypePong, e.onPong)
	e.on(protocol.TypeConnected, e.onConnected)
	e.on(protocol.TypeReconnectFailed, e.onReconnectFailed)

	e.loop.Post(func() {
		e.restoreSnapshot()
		e.reload()
	})
}

// Stop unregisters the handlers, saves the list and cancels in-flight
// requests.
func (e *Engine) Stop(ctx context.Context) error {
	for _, r := range e.handles {
		e.bus.Off(r.eventType, r.handle)
	}
	e.handles = nil
	err := e.loop.Do(ctx, e.saveSnapshot)
	e.cancel()
	return err
}

func (e *Engine) on(eventType string, h bus.Handler) {
	e.handles = append(e.handles, registration{eventType: eventType, handle: e.bus.On(eventType, h)})
}

// Store returns the conversation store. Loop-only.
func (e *Engine) Store() *convstore.Store { return e.store }

// Thread returns the open conversation's messages. Loop-only.
func (e *Engine) Thread() *thread.Thread { return e.thread }

// Ledger returns the pending-send ledger. Loop-only.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Animator returns the list animator. Loop-only.
func (e *Engine) Animator() *present.Animator { return e.animator }

// Open makes id the open conversation.
func (e *Engine) Open(id string) { e.loop.Post(func() { e.open(id) }) }

// Close closes the open conversation.
func (e *Engine) Close() { e.loop.Post(e.close) }

// Send sends text to the open conversation.
func (e *Engine) Send(text string) { e.loop.Post(func() { e.send(text) }) }

// ClearOffer clears the offer badge of id.
func (e *Engine) ClearOffer(id string) { e.loop.Post(func() { e.clearOffer(id) }) }

// Reload replaces the list with the first page matching search.
func (e *Engine) Reload(search string) {
	e.loop.Post(func() {
		e.search = search
		e.reload()
	})
}

// LoadMore appends the next page of the list.
func (e *Engine) LoadMore() { e.loop.Post(e.loadMore) }

// Reconnect forces a fresh push connection.
func (e *Engine) Reconnect() { e.loop.Post(e.conn.Reconnect) }

// FocusRegained reconnects if the push connection is down.
func (e *Engine) FocusRegained() { e.loop.Post(e.conn.FocusRegained) }

func (e *Engine) onNewMessage(env protocol.Envelope) error {
	var ev protocol.NewMessage
	if err := env.Unmarshal(&ev); err != nil {
		return err
	}
	id := ev.ConversationID.String()
	if id == "" {
		return errors.New("new_message without conversationId")
	}
	msg := ev.Message
	now := e.loop.Now()
	at := msg.CreatedAt.Time
	if at.IsZero() {
		at = now
	}
	e.ledger.Prune(now)

	patch := convstore.Patch{LastMessagePreview: &msg.Content, LastActivity: &at}
	if ev.DisplayName != "" {
		patch.DisplayName = &ev.DisplayName
	}
	e.store.Upsert(id, patch)

	open := id == e.store.Open()
	var (
		entry   ledger.Entry
		matched bool
	)
	switch {
	case open && msg.Direction != protocol.DirectionInbound:
		entry, matched = e.ledger.Match(id, msg.Content, msg.ClientRequestID, now)
	case msg.ClientRequestID != "":
		// Only the exact request id can tie a lead's message or another
		// conversation's event to a local send.
		entry, matched = e.ledger.Match(id, "", msg.ClientRequestID, now)
	}
	if _, ok := e.inflight[entry.TempID]; matched && ok {
		e.inflight[entry.TempID] = true
	}

	switch {
	case matched:
		if open {
			e.thread.Confirm(entry.TempID, msg.ID.String(), msg.CreatedAt.Time)
		}
		e.logger.Debug("echo reconciled", zap.String("conversation", id), zap.String("temp_id", entry.TempID))
	case open:
		e.thread.AppendInbound(thread.Message{
			ID:        msg.ID.String(),
			Content:   msg.Content,
			At:        at,
			Direction: msg.Direction,
		})
		e.markRead(id)
	case msg.Direction != protocol.DirectionOutbound:
		e.store.IncrementUnread(id)
	}

	e.store.MoveToTop(id)
	if !matched {
		e.animator.Highlight(id)
	}
	return nil
}

func (e *Engine) onConversationUpdated(env protocol.Envelope) error {
	var ev protocol.ConversationUpdated
	if err := env.Unmarshal(&ev); err != nil {
		return err
	}
	id := ev.ConversationID.String()
	if id == "" {
		return errors.New("conversation_updated without conversationId")
	}

	patch := convstore.Patch{
		DisplayName:        ev.DisplayName,
		LastMessagePreview: ev.LastMessage,
		UnreadCount:        ev.UnreadCount,
	}
	if ev.LastActivity != nil {
		patch.LastActivity = &ev.LastActivity.Time
	}
	e.store.Upsert(id, patch)

	var errs []error
	if badge.Present(ev.HasOffer) {
		errs = append(errs, e.store.SetBadge(id, badge.Offer, ev.HasOffer))
	}
	if badge.Present(ev.HasNewBank) {
		errs = append(errs, e.store.SetBadge(id, badge.NewBank, ev.HasNewBank))
	}

	e.store.MoveToTop(id)
	e.animator.Highlight(id)
	return errors.Join(errs...)
}

func (e *Engine) onStatsUpdated(env protocol.Envelope) error {
	var ev protocol.StatsUpdated
	if err := env.Unmarshal(&ev); err != nil {
		return err
	}
	e.stats.Stats(ev.Stats)
	return nil
}

func (e *Engine) onDocument(env protocol.Envelope) error {
	var ev protocol.DocumentEvent
	if err := env.Unmarshal(&ev); err != nil {
		return err
	}
	e.documents.Document(env.Type, ev)
	return nil
}

func (e *Engine) onPong(protocol.Envelope) error {
	e.lastPong = e.loop.Now()
	e.logger.Debug("pong")
	return nil
}

// onConnected catches up on whatever was missed while disconnected.
func (e *Engine) onConnected(protocol.Envelope) error {
	if err := e.snapshots.SetState(StateLastConnected, e.loop.Now().UTC().Format(time.RFC3339)); err != nil {
		e.logger.Warn("failed to record connect time", zap.Error(err))
	}
	e.reload()
	if id := e.store.Open(); id != "" {
		e.loadMessages(id)
	}
	return nil
}

func (e *Engine) onReconnectFailed(env protocol.Envelope) error {
	var ev protocol.ReconnectFailed
	if err := env.Unmarshal(&ev); err != nil {
		return err
	}
	var cause error
	if ev.Error != "" {
		cause = errors.New(ev.Error)
	}
	e.notifier.Error(fmt.Sprintf("Live updates stopped after %d reconnect attempts. Press R to retry.", ev.Attempts), cause)
	return nil
}

// LastPong returns when the server last answered a heartbeat. Loop-only.
func (e *Engine) LastPong() time.Time { return e.lastPong }

func (e *Engine) open(id string) {
	prev := e.store.Open()
	if prev == id {
		return
	}
	if prev != "" {
		if err := e.conn.UnsubscribeConversation(prev); err != nil {
			e.logger.Warn("leave conversation room", zap.String("conversation", prev), zap.Error(err))
		}
	}
	e.store.SetOpen(id)
	e.thread.Reset(id)
	if id == "" {
		return
	}
	if err := e.conn.SubscribeConversation(id); err != nil {
		e.logger.Warn("join conversation room", zap.String("conversation", id), zap.Error(err))
	}
	e.loadMessages(id)
	e.markRead(id)
}

func (e *Engine) close() { e.open("") }

func (e *Engine) loadMessages(id string) {
	e.openSeq++
	seq := e.openSeq
	e.async(func(ctx context.Context) func() {
		msgs, err := e.api.Messages(ctx, id)
		return func() {
			if seq != e.openSeq || e.store.Open() != id {
				return
			}
			if err != nil {
				e.logger.Warn("failed to load messages", zap.String("conversation", id), zap.Error(err))
				e.notifier.Error("Could not load messages", err)
				return
			}
			out := make([]thread.Message, 0, len(msgs))
			for _, m := range msgs {
				out = append(out, thread.Message{
					ID:        m.ID.String(),
					Content:   m.Content,
					At:        m.CreatedAt.Time,
					Direction: m.Direction,
				})
			}
			e.thread.Replace(out)
		}
	})
}

// markRead is best effort: failures are logged and the local count stays
// at zero.
func (e *Engine) markRead(id string) {
	e.async(func(ctx context.Context) func() {
		if err := e.api.MarkRead(ctx, id); err != nil {
			e.logger.Warn("mark read failed", zap.String("conversation", id), zap.Error(err))
		}
		return nil
	})
}

func (e *Engine) send(text string) {
	id := e.store.Open()
	if id == "" {
		e.notifier.Info("Open a conversation before sending")
		e.composer.Restore(text)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	now := e.loop.Now()
	entry := e.ledger.Add(id, text, now)
	e.thread.AppendOptimistic(entry.TempID, text, now)
	e.store.Upsert(id, convstore.Patch{LastMessagePreview: &text, LastActivity: &now})
	e.store.MoveToTop(id)

	e.inflight[entry.TempID] = false
	e.async(func(ctx context.Context) func() {
		msg, err := e.api.SendMessage(ctx, id, text, entry.RequestID)
		return func() {
			echoed := e.inflight[entry.TempID]
			delete(e.inflight, entry.TempID)
			if err != nil {
				e.sendFailed(entry, echoed, err)
				return
			}
			e.thread.Confirm(entry.TempID, msg.ID.String(), msg.CreatedAt.Time)
		}
	})
}

// sendFailed rolls back an optimistic send. The ledger entry may already be
// pruned; only a push echo proves the server has the message.
func (e *Engine) sendFailed(entry ledger.Entry, echoed bool, err error) {
	e.ledger.Remove(entry.TempID)
	if echoed {
		e.logger.Warn("send reported failure after echo", zap.String("temp_id", entry.TempID), zap.Error(err))
		return
	}
	e.thread.Remove(entry.TempID)
	e.composer.Restore(entry.Content)
	e.logger.Warn("send failed", zap.String("conversation", entry.ConversationID), zap.Error(err))
	e.notifier.Error("Message not sent", err)
}

// clearOffer hides the badge immediately; the server call is best effort.
func (e *Engine) clearOffer(id string) {
	if err := e.store.SetBadge(id, badge.Offer, false); err != nil {
		e.logger.Warn("clear offer", zap.Error(err))
		return
	}
	e.async(func(ctx context.Context) func() {
		if err := e.api.ClearOffer(ctx, id); err != nil {
			e.logger.Warn("clear offer failed", zap.String("conversation", id), zap.Error(err))
		}
		return nil
	})
}

func (e *Engine) reload() {
	e.reloadSeq++
	seq := e.reloadSeq
	opts := api.ListOptions{Limit: e.cfg.PageSize, Search: e.search}
	e.async(func(ctx context.Context) func() {
		page, err := e.api.ListConversations(ctx, opts)
		return func() {
			if seq != e.reloadSeq {
				return
			}
			if err != nil {
				e.logger.Warn("conversation reload failed", zap.Error(err))
				e.notifier.Error("Could not refresh conversations", err)
				return
			}
			e.store.ReplaceAll(summaries(page.Conversations))
			e.nextOffset = len(page.Conversations)
			e.hasMore = page.HasMore
			e.loadingMore = false
			e.saveSnapshot()
			if err := e.snapshots.SetState(StateLastReload, e.loop.Now().UTC().Format(time.RFC3339)); err != nil {
				e.logger.Warn("failed to record reload time", zap.Error(err))
			}
		}
	})
}

func (e *Engine) loadMore() {
	if !e.hasMore || e.loadingMore {
		return
	}
	e.loadingMore = true
	seq := e.reloadSeq
	opts := api.ListOptions{Limit: e.cfg.PageSize, Offset: e.nextOffset, Search: e.search}
	e.async(func(ctx context.Context) func() {
		page, err := e.api.ListConversations(ctx, opts)
		return func() {
			if seq != e.reloadSeq {
				return
			}
			e.loadingMore = false
			if err != nil {
				e.logger.Warn("load more failed", zap.Error(err))
				return
			}
			e.store.Append(summaries(page.Conversations))
			e.nextOffset += len(page.Conversations)
			e.hasMore = page.HasMore
		}
	})
}

func (e *Engine) restoreSnapshot() {
	list, err := e.snapshots.LoadSnapshot()
	if err != nil {
		e.logger.Warn("failed to load saved conversations", zap.Error(err))
		return
	}
	if len(list) == 0 || e.store.Len() > 0 {
		return
	}
	e.store.ReplaceAll(list)
	e.logger.Info("restored saved conversations", zap.Int("count", len(list)))
}

func (e *Engine) saveSnapshot() {
	if err := e.snapshots.SaveSnapshot(e.store.Ordered()); err != nil {
		e.logger.Warn("failed to save conversations", zap.Error(err))
	}
}

// async runs fn off the loop with a request timeout. The closure it
// returns, if any, is posted back to the loop.
func (e *Engine) async(fn func(ctx context.Context) func()) {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.RequestTimeout)
	go func() {
		defer cancel()
		if done := fn(ctx); done != nil {
			e.loop.Post(done)
		}
	}()
}

func summaries(in []api.Conversation) []convstore.Summary {
	out := make([]convstore.Summary, 0, len(in))
	for _, c := range in {
		out = append(out, convstore.Summary{
			ID:                 c.ID.String(),
			DisplayName:        c.DisplayName,
			LastMessagePreview: c.LastMessage,
			LastActivity:       c.LastActivity.Time,
			UnreadCount:        c.UnreadCount,
			HasOffer:           badge.Truthy(c.HasOffer),
			HasNewBank:         badge.Truthy(c.HasNewBank),
		})
	}
	return out
}
