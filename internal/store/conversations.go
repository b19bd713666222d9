package store

import (
	"fmt"
	"time"

	"github.com/matheus3301/leadsync/internal/convstore"
)

// SaveSnapshot replaces the stored conversation list with list, keeping
// its display order.
func (db *DB) SaveSnapshot(list []convstore.Summary) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO conversations (id, position, display_name, last_message_preview, last_activity, unread_count, has_offer, has_new_bank, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			last_message_preview = excluded.last_message_preview,
			last_activity = excluded.last_activity,
			unread_count = excluded.unread_count,
			has_offer = excluded.has_offer,
			has_new_bank = excluded.has_new_bank,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UnixMilli()
	for i, s := range list {
		var activity int64
		if !s.LastActivity.IsZero() {
			activity = s.LastActivity.UnixMilli()
		}
		if _, err := stmt.Exec(s.ID, i, s.DisplayName, s.LastMessagePreview, activity, s.UnreadCount, s.HasOffer, s.HasNewBank, now); err != nil {
			return fmt.Errorf("insert conversation %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored conversation list in display order.
func (db *DB) LoadSnapshot() ([]convstore.Summary, error) {
	rows, err := db.Query(`
		SELECT id, display_name, last_message_preview, last_activity, unread_count, has_offer, has_new_bank
		FROM conversations
		ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var list []convstore.Summary
	for rows.Next() {
		var s convstore.Summary
		var activity int64
		if err := rows.Scan(&s.ID, &s.DisplayName, &s.LastMessagePreview, &activity, &s.UnreadCount, &s.HasOffer, &s.HasNewBank); err != nil {
			return nil, err
		}
		if activity > 0 {
			s.LastActivity = time.UnixMilli(activity).UTC()
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
