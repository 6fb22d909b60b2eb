package sqlite

import (
	"context"
	"fmt"

	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
)

func (s *sqliteClient) BlacklistAdd(ctx context.Context, entry *db.BlacklistEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO blacklist (chat_id, user_id, reason, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
		reason = excluded.reason,
		added_at = excluded.added_at
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ChatID,
		entry.UserID,
		entry.Reason,
		entry.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add blacklist entry: %w", err)
	}
	return nil
}

func (s *sqliteClient) BlacklistRemove(ctx context.Context, chatID, userID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove blacklist entry: %w", err)
	}
	return nil
}

func (s *sqliteClient) BlacklistList(ctx context.Context, chatID int64) ([]*db.BlacklistEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries := []*db.BlacklistEntry{}
	err := s.db.SelectContext(ctx, &entries, `SELECT * FROM blacklist WHERE chat_id = ? ORDER BY added_at DESC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklist: %w", err)
	}
	return entries, nil
}

func (s *sqliteClient) BlacklistContains(ctx context.Context, chatID, userID int64) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM blacklist WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return count > 0, err
}
