package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iamwavecut/tool"

	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
)

func (s *sqliteClient) UpsertChat(ctx context.Context, chatID int64, title string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO chats (id, title, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		updated_at = excluded.updated_at
	`
	return tool.Err(s.db.ExecContext(ctx, query, chatID, title, time.Now().UTC()))
}

func (s *sqliteClient) ListChats(ctx context.Context) ([]db.ChatMeta, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var chats []db.ChatMeta
	err := s.db.SelectContext(ctx, &chats, `SELECT * FROM chats ORDER BY updated_at DESC`)
	return chats, err
}

func (s *sqliteClient) GetChatTitle(ctx context.Context, chatID int64) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var title string
	err := s.db.GetContext(ctx, &title, `SELECT title FROM chats WHERE id = ?`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", db.ErrNotFound
		}
		return "", err
	}
	return title, nil
}

func (s *sqliteClient) GetChatOverrides(ctx context.Context, chatID int64) (db.SettingsOverrides, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	overrides := db.SettingsOverrides{}
	err := s.db.GetContext(ctx, &overrides, `SELECT settings FROM chats WHERE id = ?`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get chat overrides: %w", err)
	}
	return overrides, nil
}

func (s *sqliteClient) SetChatOverrides(ctx context.Context, chatID int64, overrides db.SettingsOverrides) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO chats (id, settings, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		settings = excluded.settings,
		updated_at = excluded.updated_at
	`
	return tool.Err(s.db.ExecContext(ctx, query, chatID, overrides, time.Now().UTC()))
}
