package bot

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
)

type service struct {
	bot API
	db  db.Client
}

func NewService(bot API, dbClient db.Client) *service {
	return &service{
		bot: bot,
		db:  dbClient,
	}
}

func (s *service) GetBot() API {
	return s.bot
}

func (s *service) GetDB() db.Client {
	return s.db
}

// GetSettings resolves the chat's effective settings snapshot: persisted
// overrides merged over the process-wide defaults, re-validated.
func (s *service) GetSettings(ctx context.Context, chatID int64) (db.ChatSettings, error) {
	overrides, err := s.db.GetChatOverrides(ctx, chatID)
	if err != nil {
		return db.DefaultChatSettings(), errors.WithMessage(err, "cant get chat overrides")
	}
	return db.ResolveSettings(db.DefaultChatSettings(), overrides)
}

func (s *service) GetOverrides(ctx context.Context, chatID int64) (db.SettingsOverrides, error) {
	return s.db.GetChatOverrides(ctx, chatID)
}

// SetSetting validates a single override against the merged result before
// persisting it, so the stored override map can never resolve out of range.
func (s *service) SetSetting(ctx context.Context, chatID int64, field, value string) error {
	overrides, err := s.db.GetChatOverrides(ctx, chatID)
	if err != nil {
		return errors.WithMessage(err, "cant get chat overrides")
	}
	if overrides == nil {
		overrides = db.SettingsOverrides{}
	}
	overrides[field] = value
	if _, err := db.ResolveSettings(db.DefaultChatSettings(), overrides); err != nil {
		return err
	}
	return s.db.SetChatOverrides(ctx, chatID, overrides)
}
