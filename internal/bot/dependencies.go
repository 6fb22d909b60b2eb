package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
)

// API is the narrow slice of the Telegram client the rest of the code is
// allowed to touch. Keeping it an interface lets tests substitute a fake
// transport.
type API interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
	GetChat(config api.ChatInfoConfig) (api.ChatFullInfo, error)
	GetChatMember(config api.GetChatMemberConfig) (api.ChatMember, error)
	GetChatMembersCount(config api.ChatMemberCountConfig) (int, error)
	GetChatAdministrators(config api.ChatAdministratorsConfig) ([]api.ChatMember, error)
}

// ServiceBot defines bot-specific operations
type ServiceBot interface {
	GetBot() API
}

// ServiceDB defines database-specific operations
type ServiceDB interface {
	GetDB() db.Client
}

// Service defines the core bot service interface
type Service interface {
	ServiceBot
	ServiceDB
	GetSettings(ctx context.Context, chatID int64) (db.ChatSettings, error)
	GetOverrides(ctx context.Context, chatID int64) (db.SettingsOverrides, error)
	SetSetting(ctx context.Context, chatID int64, field, value string) error
}

// Handler defines the interface for all update handlers in the system
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}
