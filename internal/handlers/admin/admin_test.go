package admin

import (
	"context"
	"strings"
	"sync"
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/Wenbobobo/AntiSpamBOT/internal/bot"
	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
)

// panelClient is a db.Client stub with only the admin-surface methods wired.
type panelClient struct {
	db.Client
	mu        sync.Mutex
	overrides map[int64]db.SettingsOverrides
	blacklist map[int64][]*db.BlacklistEntry
	statsChat int64
}

func newPanelClient() *panelClient {
	return &panelClient{
		overrides: map[int64]db.SettingsOverrides{},
		blacklist: map[int64][]*db.BlacklistEntry{},
	}
}

func (c *panelClient) GetChatOverrides(_ context.Context, chatID int64) (db.SettingsOverrides, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overrides[chatID], nil
}

func (c *panelClient) SetChatOverrides(_ context.Context, chatID int64, overrides db.SettingsOverrides) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[chatID] = overrides
	return nil
}

func (c *panelClient) ListRecentCases(_ context.Context, chatID int64, limit int) ([]*db.Case, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statsChat = chatID
	return nil, nil
}

func (c *panelClient) BlacklistAdd(_ context.Context, entry *db.BlacklistEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blacklist[entry.ChatID] = append(c.blacklist[entry.ChatID], entry)
	return nil
}

func newTestAdmin(client *panelClient) (*Admin, *rosterBot) {
	transport := &rosterBot{}
	return New(bot.NewService(transport, client), "en"), transport
}

func command(chat api.Chat, text string) *api.Message {
	return &api.Message{
		MessageID: 5,
		Chat:      chat,
		From:      &api.User{ID: 42},
		Text:      text,
		Entities:  []api.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}},
	}
}

var (
	privateChat = api.Chat{ID: 42, Type: "private"}
	groupChat   = api.Chat{ID: -100123, Type: "supergroup"}
)

func TestPrivateSetTargetsExplicitChat(t *testing.T) {
	t.Parallel()

	client := newPanelClient()
	a, transport := newTestAdmin(client)
	owner := &api.User{ID: 42}

	msg := command(privateChat, "/set -100123 approval_ratio 0.7")
	if err := a.handleSet(context.Background(), msg, &privateChat, owner); err != nil {
		t.Fatalf("private /set: %v", err)
	}
	if got := client.overrides[-100123]["approval_ratio"]; got != "0.7" {
		t.Fatalf("override = %q, want 0.7 on the addressed chat", got)
	}

	// missing chat id means nothing to manage from a private chat
	msg = command(privateChat, "/set approval_ratio 0.7")
	if err := a.handleSet(context.Background(), msg, &privateChat, owner); err != nil {
		t.Fatalf("private /set without chat: %v", err)
	}
	if len(client.overrides) != 1 {
		t.Fatalf("overrides = %v, want no extra writes", client.overrides)
	}
	transport.mu.Lock()
	last := transport.sent[len(transport.sent)-1]
	transport.mu.Unlock()
	if !strings.Contains(last, "Usage") {
		t.Fatalf("reply = %q, want usage hint", last)
	}
}

func TestGroupSetStillTargetsCurrentChat(t *testing.T) {
	t.Parallel()

	client := newPanelClient()
	a, _ := newTestAdmin(client)

	msg := command(groupChat, "/set approval_ratio 0.8")
	if err := a.handleSet(context.Background(), msg, &groupChat, &api.User{ID: 42}); err != nil {
		t.Fatalf("group /set: %v", err)
	}
	if got := client.overrides[groupChat.ID]["approval_ratio"]; got != "0.8" {
		t.Fatalf("override = %q, want 0.8 on the current chat", got)
	}
}

func TestPrivateStatsUsesChatArgument(t *testing.T) {
	t.Parallel()

	client := newPanelClient()
	a, _ := newTestAdmin(client)

	msg := command(privateChat, "/stats -100123")
	if err := a.handleStats(context.Background(), msg, &privateChat, &api.User{ID: 42}); err != nil {
		t.Fatalf("private /stats: %v", err)
	}
	if client.statsChat != -100123 {
		t.Fatalf("stats queried chat %d, want -100123", client.statsChat)
	}
}

func TestPrivateBlacklistTargetsExplicitChat(t *testing.T) {
	t.Parallel()

	client := newPanelClient()
	a, _ := newTestAdmin(client)

	msg := command(privateChat, "/blacklist -100123 add 7 flood")
	if err := a.handleBlacklist(context.Background(), msg, &privateChat, &api.User{ID: 42}); err != nil {
		t.Fatalf("private /blacklist add: %v", err)
	}
	entries := client.blacklist[-100123]
	if len(entries) != 1 || entries[0].UserID != 7 || entries[0].Reason != "flood" {
		t.Fatalf("blacklist entries = %+v, want user 7 with reason flood", entries)
	}
}

func TestPrivateCommandsGatedByAccess(t *testing.T) {
	t.Parallel()

	client := newPanelClient()
	transport := &rosterBot{admins: []api.ChatMember{admin(7, true)}}
	a := New(bot.NewService(transport, client), "en")

	// user 8 is neither owner nor in the admin list
	msg := command(privateChat, "/set -100123 approval_ratio 0.7")
	if err := a.handleSet(context.Background(), msg, &privateChat, &api.User{ID: 8}); err != nil {
		t.Fatalf("non-admin /set: %v", err)
	}
	if len(client.overrides) != 0 {
		t.Fatalf("overrides = %v, want none for a non-admin", client.overrides)
	}
}
