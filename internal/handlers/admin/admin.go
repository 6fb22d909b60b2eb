package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/Wenbobobo/AntiSpamBOT/internal/bot"
	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
	"github.com/Wenbobobo/AntiSpamBOT/internal/i18n"
)

const panelCallbackPrefix = "jadm:"

// Admin is the chat-administrator surface: the settings panel, direct
// setting writes, case stats and the blacklist.
type Admin struct {
	s      bot.Service
	access *accessChecker
	lang   string
}

func New(s bot.Service, lang string) *Admin {
	return &Admin{
		s:      s,
		access: newAccessChecker(s.GetBot()),
		lang:   lang,
	}
}

func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error) {
	entry := a.getLogEntry().WithField("method", "Handle")

	if u.CallbackQuery != nil && strings.HasPrefix(u.CallbackQuery.Data, panelCallbackPrefix) {
		if err := a.handlePanelCallback(ctx, u.CallbackQuery, user); err != nil {
			entry.WithError(err).Error("cant handle panel callback")
		}
		return false, nil
	}

	// admin promotions and demotions arrive as member updates, the
	// cached administrator list is stale from that moment
	if u.ChatMember != nil {
		a.access.invalidate(u.ChatMember.Chat.ID)
		return true, nil
	}
	if u.MyChatMember != nil {
		a.access.invalidate(u.MyChatMember.Chat.ID)
		return true, nil
	}

	if u.Message == nil || !u.Message.IsCommand() || chat == nil || user == nil {
		return true, nil
	}

	switch u.Message.Command() {
	case "chats":
		return false, a.handleChats(ctx, u.Message, chat, user)
	case "config":
		return false, a.handleConfig(ctx, u.Message, chat, user)
	case "set":
		return false, a.handleSet(ctx, u.Message, chat, user)
	case "stats":
		return false, a.handleStats(ctx, u.Message, chat, user)
	case "blacklist":
		return false, a.handleBlacklist(ctx, u.Message, chat, user)
	}
	return true, nil
}

// handleChats is the owner's chat picker, private chat only.
func (a *Admin) handleChats(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	if !chat.IsPrivate() || !a.access.isOwner(user.ID) {
		return nil
	}
	chats, err := a.s.GetDB().ListChats(ctx)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		a.send(chat.ID, i18n.Get("No known chats yet.", a.lang))
		return nil
	}

	rows := make([][]api.InlineKeyboardButton, 0, len(chats))
	for _, cm := range chats {
		title := cm.Title
		if title == "" {
			title = strconv.FormatInt(cm.ID, 10)
		}
		rows = append(rows, api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(title, panelData(cm.ID, opOpen)),
		))
	}
	reply := api.NewMessage(chat.ID, i18n.Get("Pick a chat to configure:", a.lang))
	markup := api.NewInlineKeyboardMarkup(rows...)
	reply.ReplyMarkup = &markup
	if _, err := a.s.GetBot().Send(reply); err != nil {
		return err
	}
	return nil
}

// targetChat resolves which chat a command manages: the group it was sent
// in, or the explicit <chat_id> argument of the private form.
func targetChat(chat *api.Chat, args []string) (int64, []string, bool) {
	if !chat.IsPrivate() {
		return chat.ID, args, true
	}
	if len(args) < 1 {
		return 0, nil, false
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, nil, false
	}
	return chatID, args[1:], true
}

func (a *Admin) handleConfig(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	chatID, _, ok := targetChat(chat, strings.Fields(msg.CommandArguments()))
	if !ok {
		a.send(chat.ID, i18n.Get("Usage: /config <chat_id>", a.lang))
		return nil
	}
	allowed, err := a.access.canManage(ctx, chatID, user.ID)
	if err != nil || !allowed {
		return err
	}

	text, markup, err := a.renderPanel(ctx, chatID)
	if err != nil {
		return err
	}
	reply := api.NewMessage(chat.ID, text)
	reply.ReplyMarkup = &markup
	_, err = a.s.GetBot().Send(reply)
	return err
}

func (a *Admin) handleSet(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	chatID, args, ok := targetChat(chat, strings.Fields(msg.CommandArguments()))
	if !ok {
		a.send(chat.ID, i18n.Get("Usage: /set <chat_id> <setting> <value>", a.lang))
		return nil
	}
	allowed, err := a.access.canManage(ctx, chatID, user.ID)
	if err != nil || !allowed {
		return err
	}

	if len(args) != 2 {
		a.send(chat.ID, i18n.Get("Usage: /set <setting> <value>", a.lang))
		return nil
	}
	if err := a.s.SetSetting(ctx, chatID, args[0], args[1]); err != nil {
		a.send(chat.ID, fmt.Sprintf(i18n.Get("Can't set %s: %v", a.lang), args[0], err))
		return nil
	}
	a.send(chat.ID, fmt.Sprintf(i18n.Get("Updated %s to %s.", a.lang), args[0], args[1]))
	return nil
}

func (a *Admin) handleStats(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	chatID, _, ok := targetChat(chat, strings.Fields(msg.CommandArguments()))
	if !ok {
		a.send(chat.ID, i18n.Get("Usage: /stats <chat_id>", a.lang))
		return nil
	}
	allowed, err := a.access.canManage(ctx, chatID, user.ID)
	if err != nil || !allowed {
		return err
	}

	cases, err := a.s.GetDB().ListRecentCases(ctx, chatID, 10)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		a.send(chat.ID, i18n.Get("No cases in this chat yet.", a.lang))
		return nil
	}

	var b strings.Builder
	b.WriteString(i18n.Get("Recent cases:", a.lang))
	for _, c := range cases {
		b.WriteString(fmt.Sprintf("\n#%d: %s, %s",
			c.ID, i18n.Get(string(c.Status), a.lang), c.OpenedAt.Format("2006-01-02 15:04")))
	}
	a.send(chat.ID, b.String())
	return nil
}

func (a *Admin) handleBlacklist(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	chatID, args, ok := targetChat(chat, strings.Fields(msg.CommandArguments()))
	if !ok {
		a.send(chat.ID, i18n.Get("Usage: /blacklist <chat_id> [add <user_id> [reason] | remove <user_id>]", a.lang))
		return nil
	}
	allowed, err := a.access.canManage(ctx, chatID, user.ID)
	if err != nil || !allowed {
		return err
	}

	if len(args) >= 2 && args[0] == "add" {
		userID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			a.send(chat.ID, i18n.Get("Usage: /blacklist add <user_id> [reason]", a.lang))
			return nil
		}
		reason := strings.Join(args[2:], " ")
		if reason == "" {
			reason = "manual"
		}
		if err := a.s.GetDB().BlacklistAdd(ctx, &db.BlacklistEntry{
			ChatID:  chatID,
			UserID:  userID,
			Reason:  reason,
			AddedAt: time.Now(),
		}); err != nil {
			return err
		}
		a.send(chat.ID, fmt.Sprintf(i18n.Get("Added %d to the blacklist.", a.lang), userID))
		return nil
	}
	if len(args) == 2 && args[0] == "remove" {
		userID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			a.send(chat.ID, i18n.Get("Usage: /blacklist remove <user_id>", a.lang))
			return nil
		}
		if err := a.s.GetDB().BlacklistRemove(ctx, chatID, userID); err != nil {
			return err
		}
		if err := bot.UnbanUserFromChat(ctx, a.s.GetBot(), userID, chatID); err != nil {
			a.getLogEntry().WithError(err).Debug("cant unban removed user")
		}
		a.send(chat.ID, fmt.Sprintf(i18n.Get("Removed %d from the blacklist.", a.lang), userID))
		return nil
	}

	entries, err := a.s.GetDB().BlacklistList(ctx, chatID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.send(chat.ID, i18n.Get("The blacklist is empty.", a.lang))
		return nil
	}
	var b strings.Builder
	b.WriteString(i18n.Get("Blacklisted users:", a.lang))
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("\n%d: %s", e.UserID, e.Reason))
	}
	a.send(chat.ID, b.String())
	return nil
}

func (a *Admin) send(chatID int64, text string) {
	if _, err := a.s.GetBot().Send(api.NewMessage(chatID, text)); err != nil {
		a.getLogEntry().WithError(err).Debug("cant send message")
	}
}

func (a *Admin) getLogEntry() *log.Entry {
	return log.WithField("context", "admin")
}
