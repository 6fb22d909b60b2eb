package admin

import (
	"context"
	"strconv"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/Wenbobobo/AntiSpamBOT/internal/bot"
	"github.com/Wenbobobo/AntiSpamBOT/internal/config"
)

const adminCacheTTL = 5 * time.Minute

type adminSet struct {
	ids     map[int64]struct{}
	expires time.Time
}

// accessChecker answers "may this user manage this chat" from a TTL'd
// administrator list, collapsing concurrent refreshes per chat.
type accessChecker struct {
	bot bot.API

	mu    sync.RWMutex
	cache map[int64]adminSet
	group singleflight.Group
}

func newAccessChecker(botAPI bot.API) *accessChecker {
	return &accessChecker{
		bot:   botAPI,
		cache: map[int64]adminSet{},
	}
}

func (ac *accessChecker) isOwner(userID int64) bool {
	for _, id := range config.Get().OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (ac *accessChecker) canManage(ctx context.Context, chatID, userID int64) (bool, error) {
	if ac.isOwner(userID) {
		return true, nil
	}

	admins, err := ac.chatAdmins(ctx, chatID)
	if err == nil {
		_, ok := admins[userID]
		return ok, nil
	}

	// some chats hide the administrator list, ask about the one member
	member, err := ac.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			UserID:     userID,
			ChatConfig: api.ChatConfig{ChatID: chatID},
		},
	})
	if err != nil {
		return false, errors.WithMessage(err, "cant get chat member")
	}
	return member.IsCreator() || (member.IsAdministrator() && member.CanRestrictMembers), nil
}

func (ac *accessChecker) chatAdmins(ctx context.Context, chatID int64) (map[int64]struct{}, error) {
	ac.mu.RLock()
	cached, ok := ac.cache[chatID]
	ac.mu.RUnlock()
	if ok && time.Now().Before(cached.expires) {
		return cached.ids, nil
	}

	v, err, _ := ac.group.Do(strconv.FormatInt(chatID, 10), func() (interface{}, error) {
		admins, err := ac.bot.GetChatAdministrators(api.ChatAdministratorsConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
		})
		if err != nil {
			return nil, err
		}
		ids := make(map[int64]struct{}, len(admins))
		for _, a := range admins {
			if a.User == nil {
				continue
			}
			if a.IsCreator() || (a.IsAdministrator() && a.CanRestrictMembers) {
				ids[a.User.ID] = struct{}{}
			}
		}
		ac.mu.Lock()
		ac.cache[chatID] = adminSet{ids: ids, expires: time.Now().Add(adminCacheTTL)}
		ac.mu.Unlock()
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[int64]struct{}), nil
}

func (ac *accessChecker) invalidate(chatID int64) {
	ac.mu.Lock()
	delete(ac.cache, chatID)
	ac.mu.Unlock()
}
