package jury

import (
	"context"
	"fmt"
	"time"

	"github.com/Wenbobobo/AntiSpamBOT/internal/bot"
	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
	"github.com/Wenbobobo/AntiSpamBOT/internal/observability"
)

// kickUnbanDelay gives Telegram time to process the ban before the unban
// that turns it into a plain removal.
const kickUnbanDelay = time.Second

// enforce runs the confirmation side effects in order, isolating failures so
// one refused API call never blocks the remaining steps. Reports whether the
// moderation action itself went through.
func (cs *CaseService) enforce(ctx context.Context, c *db.Case) bool {
	entry := cs.getLogEntry().WithField("method", "enforce").WithField("case_id", c.ID)

	if err := bot.DeleteChatMessage(ctx, cs.bot, c.ChatID, c.MessageID); err != nil {
		entry.WithError(err).Error("cant delete reported message")
		observability.RecordEnforcementFailure("delete")
	}

	actionApplied := true
	var err error
	switch c.Snapshot.ActionOnConfirm {
	case db.ActionBan:
		err = bot.BanUserFromChat(ctx, cs.bot, c.OffenderID, c.ChatID, 0)
	case db.ActionKick:
		err = cs.kick(ctx, c.OffenderID, c.ChatID)
	case db.ActionMute:
		err = bot.RestrictChatting(ctx, cs.bot, c.OffenderID, c.ChatID, time.Now().Add(c.Snapshot.MuteDuration))
	case db.ActionDeleteOnly:
	}
	if err != nil {
		entry.WithError(err).WithField("action", c.Snapshot.ActionOnConfirm).Error("cant apply action")
		observability.RecordEnforcementFailure("action")
		actionApplied = false
	}

	if c.Snapshot.BlacklistEnabled {
		if err := cs.store.BlacklistAdd(ctx, &db.BlacklistEntry{
			ChatID:  c.ChatID,
			UserID:  c.OffenderID,
			Reason:  fmt.Sprintf("case #%d", c.ID),
			AddedAt: time.Now(),
		}); err != nil {
			entry.WithError(err).Error("cant blacklist offender")
			observability.RecordEnforcementFailure("blacklist")
		}
	}
	return actionApplied
}

func (cs *CaseService) kick(ctx context.Context, userID, chatID int64) error {
	if err := bot.BanUserFromChat(ctx, cs.bot, userID, chatID, 0); err != nil {
		return err
	}
	select {
	case <-time.After(kickUnbanDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return bot.UnbanUserFromChat(ctx, cs.bot, userID, chatID)
}
