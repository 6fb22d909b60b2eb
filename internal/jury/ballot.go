package jury

import (
	"fmt"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
	"github.com/Wenbobobo/AntiSpamBOT/internal/i18n"
)

const (
	callbackVoteSpam    = "spam"
	callbackVoteNotSpam = "not_spam"
	callbackVoteRetract = "retract"
)

func voteCallbackData(caseID int64, action string) string {
	return fmt.Sprintf("jury:vote:%d:%s", caseID, action)
}

func ballotKeyboard(caseID int64, allowRetract bool, lang string) api.InlineKeyboardMarkup {
	rows := [][]api.InlineKeyboardButton{
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("🚫 "+i18n.Get("Spam", lang), voteCallbackData(caseID, callbackVoteSpam)),
			api.NewInlineKeyboardButtonData("✅ "+i18n.Get("Not Spam", lang), voteCallbackData(caseID, callbackVoteNotSpam)),
		),
	}
	if allowRetract {
		rows = append(rows, api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("↩️ "+i18n.Get("Retract vote", lang), voteCallbackData(caseID, callbackVoteRetract)),
		))
	}
	return api.NewInlineKeyboardMarkup(rows...)
}

func userMention(userID int64) string {
	return fmt.Sprintf("[user](tg://user?id=%d)", userID)
}

func ballotText(c *db.Case, t Tally, lang string) string {
	remaining := c.ParticipantTarget - t.Total
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf(
		i18n.Get("⚠️ Case #%d: reported message from %s\n\nJurors needed: %d\nApproval required: %.0f%%\n\n🚫 Spam: %d\n✅ Not spam: %d\nVotes so far: %d\nStill needed: %d\n\nVoting closes at %s\n\nPlease vote:", lang),
		c.ID,
		userMention(c.OffenderID),
		c.ParticipantTarget,
		c.Snapshot.ApprovalRatio*100,
		t.Spam,
		t.NotSpam,
		t.Total,
		remaining,
		c.ClosesAt.UTC().Format(time.RFC822),
	)
}

func resolvedText(c *db.Case, t Tally, actionApplied bool, lang string) string {
	switch c.Status {
	case db.CaseStatusConfirmed:
		text := fmt.Sprintf(
			i18n.Get("🚫 Case #%d: the jury confirmed spam from %s (%d of %d voted spam).", lang),
			c.ID, userMention(c.OffenderID), t.Spam, t.Total,
		)
		if actionApplied {
			text += "\n" + fmt.Sprintf(i18n.Get("Action taken: %s", lang), i18n.Get(string(c.Snapshot.ActionOnConfirm), lang))
		}
		return text
	case db.CaseStatusRejected:
		return fmt.Sprintf(
			i18n.Get("✅ Case #%d: the jury cleared the message from %s (%d of %d voted spam).", lang),
			c.ID, userMention(c.OffenderID), t.Spam, t.Total,
		)
	default:
		return fmt.Sprintf(
			i18n.Get("⌛ Case #%d: voting closed without a verdict.", lang),
			c.ID,
		)
	}
}

func newBallotMessage(c *db.Case, t Tally, lang string) api.MessageConfig {
	msg := api.NewMessage(c.ChatID, ballotText(c, t, lang))
	msg.ParseMode = api.ModeMarkdown
	msg.DisableNotification = true
	msg.LinkPreviewOptions.IsDisabled = true
	markup := ballotKeyboard(c.ID, c.Snapshot.AllowVoteRetract, lang)
	msg.ReplyMarkup = &markup
	return msg
}

func editBallotMessage(c *db.Case, t Tally, lang string) api.EditMessageTextConfig {
	edit := api.NewEditMessageText(c.BallotChatID, c.BallotMessageID, ballotText(c, t, lang))
	edit.ParseMode = api.ModeMarkdown
	markup := ballotKeyboard(c.ID, c.Snapshot.AllowVoteRetract, lang)
	edit.ReplyMarkup = &markup
	return edit
}

func closeBallotMessage(c *db.Case, t Tally, actionApplied bool, lang string) api.EditMessageTextConfig {
	edit := api.NewEditMessageText(c.BallotChatID, c.BallotMessageID, resolvedText(c, t, actionApplied, lang))
	edit.ParseMode = api.ModeMarkdown
	return edit
}
