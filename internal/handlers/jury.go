package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Wenbobobo/AntiSpamBOT/internal/bot"
	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
	"github.com/Wenbobobo/AntiSpamBOT/internal/i18n"
	"github.com/Wenbobobo/AntiSpamBOT/internal/jury"
)

const voteCallbackPrefix = "jury:vote:"

// Jury turns /spam replies into cases and vote button presses into ballots.
type Jury struct {
	s     bot.Service
	cases *jury.CaseService
	lang  string
}

func NewJury(s bot.Service, cases *jury.CaseService, lang string) *Jury {
	return &Jury{
		s:     s,
		cases: cases,
		lang:  lang,
	}
}

func (j *Jury) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	if u.CallbackQuery != nil && strings.HasPrefix(u.CallbackQuery.Data, voteCallbackPrefix) {
		return j.handleVoteCallback(ctx, u.CallbackQuery, user)
	}

	if u.Message != nil && len(u.Message.NewChatMembers) > 0 && chat != nil {
		return j.handleJoin(ctx, u.Message, chat)
	}

	if u.Message != nil && u.Message.IsCommand() && chat != nil && user != nil {
		switch u.Message.Command() {
		case "spam", "report":
			return j.handleReport(ctx, u.Message, chat, user)
		}
	}

	return true, nil
}

// handleJoin re-bans blacklisted offenders who slipped back into the chat.
func (j *Jury) handleJoin(ctx context.Context, msg *api.Message, chat *api.Chat) (bool, error) {
	entry := j.getLogEntry().WithField("method", "handleJoin").WithField("chat_id", chat.ID)

	for _, member := range msg.NewChatMembers {
		banned, err := j.s.GetDB().BlacklistContains(ctx, chat.ID, member.ID)
		if err != nil {
			entry.WithError(err).Warn("cant check blacklist")
			continue
		}
		if !banned {
			continue
		}
		if err := bot.BanUserFromChat(ctx, j.s.GetBot(), member.ID, chat.ID, 0); err != nil {
			entry.WithError(err).WithField("user_id", member.ID).Error("cant ban blacklisted user")
			continue
		}
		entry.WithField("user_id", member.ID).Info("blacklisted user removed on rejoin")
	}
	return true, nil
}

func (j *Jury) handleReport(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) (bool, error) {
	entry := j.getLogEntry().WithField("method", "handleReport").WithField("chat_id", chat.ID)

	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		j.replyTo(msg, i18n.Get("Reply to the offending message with /spam to start a jury vote.", j.lang))
		return true, nil
	}
	offender := msg.ReplyToMessage.From
	if offender.ID == user.ID {
		j.replyTo(msg, i18n.Get("You can't report your own message.", j.lang))
		return true, nil
	}

	_, err := j.cases.CreateCase(ctx, jury.Report{
		ChatID:     chat.ID,
		ChatTitle:  chat.Title,
		MessageID:  msg.ReplyToMessage.MessageID,
		OffenderID: offender.ID,
		ReporterID: user.ID,
	})
	switch {
	case err == nil:
	case errors.Is(err, jury.ErrRateLimited):
		j.replyTo(msg, i18n.Get("You reached the hourly report limit, try again later.", j.lang))
		return true, nil
	case errors.Is(err, jury.ErrDuplicateOpenCase):
		j.replyTo(msg, i18n.Get("The jury is already voting on that message.", j.lang))
		return true, nil
	case errors.Is(err, jury.ErrDuplicateResolvedCase):
		text := i18n.Get("That message was already adjudicated.", j.lang)
		if prior, perr := j.s.GetDB().GetCaseByMessage(ctx, chat.ID, msg.ReplyToMessage.MessageID); perr == nil {
			text = fmt.Sprintf(i18n.Get("That message was already adjudicated: case #%d, %s.", j.lang),
				prior.ID, i18n.Get(string(prior.Status), j.lang))
		}
		j.replyTo(msg, text)
		return true, nil
	case errors.Is(err, jury.ErrBallotFailed):
		j.replyTo(msg, i18n.Get("Case opened, but the ballot could not be posted. It will expire on its own.", j.lang))
		return true, nil
	default:
		entry.WithError(err).Error("cant open case")
		j.replyTo(msg, i18n.Get("Could not open a case, try again later.", j.lang))
		return true, nil
	}

	if err := bot.DeleteChatMessage(ctx, j.s.GetBot(), chat.ID, msg.MessageID); err != nil {
		entry.WithError(err).Debug("cant delete report command")
	}
	return true, nil
}

func (j *Jury) handleVoteCallback(ctx context.Context, q *api.CallbackQuery, user *api.User) (bool, error) {
	entry := j.getLogEntry().WithField("method", "handleVoteCallback")

	parts := strings.Split(q.Data, ":")
	if len(parts) != 4 || user == nil {
		return true, nil
	}
	caseID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		entry.WithField("data", q.Data).Warn("malformed vote callback")
		return true, nil
	}

	var answer string
	switch parts[3] {
	case "spam":
		_, _, err = j.cases.ApplyVote(ctx, caseID, user.ID, db.VoteSpam)
		answer = i18n.Get("Vote counted.", j.lang)
	case "not_spam":
		_, _, err = j.cases.ApplyVote(ctx, caseID, user.ID, db.VoteNotSpam)
		answer = i18n.Get("Vote counted.", j.lang)
	case "retract":
		_, _, err = j.cases.RetractVote(ctx, caseID, user.ID)
		answer = i18n.Get("Vote retracted.", j.lang)
	default:
		return true, nil
	}

	switch {
	case err == nil:
	case errors.Is(err, jury.ErrCaseClosed):
		answer = i18n.Get("Voting on this case is closed.", j.lang)
	case errors.Is(err, jury.ErrCaseNotFound):
		answer = i18n.Get("This case no longer exists.", j.lang)
	case errors.Is(err, jury.ErrRetractDisabled):
		answer = i18n.Get("Vote retraction is disabled in this chat.", j.lang)
	case errors.Is(err, jury.ErrNoVote):
		answer = i18n.Get("You haven't voted on this case.", j.lang)
	default:
		entry.WithError(err).WithField("case_id", caseID).Error("cant process vote")
		answer = i18n.Get("Something went wrong, try again.", j.lang)
	}

	if _, err := j.s.GetBot().Request(api.NewCallback(q.ID, answer)); err != nil {
		entry.WithError(err).Debug("cant answer callback")
	}
	return true, nil
}

func (j *Jury) replyTo(msg *api.Message, text string) {
	reply := api.NewMessage(msg.Chat.ID, text)
	reply.ReplyParameters.MessageID = msg.MessageID
	reply.DisableNotification = true
	if _, err := j.s.GetBot().Send(reply); err != nil {
		j.getLogEntry().WithError(err).Debug("cant send reply")
	}
}

func (j *Jury) getLogEntry() *log.Entry {
	return log.WithField("object", "Jury")
}
