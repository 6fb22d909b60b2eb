package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
	"github.com/Wenbobobo/AntiSpamBOT/internal/i18n"
)

// panel operations, encoded as "jadm:<chatID>:<op>"
const (
	opOpen  = "open"
	opClose = "close"
	opNoop  = "noop"

	opRatioDec    = "rat-"
	opRatioInc    = "rat+"
	opCountDec    = "cnt-"
	opCountInc    = "cnt+"
	opApprovalDec = "apr-"
	opApprovalInc = "apr+"
	opTimeoutDec  = "to-"
	opTimeoutInc  = "to+"
	opMuteDec     = "mut-"
	opMuteInc     = "mut+"
	opCapDec      = "cap-"
	opCapInc      = "cap+"

	opCycleAction   = "act"
	opCycleStrategy = "strat"
	opToggleBlock   = "bl"
	opToggleRetract = "ret"
)

var (
	actionCycle = []db.ConfirmAction{
		db.ActionBan, db.ActionKick, db.ActionMute, db.ActionDeleteOnly,
	}
	strategyCycle = []db.QuorumStrategy{
		db.QuorumRatioAndCount, db.QuorumRatioOnly, db.QuorumCountOnly,
	}
)

func panelData(chatID int64, op string) string {
	return fmt.Sprintf("%s%d:%s", panelCallbackPrefix, chatID, op)
}

func (a *Admin) renderPanel(ctx context.Context, chatID int64) (string, api.InlineKeyboardMarkup, error) {
	settings, err := a.s.GetSettings(ctx, chatID)
	if err != nil {
		return "", api.InlineKeyboardMarkup{}, errors.WithMessage(err, "cant load settings")
	}

	title, err := a.s.GetDB().GetChatTitle(ctx, chatID)
	if err != nil || title == "" {
		title = strconv.FormatInt(chatID, 10)
	}
	text := fmt.Sprintf(i18n.Get("⚙️ Jury settings for %s\nChanges apply to new cases only.", a.lang), title)

	adjuster := func(label string, decOp, incOp string) []api.InlineKeyboardButton {
		return api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("−", panelData(chatID, decOp)),
			api.NewInlineKeyboardButtonData(label, panelData(chatID, opNoop)),
			api.NewInlineKeyboardButtonData("+", panelData(chatID, incOp)),
		)
	}
	toggle := func(label string, enabled bool, op string) []api.InlineKeyboardButton {
		mark := "☐"
		if enabled {
			mark = "☑"
		}
		return api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(mark+" "+label, panelData(chatID, op)),
		)
	}

	markup := api.NewInlineKeyboardMarkup(
		adjuster(fmt.Sprintf(i18n.Get("participation ratio: %.0f%%", a.lang), settings.MinParticipationRatio*100), opRatioDec, opRatioInc),
		adjuster(fmt.Sprintf(i18n.Get("participation count: %d", a.lang), settings.MinParticipationCount), opCountDec, opCountInc),
		adjuster(fmt.Sprintf(i18n.Get("approval: %.0f%%", a.lang), settings.ApprovalRatio*100), opApprovalDec, opApprovalInc),
		adjuster(fmt.Sprintf(i18n.Get("vote timeout: %s", a.lang), settings.VoteTimeout), opTimeoutDec, opTimeoutInc),
		adjuster(fmt.Sprintf(i18n.Get("mute duration: %s", a.lang), settings.MuteDuration), opMuteDec, opMuteInc),
		adjuster(fmt.Sprintf(i18n.Get("reports per hour: %d", a.lang), settings.MaxCasesPerUserHour), opCapDec, opCapInc),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(fmt.Sprintf(i18n.Get("strategy: %s", a.lang), settings.QuorumStrategy), panelData(chatID, opCycleStrategy)),
		),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(fmt.Sprintf(i18n.Get("on confirm: %s", a.lang), settings.ActionOnConfirm), panelData(chatID, opCycleAction)),
		),
		toggle(i18n.Get("blacklist offenders", a.lang), settings.BlacklistEnabled, opToggleBlock),
		toggle(i18n.Get("allow vote retraction", a.lang), settings.AllowVoteRetract, opToggleRetract),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("❌ "+i18n.Get("Close", a.lang), panelData(chatID, opClose)),
		),
	)
	return text, markup, nil
}

func (a *Admin) handlePanelCallback(ctx context.Context, q *api.CallbackQuery, user *api.User) error {
	if user == nil || q.Message == nil {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(q.Data, panelCallbackPrefix), ":")
	if len(parts) != 2 {
		return nil
	}
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil
	}
	op := parts[1]

	ok, err := a.access.canManage(ctx, chatID, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		_, _ = a.s.GetBot().Request(api.NewCallback(q.ID, i18n.Get("Administrators only.", a.lang)))
		return nil
	}

	switch op {
	case opNoop:
		_, _ = a.s.GetBot().Request(api.NewCallback(q.ID, ""))
		return nil
	case opClose:
		_, err := a.s.GetBot().Request(api.NewDeleteMessage(q.Message.Chat.ID, q.Message.MessageID))
		return err
	case opOpen:
		// fresh render below
	default:
		if err := a.applyPanelOp(ctx, chatID, op); err != nil {
			_, _ = a.s.GetBot().Request(api.NewCallback(q.ID, fmt.Sprintf(i18n.Get("Rejected: %v", a.lang), err)))
			return nil
		}
	}

	text, markup, err := a.renderPanel(ctx, chatID)
	if err != nil {
		return err
	}
	edit := api.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, text)
	edit.ReplyMarkup = &markup
	if _, err := a.s.GetBot().Request(edit); err != nil {
		return errors.WithMessage(err, "cant update panel")
	}
	_, _ = a.s.GetBot().Request(api.NewCallback(q.ID, ""))
	return nil
}

func (a *Admin) applyPanelOp(ctx context.Context, chatID int64, op string) error {
	settings, err := a.s.GetSettings(ctx, chatID)
	if err != nil {
		return err
	}

	var field, value string
	switch op {
	case opRatioDec, opRatioInc:
		field = db.FieldMinParticipationRatio
		value = formatRatio(settings.MinParticipationRatio + step(op, 0.01))
	case opCountDec, opCountInc:
		field = db.FieldMinParticipationCount
		value = strconv.Itoa(settings.MinParticipationCount + int(step(op, 1)))
	case opApprovalDec, opApprovalInc:
		field = db.FieldApprovalRatio
		value = formatRatio(settings.ApprovalRatio + step(op, 0.05))
	case opTimeoutDec, opTimeoutInc:
		field = db.FieldVoteTimeout
		value = (settings.VoteTimeout + time.Duration(step(op, float64(30*time.Minute)))).String()
	case opMuteDec, opMuteInc:
		field = db.FieldMuteDuration
		value = (settings.MuteDuration + time.Duration(step(op, float64(15*time.Minute)))).String()
	case opCapDec, opCapInc:
		field = db.FieldMaxCasesPerUserHour
		value = strconv.Itoa(settings.MaxCasesPerUserHour + int(step(op, 1)))
	case opCycleAction:
		field = db.FieldActionOnConfirm
		value = string(next(actionCycle, settings.ActionOnConfirm))
	case opCycleStrategy:
		field = db.FieldQuorumStrategy
		value = string(next(strategyCycle, settings.QuorumStrategy))
	case opToggleBlock:
		field = db.FieldBlacklistEnabled
		value = strconv.FormatBool(!settings.BlacklistEnabled)
	case opToggleRetract:
		field = db.FieldAllowVoteRetract
		value = strconv.FormatBool(!settings.AllowVoteRetract)
	default:
		return nil
	}
	return a.s.SetSetting(ctx, chatID, field, value)
}

func step(op string, magnitude float64) float64 {
	if strings.HasSuffix(op, "-") {
		return -magnitude
	}
	return magnitude
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func next[T comparable](cycle []T, current T) T {
	for i, v := range cycle {
		if v == current {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}
