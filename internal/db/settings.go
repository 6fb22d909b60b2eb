package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/Wenbobobo/AntiSpamBOT/internal/config"
)

type (
	QuorumStrategy string
	ConfirmAction  string
)

const (
	QuorumRatioAndCount QuorumStrategy = "ratio_and_count"
	QuorumRatioOnly     QuorumStrategy = "ratio_only"
	QuorumCountOnly     QuorumStrategy = "count_only"

	ActionBan        ConfirmAction = "ban"
	ActionKick       ConfirmAction = "kick"
	ActionMute       ConfirmAction = "mute"
	ActionDeleteOnly ConfirmAction = "delete_only"
)

const (
	FieldMinParticipationRatio = "min_participation_ratio"
	FieldMinParticipationCount = "min_participation_count"
	FieldApprovalRatio         = "approval_ratio"
	FieldQuorumStrategy        = "quorum_strategy"
	FieldActionOnConfirm       = "action_on_confirm"
	FieldMuteDuration          = "mute_duration"
	FieldBlacklistEnabled      = "blacklist_enabled"
	FieldVoteTimeout           = "vote_timeout"
	FieldAllowVoteRetract      = "allow_vote_retract"
	FieldMaxCasesPerUserHour   = "max_cases_per_user_hour"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidSetting = errors.New("invalid setting value")
)

// ChatSettings is the effective voting configuration of a chat, the merge
// result of persisted per-chat overrides over process-wide defaults.
type ChatSettings struct {
	MinParticipationRatio float64        `json:"min_participation_ratio"`
	MinParticipationCount int            `json:"min_participation_count"`
	ApprovalRatio         float64        `json:"approval_ratio"`
	QuorumStrategy        QuorumStrategy `json:"quorum_strategy"`
	ActionOnConfirm       ConfirmAction  `json:"action_on_confirm"`
	MuteDuration          time.Duration  `json:"mute_duration_ns"`
	BlacklistEnabled      bool           `json:"blacklist_enabled"`
	VoteTimeout           time.Duration  `json:"vote_timeout_ns"`
	AllowVoteRetract      bool           `json:"allow_vote_retract"`
	MaxCasesPerUserHour   int            `json:"max_cases_per_user_hour"`
}

func DefaultChatSettings() ChatSettings {
	defaults := config.Get().Jury
	return ChatSettings{
		MinParticipationRatio: defaults.MinParticipationRatio,
		MinParticipationCount: defaults.MinParticipationCount,
		ApprovalRatio:         defaults.ApprovalRatio,
		QuorumStrategy:        QuorumStrategy(defaults.QuorumStrategy),
		ActionOnConfirm:       ConfirmAction(defaults.ActionOnConfirm),
		MuteDuration:          defaults.MuteDuration,
		BlacklistEnabled:      defaults.BlacklistEnabled,
		VoteTimeout:           defaults.VoteTimeout,
		AllowVoteRetract:      defaults.AllowVoteRetract,
		MaxCasesPerUserHour:   defaults.MaxCasesPerUserHour,
	}
}

// ResolveSettings merges recognized overrides over defaults and re-validates
// the result. Unknown fields and malformed values fail before anything is
// applied, so every returned snapshot is independently valid.
func ResolveSettings(defaults ChatSettings, overrides SettingsOverrides) (ChatSettings, error) {
	merged := defaults
	for field, value := range overrides {
		if err := merged.Apply(field, value); err != nil {
			return defaults, err
		}
	}
	if err := merged.Validate(); err != nil {
		return defaults, err
	}
	return merged, nil
}

// Apply parses a single string-typed override into the snapshot. It is the
// shared write path for both the resolver and the admin surface.
func (s *ChatSettings) Apply(field, value string) error {
	switch field {
	case FieldMinParticipationRatio:
		return s.applyFloat(&s.MinParticipationRatio, field, value)
	case FieldMinParticipationCount:
		return s.applyInt(&s.MinParticipationCount, field, value)
	case FieldApprovalRatio:
		return s.applyFloat(&s.ApprovalRatio, field, value)
	case FieldQuorumStrategy:
		s.QuorumStrategy = QuorumStrategy(value)
	case FieldActionOnConfirm:
		s.ActionOnConfirm = ConfirmAction(value)
	case FieldMuteDuration:
		return s.applyDuration(&s.MuteDuration, field, value)
	case FieldBlacklistEnabled:
		return s.applyBool(&s.BlacklistEnabled, field, value)
	case FieldVoteTimeout:
		return s.applyDuration(&s.VoteTimeout, field, value)
	case FieldAllowVoteRetract:
		return s.applyBool(&s.AllowVoteRetract, field, value)
	case FieldMaxCasesPerUserHour:
		return s.applyInt(&s.MaxCasesPerUserHour, field, value)
	default:
		return errors.WithMessage(ErrUnknownSetting, field)
	}
	return nil
}

func (s *ChatSettings) Validate() error {
	switch {
	case s.MinParticipationRatio < 0 || s.MinParticipationRatio > 1:
		return errors.WithMessage(ErrInvalidSetting, FieldMinParticipationRatio)
	case s.MinParticipationCount < 1:
		return errors.WithMessage(ErrInvalidSetting, FieldMinParticipationCount)
	case s.ApprovalRatio < 0 || s.ApprovalRatio > 1:
		return errors.WithMessage(ErrInvalidSetting, FieldApprovalRatio)
	case s.MuteDuration < time.Minute:
		return errors.WithMessage(ErrInvalidSetting, FieldMuteDuration)
	case s.VoteTimeout < 30*time.Second:
		return errors.WithMessage(ErrInvalidSetting, FieldVoteTimeout)
	case s.MaxCasesPerUserHour < 1:
		return errors.WithMessage(ErrInvalidSetting, FieldMaxCasesPerUserHour)
	}
	switch s.QuorumStrategy {
	case QuorumRatioAndCount, QuorumRatioOnly, QuorumCountOnly:
	default:
		return errors.WithMessage(ErrInvalidSetting, FieldQuorumStrategy)
	}
	switch s.ActionOnConfirm {
	case ActionBan, ActionKick, ActionMute, ActionDeleteOnly:
	default:
		return errors.WithMessage(ErrInvalidSetting, FieldActionOnConfirm)
	}
	return nil
}

func (s *ChatSettings) applyFloat(dst *float64, field, value string) error {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return errors.WithMessage(ErrInvalidSetting, field)
	}
	*dst = parsed
	return nil
}

func (s *ChatSettings) applyInt(dst *int, field, value string) error {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return errors.WithMessage(ErrInvalidSetting, field)
	}
	*dst = parsed
	return nil
}

func (s *ChatSettings) applyBool(dst *bool, field, value string) error {
	switch value {
	case "1", "true", "yes", "on", "enable":
		*dst = true
	case "0", "false", "no", "off", "disable":
		*dst = false
	default:
		return errors.WithMessage(ErrInvalidSetting, field)
	}
	return nil
}

func (s *ChatSettings) applyDuration(dst *time.Duration, field, value string) error {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		// bare numbers are read as seconds
		secs, convErr := strconv.ParseInt(value, 10, 64)
		if convErr != nil {
			return errors.WithMessage(ErrInvalidSetting, field)
		}
		parsed = time.Duration(secs) * time.Second
	}
	*dst = parsed
	return nil
}

func (s ChatSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *ChatSettings) Scan(v interface{}) error {
	if v == nil {
		return nil
	}
	switch data := v.(type) {
	case string:
		return json.Unmarshal([]byte(data), s)
	case []byte:
		return json.Unmarshal(data, s)
	default:
		return fmt.Errorf("cannot scan type %T into ChatSettings", v)
	}
}
