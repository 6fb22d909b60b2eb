package db

import (
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestMain(m *testing.M) {
	os.Setenv("JB_TOKEN", "test-token")
	os.Exit(m.Run())
}

func validSettings() ChatSettings {
	return ChatSettings{
		MinParticipationRatio: 0.05,
		MinParticipationCount: 5,
		ApprovalRatio:         0.6,
		QuorumStrategy:        QuorumRatioAndCount,
		ActionOnConfirm:       ActionBan,
		MuteDuration:          time.Hour,
		BlacklistEnabled:      true,
		VoteTimeout:           4 * time.Hour,
		AllowVoteRetract:      true,
		MaxCasesPerUserHour:   3,
	}
}

func TestResolveSettingsMergesOverDefaults(t *testing.T) {
	t.Parallel()

	resolved, err := ResolveSettings(validSettings(), SettingsOverrides{
		"approval_ratio":    "0.75",
		"action_on_confirm": "mute",
		"mute_duration":     "30m",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ApprovalRatio != 0.75 {
		t.Fatalf("approval ratio = %v", resolved.ApprovalRatio)
	}
	if resolved.ActionOnConfirm != ActionMute {
		t.Fatalf("action = %s", resolved.ActionOnConfirm)
	}
	if resolved.MuteDuration != 30*time.Minute {
		t.Fatalf("mute duration = %s", resolved.MuteDuration)
	}
	// untouched fields keep their defaults
	if resolved.VoteTimeout != 4*time.Hour {
		t.Fatalf("vote timeout = %s", resolved.VoteTimeout)
	}
}

func TestResolveSettingsRejectsBadOverrides(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name      string
		overrides SettingsOverrides
		sentinel  error
	}{
		{"unknown field", SettingsOverrides{"min_voters": "5"}, ErrUnknownSetting},
		{"unparsable float", SettingsOverrides{"approval_ratio": "most"}, ErrInvalidSetting},
		{"ratio out of range", SettingsOverrides{"approval_ratio": "1.5"}, ErrInvalidSetting},
		{"zero participation count", SettingsOverrides{"min_participation_count": "0"}, ErrInvalidSetting},
		{"short vote timeout", SettingsOverrides{"vote_timeout": "5s"}, ErrInvalidSetting},
		{"short mute", SettingsOverrides{"mute_duration": "10s"}, ErrInvalidSetting},
		{"unknown strategy", SettingsOverrides{"quorum_strategy": "majority"}, ErrInvalidSetting},
		{"unknown action", SettingsOverrides{"action_on_confirm": "warn"}, ErrInvalidSetting},
		{"bad bool", SettingsOverrides{"blacklist_enabled": "maybe"}, ErrInvalidSetting},
		{"zero hourly cap", SettingsOverrides{"max_cases_per_user_hour": "0"}, ErrInvalidSetting},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			defaults := validSettings()
			resolved, err := ResolveSettings(defaults, tc.overrides)
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("error = %v, want %v", err, tc.sentinel)
			}
			if resolved != defaults {
				t.Fatal("failed resolution must return untouched defaults")
			}
		})
	}
}

func TestApplyDurationAcceptsSeconds(t *testing.T) {
	t.Parallel()

	s := validSettings()
	if err := s.Apply("vote_timeout", "7200"); err != nil {
		t.Fatalf("apply seconds: %v", err)
	}
	if s.VoteTimeout != 2*time.Hour {
		t.Fatalf("vote timeout = %s, want 2h", s.VoteTimeout)
	}
	if err := s.Apply("vote_timeout", "90m"); err != nil {
		t.Fatalf("apply duration string: %v", err)
	}
	if s.VoteTimeout != 90*time.Minute {
		t.Fatalf("vote timeout = %s, want 90m", s.VoteTimeout)
	}
}

func TestChatSettingsRoundTripsThroughJSON(t *testing.T) {
	t.Parallel()

	original := validSettings()
	value, err := original.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var restored ChatSettings
	if err := restored.Scan(value); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if restored != original {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", restored, original)
	}
}
