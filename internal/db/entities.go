package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

type (
	CaseStatus   string
	VoteDecision string
)

const (
	CaseStatusOpen      CaseStatus = "open"
	CaseStatusConfirmed CaseStatus = "confirmed"
	CaseStatusRejected  CaseStatus = "rejected"
	CaseStatusExpired   CaseStatus = "expired"

	VoteSpam    VoteDecision = "spam"
	VoteNotSpam VoteDecision = "not_spam"
)

type (
	// Case is one report under adjudication. The settings in effect at
	// creation time are embedded as a snapshot so later chat setting
	// changes never alter the rules of an in-flight case.
	Case struct {
		ID                int64        `db:"id"`
		ChatID            int64        `db:"chat_id"`
		MessageID         int          `db:"message_id"`
		OffenderID        int64        `db:"offender_id"`
		ReporterID        int64        `db:"reporter_id"`
		Status            CaseStatus   `db:"status"`
		OpenedAt          time.Time    `db:"opened_at"`
		ClosesAt          time.Time    `db:"closes_at"`
		BallotChatID      int64        `db:"ballot_chat_id"`
		BallotMessageID   int          `db:"ballot_message_id"`
		Snapshot          ChatSettings `db:"config_snapshot"`
		ParticipantTarget int          `db:"participant_target"`
	}

	// Vote is one member's current decision on one case, at most one row
	// per (case, voter).
	Vote struct {
		CaseID    int64        `db:"case_id"`
		VoterID   int64        `db:"voter_id"`
		Decision  VoteDecision `db:"decision"`
		UpdatedAt time.Time    `db:"updated_at"`
	}

	BlacklistEntry struct {
		ChatID  int64     `db:"chat_id"`
		UserID  int64     `db:"user_id"`
		Reason  string    `db:"reason"`
		AddedAt time.Time `db:"added_at"`
	}

	ChatMeta struct {
		ID        int64             `db:"id"`
		Title     string            `db:"title"`
		Overrides SettingsOverrides `db:"settings"`
		UpdatedAt time.Time         `db:"updated_at"`
	}

	SettingsOverrides map[string]string
)

func (c *Case) IsTerminal() bool {
	return c != nil && c.Status != CaseStatusOpen
}

func (c *Case) HasBallot() bool {
	return c != nil && c.BallotChatID != 0 && c.BallotMessageID != 0
}

func (s SettingsOverrides) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *SettingsOverrides) Scan(v interface{}) error {
	if v == nil {
		return nil
	}
	switch data := v.(type) {
	case string:
		return json.Unmarshal([]byte(data), s)
	case []byte:
		return json.Unmarshal(data, s)
	default:
		return fmt.Errorf("cannot scan type %T into SettingsOverrides", v)
	}
}
