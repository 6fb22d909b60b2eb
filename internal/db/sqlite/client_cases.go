package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
)

func (s *sqliteClient) CreateCase(ctx context.Context, c *db.Case) (*db.Case, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO cases (chat_id, message_id, offender_id, reporter_id, status,
			opened_at, closes_at, ballot_chat_id, ballot_message_id, config_snapshot, participant_target)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		c.ChatID,
		c.MessageID,
		c.OffenderID,
		c.ReporterID,
		c.Status,
		c.OpenedAt,
		c.ClosesAt,
		c.BallotChatID,
		c.BallotMessageID,
		c.Snapshot,
		c.ParticipantTarget,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

func (s *sqliteClient) GetCase(ctx context.Context, id int64) (*db.Case, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var c db.Case
	err := s.db.GetContext(ctx, &c, `SELECT * FROM cases WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *sqliteClient) GetCaseByMessage(ctx context.Context, chatID int64, messageID int) (*db.Case, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var c db.Case
	err := s.db.GetContext(ctx, &c, `
		SELECT * FROM cases
		WHERE chat_id = ? AND message_id = ?
	`, chatID, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *sqliteClient) ListOpenCases(ctx context.Context) ([]*db.Case, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var cases []*db.Case
	err := s.db.SelectContext(ctx, &cases, `
		SELECT * FROM cases
		WHERE status = ?
		ORDER BY closes_at ASC
	`, db.CaseStatusOpen)
	return cases, err
}

func (s *sqliteClient) ListRecentCases(ctx context.Context, chatID int64, limit int) ([]*db.Case, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var cases []*db.Case
	err := s.db.SelectContext(ctx, &cases, `
		SELECT * FROM cases
		WHERE chat_id = ?
		ORDER BY opened_at DESC
		LIMIT ?
	`, chatID, limit)
	return cases, err
}

func (s *sqliteClient) UpdateCaseStatus(ctx context.Context, id int64, status db.CaseStatus) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE cases SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update case status: %w", err)
	}
	return nil
}

func (s *sqliteClient) UpdateCaseBallot(ctx context.Context, id int64, ballotChatID int64, ballotMessageID int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE cases
		SET ballot_chat_id = ?, ballot_message_id = ?
		WHERE id = ?
	`, ballotChatID, ballotMessageID, id)
	if err != nil {
		return fmt.Errorf("failed to update case ballot: %w", err)
	}
	return nil
}

func (s *sqliteClient) CountRecentReports(ctx context.Context, chatID, reporterID int64, since time.Time) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM cases
		WHERE chat_id = ? AND reporter_id = ? AND opened_at >= ?
	`, chatID, reporterID, since)
	return count, err
}
