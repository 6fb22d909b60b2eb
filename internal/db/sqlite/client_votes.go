package sqlite

import (
	"context"
	"fmt"

	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
)

func (s *sqliteClient) UpsertVote(ctx context.Context, vote *db.Vote) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO votes (case_id, voter_id, decision, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(case_id, voter_id) DO UPDATE SET
		decision = excluded.decision,
		updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		vote.CaseID,
		vote.VoterID,
		vote.Decision,
		vote.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}
	return nil
}

func (s *sqliteClient) DeleteVote(ctx context.Context, caseID, voterID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM votes WHERE case_id = ? AND voter_id = ?`, caseID, voterID)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	return nil
}

func (s *sqliteClient) GetVotes(ctx context.Context, caseID int64) ([]*db.Vote, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var votes []*db.Vote
	err := s.db.SelectContext(ctx, &votes, `
		SELECT * FROM votes
		WHERE case_id = ?
		ORDER BY updated_at ASC
	`, caseID)
	return votes, err
}
