package db

import (
	"context"
	"time"
)

// Client is the persistent store consumed by the case lifecycle engine and
// the admin surface. All operations are durable on return.
type Client interface {
	Close() error

	UpsertChat(ctx context.Context, chatID int64, title string) error
	ListChats(ctx context.Context) ([]ChatMeta, error)
	GetChatTitle(ctx context.Context, chatID int64) (string, error)
	GetChatOverrides(ctx context.Context, chatID int64) (SettingsOverrides, error)
	SetChatOverrides(ctx context.Context, chatID int64, overrides SettingsOverrides) error

	CreateCase(ctx context.Context, c *Case) (*Case, error)
	GetCase(ctx context.Context, id int64) (*Case, error)
	GetCaseByMessage(ctx context.Context, chatID int64, messageID int) (*Case, error)
	ListOpenCases(ctx context.Context) ([]*Case, error)
	ListRecentCases(ctx context.Context, chatID int64, limit int) ([]*Case, error)
	UpdateCaseStatus(ctx context.Context, id int64, status CaseStatus) error
	UpdateCaseBallot(ctx context.Context, id int64, ballotChatID int64, ballotMessageID int) error
	CountRecentReports(ctx context.Context, chatID, reporterID int64, since time.Time) (int, error)

	UpsertVote(ctx context.Context, vote *Vote) error
	DeleteVote(ctx context.Context, caseID, voterID int64) error
	GetVotes(ctx context.Context, caseID int64) ([]*Vote, error)

	BlacklistAdd(ctx context.Context, entry *BlacklistEntry) error
	BlacklistRemove(ctx context.Context, chatID, userID int64) error
	BlacklistList(ctx context.Context, chatID int64) ([]*BlacklistEntry, error)
	BlacklistContains(ctx context.Context, chatID, userID int64) (bool, error)

	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key, value string) error
}
