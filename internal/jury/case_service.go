package jury

import (
	"context"
	"math"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Wenbobobo/AntiSpamBOT/internal/bot"
	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
	"github.com/Wenbobobo/AntiSpamBOT/internal/observability"
)

var (
	ErrCaseNotFound          = errors.New("case not found")
	ErrCaseClosed            = errors.New("case already resolved")
	ErrRetractDisabled       = errors.New("vote retraction is disabled in this chat")
	ErrNoVote                = errors.New("no vote to retract")
	ErrDuplicateOpenCase     = errors.New("an open case already exists for this message")
	ErrDuplicateResolvedCase = errors.New("this message was already adjudicated")
	ErrRateLimited           = errors.New("reporter exceeded the hourly case limit")
	ErrBallotFailed          = errors.New("ballot could not be posted")
)

// fallbackMemberCount is assumed when the transport cannot supply a member
// count, so participation targets degrade instead of blocking reports.
const fallbackMemberCount = 100

const lastSweepKey = "jury_last_sweep"

// Report is a member's request to put a message in front of the jury.
type Report struct {
	ChatID     int64
	ChatTitle  string
	MessageID  int
	OffenderID int64
	ReporterID int64
}

type juryStore interface {
	UpsertChat(ctx context.Context, chatID int64, title string) error
	GetChatOverrides(ctx context.Context, chatID int64) (db.SettingsOverrides, error)

	CreateCase(ctx context.Context, c *db.Case) (*db.Case, error)
	GetCase(ctx context.Context, id int64) (*db.Case, error)
	GetCaseByMessage(ctx context.Context, chatID int64, messageID int) (*db.Case, error)
	ListOpenCases(ctx context.Context) ([]*db.Case, error)
	UpdateCaseStatus(ctx context.Context, id int64, status db.CaseStatus) error
	UpdateCaseBallot(ctx context.Context, id int64, ballotChatID int64, ballotMessageID int) error
	CountRecentReports(ctx context.Context, chatID, reporterID int64, since time.Time) (int, error)

	UpsertVote(ctx context.Context, vote *db.Vote) error
	DeleteVote(ctx context.Context, caseID, voterID int64) error
	GetVotes(ctx context.Context, caseID int64) ([]*db.Vote, error)

	BlacklistAdd(ctx context.Context, entry *db.BlacklistEntry) error
	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key, value string) error
}

// CaseService drives a case from report to terminal status. All mutations of
// a single case are serialized through a per-case mutex, so the timer path
// and the vote path never race each other.
type CaseService struct {
	store juryStore
	bot   bot.API
	sched *Scheduler
	lang  string

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func NewCaseService(store juryStore, botAPI bot.API, lang string) *CaseService {
	cs := &CaseService{
		store: store,
		bot:   botAPI,
		lang:  lang,
		locks: map[int64]*sync.Mutex{},
	}
	cs.sched = NewScheduler(cs.fireDeadline)
	return cs
}

func (cs *CaseService) Start(ctx context.Context) error {
	return cs.sched.Start(ctx)
}

func (cs *CaseService) Stop(ctx context.Context) error {
	return cs.sched.Stop(ctx)
}

func (cs *CaseService) caseLock(id int64) *sync.Mutex {
	cs.locksMu.Lock()
	defer cs.locksMu.Unlock()
	m, ok := cs.locks[id]
	if !ok {
		m = &sync.Mutex{}
		cs.locks[id] = m
	}
	return m
}

// dropLock forgets a terminal case's mutex. A goroutine already waiting on
// the old mutex re-reads the status under it and no-ops, so a late re-create
// of the entry is harmless.
func (cs *CaseService) dropLock(id int64) {
	cs.locksMu.Lock()
	delete(cs.locks, id)
	cs.locksMu.Unlock()
}

// CreateCase validates a report, opens a case with the chat's settings frozen
// into a snapshot and posts the ballot. A case whose ballot could not be
// posted stays open and is still resolved by the expiry timer.
func (cs *CaseService) CreateCase(ctx context.Context, report Report) (*db.Case, error) {
	entry := cs.getLogEntry().WithField("method", "CreateCase").WithField("chat_id", report.ChatID)
	now := time.Now()

	if err := cs.store.UpsertChat(ctx, report.ChatID, report.ChatTitle); err != nil {
		entry.WithError(err).Warn("cant upsert chat")
	}

	settings := db.DefaultChatSettings()
	overrides, err := cs.store.GetChatOverrides(ctx, report.ChatID)
	if err != nil {
		entry.WithError(err).Warn("cant load chat overrides, using defaults")
	} else if resolved, err := db.ResolveSettings(settings, overrides); err != nil {
		entry.WithError(err).Warn("stored overrides are invalid, using defaults")
	} else {
		settings = resolved
	}

	recent, err := cs.store.CountRecentReports(ctx, report.ChatID, report.ReporterID, now.Add(-time.Hour))
	if err != nil {
		return nil, errors.WithMessage(err, "cant count recent reports")
	}
	if recent >= settings.MaxCasesPerUserHour {
		return nil, ErrRateLimited
	}

	existing, err := cs.store.GetCaseByMessage(ctx, report.ChatID, report.MessageID)
	switch {
	case err == nil:
		if existing.IsTerminal() {
			return nil, ErrDuplicateResolvedCase
		}
		return nil, ErrDuplicateOpenCase
	case !errors.Is(err, db.ErrNotFound):
		return nil, errors.WithMessage(err, "cant check for duplicate case")
	}

	memberCount, err := cs.bot.GetChatMembersCount(api.ChatMemberCountConfig{
		ChatConfig: api.ChatConfig{ChatID: report.ChatID},
	})
	if err != nil {
		entry.WithError(err).Warn("cant get member count, using fallback")
		memberCount = fallbackMemberCount
	}

	c := &db.Case{
		ChatID:            report.ChatID,
		MessageID:         report.MessageID,
		OffenderID:        report.OffenderID,
		ReporterID:        report.ReporterID,
		Status:            db.CaseStatusOpen,
		OpenedAt:          now,
		ClosesAt:          now.Add(settings.VoteTimeout),
		Snapshot:          settings,
		ParticipantTarget: participantTarget(settings, memberCount),
	}
	created, err := cs.store.CreateCase(ctx, c)
	if err != nil {
		return nil, errors.WithMessage(err, "cant create case")
	}
	observability.RecordCaseOpened()
	cs.sched.Schedule(created.ID, created.ClosesAt)

	sent, err := cs.bot.Send(newBallotMessage(created, Tally{}, cs.lang))
	if err != nil {
		entry.WithField("case_id", created.ID).WithError(err).Error("cant post ballot")
		return created, ErrBallotFailed
	}
	if err := cs.store.UpdateCaseBallot(ctx, created.ID, sent.Chat.ID, sent.MessageID); err != nil {
		return created, errors.WithMessage(err, "cant record ballot location")
	}
	created.BallotChatID = sent.Chat.ID
	created.BallotMessageID = sent.MessageID

	entry.WithField("case_id", created.ID).Info("case opened")
	return created, nil
}

// ApplyVote records a voter's current decision, replacing any prior one, and
// evaluates the case. Late votes still force a deadline resolution.
func (cs *CaseService) ApplyVote(ctx context.Context, caseID, voterID int64, decision db.VoteDecision) (*db.Case, Tally, error) {
	m := cs.caseLock(caseID)
	m.Lock()
	defer m.Unlock()

	c, err := cs.loadOpenCase(ctx, caseID)
	if err != nil {
		return nil, Tally{}, err
	}

	if err := cs.store.UpsertVote(ctx, &db.Vote{
		CaseID:    caseID,
		VoterID:   voterID,
		Decision:  decision,
		UpdatedAt: time.Now(),
	}); err != nil {
		return nil, Tally{}, errors.WithMessage(err, "cant record vote")
	}
	observability.RecordVoteCast(string(decision))

	t, err := cs.evaluate(ctx, c, db.CaseStatusRejected)
	return c, t, err
}

// RetractVote removes the voter's row entirely, when the chat allows it.
func (cs *CaseService) RetractVote(ctx context.Context, caseID, voterID int64) (*db.Case, Tally, error) {
	m := cs.caseLock(caseID)
	m.Lock()
	defer m.Unlock()

	c, err := cs.loadOpenCase(ctx, caseID)
	if err != nil {
		return nil, Tally{}, err
	}
	if !c.Snapshot.AllowVoteRetract {
		return nil, Tally{}, ErrRetractDisabled
	}

	votes, err := cs.store.GetVotes(ctx, caseID)
	if err != nil {
		return nil, Tally{}, errors.WithMessage(err, "cant load votes")
	}
	var had bool
	for _, v := range votes {
		if v.VoterID == voterID {
			had = true
			break
		}
	}
	if !had {
		return nil, Tally{}, ErrNoVote
	}
	if err := cs.store.DeleteVote(ctx, caseID, voterID); err != nil {
		return nil, Tally{}, errors.WithMessage(err, "cant delete vote")
	}

	t, err := cs.evaluate(ctx, c, db.CaseStatusRejected)
	return c, t, err
}

func (cs *CaseService) loadOpenCase(ctx context.Context, caseID int64) (*db.Case, error) {
	c, err := cs.store.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, errors.WithMessage(err, "cant get case")
	}
	if c.IsTerminal() {
		cs.dropLock(caseID)
		return nil, ErrCaseClosed
	}
	return c, nil
}

// evaluate recomputes the tally and either resolves the case or refreshes
// the ballot. timeoutStatus states which terminal label a deadline
// resolution gets on this path.
func (cs *CaseService) evaluate(ctx context.Context, c *db.Case, timeoutStatus db.CaseStatus) (Tally, error) {
	votes, err := cs.store.GetVotes(ctx, c.ID)
	if err != nil {
		return Tally{}, errors.WithMessage(err, "cant load votes")
	}
	t := TallyVotes(votes)

	switch evaluateResolution(t, c.Snapshot, c.ParticipantTarget, time.Now(), c.ClosesAt) {
	case outcomeConfirm:
		return t, cs.resolve(ctx, c, t, db.CaseStatusConfirmed)
	case outcomeTimeout:
		return t, cs.resolve(ctx, c, t, timeoutStatus)
	default:
		cs.refreshBallot(c, t)
		return t, nil
	}
}

// resolve commits the terminal status and only then runs side effects, so a
// crash mid-enforcement can never reopen the case or repeat the vote.
func (cs *CaseService) resolve(ctx context.Context, c *db.Case, t Tally, status db.CaseStatus) error {
	entry := cs.getLogEntry().WithField("case_id", c.ID).WithField("status", status)

	if err := cs.store.UpdateCaseStatus(ctx, c.ID, status); err != nil {
		return errors.WithMessage(err, "cant commit case status")
	}
	c.Status = status
	observability.RecordCaseResolved(string(status))

	actionApplied := false
	if status == db.CaseStatusConfirmed {
		actionApplied = cs.enforce(ctx, c)
	}

	if c.HasBallot() {
		if _, err := cs.bot.Request(closeBallotMessage(c, t, actionApplied, cs.lang)); err != nil {
			entry.WithError(err).Warn("cant close ballot")
		}
	}
	entry.WithField("votes", t.Total).Info("case resolved")
	cs.dropLock(c.ID)
	return nil
}

func (cs *CaseService) refreshBallot(c *db.Case, t Tally) {
	if !c.HasBallot() {
		return
	}
	if _, err := cs.bot.Request(editBallotMessage(c, t, cs.lang)); err != nil {
		cs.getLogEntry().WithField("case_id", c.ID).WithError(err).Warn("cant refresh ballot")
	}
}

func (cs *CaseService) fireDeadline(ctx context.Context, caseID int64) {
	if err := cs.resolveByTimer(ctx, caseID); err != nil {
		cs.getLogEntry().WithField("case_id", caseID).WithError(err).Error("cant resolve case on deadline")
	}
}

func (cs *CaseService) resolveByTimer(ctx context.Context, caseID int64) error {
	m := cs.caseLock(caseID)
	m.Lock()
	defer m.Unlock()

	c, err := cs.store.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return errors.WithMessage(err, "cant get case")
	}
	if c.IsTerminal() {
		// already resolved by the vote path
		cs.dropLock(caseID)
		return nil
	}

	// an early wakeup still evaluates: a quorum reached while the process
	// was down must not wait for the deadline
	if _, err := cs.evaluate(ctx, c, db.CaseStatusExpired); err != nil {
		return err
	}
	if !c.IsTerminal() {
		cs.sched.Schedule(c.ID, c.ClosesAt)
	}
	return nil
}

// ExpireOverdueCases resolves every open case whose deadline passed while the
// process was down and re-schedules the rest. Run before serving updates.
func (cs *CaseService) ExpireOverdueCases(ctx context.Context) error {
	entry := cs.getLogEntry().WithField("method", "ExpireOverdueCases")
	if prev, err := cs.store.GetKV(ctx, lastSweepKey); err == nil && prev != "" {
		entry = entry.WithField("previous_sweep", prev)
	}

	open, err := cs.store.ListOpenCases(ctx)
	if err != nil {
		return errors.WithMessage(err, "cant list open cases")
	}
	var overdue int
	for _, c := range open {
		if time.Now().Before(c.ClosesAt) {
			cs.sched.Schedule(c.ID, c.ClosesAt)
			continue
		}
		overdue++
		if err := cs.resolveByTimer(ctx, c.ID); err != nil {
			entry.WithField("case_id", c.ID).WithError(err).Error("cant expire overdue case")
		}
	}
	if err := cs.store.SetKV(ctx, lastSweepKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		entry.WithError(err).Warn("cant record sweep time")
	}
	entry.WithField("open", len(open)).WithField("overdue", overdue).Info("startup sweep done")
	return nil
}

func participantTarget(settings db.ChatSettings, memberCount int) int {
	fromRatio := int(math.Ceil(float64(memberCount) * settings.MinParticipationRatio))
	if fromRatio < settings.MinParticipationCount {
		return settings.MinParticipationCount
	}
	return fromRatio
}

func (cs *CaseService) getLogEntry() *log.Entry {
	return log.WithField("object", "CaseService")
}
