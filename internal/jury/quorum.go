package jury

import (
	"time"

	"github.com/Wenbobobo/AntiSpamBOT/internal/db"
)

// Tally is the current vote count of a case, recomputed from the
// authoritative vote rows on every evaluation.
type Tally struct {
	Spam    int
	NotSpam int
	Total   int
}

func TallyVotes(votes []*db.Vote) Tally {
	t := Tally{}
	for _, vote := range votes {
		switch vote.Decision {
		case db.VoteSpam:
			t.Spam++
		case db.VoteNotSpam:
			t.NotSpam++
		default:
			continue
		}
		t.Total++
	}
	return t
}

// SpamRatio is spam/total; zero participation never confirms, the division
// is short-circuited by the caller.
func (t Tally) SpamRatio() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Spam) / float64(t.Total)
}

type outcome int

const (
	outcomeStillOpen outcome = iota
	outcomeConfirm
	outcomeTimeout
)

// participationMet applies the chat's quorum strategy to the vote total.
// participantTarget is the ratio-derived voter requirement fixed at case
// creation.
func participationMet(total int, settings db.ChatSettings, participantTarget int) bool {
	countOK := total >= settings.MinParticipationCount
	ratioOK := total >= participantTarget
	switch settings.QuorumStrategy {
	case db.QuorumRatioOnly:
		return ratioOK
	case db.QuorumCountOnly:
		return countOK
	default:
		return ratioOK && countOK
	}
}

// evaluateResolution decides whether a case leaves the open state. The
// deadline dominates: once passed, the timeout outcome wins even if the
// tally would otherwise confirm.
func evaluateResolution(t Tally, settings db.ChatSettings, participantTarget int, now, closesAt time.Time) outcome {
	if !now.Before(closesAt) {
		return outcomeTimeout
	}
	if t.Total == 0 {
		return outcomeStillOpen
	}
	if participationMet(t.Total, settings, participantTarget) && t.SpamRatio() >= settings.ApprovalRatio {
		return outcomeConfirm
	}
	return outcomeStillOpen
}
