package core

import (
	"context"
	"math/big"

	"TradeArena/internal/event"
	widemath "TradeArena/internal/math"
	"TradeArena/internal/store"
)

// finalValueOrZero reads a participant's final value for challenger
// comparison; absent records and unset values both count as zero.
func (c *Core) finalValueOrZero(competitionID uint64, address string) *big.Int {
	rec, ok := c.store.Participant(store.ParticipantKey{CompetitionID: competitionID, Participant: address})
	if !ok {
		return widemath.Zero()
	}
	value, err := widemath.ParseValue(rec.FinalValue)
	if err != nil {
		return widemath.Zero()
	}
	return value
}

// ChallengeJudge registers the caller as the pending challenger. Open to
// anyone who has never held a judge record for this competition, while
// placement is incomplete, and only if they outperform the current
// challenger (unset final values compare as zero).
func (c *Core) ChallengeJudge(ctx context.Context, competitionID uint64, caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return c.reject("challenge_judge", NotFound("competition"))
	}
	if comp.ParticipantCount > 0 && comp.PlacedCount >= comp.ParticipantCount {
		return c.reject("challenge_judge", Unprocessable("all participants already placed"))
	}
	if _, judged := c.store.Judge(store.JudgeKey{CompetitionID: competitionID, Address: caller}); judged {
		return c.reject("challenge_judge", Unprocessable("already judged this competition"))
	}

	evicted := ""
	if comp.NextJudge != "" {
		own := c.finalValueOrZero(competitionID, caller)
		incumbent := c.finalValueOrZero(competitionID, comp.NextJudge)
		if own.Cmp(incumbent) <= 0 {
			return c.reject("challenge_judge", Unprocessable("challenger does not outperform current challenger"))
		}
		evicted = comp.NextJudge
		c.store.DeleteJudge(store.JudgeKey{CompetitionID: competitionID, Address: evicted})
	}

	now := c.clock.Now()
	base := now
	if current, ok := c.store.Judge(store.JudgeKey{CompetitionID: competitionID, Address: comp.Judge}); ok && current.Deadline.After(base) {
		base = current.Deadline
	}
	deadline := base.Add(JudgeDeadlineStep)

	comp.NextJudge = caller
	c.store.PutJudge(store.JudgeKey{CompetitionID: competitionID, Address: caller}, deadline)

	c.emit(event.TypeJudgeChallenged, competitionID, caller, now, event.JudgeChallengedPayload{
		Challenger:        caller,
		Evicted:           evicted,
		DeadlineUnixMicro: deadline.UnixMicro(),
	}, nil)

	return nil
}

// UpdateJudge promotes the pending challenger once the incumbent's
// deadline has strictly passed, while placement is still incomplete.
// Anyone may trigger it. Promotion discards the incumbent's partial
// placements by bumping the attempt counter.
func (c *Core) UpdateJudge(ctx context.Context, competitionID uint64, caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return c.reject("update_judge", NotFound("competition"))
	}
	if comp.NextJudge == "" {
		return c.reject("update_judge", Unprocessable("no pending challenger"))
	}
	// A finished ranking is settled work: promotion would wipe it and
	// stall prize collection, so the handover window closes with the last
	// placement, same as for new challenges.
	if comp.ParticipantCount > 0 && comp.PlacedCount >= comp.ParticipantCount {
		return c.reject("update_judge", Unprocessable("all participants already placed"))
	}

	current, ok := c.store.Judge(store.JudgeKey{CompetitionID: competitionID, Address: comp.Judge})
	if !ok {
		return c.reject("update_judge", NotFound("judge record"))
	}
	now := c.clock.Now()
	if !now.After(current.Deadline) {
		return c.reject("update_judge", Unprocessable("judge deadline not passed"))
	}

	previous := comp.Judge
	comp.Judge = comp.NextJudge
	comp.NextJudge = ""

	comp.JudgeAttempt++
	comp.PlacedCount = 0
	c.store.SetGroups(competitionID, nil)

	c.emit(event.TypeJudgeUpdated, competitionID, caller, now, event.JudgeUpdatedPayload{
		PreviousJudge: previous,
		NewJudge:      comp.Judge,
		JudgeAttempt:  comp.JudgeAttempt,
	}, nil)

	return nil
}
