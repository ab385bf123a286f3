package core

import (
	"context"
	"math/big"

	"TradeArena/internal/event"
	widemath "TradeArena/internal/math"
	"TradeArena/internal/store"
)

// PlaceParticipants ranks a batch of participants. Judge only. Addresses
// must arrive in non-decreasing final-value order; ties merge into the
// previous group and share its combined numerator. The first bad entry
// aborts the whole call with no mutation.
func (c *Core) PlaceParticipants(ctx context.Context, competitionID uint64, caller string, participants []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return c.reject("place", NotFound("competition"))
	}
	if caller != comp.Judge {
		return c.reject("place", Unauthorised())
	}
	now := c.clock.Now()
	if !now.After(comp.End) {
		return c.reject("place", Unprocessable("competition not ended"))
	}
	if comp.ValuedCount != comp.ParticipantCount {
		return c.reject("place", Unprocessable("valuation incomplete"))
	}
	if comp.PlacedCount >= comp.ParticipantCount {
		return c.reject("place", Unprocessable("all participants already placed"))
	}
	if len(participants) == 0 {
		return c.reject("place", Unprocessable("empty batch"))
	}

	// Stage everything against copies; commit only when the whole batch
	// validates.
	groups := c.store.CopyGroups(competitionID)
	placedCount := comp.PlacedCount
	type placement struct {
		rec        *store.Participant
		groupIndex int
	}
	staged := make([]placement, 0, len(participants))
	seen := make(map[string]bool, len(participants))

	for _, addr := range participants {
		rec, ok := c.store.Participant(store.ParticipantKey{CompetitionID: competitionID, Participant: addr})
		if !ok {
			return c.reject("place", NotFound("participant"))
		}
		// The attempt stamp is only written at commit, so a repeat within
		// the batch has to be caught against the staged set.
		if rec.PlacedAttempt == comp.JudgeAttempt || seen[addr] {
			return c.reject("place", Unprocessable("already placed"))
		}
		seen[addr] = true

		value, err := widemath.ParseValue(rec.FinalValue)
		if err != nil {
			return c.reject("place", Unprocessablef("corrupt final value for %s", addr))
		}

		// Each placed participant consumes one rank position; ranks past
		// the payout places earn nothing.
		position := int(placedCount) + 1
		var owed int64
		if position <= comp.PayoutPlaces {
			owed = c.store.PayoutNumerator(store.PayoutKey{CompetitionID: competitionID, Place: position})
		}

		var groupIndex int
		if len(groups) == 0 {
			groups = append(groups, store.PlacementGroup{Value: value, TieCount: 1, Numerator: owed})
			groupIndex = 0
		} else {
			last := &groups[len(groups)-1]
			switch value.Cmp(last.Value) {
			case 0:
				last.TieCount++
				last.Numerator += owed
				groupIndex = len(groups) - 1
			case 1:
				groups = append(groups, store.PlacementGroup{Value: value, TieCount: 1, Numerator: owed})
				groupIndex = len(groups) - 1
			default:
				return c.reject("place", Unprocessable("wrong place"))
			}
		}

		staged = append(staged, placement{rec: rec, groupIndex: groupIndex})
		placedCount++
	}

	// The judge earns the remaining processing fee fraction per placed
	// participant. The payment happens before commit so a custody failure
	// stays recoverable.
	judgeCut := new(big.Int).Sub(comp.ProcessingFee, widemath.MulQuo(comp.ProcessingFee, ValuationRewardNumerator, Denominator))
	judgeReward := new(big.Int).Mul(judgeCut, big.NewInt(int64(len(staged))))
	var transfers []event.Transfer
	if judgeReward.Sign() > 0 {
		if err := c.custody.Push(ctx, c.cfg.FeeAsset, caller, judgeReward); err != nil {
			return c.reject("place", TransferFailed(err))
		}
		transfers = append(transfers, transfer(c.cfg.FeeAsset, partyCustody, caller, judgeReward, event.TransferIncentive))
	}

	c.store.SetGroups(competitionID, groups)
	for _, p := range staged {
		p.rec.PlacedAttempt = comp.JudgeAttempt
		p.rec.GroupIndex = p.groupIndex
	}
	comp.PlacedCount = placedCount

	c.emit(event.TypePlaced, competitionID, caller, now, event.PlacedPayload{
		Judge:        caller,
		Participants: participants,
		JudgeAttempt: comp.JudgeAttempt,
		PlacedCount:  placedCount,
	}, transfers)

	if c.metrics != nil {
		c.metrics.PlacementsApplied.Add(float64(len(staged)))
	}
	return nil
}

// ResetPlacements discards the current ranking and bumps the judge attempt
// counter, invalidating every placement stamped with earlier attempts.
// Callable by the current judge or the admin.
func (c *Core) ResetPlacements(ctx context.Context, competitionID uint64, caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return c.reject("reset_placements", NotFound("competition"))
	}
	if caller != comp.Judge && caller != c.cfg.Admin {
		return c.reject("reset_placements", Unauthorised())
	}
	if comp.PlacedCount == 0 {
		return c.reject("reset_placements", Unprocessable("nothing placed"))
	}

	comp.JudgeAttempt++
	comp.PlacedCount = 0
	c.store.SetGroups(competitionID, nil)

	c.emit(event.TypePlacementsReset, competitionID, caller, c.clock.Now(), event.PlacementsResetPayload{
		JudgeAttempt: comp.JudgeAttempt,
	}, nil)

	return nil
}
