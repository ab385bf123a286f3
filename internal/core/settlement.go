package core

import (
	"context"
	"math/big"

	"TradeArena/internal/event"
	widemath "TradeArena/internal/math"
	"TradeArena/internal/store"
)

// CollectAdminFee pays out the reserved admin fee share. Admin only, after
// the start, only once the field reached its minimum size, and only once.
func (c *Core) CollectAdminFee(ctx context.Context, competitionID uint64, caller string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return nil, c.reject("collect_admin_fee", NotFound("competition"))
	}
	if caller != c.cfg.Admin {
		return nil, c.reject("collect_admin_fee", Unauthorised())
	}
	now := c.clock.Now()
	if !now.After(comp.Start) {
		return nil, c.reject("collect_admin_fee", Unprocessable("competition not started"))
	}
	if comp.ParticipantCount < int64(comp.PayoutPlaces) {
		return nil, c.reject("collect_admin_fee", Unprocessable("not enough participants"))
	}
	if comp.AdminFeeCollected {
		return nil, c.reject("collect_admin_fee", Unprocessable("admin fee already collected"))
	}

	// participant_count × entry_fee × admin_numerator / DENOMINATOR with
	// a wide intermediate.
	total := new(big.Int).Mul(comp.EntryFeeAmount, big.NewInt(comp.ParticipantCount))
	fee := widemath.MulQuo(total, comp.AdminFeeNumerator, Denominator)

	if err := c.custody.Push(ctx, comp.EntryFeeAsset, caller, fee); err != nil {
		return nil, c.reject("collect_admin_fee", TransferFailed(err))
	}
	comp.AdminFeeCollected = true

	c.emit(event.TypeAdminFeeCollected, competitionID, caller, now, event.AdminFeeCollectedPayload{
		Asset:  comp.EntryFeeAsset,
		Amount: fee.String(),
	}, []event.Transfer{
		transfer(comp.EntryFeeAsset, partyCustody, caller, fee, event.TransferAdminFee),
	})

	return fee, nil
}

// CollectPrize pays the caller their share of one asset's prize pool. The
// share is computed against what remains in the pool, so rounding loss
// never lets collected exceed the pool amount, and whoever claims first
// within a tie group keeps any leftover advantage.
func (c *Core) CollectPrize(ctx context.Context, competitionID uint64, caller, asset string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return nil, c.reject("collect_prize", NotFound("competition"))
	}
	if comp.ParticipantCount == 0 || comp.PlacedCount != comp.ParticipantCount {
		return nil, c.reject("collect_prize", Unprocessable("placement incomplete"))
	}

	rec, ok := c.store.Participant(store.ParticipantKey{CompetitionID: competitionID, Participant: caller})
	if !ok {
		return nil, c.reject("collect_prize", NotFound("participant"))
	}
	if rec.PlacedAttempt != comp.JudgeAttempt {
		return nil, c.reject("collect_prize", Unprocessable("placement from a stale attempt"))
	}

	bkey := store.BalanceKey{CompetitionID: competitionID, Asset: asset, Participant: caller}
	bal, ok := c.store.Balance(bkey)
	if !ok {
		return nil, c.reject("collect_prize", NotFound("balance"))
	}
	if bal.PrizeCollected {
		return nil, c.reject("collect_prize", Unprocessable("prize already collected"))
	}

	pool, ok := c.store.Pool(store.PoolKey{CompetitionID: competitionID, Asset: asset})
	if !ok {
		return nil, c.reject("collect_prize", NotFound("prize pool"))
	}
	groups := c.store.Groups(competitionID)
	if rec.GroupIndex < 0 || rec.GroupIndex >= len(groups) {
		return nil, c.reject("collect_prize", NotFound("placement group"))
	}
	group := groups[rec.GroupIndex]

	available := new(big.Int).Sub(pool.Amount, pool.Collected)
	owed := widemath.Share(available, group.Numerator, Denominator, group.TieCount)
	if owed.Cmp(available) > 0 {
		owed = available
	}
	if owed.Sign() == 0 {
		return nil, c.reject("collect_prize", Unprocessable("nothing to collect"))
	}

	if err := c.custody.Push(ctx, asset, caller, owed); err != nil {
		return nil, c.reject("collect_prize", TransferFailed(err))
	}
	pool.Collected.Add(pool.Collected, owed)
	bal.PrizeCollected = true

	c.emit(event.TypePrizeCollected, competitionID, caller, c.clock.Now(), event.PrizeCollectedPayload{
		Participant: caller,
		Asset:       asset,
		Amount:      owed.String(),
	}, []event.Transfer{
		transfer(asset, partyPool, caller, owed, event.TransferPrize),
	})

	if c.metrics != nil {
		c.metrics.PrizesPaid.Inc()
	}
	return owed, nil
}
