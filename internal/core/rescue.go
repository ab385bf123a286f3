package core

import (
	"context"
	"math/big"

	"TradeArena/internal/event"
	widemath "TradeArena/internal/math"
	"TradeArena/internal/store"
)

// EmergencyRescue returns a participant's stranded balance of one asset
// long after settlement should have finished. Admin only, and gated on a
// grace period past the competition end so it can never race normal prize
// collection.
func (c *Core) EmergencyRescue(ctx context.Context, competitionID uint64, caller, participant, asset string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return nil, c.reject("emergency_rescue", NotFound("competition"))
	}
	if caller != c.cfg.Admin {
		return nil, c.reject("emergency_rescue", Unauthorised())
	}
	now := c.clock.Now()
	if !now.After(comp.End.Add(RescueGracePeriod)) {
		return nil, c.reject("emergency_rescue", Unprocessable("rescue grace period not over"))
	}

	bkey := store.BalanceKey{CompetitionID: competitionID, Asset: asset, Participant: participant}
	bal, ok := c.store.Balance(bkey)
	if !ok {
		return nil, c.reject("emergency_rescue", NotFound("balance"))
	}
	if widemath.IsZero(bal.Amount) {
		return nil, c.reject("emergency_rescue", Unprocessable("nothing to rescue"))
	}

	amount := widemath.Clone(bal.Amount)
	if err := c.custody.Push(ctx, asset, participant, amount); err != nil {
		return nil, c.reject("emergency_rescue", TransferFailed(err))
	}
	bal.Amount.SetInt64(0)

	c.emit(event.TypeRescued, competitionID, caller, now, event.RescuedPayload{
		Participant: participant,
		Asset:       asset,
		Amount:      amount.String(),
	}, []event.Transfer{
		transfer(asset, partyCustody, participant, amount, event.TransferRescue),
	})

	return amount, nil
}
