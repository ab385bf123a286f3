package core

import (
	"context"
	"math/big"

	"TradeArena/internal/event"
	widemath "TradeArena/internal/math"
	"TradeArena/internal/store"
)

// TakePriceSnapshot pulls one price per configured asset from the oracle
// and freezes them. Callable once per competition, strictly after the end,
// and all-or-nothing: any unavailable price aborts the whole snapshot.
func (c *Core) TakePriceSnapshot(ctx context.Context, competitionID uint64, caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return c.reject("take_snapshot", NotFound("competition"))
	}
	now := c.clock.Now()
	if !now.After(comp.End) {
		return c.reject("take_snapshot", Unprocessable("competition not ended"))
	}
	if comp.SnapshotTaken {
		return c.reject("take_snapshot", Unprocessable("snapshot already taken"))
	}

	symbols := make([]string, len(c.cfg.Assets))
	for i, a := range c.cfg.Assets {
		symbols[i] = a.PriceSymbol
	}
	prices, err := c.oracle.LatestPrices(ctx, symbols)
	if err != nil {
		return c.reject("take_snapshot", err)
	}
	if len(prices) != len(symbols) {
		return c.reject("take_snapshot", Unprocessable("oracle returned wrong price count"))
	}
	for i, p := range prices {
		if p == nil || p.Price == nil {
			return c.reject("take_snapshot", Unprocessablef("price unavailable for %s", symbols[i]))
		}
	}

	assets := make([]string, len(c.cfg.Assets))
	priceStrings := make([]string, len(c.cfg.Assets))
	for i, a := range c.cfg.Assets {
		c.store.PutPrice(store.SnapshotKey{CompetitionID: competitionID, Asset: a.Asset}, &store.PricePoint{
			Timestamp: prices[i].Timestamp,
			Price:     widemath.Clone(prices[i].Price),
		})
		assets[i] = a.Asset
		priceStrings[i] = prices[i].Price.String()
	}
	comp.SnapshotTaken = true

	c.emit(event.TypeSnapshotTaken, competitionID, caller, now, event.SnapshotTakenPayload{
		Assets: assets,
		Prices: priceStrings,
	}, nil)

	return nil
}

// ComputeFinalValue converts one participant's holdings into a final value
// at the snapshot prices and accrues their non-zero balances into the
// per-asset prize pools. This is the only place prize pools grow. The
// caller earns a fixed fraction of the competition's processing fee; a
// failed incentive payment leaves the reserve inconsistent with its
// accounting and halts the engine.
func (c *Core) ComputeFinalValue(ctx context.Context, competitionID uint64, caller, participant string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return nil, c.reject("compute_final_value", NotFound("competition"))
	}
	if !comp.SnapshotTaken {
		return nil, c.reject("compute_final_value", Unprocessable("no price snapshot"))
	}

	pkey := store.ParticipantKey{CompetitionID: competitionID, Participant: participant}
	rec, ok := c.store.Participant(pkey)
	if !ok {
		return nil, c.reject("compute_final_value", NotFound("participant"))
	}
	if rec.Valued {
		return nil, c.reject("compute_final_value", Unprocessable("already valued"))
	}

	total := widemath.Zero()
	var transfers []event.Transfer
	for _, a := range c.cfg.Assets {
		price, ok := c.store.Price(store.SnapshotKey{CompetitionID: competitionID, Asset: a.Asset})
		if !ok {
			return nil, c.reject("compute_final_value", NotFound("price snapshot"))
		}
		bal, ok := c.store.Balance(store.BalanceKey{
			CompetitionID: competitionID,
			Asset:         a.Asset,
			Participant:   participant,
		})
		if !ok || widemath.IsZero(bal.Amount) {
			continue
		}

		widemath.AddMul(total, price.Price, bal.Amount)
		c.store.AccruePool(store.PoolKey{CompetitionID: competitionID, Asset: a.Asset}, bal.Amount)
		transfers = append(transfers, transfer(a.Asset, participant, partyPool, bal.Amount, event.TransferPoolAccrual))
	}

	rec.FinalValue = widemath.FormatValue(total)
	rec.Valued = true
	comp.ValuedCount++

	reward := widemath.MulQuo(comp.ProcessingFee, ValuationRewardNumerator, Denominator)
	if reward.Sign() > 0 {
		if err := c.custody.Push(ctx, c.cfg.FeeAsset, caller, reward); err != nil {
			panic(&FatalError{Op: "valuation incentive payment", Cause: err})
		}
		transfers = append(transfers, transfer(c.cfg.FeeAsset, partyCustody, caller, reward, event.TransferIncentive))
	}

	c.emit(event.TypeValuationCompleted, competitionID, caller, c.clock.Now(), event.ValuationCompletedPayload{
		Participant: participant,
		FinalValue:  rec.FinalValue,
		Reward:      reward.String(),
	}, transfers)

	if c.metrics != nil {
		c.metrics.ValuationsDone.Inc()
	}
	return total, nil
}
