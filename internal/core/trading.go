package core

import (
	"context"
	"math/big"
	"time"

	"TradeArena/internal/event"
	"TradeArena/internal/store"
)

// Swap trades along a validated path on behalf of a registered
// participant. Router failures propagate verbatim; the ledger is only
// touched after the router reports the realized output.
func (c *Core) Swap(ctx context.Context, competitionID uint64, caller string, amountIn, minAmountOut *big.Int, path []string, deadline time.Time) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return nil, c.reject("swap", NotFound("competition"))
	}
	pkey := store.ParticipantKey{CompetitionID: competitionID, Participant: caller}
	if _, exists := c.store.Participant(pkey); !exists {
		return nil, c.reject("swap", NotFound("participant"))
	}

	now := c.clock.Now()
	if !now.After(comp.Start) || now.After(comp.End) {
		return nil, c.reject("swap", Unprocessable("outside trading window"))
	}
	// Under the minimum viable field trading stays disabled; only
	// deregistration is open.
	if comp.ParticipantCount < int64(comp.PayoutPlaces) {
		return nil, c.reject("swap", Unprocessable("not enough participants to trade"))
	}

	if len(path) < 2 {
		return nil, c.reject("swap", Unprocessable("swap path needs at least two assets"))
	}
	for i := 0; i+1 < len(path); i++ {
		if !c.allowedPair(path[i], path[i+1]) {
			return nil, c.reject("swap", Unprocessablef("pair %s/%s is not allowed", path[i], path[i+1]))
		}
	}
	if deadline.After(comp.End) {
		return nil, c.reject("swap", Unprocessable("deadline past competition end"))
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, c.reject("swap", Unprocessable("amount in must be positive"))
	}

	assetIn, assetOut := path[0], path[len(path)-1]
	inKey := store.BalanceKey{CompetitionID: competitionID, Asset: assetIn, Participant: caller}
	balIn, ok := c.store.Balance(inKey)
	if !ok || balIn.Amount.Cmp(amountIn) < 0 {
		return nil, c.reject("swap", Unprocessable("insufficient balance"))
	}

	amounts, err := c.router.SwapExactIn(ctx, amountIn, minAmountOut, path, partyCustody, deadline)
	if err != nil {
		return nil, c.reject("swap", err)
	}
	if len(amounts) == 0 {
		return nil, c.reject("swap", Unprocessable("router returned no amounts"))
	}
	amountOut := amounts[len(amounts)-1]

	balIn.Amount.Sub(balIn.Amount, amountIn)

	outKey := store.BalanceKey{CompetitionID: competitionID, Asset: assetOut, Participant: caller}
	balOut, ok := c.store.Balance(outKey)
	if !ok {
		balOut = &store.Balance{Amount: new(big.Int)}
		c.store.PutBalance(outKey, balOut)
	}
	balOut.Amount.Add(balOut.Amount, amountOut)

	c.emit(event.TypeSwapped, competitionID, caller, now, event.SwappedPayload{
		Participant: caller,
		Path:        path,
		AmountIn:    amountIn.String(),
		AmountOut:   amountOut.String(),
	}, []event.Transfer{
		transfer(assetIn, caller, partyCustody, amountIn, event.TransferSwapIn),
		transfer(assetOut, partyCustody, caller, amountOut, event.TransferSwapOut),
	})

	if c.metrics != nil {
		c.metrics.SwapsExecuted.WithLabelValues(assetIn, assetOut).Inc()
	}
	return new(big.Int).Set(amountOut), nil
}
