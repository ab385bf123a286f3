package core

import (
	"context"
	"math/big"

	"TradeArena/internal/event"
	widemath "TradeArena/internal/math"
	"TradeArena/internal/store"
)

// Register enrolls a participant. The processing fee must match the
// configured amount exactly; under- or over-payment is rejected, never
// refunded with change. On success the entry fee is pulled into custody,
// the admin fee share is reserved out of the entry asset, and a zero
// balance is seeded for every other tradable asset.
func (c *Core) Register(ctx context.Context, competitionID uint64, caller string, feePayment *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return c.reject("register", NotFound("competition"))
	}
	if comp.PayoutNumeratorSum != Denominator {
		return c.reject("register", Unprocessable("payout structure not fully defined"))
	}
	now := c.clock.Now()
	if !now.Before(comp.Start) {
		return c.reject("register", Unprocessable("registration closed"))
	}

	pkey := store.ParticipantKey{CompetitionID: competitionID, Participant: caller}
	if _, exists := c.store.Participant(pkey); exists {
		return c.reject("register", Unprocessable("Already registered"))
	}

	if feePayment == nil {
		feePayment = widemath.Zero()
	}
	if feePayment.Cmp(comp.ProcessingFee) != 0 {
		return c.reject("register", Unprocessablef("Please include %s %s as processing fee.", comp.ProcessingFee, c.cfg.FeeAsset))
	}

	// Custody pulls happen after all validation and before any mutation.
	// A failed pull leaves no trace.
	if comp.ProcessingFee.Sign() > 0 {
		if err := c.custody.Pull(ctx, c.cfg.FeeAsset, caller, comp.ProcessingFee); err != nil {
			return c.reject("register", TransferFailed(err))
		}
	}
	if err := c.custody.Pull(ctx, comp.EntryFeeAsset, caller, comp.EntryFeeAmount); err != nil {
		return c.reject("register", TransferFailed(err))
	}

	// Reserve the admin fee share out of the entry asset only.
	adminShare := widemath.MulQuo(comp.EntryFeeAmount, comp.AdminFeeNumerator, Denominator)
	seeded := new(big.Int).Sub(comp.EntryFeeAmount, adminShare)

	c.store.PutBalance(store.BalanceKey{
		CompetitionID: competitionID,
		Asset:         comp.EntryFeeAsset,
		Participant:   caller,
	}, &store.Balance{Amount: seeded})

	for _, a := range c.cfg.Assets {
		if a.Asset == comp.EntryFeeAsset {
			continue
		}
		c.store.PutBalance(store.BalanceKey{
			CompetitionID: competitionID,
			Asset:         a.Asset,
			Participant:   caller,
		}, &store.Balance{Amount: widemath.Zero()})
	}

	c.store.PutParticipant(pkey, &store.Participant{})
	comp.ParticipantCount++

	transfers := []event.Transfer{
		transfer(comp.EntryFeeAsset, caller, partyCustody, comp.EntryFeeAmount, event.TransferEntryFee),
	}
	if comp.ProcessingFee.Sign() > 0 {
		transfers = append(transfers, transfer(c.cfg.FeeAsset, caller, partyCustody, comp.ProcessingFee, event.TransferProcessingFee))
	}

	c.emit(event.TypeRegistered, competitionID, caller, now, event.RegisteredPayload{
		Participant:    caller,
		EntryFeeAmount: comp.EntryFeeAmount.String(),
		AdminFeeShare:  adminShare.String(),
		ProcessingFee:  comp.ProcessingFee.String(),
	}, transfers)

	if c.metrics != nil {
		c.metrics.Registrations.Inc()
	}
	return nil
}

// Deregister withdraws a participant and refunds the full entry fee.
// Allowed before the competition starts, or at any point while the
// competition has not reached its minimum viable field (participants
// below payout places). The processing fee is not refunded.
func (c *Core) Deregister(ctx context.Context, competitionID uint64, caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return c.reject("deregister", NotFound("competition"))
	}
	pkey := store.ParticipantKey{CompetitionID: competitionID, Participant: caller}
	if _, exists := c.store.Participant(pkey); !exists {
		return c.reject("deregister", NotFound("participant"))
	}

	now := c.clock.Now()
	beforeStart := now.Before(comp.Start)
	underViable := comp.ParticipantCount < int64(comp.PayoutPlaces)
	if !beforeStart && !underViable {
		return c.reject("deregister", Unprocessable("deregistration closed"))
	}
	if comp.SnapshotTaken {
		return c.reject("deregister", Unprocessable("valuation already started"))
	}

	refund := comp.EntryFeeAmount
	if err := c.custody.Push(ctx, comp.EntryFeeAsset, caller, refund); err != nil {
		return c.reject("deregister", TransferFailed(err))
	}

	for _, a := range c.cfg.Assets {
		c.store.DeleteBalance(store.BalanceKey{
			CompetitionID: competitionID,
			Asset:         a.Asset,
			Participant:   caller,
		})
	}
	c.store.DeleteParticipant(pkey)
	comp.ParticipantCount--

	c.emit(event.TypeDeregistered, competitionID, caller, now, event.DeregisteredPayload{
		Participant: caller,
		Refund:      refund.String(),
	}, []event.Transfer{
		transfer(comp.EntryFeeAsset, partyCustody, caller, refund, event.TransferRefund),
	})

	return nil
}
