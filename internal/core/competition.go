package core

import (
	"context"
	"math/big"
	"time"

	"TradeArena/internal/event"
	widemath "TradeArena/internal/math"
	"TradeArena/internal/store"
)

// CreateCompetitionParams is the admin-supplied competition definition.
// Zero ProcessingFee / AdminFeeNumerator fall back to the configured
// defaults when the corresponding Default flag is set.
type CreateCompetitionParams struct {
	Start time.Time
	End   time.Time

	EntryFeeAsset  string
	EntryFeeAmount *big.Int

	// nil means use the configured default.
	AdminFeeNumerator *int64
	ProcessingFee     *big.Int

	PayoutPlaces int
}

// CreateCompetition registers a new competition. Admin only. The admin is
// seeded as the initial judge with a deadline one step past the end.
func (c *Core) CreateCompetition(ctx context.Context, caller string, p CreateCompetitionParams) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.cfg.Admin {
		return 0, c.reject("create_competition", Unauthorised())
	}
	if !c.cfg.HasAsset(p.EntryFeeAsset) {
		return 0, c.reject("create_competition", Unprocessablef("unknown entry fee asset %s", p.EntryFeeAsset))
	}
	if widemath.IsZero(p.EntryFeeAmount) || p.EntryFeeAmount.Sign() < 0 {
		return 0, c.reject("create_competition", Unprocessable("entry fee amount must be positive"))
	}
	if p.PayoutPlaces < 1 {
		return 0, c.reject("create_competition", Unprocessable("at least one payout place is required"))
	}

	now := c.clock.Now()
	if !p.Start.After(now) {
		return 0, c.reject("create_competition", Unprocessable("start must be in the future"))
	}
	if p.End.Before(p.Start.Add(MinimumDuration)) {
		return 0, c.reject("create_competition", Unprocessablef("duration below minimum of %s", MinimumDuration))
	}

	adminNumerator := c.cfg.DefaultAdminFeeNumerator
	if p.AdminFeeNumerator != nil {
		adminNumerator = *p.AdminFeeNumerator
	}
	if adminNumerator < 0 || adminNumerator > Denominator {
		return 0, c.reject("create_competition", Unprocessablef("admin fee numerator %d out of range", adminNumerator))
	}

	processingFee := c.cfg.DefaultProcessingFeeAmount()
	if p.ProcessingFee != nil {
		if p.ProcessingFee.Sign() < 0 {
			return 0, c.reject("create_competition", Unprocessable("processing fee must not be negative"))
		}
		processingFee = widemath.Clone(p.ProcessingFee)
	}

	id := c.store.NextCompetitionID()
	comp := &store.Competition{
		ID:                id,
		Creator:           caller,
		Start:             p.Start,
		End:               p.End,
		EntryFeeAsset:     p.EntryFeeAsset,
		EntryFeeAmount:    widemath.Clone(p.EntryFeeAmount),
		AdminFeeNumerator: adminNumerator,
		ProcessingFee:     processingFee,
		Judge:             c.cfg.Admin,
		JudgeAttempt:      1,
		PayoutPlaces:      p.PayoutPlaces,
	}
	c.store.PutCompetition(comp)

	// The admin starts as judge and must act within one deadline step of
	// the competition end, or be superseded by a challenger.
	deadline := p.End.Add(JudgeDeadlineStep)
	c.store.PutJudge(store.JudgeKey{CompetitionID: id, Address: caller}, deadline)

	c.emit(event.TypeCompetitionCreated, id, caller, now, event.CompetitionCreatedPayload{
		CompetitionID:     id,
		Creator:           caller,
		StartUnixMicro:    p.Start.UnixMicro(),
		EndUnixMicro:      p.End.UnixMicro(),
		EntryFeeAsset:     p.EntryFeeAsset,
		EntryFeeAmount:    comp.EntryFeeAmount.String(),
		AdminFeeNumerator: adminNumerator,
		ProcessingFee:     processingFee.String(),
		PayoutPlaces:      p.PayoutPlaces,
		Judge:             caller,
	}, nil)

	return id, nil
}

// SetPayoutStructure assigns payout numerators to rank positions. Callable
// by the admin or the competition creator, only before the start, and only
// while the numerator sum stays at or below the denominator. Registration
// opens once the sum reaches the denominator exactly.
func (c *Core) SetPayoutStructure(ctx context.Context, caller string, competitionID uint64, places []int, numerators []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return c.reject("set_payout_structure", NotFound("competition"))
	}
	if caller != c.cfg.Admin && caller != comp.Creator {
		return c.reject("set_payout_structure", Unauthorised())
	}
	now := c.clock.Now()
	if !now.Before(comp.Start) {
		return c.reject("set_payout_structure", Unprocessable("competition already started"))
	}
	if len(places) == 0 || len(places) != len(numerators) {
		return c.reject("set_payout_structure", Unprocessable("places and numerators must pair up"))
	}

	// Stage the new sum before touching the store so an over-allocation
	// rejects without mutation.
	sum := comp.PayoutNumeratorSum
	staged := make(map[int]int64, len(places))
	for i, place := range places {
		numerator := numerators[i]
		if place < 1 || place > comp.PayoutPlaces {
			return c.reject("set_payout_structure", Unprocessablef("place %d out of range [1, %d]", place, comp.PayoutPlaces))
		}
		if numerator < 0 {
			return c.reject("set_payout_structure", Unprocessablef("negative numerator for place %d", place))
		}
		if _, dup := staged[place]; dup {
			return c.reject("set_payout_structure", Unprocessablef("place %d listed twice", place))
		}
		staged[place] = numerator

		previous := c.store.PayoutNumerator(store.PayoutKey{CompetitionID: competitionID, Place: place})
		sum += numerator - previous
	}
	if sum > Denominator {
		return c.reject("set_payout_structure", Unprocessablef("numerator sum %d exceeds denominator %d", sum, Denominator))
	}

	for place, numerator := range staged {
		c.store.SetPayoutNumerator(store.PayoutKey{CompetitionID: competitionID, Place: place}, numerator)
	}
	comp.PayoutNumeratorSum = sum

	c.emit(event.TypePayoutStructureSet, competitionID, caller, now, event.PayoutStructureSetPayload{
		Places:       places,
		Numerators:   numerators,
		NumeratorSum: sum,
	}, nil)

	return nil
}
