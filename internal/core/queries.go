package core

import (
	"time"

	widemath "TradeArena/internal/math"
	"TradeArena/internal/store"
)

// Read-side views. All queries copy under the same mutex that serializes
// commands, so a view is always a consistent cut of the ledger.

type CompetitionView struct {
	ID                 uint64    `json:"id"`
	Creator            string    `json:"creator"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	EntryFeeAsset      string    `json:"entry_fee_asset"`
	EntryFeeAmount     string    `json:"entry_fee_amount"`
	AdminFeeNumerator  int64     `json:"admin_fee_numerator"`
	ProcessingFee      string    `json:"processing_fee"`
	Judge              string    `json:"judge"`
	NextJudge          string    `json:"next_judge,omitempty"`
	JudgeAttempt       int64     `json:"judge_attempt"`
	PayoutPlaces       int       `json:"payout_places"`
	PayoutNumeratorSum int64     `json:"payout_numerator_sum"`
	SnapshotTaken      bool      `json:"snapshot_taken"`
	AdminFeeCollected  bool      `json:"admin_fee_collected"`
	ParticipantCount   int64     `json:"participant_count"`
	ValuedCount        int64     `json:"valued_count"`
	PlacedCount        int64     `json:"placed_count"`
}

type BalanceView struct {
	Asset          string `json:"asset"`
	Amount         string `json:"amount"`
	PrizeCollected bool   `json:"prize_collected"`
}

type ParticipantView struct {
	Participant string        `json:"participant"`
	FinalValue  string        `json:"final_value,omitempty"`
	Valued      bool          `json:"valued"`
	Placed      bool          `json:"placed"`
	GroupIndex  int           `json:"group_index"`
	Balances    []BalanceView `json:"balances"`
}

type GroupView struct {
	Value     string `json:"value"`
	TieCount  int64  `json:"tie_count"`
	Numerator int64  `json:"numerator"`
}

type PoolView struct {
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	Collected string `json:"collected"`
}

// GetCompetition returns the competition configuration and progress.
func (c *Core) GetCompetition(competitionID uint64) (*CompetitionView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return nil, NotFound("competition")
	}
	return &CompetitionView{
		ID:                 comp.ID,
		Creator:            comp.Creator,
		Start:              comp.Start,
		End:                comp.End,
		EntryFeeAsset:      comp.EntryFeeAsset,
		EntryFeeAmount:     comp.EntryFeeAmount.String(),
		AdminFeeNumerator:  comp.AdminFeeNumerator,
		ProcessingFee:      comp.ProcessingFee.String(),
		Judge:              comp.Judge,
		NextJudge:          comp.NextJudge,
		JudgeAttempt:       comp.JudgeAttempt,
		PayoutPlaces:       comp.PayoutPlaces,
		PayoutNumeratorSum: comp.PayoutNumeratorSum,
		SnapshotTaken:      comp.SnapshotTaken,
		AdminFeeCollected:  comp.AdminFeeCollected,
		ParticipantCount:   comp.ParticipantCount,
		ValuedCount:        comp.ValuedCount,
		PlacedCount:        comp.PlacedCount,
	}, nil
}

// GetParticipant returns one participant's record with per-asset balances
// in configuration order.
func (c *Core) GetParticipant(competitionID uint64, participant string) (*ParticipantView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp, ok := c.store.Competition(competitionID)
	if !ok {
		return nil, NotFound("competition")
	}
	rec, ok := c.store.Participant(store.ParticipantKey{CompetitionID: competitionID, Participant: participant})
	if !ok {
		return nil, NotFound("participant")
	}

	view := &ParticipantView{
		Participant: participant,
		FinalValue:  rec.FinalValue,
		Valued:      rec.Valued,
		Placed:      rec.PlacedAttempt == comp.JudgeAttempt,
		GroupIndex:  rec.GroupIndex,
	}
	for _, a := range c.cfg.Assets {
		bal, ok := c.store.Balance(store.BalanceKey{
			CompetitionID: competitionID,
			Asset:         a.Asset,
			Participant:   participant,
		})
		if !ok {
			continue
		}
		view.Balances = append(view.Balances, BalanceView{
			Asset:          a.Asset,
			Amount:         widemath.FormatValue(bal.Amount),
			PrizeCollected: bal.PrizeCollected,
		})
	}
	return view, nil
}

// GetPlacementGroups returns the ranked groups, ascending by final value.
func (c *Core) GetPlacementGroups(competitionID uint64) ([]GroupView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.store.Competition(competitionID); !ok {
		return nil, NotFound("competition")
	}
	groups := c.store.Groups(competitionID)
	views := make([]GroupView, len(groups))
	for i, g := range groups {
		views[i] = GroupView{
			Value:     widemath.FormatValue(g.Value),
			TieCount:  g.TieCount,
			Numerator: g.Numerator,
		}
	}
	return views, nil
}

// GetPrizePools returns the per-asset prize pools in configuration order.
// Assets with no pool yet are omitted.
func (c *Core) GetPrizePools(competitionID uint64) ([]PoolView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.store.Competition(competitionID); !ok {
		return nil, NotFound("competition")
	}
	var views []PoolView
	for _, a := range c.cfg.Assets {
		pool, ok := c.store.Pool(store.PoolKey{CompetitionID: competitionID, Asset: a.Asset})
		if !ok {
			continue
		}
		views = append(views, PoolView{
			Asset:     a.Asset,
			Amount:    pool.Amount.String(),
			Collected: pool.Collected.String(),
		})
	}
	return views, nil
}
