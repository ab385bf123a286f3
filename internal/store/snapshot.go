package store

import (
	"fmt"
	"sort"
	"time"

	widemath "TradeArena/internal/math"
)

// State is the serializable form of the store, used for warm restarts.
// Amounts travel as decimal strings; rows are sorted so marshaling is
// deterministic.
type State struct {
	NextCompetitionID uint64             `json:"next_competition_id"`
	Competitions      []CompetitionState `json:"competitions"`
	Participants      []ParticipantState `json:"participants"`
	Balances          []BalanceState     `json:"balances"`
	Judges            []JudgeState       `json:"judges"`
	Pools             []PoolState        `json:"pools"`
	Prices            []PriceState       `json:"prices"`
	Payouts           []PayoutState      `json:"payouts"`
	Groups            []GroupListState   `json:"groups"`
}

type CompetitionState struct {
	ID                 uint64 `json:"id"`
	Creator            string `json:"creator"`
	StartUnixMicro     int64  `json:"start_us"`
	EndUnixMicro       int64  `json:"end_us"`
	EntryFeeAsset      string `json:"entry_fee_asset"`
	EntryFeeAmount     string `json:"entry_fee_amount"`
	AdminFeeNumerator  int64  `json:"admin_fee_numerator"`
	ProcessingFee      string `json:"processing_fee"`
	Judge              string `json:"judge"`
	NextJudge          string `json:"next_judge"`
	JudgeAttempt       int64  `json:"judge_attempt"`
	PayoutPlaces       int    `json:"payout_places"`
	PayoutNumeratorSum int64  `json:"payout_numerator_sum"`
	SnapshotTaken      bool   `json:"snapshot_taken"`
	AdminFeeCollected  bool   `json:"admin_fee_collected"`
	ParticipantCount   int64  `json:"participant_count"`
	ValuedCount        int64  `json:"valued_count"`
	PlacedCount        int64  `json:"placed_count"`
}

type ParticipantState struct {
	CompetitionID uint64 `json:"competition_id"`
	Participant   string `json:"participant"`
	FinalValue    string `json:"final_value"`
	Valued        bool   `json:"valued"`
	PlacedAttempt int64  `json:"placed_attempt"`
	GroupIndex    int    `json:"group_index"`
}

type BalanceState struct {
	CompetitionID  uint64 `json:"competition_id"`
	Asset          string `json:"asset"`
	Participant    string `json:"participant"`
	Amount         string `json:"amount"`
	PrizeCollected bool   `json:"prize_collected"`
}

type JudgeState struct {
	CompetitionID     uint64 `json:"competition_id"`
	Address           string `json:"address"`
	DeadlineUnixMicro int64  `json:"deadline_us"`
}

type PoolState struct {
	CompetitionID uint64 `json:"competition_id"`
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	Collected     string `json:"collected"`
}

type PriceState struct {
	CompetitionID uint64 `json:"competition_id"`
	Asset         string `json:"asset"`
	Timestamp     int64  `json:"timestamp"`
	Price         string `json:"price"`
}

type PayoutState struct {
	CompetitionID uint64 `json:"competition_id"`
	Place         int    `json:"place"`
	Numerator     int64  `json:"numerator"`
}

type GroupListState struct {
	CompetitionID uint64       `json:"competition_id"`
	Groups        []GroupState `json:"groups"`
}

type GroupState struct {
	Value     string `json:"value"`
	TieCount  int64  `json:"tie_count"`
	Numerator int64  `json:"numerator"`
}

// Snapshot captures the full store state.
func (s *Store) Snapshot() *State {
	st := &State{NextCompetitionID: s.nextCompetitionID}

	for _, c := range s.competitions {
		st.Competitions = append(st.Competitions, CompetitionState{
			ID:                 c.ID,
			Creator:            c.Creator,
			StartUnixMicro:     c.Start.UnixMicro(),
			EndUnixMicro:       c.End.UnixMicro(),
			EntryFeeAsset:      c.EntryFeeAsset,
			EntryFeeAmount:     widemath.FormatValue(c.EntryFeeAmount),
			AdminFeeNumerator:  c.AdminFeeNumerator,
			ProcessingFee:      widemath.FormatValue(c.ProcessingFee),
			Judge:              c.Judge,
			NextJudge:          c.NextJudge,
			JudgeAttempt:       c.JudgeAttempt,
			PayoutPlaces:       c.PayoutPlaces,
			PayoutNumeratorSum: c.PayoutNumeratorSum,
			SnapshotTaken:      c.SnapshotTaken,
			AdminFeeCollected:  c.AdminFeeCollected,
			ParticipantCount:   c.ParticipantCount,
			ValuedCount:        c.ValuedCount,
			PlacedCount:        c.PlacedCount,
		})
	}
	sort.Slice(st.Competitions, func(i, j int) bool { return st.Competitions[i].ID < st.Competitions[j].ID })

	for key, p := range s.participants {
		st.Participants = append(st.Participants, ParticipantState{
			CompetitionID: key.CompetitionID,
			Participant:   key.Participant,
			FinalValue:    p.FinalValue,
			Valued:        p.Valued,
			PlacedAttempt: p.PlacedAttempt,
			GroupIndex:    p.GroupIndex,
		})
	}
	sort.Slice(st.Participants, func(i, j int) bool {
		a, b := st.Participants[i], st.Participants[j]
		if a.CompetitionID != b.CompetitionID {
			return a.CompetitionID < b.CompetitionID
		}
		return a.Participant < b.Participant
	})

	for key, b := range s.balances {
		st.Balances = append(st.Balances, BalanceState{
			CompetitionID:  key.CompetitionID,
			Asset:          key.Asset,
			Participant:    key.Participant,
			Amount:         widemath.FormatValue(b.Amount),
			PrizeCollected: b.PrizeCollected,
		})
	}
	sort.Slice(st.Balances, func(i, j int) bool {
		a, b := st.Balances[i], st.Balances[j]
		if a.CompetitionID != b.CompetitionID {
			return a.CompetitionID < b.CompetitionID
		}
		if a.Asset != b.Asset {
			return a.Asset < b.Asset
		}
		return a.Participant < b.Participant
	})

	for key, j := range s.judges {
		st.Judges = append(st.Judges, JudgeState{
			CompetitionID:     key.CompetitionID,
			Address:           key.Address,
			DeadlineUnixMicro: j.Deadline.UnixMicro(),
		})
	}
	sort.Slice(st.Judges, func(i, j int) bool {
		a, b := st.Judges[i], st.Judges[j]
		if a.CompetitionID != b.CompetitionID {
			return a.CompetitionID < b.CompetitionID
		}
		return a.Address < b.Address
	})

	for key, p := range s.pools {
		st.Pools = append(st.Pools, PoolState{
			CompetitionID: key.CompetitionID,
			Asset:         key.Asset,
			Amount:        widemath.FormatValue(p.Amount),
			Collected:     widemath.FormatValue(p.Collected),
		})
	}
	sort.Slice(st.Pools, func(i, j int) bool {
		a, b := st.Pools[i], st.Pools[j]
		if a.CompetitionID != b.CompetitionID {
			return a.CompetitionID < b.CompetitionID
		}
		return a.Asset < b.Asset
	})

	for key, p := range s.snapshots {
		st.Prices = append(st.Prices, PriceState{
			CompetitionID: key.CompetitionID,
			Asset:         key.Asset,
			Timestamp:     p.Timestamp,
			Price:         widemath.FormatValue(p.Price),
		})
	}
	sort.Slice(st.Prices, func(i, j int) bool {
		a, b := st.Prices[i], st.Prices[j]
		if a.CompetitionID != b.CompetitionID {
			return a.CompetitionID < b.CompetitionID
		}
		return a.Asset < b.Asset
	})

	for key, n := range s.payouts {
		st.Payouts = append(st.Payouts, PayoutState{
			CompetitionID: key.CompetitionID,
			Place:         key.Place,
			Numerator:     n,
		})
	}
	sort.Slice(st.Payouts, func(i, j int) bool {
		a, b := st.Payouts[i], st.Payouts[j]
		if a.CompetitionID != b.CompetitionID {
			return a.CompetitionID < b.CompetitionID
		}
		return a.Place < b.Place
	})

	for compID, groups := range s.groups {
		gl := GroupListState{CompetitionID: compID}
		for _, g := range groups {
			gl.Groups = append(gl.Groups, GroupState{
				Value:     widemath.FormatValue(g.Value),
				TieCount:  g.TieCount,
				Numerator: g.Numerator,
			})
		}
		st.Groups = append(st.Groups, gl)
	}
	sort.Slice(st.Groups, func(i, j int) bool { return st.Groups[i].CompetitionID < st.Groups[j].CompetitionID })

	return st
}

// Restore replaces the store contents with the snapshot state.
func (s *Store) Restore(st *State) error {
	fresh := New()

	if st.NextCompetitionID > 0 {
		fresh.nextCompetitionID = st.NextCompetitionID
	}

	for _, cs := range st.Competitions {
		entryFee, err := widemath.ParseValue(cs.EntryFeeAmount)
		if err != nil {
			return fmt.Errorf("competition %d entry fee: %w", cs.ID, err)
		}
		processingFee, err := widemath.ParseValue(cs.ProcessingFee)
		if err != nil {
			return fmt.Errorf("competition %d processing fee: %w", cs.ID, err)
		}
		fresh.competitions[cs.ID] = &Competition{
			ID:                 cs.ID,
			Creator:            cs.Creator,
			Start:              time.UnixMicro(cs.StartUnixMicro),
			End:                time.UnixMicro(cs.EndUnixMicro),
			EntryFeeAsset:      cs.EntryFeeAsset,
			EntryFeeAmount:     entryFee,
			AdminFeeNumerator:  cs.AdminFeeNumerator,
			ProcessingFee:      processingFee,
			Judge:              cs.Judge,
			NextJudge:          cs.NextJudge,
			JudgeAttempt:       cs.JudgeAttempt,
			PayoutPlaces:       cs.PayoutPlaces,
			PayoutNumeratorSum: cs.PayoutNumeratorSum,
			SnapshotTaken:      cs.SnapshotTaken,
			AdminFeeCollected:  cs.AdminFeeCollected,
			ParticipantCount:   cs.ParticipantCount,
			ValuedCount:        cs.ValuedCount,
			PlacedCount:        cs.PlacedCount,
		}
	}

	for _, ps := range st.Participants {
		fresh.participants[ParticipantKey{ps.CompetitionID, ps.Participant}] = &Participant{
			FinalValue:    ps.FinalValue,
			Valued:        ps.Valued,
			PlacedAttempt: ps.PlacedAttempt,
			GroupIndex:    ps.GroupIndex,
		}
	}

	for _, bs := range st.Balances {
		amount, err := widemath.ParseValue(bs.Amount)
		if err != nil {
			return fmt.Errorf("balance %d/%s/%s: %w", bs.CompetitionID, bs.Asset, bs.Participant, err)
		}
		fresh.balances[BalanceKey{bs.CompetitionID, bs.Asset, bs.Participant}] = &Balance{
			Amount:         amount,
			PrizeCollected: bs.PrizeCollected,
		}
	}

	for _, js := range st.Judges {
		fresh.judges[JudgeKey{js.CompetitionID, js.Address}] = &JudgeRecord{
			Deadline: time.UnixMicro(js.DeadlineUnixMicro),
		}
	}

	for _, ps := range st.Pools {
		amount, err := widemath.ParseValue(ps.Amount)
		if err != nil {
			return fmt.Errorf("pool %d/%s amount: %w", ps.CompetitionID, ps.Asset, err)
		}
		collected, err := widemath.ParseValue(ps.Collected)
		if err != nil {
			return fmt.Errorf("pool %d/%s collected: %w", ps.CompetitionID, ps.Asset, err)
		}
		fresh.pools[PoolKey{ps.CompetitionID, ps.Asset}] = &PrizePool{Amount: amount, Collected: collected}
	}

	for _, pr := range st.Prices {
		price, err := widemath.ParseValue(pr.Price)
		if err != nil {
			return fmt.Errorf("price %d/%s: %w", pr.CompetitionID, pr.Asset, err)
		}
		fresh.snapshots[SnapshotKey{pr.CompetitionID, pr.Asset}] = &PricePoint{
			Timestamp: pr.Timestamp,
			Price:     price,
		}
	}

	for _, py := range st.Payouts {
		fresh.payouts[PayoutKey{py.CompetitionID, py.Place}] = py.Numerator
	}

	for _, gl := range st.Groups {
		groups := make([]PlacementGroup, 0, len(gl.Groups))
		for _, g := range gl.Groups {
			value, err := widemath.ParseValue(g.Value)
			if err != nil {
				return fmt.Errorf("group value for competition %d: %w", gl.CompetitionID, err)
			}
			groups = append(groups, PlacementGroup{
				Value:     value,
				TieCount:  g.TieCount,
				Numerator: g.Numerator,
			})
		}
		fresh.groups[gl.CompetitionID] = groups
	}

	*s = *fresh
	return nil
}
