package store

import (
	"math/big"
	"time"
)

// Store is the in-memory ledger: flat maps keyed by composite structs.
// It holds data and invariant-free accessors only; all business rules live
// in the core. The core serializes access, so the store itself is unlocked.
type Store struct {
	competitions map[uint64]*Competition
	participants map[ParticipantKey]*Participant
	balances     map[BalanceKey]*Balance
	judges       map[JudgeKey]*JudgeRecord
	pools        map[PoolKey]*PrizePool
	snapshots    map[SnapshotKey]*PricePoint
	payouts      map[PayoutKey]int64
	groups       map[uint64][]PlacementGroup

	nextCompetitionID uint64
}

func New() *Store {
	return &Store{
		competitions:      make(map[uint64]*Competition),
		participants:      make(map[ParticipantKey]*Participant),
		balances:          make(map[BalanceKey]*Balance),
		judges:            make(map[JudgeKey]*JudgeRecord),
		pools:             make(map[PoolKey]*PrizePool),
		snapshots:         make(map[SnapshotKey]*PricePoint),
		payouts:           make(map[PayoutKey]int64),
		groups:            make(map[uint64][]PlacementGroup),
		nextCompetitionID: 1,
	}
}

// === Competitions ===

func (s *Store) NextCompetitionID() uint64 {
	id := s.nextCompetitionID
	s.nextCompetitionID++
	return id
}

func (s *Store) PutCompetition(c *Competition) {
	s.competitions[c.ID] = c
}

func (s *Store) Competition(id uint64) (*Competition, bool) {
	c, ok := s.competitions[id]
	return c, ok
}

func (s *Store) CompetitionCount() int {
	return len(s.competitions)
}

// === Participants ===

func (s *Store) PutParticipant(key ParticipantKey, p *Participant) {
	s.participants[key] = p
}

func (s *Store) Participant(key ParticipantKey) (*Participant, bool) {
	p, ok := s.participants[key]
	return p, ok
}

func (s *Store) DeleteParticipant(key ParticipantKey) {
	delete(s.participants, key)
}

// === Balances ===

func (s *Store) PutBalance(key BalanceKey, b *Balance) {
	s.balances[key] = b
}

func (s *Store) Balance(key BalanceKey) (*Balance, bool) {
	b, ok := s.balances[key]
	return b, ok
}

func (s *Store) DeleteBalance(key BalanceKey) {
	delete(s.balances, key)
}

// === Judges ===

func (s *Store) PutJudge(key JudgeKey, deadline time.Time) {
	s.judges[key] = &JudgeRecord{Deadline: deadline}
}

func (s *Store) Judge(key JudgeKey) (*JudgeRecord, bool) {
	j, ok := s.judges[key]
	return j, ok
}

func (s *Store) DeleteJudge(key JudgeKey) {
	delete(s.judges, key)
}

// === Prize pools ===

func (s *Store) Pool(key PoolKey) (*PrizePool, bool) {
	p, ok := s.pools[key]
	return p, ok
}

// AccruePool adds amount to the pool for key, creating it on first accrual.
func (s *Store) AccruePool(key PoolKey, amount *big.Int) {
	p, ok := s.pools[key]
	if !ok {
		p = &PrizePool{Amount: new(big.Int), Collected: new(big.Int)}
		s.pools[key] = p
	}
	p.Amount.Add(p.Amount, amount)
}

// === Price snapshot ===

func (s *Store) PutPrice(key SnapshotKey, p *PricePoint) {
	s.snapshots[key] = p
}

func (s *Store) Price(key SnapshotKey) (*PricePoint, bool) {
	p, ok := s.snapshots[key]
	return p, ok
}

// === Payout structure ===

func (s *Store) SetPayoutNumerator(key PayoutKey, numerator int64) {
	s.payouts[key] = numerator
}

func (s *Store) PayoutNumerator(key PayoutKey) int64 {
	return s.payouts[key]
}

// === Placement groups ===

func (s *Store) Groups(competitionID uint64) []PlacementGroup {
	return s.groups[competitionID]
}

func (s *Store) SetGroups(competitionID uint64, groups []PlacementGroup) {
	s.groups[competitionID] = groups
}

// CopyGroups returns a deep copy for staged placement: the caller mutates
// the copy and commits it back only when the whole batch validates.
func (s *Store) CopyGroups(competitionID uint64) []PlacementGroup {
	src := s.groups[competitionID]
	dst := make([]PlacementGroup, len(src))
	for i, g := range src {
		dst[i] = PlacementGroup{
			Value:     new(big.Int).Set(g.Value),
			TieCount:  g.TieCount,
			Numerator: g.Numerator,
		}
	}
	return dst
}
