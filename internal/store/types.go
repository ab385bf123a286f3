package store

import (
	"math/big"
	"time"
)

// Competition is the root record. Created once with immutable id, asset and
// timing; mutated by every stage of the pipeline; never deleted.
type Competition struct {
	ID      uint64
	Creator string

	Start time.Time
	End   time.Time

	EntryFeeAsset  string
	EntryFeeAmount *big.Int

	AdminFeeNumerator int64
	ProcessingFee     *big.Int

	// Judge rotation. NextJudge is the pending challenger ("" = none).
	// JudgeAttempt starts at 1 and increments on every placement reset,
	// invalidating placements stamped with earlier attempts.
	Judge        string
	NextJudge    string
	JudgeAttempt int64

	PayoutPlaces       int
	PayoutNumeratorSum int64

	SnapshotTaken     bool
	AdminFeeCollected bool

	ParticipantCount int64
	ValuedCount      int64
	PlacedCount      int64
}

// Participant is created at registration. FinalValue is a decimal string,
// set exactly once by valuation ("" until then).
type Participant struct {
	FinalValue    string
	Valued        bool
	PlacedAttempt int64 // JudgeAttempt value at last placement (0 = never)
	GroupIndex    int
}

// Balance is a participant's holding of one asset within one competition.
// PrizeCollected is the one-shot flag consumed by prize collection.
type Balance struct {
	Amount         *big.Int
	PrizeCollected bool
}

// PlacementGroup is one rank entry: all participants sharing Value share
// the group's combined Numerator. Groups are ordered ascending by Value.
type PlacementGroup struct {
	Value     *big.Int
	TieCount  int64
	Numerator int64
}

// PrizePool tracks distributable amount and what has already been paid out
// per (competition, asset). Invariant: Collected <= Amount.
type PrizePool struct {
	Amount    *big.Int
	Collected *big.Int
}

// JudgeRecord exists for every address that holds or has held the judge or
// challenger role in a competition. Presence alone blocks re-challenging.
type JudgeRecord struct {
	Deadline time.Time
}

// PricePoint is one asset's entry in the one-time snapshot.
type PricePoint struct {
	Timestamp int64
	Price     *big.Int
}

// BalanceKey addresses a per-(competition, asset, participant) balance.
type BalanceKey struct {
	CompetitionID uint64
	Asset         string
	Participant   string
}

// ParticipantKey addresses a participant record.
type ParticipantKey struct {
	CompetitionID uint64
	Participant   string
}

// JudgeKey addresses a judge record.
type JudgeKey struct {
	CompetitionID uint64
	Address       string
}

// PoolKey addresses a prize pool.
type PoolKey struct {
	CompetitionID uint64
	Asset         string
}

// SnapshotKey addresses one asset's price snapshot entry.
type SnapshotKey struct {
	CompetitionID uint64
	Asset         string
}

// PayoutKey addresses the numerator configured for one payout place.
type PayoutKey struct {
	CompetitionID uint64
	Place         int
}
