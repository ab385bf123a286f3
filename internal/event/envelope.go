package event

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminator for applied-command events.
type Type int32

const (
	TypeUnknown Type = iota
	TypeCompetitionCreated
	TypePayoutStructureSet
	TypeRegistered
	TypeDeregistered
	TypeSwapped
	TypeSnapshotTaken
	TypeValuationCompleted
	TypePlaced
	TypePlacementsReset
	TypeJudgeChallenged
	TypeJudgeUpdated
	TypeAdminFeeCollected
	TypePrizeCollected
	TypeRescued
)

func (t Type) String() string {
	switch t {
	case TypeCompetitionCreated:
		return "CompetitionCreated"
	case TypePayoutStructureSet:
		return "PayoutStructureSet"
	case TypeRegistered:
		return "Registered"
	case TypeDeregistered:
		return "Deregistered"
	case TypeSwapped:
		return "Swapped"
	case TypeSnapshotTaken:
		return "SnapshotTaken"
	case TypeValuationCompleted:
		return "ValuationCompleted"
	case TypePlaced:
		return "Placed"
	case TypePlacementsReset:
		return "PlacementsReset"
	case TypeJudgeChallenged:
		return "JudgeChallenged"
	case TypeJudgeUpdated:
		return "JudgeUpdated"
	case TypeAdminFeeCollected:
		return "AdminFeeCollected"
	case TypePrizeCollected:
		return "PrizeCollected"
	case TypeRescued:
		return "Rescued"
	default:
		return "Unknown"
	}
}

// Envelope wraps every applied command in the event log.
type Envelope struct {
	// Global monotonic sequence assigned by the core
	Sequence int64

	EventID uuid.UUID

	Type Type

	CompetitionID uint64

	// Address that issued the command
	Caller string

	// Core clock time at application (the single authoritative time source)
	Timestamp time.Time

	// JSON-encoded event-specific payload
	Payload []byte
}

// TransferKind classifies asset movements for the audit trail.
type TransferKind int32

const (
	TransferEntryFee TransferKind = iota
	TransferProcessingFee
	TransferAdminFeeReserve
	TransferAdminFee
	TransferSwapIn
	TransferSwapOut
	TransferPoolAccrual
	TransferPrize
	TransferIncentive
	TransferRefund
	TransferRescue
)

func (k TransferKind) String() string {
	switch k {
	case TransferEntryFee:
		return "entry_fee"
	case TransferProcessingFee:
		return "processing_fee"
	case TransferAdminFeeReserve:
		return "admin_fee_reserve"
	case TransferAdminFee:
		return "admin_fee"
	case TransferSwapIn:
		return "swap_in"
	case TransferSwapOut:
		return "swap_out"
	case TransferPoolAccrual:
		return "pool_accrual"
	case TransferPrize:
		return "prize"
	case TransferIncentive:
		return "incentive"
	case TransferRefund:
		return "refund"
	case TransferRescue:
		return "rescue"
	default:
		return "unknown"
	}
}

// Transfer is one asset movement recorded alongside the event that caused
// it. Amounts are decimal strings.
type Transfer struct {
	TransferID    uuid.UUID
	Sequence      int64
	CompetitionID uint64
	Asset         string
	From          string
	To            string
	Amount        string
	Kind          TransferKind
	Timestamp     int64
}
