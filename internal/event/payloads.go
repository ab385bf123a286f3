package event

// Payload structs serialized into Envelope.Payload. Amounts are decimal
// strings throughout.

type CompetitionCreatedPayload struct {
	CompetitionID     uint64 `json:"competition_id"`
	Creator           string `json:"creator"`
	StartUnixMicro    int64  `json:"start_us"`
	EndUnixMicro      int64  `json:"end_us"`
	EntryFeeAsset     string `json:"entry_fee_asset"`
	EntryFeeAmount    string `json:"entry_fee_amount"`
	AdminFeeNumerator int64  `json:"admin_fee_numerator"`
	ProcessingFee     string `json:"processing_fee"`
	PayoutPlaces      int    `json:"payout_places"`
	Judge             string `json:"judge"`
}

type PayoutStructureSetPayload struct {
	Places       []int   `json:"places"`
	Numerators   []int64 `json:"numerators"`
	NumeratorSum int64   `json:"numerator_sum"`
}

type RegisteredPayload struct {
	Participant    string `json:"participant"`
	EntryFeeAmount string `json:"entry_fee_amount"`
	AdminFeeShare  string `json:"admin_fee_share"`
	ProcessingFee  string `json:"processing_fee"`
}

type DeregisteredPayload struct {
	Participant string `json:"participant"`
	Refund      string `json:"refund"`
}

type SwappedPayload struct {
	Participant string   `json:"participant"`
	Path        []string `json:"path"`
	AmountIn    string   `json:"amount_in"`
	AmountOut   string   `json:"amount_out"`
}

type SnapshotTakenPayload struct {
	Assets []string `json:"assets"`
	Prices []string `json:"prices"`
}

type ValuationCompletedPayload struct {
	Participant string `json:"participant"`
	FinalValue  string `json:"final_value"`
	Reward      string `json:"reward"`
}

type PlacedPayload struct {
	Judge        string   `json:"judge"`
	Participants []string `json:"participants"`
	JudgeAttempt int64    `json:"judge_attempt"`
	PlacedCount  int64    `json:"placed_count"`
}

type PlacementsResetPayload struct {
	JudgeAttempt int64 `json:"judge_attempt"`
}

type JudgeChallengedPayload struct {
	Challenger        string `json:"challenger"`
	Evicted           string `json:"evicted,omitempty"`
	DeadlineUnixMicro int64  `json:"deadline_us"`
}

type JudgeUpdatedPayload struct {
	PreviousJudge string `json:"previous_judge"`
	NewJudge      string `json:"new_judge"`
	JudgeAttempt  int64  `json:"judge_attempt"`
}

type AdminFeeCollectedPayload struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type PrizeCollectedPayload struct {
	Participant string `json:"participant"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
}

type RescuedPayload struct {
	Participant string `json:"participant"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
}
