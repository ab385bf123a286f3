package core_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"TradeArena/internal/core"
	"TradeArena/internal/event"

	"TradeArena/internal/store"

	"github.com/rs/zerolog"
)

// --- Fake collaborators ---

type movement struct {
	asset  string
	addr   string
	amount *big.Int
}

type fakeCustody struct {
	pulls  []movement
	pushes []movement

	failPull bool
	failPush bool
}

func (f *fakeCustody) Pull(ctx context.Context, asset, from string, amount *big.Int) error {
	if f.failPull {
		return errors.New("custody pull refused")
	}
	f.pulls = append(f.pulls, movement{asset, from, new(big.Int).Set(amount)})
	return nil
}

func (f *fakeCustody) Push(ctx context.Context, asset, to string, amount *big.Int) error {
	if f.failPush {
		return errors.New("custody push refused")
	}
	f.pushes = append(f.pushes, movement{asset, to, new(big.Int).Set(amount)})
	return nil
}

func (f *fakeCustody) Approve(ctx context.Context, asset, spender string, amount *big.Int) error {
	return nil
}

// pushedTo sums everything pushed to addr in asset.
func (f *fakeCustody) pushedTo(asset, addr string) *big.Int {
	total := new(big.Int)
	for _, m := range f.pushes {
		if m.asset == asset && m.addr == addr {
			total.Add(total, m.amount)
		}
	}
	return total
}

// fakeRouter swaps 1:1 unless failErr is set.
type fakeRouter struct {
	calls   int
	failErr error
}

func (f *fakeRouter) SwapExactIn(ctx context.Context, amountIn, minAmountOut *big.Int, path []string, recipient string, deadline time.Time) ([]*big.Int, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.calls++
	amounts := make([]*big.Int, len(path))
	for i := range amounts {
		amounts[i] = new(big.Int).Set(amountIn)
	}
	return amounts, nil
}

// fakeOracle serves prices by symbol; missing symbols yield nil entries.
type fakeOracle struct {
	prices map[string]int64
}

func (f *fakeOracle) LatestPrices(ctx context.Context, symbols []string) ([]*core.OraclePrice, error) {
	out := make([]*core.OraclePrice, len(symbols))
	for i, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[i] = &core.OraclePrice{Timestamp: 1, Price: big.NewInt(p)}
		}
	}
	return out, nil
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// --- Harness ---

const (
	admin = "admin"
	alice = "alice"
	bob   = "bob"
	carol = "carol"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	core    *core.Core
	custody *fakeCustody
	router  *fakeRouter
	oracle  *fakeOracle
	clock   *fakeClock
	persist chan core.Output
	publish chan core.Output
	ctx     context.Context
}

func testConfig() *core.Config {
	return &core.Config{
		Admin:    admin,
		FeeAsset: "X",
		Assets: []core.AssetConfig{
			{Asset: "X", PriceSymbol: "X/USD"},
			{Asset: "Y", PriceSymbol: "Y/USD"},
			{Asset: "Z", PriceSymbol: "Z/USD"},
		},
		AllowedPairs:             [][2]string{{"X", "Y"}, {"Y", "Z"}},
		DefaultAdminFeeNumerator: 1_000,
		DefaultProcessingFee:     "100",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}

	env := &testEnv{
		custody: &fakeCustody{},
		router:  &fakeRouter{},
		oracle:  &fakeOracle{prices: map[string]int64{"X/USD": 1, "Y/USD": 2, "Z/USD": 3}},
		clock:   &fakeClock{now: baseTime},
		persist: make(chan core.Output, 1024),
		publish: make(chan core.Output, 1024),
		ctx:     context.Background(),
	}
	env.core = core.New(cfg, store.New(), env.custody, env.router, env.oracle, env.clock,
		zerolog.Nop(), nil, env.persist, env.publish)
	return env
}

// newCompetition creates a competition starting one hour from the base
// time with the minimum duration, and assigns the payout numerators to
// places 1..n.
func newCompetition(t *testing.T, env *testEnv, numerators []int64) uint64 {
	t.Helper()
	id, err := env.core.CreateCompetition(env.ctx, admin, core.CreateCompetitionParams{
		Start:          baseTime.Add(time.Hour),
		End:            baseTime.Add(time.Hour).Add(core.MinimumDuration),
		EntryFeeAsset:  "X",
		EntryFeeAmount: big.NewInt(555_555),
		PayoutPlaces:   len(numerators),
	})
	if err != nil {
		t.Fatalf("CreateCompetition failed: %v", err)
	}

	places := make([]int, len(numerators))
	for i := range numerators {
		places[i] = i + 1
	}
	if err := env.core.SetPayoutStructure(env.ctx, admin, id, places, numerators); err != nil {
		t.Fatalf("SetPayoutStructure failed: %v", err)
	}
	return id
}

func register(t *testing.T, env *testEnv, id uint64, addr string) {
	t.Helper()
	if err := env.core.Register(env.ctx, id, addr, big.NewInt(100)); err != nil {
		t.Fatalf("Register(%s) failed: %v", addr, err)
	}
}

// endAndValue moves past the end, snapshots and values every listed
// participant (caller admin).
func endAndValue(t *testing.T, env *testEnv, id uint64, participants ...string) {
	t.Helper()
	env.clock.now = baseTime.Add(2*time.Hour + core.MinimumDuration)
	if err := env.core.TakePriceSnapshot(env.ctx, id, admin); err != nil {
		t.Fatalf("TakePriceSnapshot failed: %v", err)
	}
	for _, p := range participants {
		if _, err := env.core.ComputeFinalValue(env.ctx, id, admin, p); err != nil {
			t.Fatalf("ComputeFinalValue(%s) failed: %v", p, err)
		}
	}
}

func drainOutputs(ch chan core.Output) []core.Output {
	var outputs []core.Output
	for {
		select {
		case o := <-ch:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

func wantKind(t *testing.T, err error, k core.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", k)
	}
	if !core.IsKind(err, k) {
		t.Fatalf("expected %s error, got %v", k, err)
	}
}

// ============================================================================
// Competition lifecycle
// ============================================================================

func TestCreateCompetition_RejectsShortDuration(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.core.CreateCompetition(env.ctx, admin, core.CreateCompetitionParams{
		Start:          baseTime.Add(time.Hour),
		End:            baseTime.Add(time.Hour).Add(core.MinimumDuration - time.Second),
		EntryFeeAsset:  "X",
		EntryFeeAmount: big.NewInt(1),
		PayoutPlaces:   1,
	})
	wantKind(t, err, core.KindUnprocessableEntity)
}

func TestCreateCompetition_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.core.CreateCompetition(env.ctx, alice, core.CreateCompetitionParams{
		Start:          baseTime.Add(time.Hour),
		End:            baseTime.Add(time.Hour).Add(core.MinimumDuration),
		EntryFeeAsset:  "X",
		EntryFeeAmount: big.NewInt(1),
		PayoutPlaces:   1,
	})
	wantKind(t, err, core.KindUnauthorised)
}

func TestSetPayoutStructure_SumNeverExceedsDenominator(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.core.CreateCompetition(env.ctx, admin, core.CreateCompetitionParams{
		Start:          baseTime.Add(time.Hour),
		End:            baseTime.Add(time.Hour).Add(core.MinimumDuration),
		EntryFeeAsset:  "X",
		EntryFeeAmount: big.NewInt(555_555),
		PayoutPlaces:   2,
	})
	if err != nil {
		t.Fatalf("CreateCompetition failed: %v", err)
	}

	err = env.core.SetPayoutStructure(env.ctx, admin, id, []int{1, 2}, []int64{9_000, 2_000})
	wantKind(t, err, core.KindUnprocessableEntity)

	// A partial structure keeps registration closed.
	if err := env.core.SetPayoutStructure(env.ctx, admin, id, []int{1}, []int64{6_000}); err != nil {
		t.Fatalf("partial SetPayoutStructure failed: %v", err)
	}
	err = env.core.Register(env.ctx, id, alice, big.NewInt(100))
	wantKind(t, err, core.KindUnprocessableEntity)

	// Completing the sum opens registration.
	if err := env.core.SetPayoutStructure(env.ctx, admin, id, []int{2}, []int64{4_000}); err != nil {
		t.Fatalf("completing SetPayoutStructure failed: %v", err)
	}
	if err := env.core.Register(env.ctx, id, alice, big.NewInt(100)); err != nil {
		t.Fatalf("Register after full structure failed: %v", err)
	}
}

// ============================================================================
// Registration
// ============================================================================

func TestRegister_ReservesAdminFeeShare(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)

	// 555_555 * 1_000 / 10_000 = 55_555 reserved; seeded balance is the rest.
	view, err := env.core.GetParticipant(id, alice)
	if err != nil {
		t.Fatalf("GetParticipant failed: %v", err)
	}
	var entryBal string
	for _, b := range view.Balances {
		if b.Asset == "X" {
			entryBal = b.Amount
		}
	}
	if entryBal != "500000" {
		t.Errorf("expected seeded entry balance 500000, got %s", entryBal)
	}
	if len(view.Balances) != 3 {
		t.Errorf("expected a balance per configured asset, got %d", len(view.Balances))
	}
}

func TestRegister_TwiceFails(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)

	err := env.core.Register(env.ctx, id, alice, big.NewInt(100))
	wantKind(t, err, core.KindUnprocessableEntity)
	if !strings.Contains(err.Error(), "Already registered") {
		t.Errorf("expected Already registered, got %v", err)
	}
}

func TestRegister_WrongProcessingFee(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})

	for _, fee := range []*big.Int{big.NewInt(99), big.NewInt(101), nil} {
		err := env.core.Register(env.ctx, id, alice, fee)
		wantKind(t, err, core.KindUnprocessableEntity)
		if !strings.Contains(err.Error(), "processing fee.") {
			t.Errorf("expected processing fee message, got %v", err)
		}
	}
}

func TestRegister_CustodyFailureLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})

	env.custody.failPull = true
	err := env.core.Register(env.ctx, id, alice, big.NewInt(100))
	wantKind(t, err, core.KindTransferFailed)

	if _, err := env.core.GetParticipant(id, alice); !core.IsKind(err, core.KindNotFound) {
		t.Errorf("expected no participant record after failed pull, got %v", err)
	}
}

func TestDeregister_RoundTripRefundsEntryFee(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)

	if err := env.core.Deregister(env.ctx, id, alice); err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}

	refunded := env.custody.pushedTo("X", alice)
	if refunded.Cmp(big.NewInt(555_555)) != 0 {
		t.Errorf("expected full entry fee refund 555555, got %s", refunded)
	}
	if _, err := env.core.GetParticipant(id, alice); !core.IsKind(err, core.KindNotFound) {
		t.Errorf("expected participant record removed, got %v", err)
	}

	// A second deregistration finds nothing to refund.
	err := env.core.Deregister(env.ctx, id, alice)
	wantKind(t, err, core.KindNotFound)
}

// ============================================================================
// Trading
// ============================================================================

func TestSwap_ReconcilesBalances(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	env.clock.advance(90 * time.Minute) // inside the window
	out, err := env.core.Swap(env.ctx, id, alice, big.NewInt(100_000), big.NewInt(1),
		[]string{"X", "Y"}, env.clock.now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if out.Cmp(big.NewInt(100_000)) != 0 {
		t.Errorf("expected 1:1 output 100000, got %s", out)
	}

	view, _ := env.core.GetParticipant(id, alice)
	balances := map[string]string{}
	for _, b := range view.Balances {
		balances[b.Asset] = b.Amount
	}
	if balances["X"] != "400000" || balances["Y"] != "100000" {
		t.Errorf("unexpected balances after swap: %v", balances)
	}
}

func TestSwap_RejectsDisallowedPair(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	env.clock.advance(90 * time.Minute)
	_, err := env.core.Swap(env.ctx, id, alice, big.NewInt(1_000), big.NewInt(1),
		[]string{"X", "Z"}, env.clock.now.Add(time.Minute))
	wantKind(t, err, core.KindUnprocessableEntity)
	if env.router.calls != 0 {
		t.Errorf("router must not be called for a rejected path")
	}
}

func TestSwap_MultiHopPathAllowed(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	env.clock.advance(90 * time.Minute)
	_, err := env.core.Swap(env.ctx, id, alice, big.NewInt(1_000), big.NewInt(1),
		[]string{"X", "Y", "Z"}, env.clock.now.Add(time.Minute))
	if err != nil {
		t.Fatalf("multi-hop Swap failed: %v", err)
	}

	view, _ := env.core.GetParticipant(id, alice)
	for _, b := range view.Balances {
		if b.Asset == "Z" && b.Amount != "1000" {
			t.Errorf("expected Z balance 1000, got %s", b.Amount)
		}
	}
}

func TestSwap_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	env.clock.advance(90 * time.Minute)
	_, err := env.core.Swap(env.ctx, id, alice, big.NewInt(500_001), big.NewInt(1),
		[]string{"X", "Y"}, env.clock.now.Add(time.Minute))
	wantKind(t, err, core.KindUnprocessableEntity)
}

func TestSwap_DisabledBelowMinimumField(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice) // one of two required places

	env.clock.advance(90 * time.Minute)
	_, err := env.core.Swap(env.ctx, id, alice, big.NewInt(1_000), big.NewInt(1),
		[]string{"X", "Y"}, env.clock.now.Add(time.Minute))
	wantKind(t, err, core.KindUnprocessableEntity)

	// Deregistration stays open in the same state.
	if err := env.core.Deregister(env.ctx, id, alice); err != nil {
		t.Fatalf("Deregister under minimum field failed: %v", err)
	}
}

func TestSwap_DeadlinePastEndRejected(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	env.clock.advance(90 * time.Minute)
	_, err := env.core.Swap(env.ctx, id, alice, big.NewInt(1_000), big.NewInt(1),
		[]string{"X", "Y"}, baseTime.Add(3*time.Hour+core.MinimumDuration))
	wantKind(t, err, core.KindUnprocessableEntity)
}

func TestSwap_RouterErrorPropagatesVerbatim(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	routerErr := errors.New("slippage exceeded")
	env.router.failErr = routerErr
	env.clock.advance(90 * time.Minute)
	_, err := env.core.Swap(env.ctx, id, alice, big.NewInt(1_000), big.NewInt(1),
		[]string{"X", "Y"}, env.clock.now.Add(time.Minute))
	if !errors.Is(err, routerErr) {
		t.Fatalf("expected router error verbatim, got %v", err)
	}

	view, _ := env.core.GetParticipant(id, alice)
	for _, b := range view.Balances {
		if b.Asset == "X" && b.Amount != "500000" {
			t.Errorf("balance must be untouched on router failure, got %s", b.Amount)
		}
	}
}

// ============================================================================
// Valuation
// ============================================================================

func TestSnapshot_BeforeEndRejected(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})

	err := env.core.TakePriceSnapshot(env.ctx, id, admin)
	wantKind(t, err, core.KindUnprocessableEntity)
}

func TestSnapshot_AllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	env.clock.now = baseTime.Add(2*time.Hour + core.MinimumDuration)

	delete(env.oracle.prices, "Z/USD")
	err := env.core.TakePriceSnapshot(env.ctx, id, admin)
	wantKind(t, err, core.KindUnprocessableEntity)

	env.oracle.prices["Z/USD"] = 3
	if err := env.core.TakePriceSnapshot(env.ctx, id, admin); err != nil {
		t.Fatalf("TakePriceSnapshot failed: %v", err)
	}

	err = env.core.TakePriceSnapshot(env.ctx, id, admin)
	wantKind(t, err, core.KindUnprocessableEntity)
}

func TestComputeFinalValue_SumsPricedBalances(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	env.clock.advance(90 * time.Minute)
	if _, err := env.core.Swap(env.ctx, id, alice, big.NewInt(100_000), big.NewInt(1),
		[]string{"X", "Y"}, env.clock.now.Add(time.Minute)); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}

	endAndValue(t, env, id, alice)

	// 400_000 X at price 1 plus 100_000 Y at price 2.
	view, _ := env.core.GetParticipant(id, alice)
	if view.FinalValue != "600000" {
		t.Errorf("expected final value 600000, got %s", view.FinalValue)
	}

	// Valuing twice is rejected.
	_, err := env.core.ComputeFinalValue(env.ctx, id, admin, alice)
	wantKind(t, err, core.KindUnprocessableEntity)
}

func TestComputeFinalValue_AccruesPrizePools(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	endAndValue(t, env, id, alice, bob)

	pools, err := env.core.GetPrizePools(id)
	if err != nil {
		t.Fatalf("GetPrizePools failed: %v", err)
	}
	if len(pools) != 1 {
		t.Fatalf("expected one pool (only X balances are non-zero), got %d", len(pools))
	}
	if pools[0].Asset != "X" || pools[0].Amount != "1000000" {
		t.Errorf("unexpected pool: %+v", pools[0])
	}
}

func TestComputeFinalValue_UnknownParticipant(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	env.clock.now = baseTime.Add(2*time.Hour + core.MinimumDuration)
	if err := env.core.TakePriceSnapshot(env.ctx, id, admin); err != nil {
		t.Fatalf("TakePriceSnapshot failed: %v", err)
	}
	_, err := env.core.ComputeFinalValue(env.ctx, id, admin, carol)
	wantKind(t, err, core.KindNotFound)
}

func TestComputeFinalValue_RewardIsHalfProcessingFee(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	endAndValue(t, env, id, alice)

	// 100 * 5_000 / 10_000 = 50 to the valuation caller.
	reward := env.custody.pushedTo("X", admin)
	if reward.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("expected valuation reward 50, got %s", reward)
	}
}

func TestComputeFinalValue_IncentiveFailureIsFatal(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	env.clock.now = baseTime.Add(2*time.Hour + core.MinimumDuration)
	if err := env.core.TakePriceSnapshot(env.ctx, id, admin); err != nil {
		t.Fatalf("TakePriceSnapshot failed: %v", err)
	}

	env.custody.failPush = true
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on incentive payment failure")
		}
		if _, ok := r.(*core.FatalError); !ok {
			t.Fatalf("expected *core.FatalError, got %T", r)
		}
	}()
	env.core.ComputeFinalValue(env.ctx, id, admin, alice)
}

// ============================================================================
// Placement
// ============================================================================

func TestPlacement_TiedParticipantsShareOneGroup(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)
	endAndValue(t, env, id, alice, bob)

	if err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice, bob}); err != nil {
		t.Fatalf("PlaceParticipants failed: %v", err)
	}

	groups, _ := env.core.GetPlacementGroups(id)
	if len(groups) != 1 {
		t.Fatalf("expected exactly one group for tied values, got %d", len(groups))
	}
	if groups[0].TieCount != 2 {
		t.Errorf("expected tie count 2, got %d", groups[0].TieCount)
	}
	if groups[0].Numerator != 10_000 {
		t.Errorf("expected merged numerator 10000, got %d", groups[0].Numerator)
	}
}

func TestPlacement_WrongOrderRejectedWithoutMutation(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	// Give bob a higher final value than alice.
	env.clock.advance(90 * time.Minute)
	if _, err := env.core.Swap(env.ctx, id, bob, big.NewInt(100_000), big.NewInt(1),
		[]string{"X", "Y"}, env.clock.now.Add(time.Minute)); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	endAndValue(t, env, id, alice, bob)

	// bob (600000) before alice (500000) violates ascending order.
	err := env.core.PlaceParticipants(env.ctx, id, admin, []string{bob, alice})
	wantKind(t, err, core.KindUnprocessableEntity)
	if !strings.Contains(err.Error(), "wrong place") {
		t.Errorf("expected wrong place, got %v", err)
	}

	groups, _ := env.core.GetPlacementGroups(id)
	if len(groups) != 0 {
		t.Errorf("rejected call must not mutate groups, got %d", len(groups))
	}

	// The correct order still works afterwards.
	if err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice, bob}); err != nil {
		t.Fatalf("PlaceParticipants in order failed: %v", err)
	}
	groups, _ = env.core.GetPlacementGroups(id)
	if len(groups) != 2 {
		t.Fatalf("expected two groups, got %d", len(groups))
	}
	if groups[0].Numerator != 6_000 || groups[1].Numerator != 4_000 {
		t.Errorf("unexpected numerators: %+v", groups)
	}
}

func TestPlacement_AlreadyPlacedRejected(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)
	endAndValue(t, env, id, alice, bob)

	if err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice}); err != nil {
		t.Fatalf("first placement failed: %v", err)
	}
	err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice})
	wantKind(t, err, core.KindUnprocessableEntity)
	if !strings.Contains(err.Error(), "already placed") {
		t.Errorf("expected already placed, got %v", err)
	}
}

func TestPlacement_DuplicateInBatchRejected(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)
	endAndValue(t, env, id, alice, bob)

	// A repeated address would consume two rank positions and mark the
	// field fully placed while bob never was.
	err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice, alice})
	wantKind(t, err, core.KindUnprocessableEntity)
	if !strings.Contains(err.Error(), "already placed") {
		t.Errorf("expected already placed, got %v", err)
	}

	view, _ := env.core.GetCompetition(id)
	if view.PlacedCount != 0 {
		t.Errorf("rejected batch must not mutate placed count, got %d", view.PlacedCount)
	}
	groups, _ := env.core.GetPlacementGroups(id)
	if len(groups) != 0 {
		t.Errorf("rejected batch must not mutate groups, got %d", len(groups))
	}

	// The honest batch still works afterwards.
	if err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice, bob}); err != nil {
		t.Fatalf("PlaceParticipants failed: %v", err)
	}
	groups, _ = env.core.GetPlacementGroups(id)
	if len(groups) != 1 || groups[0].TieCount != 2 {
		t.Fatalf("expected one tied group of two, got %+v", groups)
	}
}

func TestPlacement_JudgeOnly(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)
	endAndValue(t, env, id, alice, bob)

	err := env.core.PlaceParticipants(env.ctx, id, alice, []string{alice, bob})
	wantKind(t, err, core.KindUnauthorised)
}

func TestPlacement_PaysJudgeRemainingFee(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)
	endAndValue(t, env, id, alice, bob)

	before := env.custody.pushedTo("X", admin)
	if err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice, bob}); err != nil {
		t.Fatalf("PlaceParticipants failed: %v", err)
	}
	paid := new(big.Int).Sub(env.custody.pushedTo("X", admin), before)

	// (100 - 50) per placed participant, two participants.
	if paid.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("expected judge payment 100, got %s", paid)
	}
}

func TestResetPlacements_BumpsAttemptAndInvalidates(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)
	endAndValue(t, env, id, alice, bob)

	if err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice, bob}); err != nil {
		t.Fatalf("PlaceParticipants failed: %v", err)
	}
	if err := env.core.ResetPlacements(env.ctx, id, admin); err != nil {
		t.Fatalf("ResetPlacements failed: %v", err)
	}

	view, _ := env.core.GetCompetition(id)
	if view.JudgeAttempt != 2 || view.PlacedCount != 0 {
		t.Errorf("expected attempt 2 and placed count 0, got %d / %d", view.JudgeAttempt, view.PlacedCount)
	}
	groups, _ := env.core.GetPlacementGroups(id)
	if len(groups) != 0 {
		t.Errorf("expected groups cleared, got %d", len(groups))
	}

	// The same batch can be placed again under the new attempt.
	if err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice, bob}); err != nil {
		t.Fatalf("re-placement after reset failed: %v", err)
	}
}

// ============================================================================
// Judge rotation
// ============================================================================

func TestChallengeJudge_BetterChallengerReplacesWorse(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	// bob trades up to a higher final value.
	env.clock.advance(90 * time.Minute)
	if _, err := env.core.Swap(env.ctx, id, bob, big.NewInt(100_000), big.NewInt(1),
		[]string{"X", "Y"}, env.clock.now.Add(time.Minute)); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	endAndValue(t, env, id, alice, bob)

	if err := env.core.ChallengeJudge(env.ctx, id, alice); err != nil {
		t.Fatalf("first challenge failed: %v", err)
	}
	if err := env.core.ChallengeJudge(env.ctx, id, bob); err != nil {
		t.Fatalf("better challenger rejected: %v", err)
	}

	view, _ := env.core.GetCompetition(id)
	if view.NextJudge != bob {
		t.Errorf("expected bob as next judge, got %s", view.NextJudge)
	}
}

func TestChallengeJudge_EqualOrLowerValueRejected(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)
	endAndValue(t, env, id, alice, bob) // equal values

	if err := env.core.ChallengeJudge(env.ctx, id, alice); err != nil {
		t.Fatalf("first challenge failed: %v", err)
	}
	err := env.core.ChallengeJudge(env.ctx, id, bob)
	wantKind(t, err, core.KindUnprocessableEntity)
}

func TestChallengeJudge_EvictedChallengerMayNotReturn(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	env.clock.advance(90 * time.Minute)
	if _, err := env.core.Swap(env.ctx, id, bob, big.NewInt(100_000), big.NewInt(1),
		[]string{"X", "Y"}, env.clock.now.Add(time.Minute)); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	endAndValue(t, env, id, alice, bob)

	if err := env.core.ChallengeJudge(env.ctx, id, alice); err != nil {
		t.Fatalf("first challenge failed: %v", err)
	}
	if err := env.core.ChallengeJudge(env.ctx, id, bob); err != nil {
		t.Fatalf("second challenge failed: %v", err)
	}

	// alice was evicted, which removed her judge record, so she may try
	// again only if she now outperforms bob. She does not.
	err := env.core.ChallengeJudge(env.ctx, id, alice)
	wantKind(t, err, core.KindUnprocessableEntity)
}

func TestUpdateJudge_OnlyAfterDeadline(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)
	endAndValue(t, env, id, alice, bob)

	if err := env.core.ChallengeJudge(env.ctx, id, alice); err != nil {
		t.Fatalf("challenge failed: %v", err)
	}

	// The admin judge deadline is end + one step; we are before it.
	err := env.core.UpdateJudge(env.ctx, id, bob)
	wantKind(t, err, core.KindUnprocessableEntity)

	env.clock.now = baseTime.Add(time.Hour).Add(core.MinimumDuration).Add(core.JudgeDeadlineStep + time.Second)
	if err := env.core.UpdateJudge(env.ctx, id, bob); err != nil {
		t.Fatalf("UpdateJudge after deadline failed: %v", err)
	}

	view, _ := env.core.GetCompetition(id)
	if view.Judge != alice || view.NextJudge != "" {
		t.Errorf("expected alice promoted, got judge=%s next=%s", view.Judge, view.NextJudge)
	}
	if view.JudgeAttempt != 2 {
		t.Errorf("promotion must bump the attempt, got %d", view.JudgeAttempt)
	}
}

func TestUpdateJudge_BlockedOnceAllPlaced(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)
	endAndValue(t, env, id, alice, bob)

	if err := env.core.ChallengeJudge(env.ctx, id, alice); err != nil {
		t.Fatalf("challenge failed: %v", err)
	}
	if err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice, bob}); err != nil {
		t.Fatalf("PlaceParticipants failed: %v", err)
	}

	// Past the incumbent's deadline, but the ranking is complete: the
	// pending challenger must not be able to wipe it mid-collection.
	env.clock.now = baseTime.Add(time.Hour).Add(core.MinimumDuration).Add(core.JudgeDeadlineStep + time.Second)
	err := env.core.UpdateJudge(env.ctx, id, bob)
	wantKind(t, err, core.KindUnprocessableEntity)

	view, _ := env.core.GetCompetition(id)
	if view.Judge != admin || view.JudgeAttempt != 1 || view.PlacedCount != 2 {
		t.Errorf("blocked promotion must leave the ranking intact, got judge=%s attempt=%d placed=%d",
			view.Judge, view.JudgeAttempt, view.PlacedCount)
	}

	// Prize collection keeps working against the preserved ranking.
	if _, err := env.core.CollectPrize(env.ctx, id, bob, "X"); err != nil {
		t.Fatalf("CollectPrize after blocked promotion failed: %v", err)
	}
}

func TestUpdateJudge_NoChallenger(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})

	err := env.core.UpdateJudge(env.ctx, id, alice)
	wantKind(t, err, core.KindUnprocessableEntity)
}

// ============================================================================
// Settlement
// ============================================================================

func TestCollectAdminFee_Once(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	env.clock.advance(90 * time.Minute)
	fee, err := env.core.CollectAdminFee(env.ctx, id, admin)
	if err != nil {
		t.Fatalf("CollectAdminFee failed: %v", err)
	}
	// 2 * 555_555 * 1_000 / 10_000 = 111_111.
	if fee.Cmp(big.NewInt(111_111)) != 0 {
		t.Errorf("expected admin fee 111111, got %s", fee)
	}

	_, err = env.core.CollectAdminFee(env.ctx, id, admin)
	wantKind(t, err, core.KindUnprocessableEntity)

	_, err = env.core.CollectAdminFee(env.ctx, id, alice)
	wantKind(t, err, core.KindUnauthorised)
}

func TestCollectPrize_LeftoverSafe(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)
	endAndValue(t, env, id, alice, bob)

	if err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice, bob}); err != nil {
		t.Fatalf("PlaceParticipants failed: %v", err)
	}

	// Both share one tied group with the full numerator. Pool is 1_000_000.
	first, err := env.core.CollectPrize(env.ctx, id, alice, "X")
	if err != nil {
		t.Fatalf("first CollectPrize failed: %v", err)
	}
	second, err := env.core.CollectPrize(env.ctx, id, bob, "X")
	if err != nil {
		t.Fatalf("second CollectPrize failed: %v", err)
	}

	total := new(big.Int).Add(first, second)
	if total.Cmp(big.NewInt(1_000_000)) > 0 {
		t.Fatalf("collected %s exceeds pool", total)
	}
	// First claimant keeps the leftover advantage.
	if first.Cmp(second) < 0 {
		t.Errorf("expected first claim >= second, got %s < %s", first, second)
	}

	pools, _ := env.core.GetPrizePools(id)
	amount, _ := new(big.Int).SetString(pools[0].Amount, 10)
	col, _ := new(big.Int).SetString(pools[0].Collected, 10)
	if col.Cmp(amount) > 0 {
		t.Errorf("pool invariant broken: %+v", pools[0])
	}

	// Double collection is rejected.
	_, err = env.core.CollectPrize(env.ctx, id, alice, "X")
	wantKind(t, err, core.KindUnprocessableEntity)
}

func TestCollectPrize_RequiresFullPlacement(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)
	endAndValue(t, env, id, alice, bob)

	if err := env.core.PlaceParticipants(env.ctx, id, admin, []string{alice}); err != nil {
		t.Fatalf("partial placement failed: %v", err)
	}
	_, err := env.core.CollectPrize(env.ctx, id, alice, "X")
	wantKind(t, err, core.KindUnprocessableEntity)
}

func TestCollectPrize_ZeroShareNothingToCollect(t *testing.T) {
	env := newTestEnv(t)
	// Three places but the third earns nothing.
	id := newCompetition(t, env, []int64{6_000, 4_000, 0})
	register(t, env, id, alice)
	register(t, env, id, bob)
	register(t, env, id, carol)

	// Distinct values: bob and alice trade up while carol sits still.
	env.clock.advance(90 * time.Minute)
	for i, p := range []string{bob, alice} {
		amount := big.NewInt(int64((i + 1) * 100_000))
		if _, err := env.core.Swap(env.ctx, id, p, amount, big.NewInt(1),
			[]string{"X", "Y"}, env.clock.now.Add(time.Minute)); err != nil {
			t.Fatalf("Swap(%s) failed: %v", p, err)
		}
	}
	endAndValue(t, env, id, alice, bob, carol)

	// Ascending: carol 500000, bob 600000, alice 700000.
	if err := env.core.PlaceParticipants(env.ctx, id, admin, []string{carol, bob, alice}); err != nil {
		t.Fatalf("PlaceParticipants failed: %v", err)
	}

	// carol filled place 1 (numerator 6_000); the last-filled place 3 has
	// numerator 0, which lands on alice.
	_, err := env.core.CollectPrize(env.ctx, id, alice, "X")
	wantKind(t, err, core.KindUnprocessableEntity)
	if !strings.Contains(err.Error(), "nothing to collect") {
		t.Errorf("expected nothing to collect, got %v", err)
	}
}

func TestCollectPrize_WorstCaseTieNeverOverdraws(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{3_000, 3_000, 2_000, 1_000, 1_000})
	participants := make([]string, 5)
	for i := range participants {
		participants[i] = fmt.Sprintf("p%d", i)
		register(t, env, id, participants[i])
	}
	endAndValue(t, env, id, participants...)

	// All five tie in one group holding the whole numerator.
	if err := env.core.PlaceParticipants(env.ctx, id, admin, participants); err != nil {
		t.Fatalf("PlaceParticipants failed: %v", err)
	}

	pool := new(big.Int).Mul(big.NewInt(500_000), big.NewInt(5))
	collected := new(big.Int)
	for _, p := range participants {
		owed, err := env.core.CollectPrize(env.ctx, id, p, "X")
		if err != nil {
			t.Fatalf("CollectPrize(%s) failed: %v", p, err)
		}
		collected.Add(collected, owed)
		if collected.Cmp(pool) > 0 {
			t.Fatalf("collected %s exceeds pool %s after %s", collected, pool, p)
		}
	}
}

// ============================================================================
// Rescue
// ============================================================================

func TestEmergencyRescue_OnlyAfterGracePeriod(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)
	register(t, env, id, bob)

	env.clock.now = baseTime.Add(2*time.Hour + core.MinimumDuration)
	_, err := env.core.EmergencyRescue(env.ctx, id, admin, alice, "X")
	wantKind(t, err, core.KindUnprocessableEntity)

	env.clock.now = baseTime.Add(time.Hour).Add(core.MinimumDuration).Add(core.RescueGracePeriod + time.Second)
	amount, err := env.core.EmergencyRescue(env.ctx, id, admin, alice, "X")
	if err != nil {
		t.Fatalf("EmergencyRescue failed: %v", err)
	}
	if amount.Cmp(big.NewInt(500_000)) != 0 {
		t.Errorf("expected rescued 500000, got %s", amount)
	}

	// The balance is zeroed; a second rescue finds nothing.
	_, err = env.core.EmergencyRescue(env.ctx, id, admin, alice, "X")
	wantKind(t, err, core.KindUnprocessableEntity)
}

func TestEmergencyRescue_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)

	env.clock.now = baseTime.Add(time.Hour).Add(core.MinimumDuration).Add(core.RescueGracePeriod + time.Second)
	_, err := env.core.EmergencyRescue(env.ctx, id, alice, alice, "X")
	wantKind(t, err, core.KindUnauthorised)
}

// ============================================================================
// Outputs
// ============================================================================

func TestEnvelope_SequencesAndTransfers(t *testing.T) {
	env := newTestEnv(t)
	id := newCompetition(t, env, []int64{6_000, 4_000})
	register(t, env, id, alice)

	outputs := drainOutputs(env.persist)
	if len(outputs) != 3 { // created, payout set, registered
		t.Fatalf("expected 3 outputs, got %d", len(outputs))
	}
	for i, o := range outputs {
		if o.Envelope.Sequence != int64(i) {
			t.Errorf("expected sequence %d, got %d", i, o.Envelope.Sequence)
		}
	}

	reg := outputs[2]
	if reg.Envelope.Type != event.TypeRegistered {
		t.Fatalf("expected Registered envelope, got %s", reg.Envelope.Type)
	}
	if len(reg.Transfers) != 2 {
		t.Fatalf("expected entry fee and processing fee transfers, got %d", len(reg.Transfers))
	}
	for _, tr := range reg.Transfers {
		if tr.Sequence != reg.Envelope.Sequence {
			t.Errorf("transfer sequence %d does not match envelope %d", tr.Sequence, reg.Envelope.Sequence)
		}
	}
}

func TestPublishChannel_DropsOnFull(t *testing.T) {
	cfg := testConfig()
	custody := &fakeCustody{}
	clock := &fakeClock{now: baseTime}
	persist := make(chan core.Output, 1024)
	publish := make(chan core.Output, 1) // room for one event only
	c := core.New(cfg, store.New(), custody, &fakeRouter{}, &fakeOracle{prices: map[string]int64{}},
		clock, zerolog.Nop(), nil, persist, publish)

	ctx := context.Background()
	id, err := c.CreateCompetition(ctx, admin, core.CreateCompetitionParams{
		Start:          baseTime.Add(time.Hour),
		End:            baseTime.Add(time.Hour).Add(core.MinimumDuration),
		EntryFeeAsset:  "X",
		EntryFeeAmount: big.NewInt(1_000),
		PayoutPlaces:   1,
	})
	if err != nil {
		t.Fatalf("CreateCompetition failed: %v", err)
	}
	// The second command must not block even with the publish channel full.
	if err := c.SetPayoutStructure(ctx, admin, id, []int{1}, []int64{10_000}); err != nil {
		t.Fatalf("SetPayoutStructure failed: %v", err)
	}

	if got := len(drainOutputs(persist)); got != 2 {
		t.Errorf("expected 2 persisted outputs, got %d", got)
	}
	if got := len(drainOutputs(publish)); got != 1 {
		t.Errorf("expected 1 published output after drop, got %d", got)
	}
}
