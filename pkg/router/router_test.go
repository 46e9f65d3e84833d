package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/ledger"
	"github.com/gabikreal1/AlgoFlow/pkg/protocols"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

const (
	assetUSD  = uint64(10)
	assetGOLD = uint64(20)
	feeBPS    = uint64(250)
)

var (
	owner    = codec.BytesToAddress([]byte("owner"))
	keeper   = codec.BytesToAddress([]byte("keeper"))
	treasury = codec.BytesToAddress([]byte("treasury"))
)

type fixture struct {
	env        *chain.Env
	ledger     *ledger.Ledger
	router     *Router
	pool       *protocols.AmmPool
	ledgerID   uint64
	routerID   uint64
	poolID     uint64
	ledgerAddr codec.Address
	routerAddr codec.Address
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := chain.NewEnv(nil)

	led, err := ledger.New(store.NewMemoryStore(), nil, owner)
	require.NoError(t, err)
	ledgerID, ledgerAddr := env.CreateApp(led)

	rtr, err := New(store.NewMemoryStore(), nil, owner)
	require.NoError(t, err)
	routerID, routerAddr := env.CreateApp(rtr)

	pool := protocols.NewAmmPool()
	pool.SetRate(assetUSD, assetGOLD, protocols.Rate{Num: 2, Den: 1})
	poolID, poolAddr := env.CreateApp(pool)

	env.Fund(owner, chain.NativeAssetID, 100_000_000)
	env.Fund(keeper, chain.NativeAssetID, 1_000_000)
	env.Fund(poolAddr, assetGOLD, 10_000_000)
	env.Fund(routerAddr, chain.NativeAssetID, 1_000_000)
	env.Fund(routerAddr, assetUSD, 1_000)

	// The ledger trusts the router as its executor; the router targets
	// the ledger for record reads and status writes.
	_, err = env.Submit([]chain.Txn{
		chain.AppCall{Sender: owner, AppID: ledgerID, Args: [][]byte{
			chain.MethodSelector(ledger.SigConfigure),
			keeper.Bytes(),
			chain.Itob(0),
			chain.Itob(feeBPS),
			chain.Itob(routerID),
		}},
	})
	require.NoError(t, err)
	_, err = env.Submit([]chain.Txn{
		chain.AppCall{Sender: owner, AppID: routerID, Args: [][]byte{
			chain.MethodSelector(SigConfigure),
			chain.Itob(ledgerID),
			keeper.Bytes(),
			chain.Itob(feeBPS),
		}},
	})
	require.NoError(t, err)

	return &fixture{
		env: env, ledger: led, router: rtr, pool: pool,
		ledgerID: ledgerID, routerID: routerID, poolID: poolID,
		ledgerAddr: ledgerAddr, routerAddr: routerAddr,
	}
}

// swapThenSweep is the canonical two-step plan: swap the router's dollars
// for gold, then sweep the whole gold balance to the treasury.
func (f *fixture) swapThenSweep(t *testing.T) []byte {
	t.Helper()
	plan, err := codec.EncodeSteps([]codec.WorkflowStep{
		{
			Opcode:      codec.OpSwap,
			TargetAppID: f.poolID,
			AssetIn:     assetUSD,
			AssetOut:    assetGOLD,
			Amount:      1_000,
			SlippageBPS: 100,
		},
		{
			Opcode:  codec.OpTransfer,
			AssetIn: assetGOLD,
			Amount:  0,
			Extra:   treasury.Bytes(),
		},
	})
	require.NoError(t, err)
	return plan
}

func (f *fixture) register(t *testing.T, collateral uint64, plan, trigger []byte) uint64 {
	t.Helper()
	hash := codec.PlanHash(plan)
	result, err := f.env.Submit([]chain.Txn{
		chain.Payment{Sender: owner, Receiver: f.ledgerAddr, Amount: collateral},
		chain.AppCall{Sender: owner, AppID: f.ledgerID, Args: [][]byte{
			chain.MethodSelector(ledger.SigRegisterIntent),
			hash.Bytes(),
			plan,
			trigger,
			chain.Itob(collateral),
			keeper.Bytes(),
			chain.Itob(1),
			chain.Itob(0),
			chain.Itob(0),
		}},
	})
	require.NoError(t, err)
	ret, err := chain.AppReturn(result.Logs[1])
	require.NoError(t, err)
	id, err := argUint64(ret)
	require.NoError(t, err)
	return id
}

func (f *fixture) execute(sender codec.Address, intentID uint64, plan []byte, feeRecipient codec.Address) error {
	_, err := f.env.Submit([]chain.Txn{
		chain.AppCall{Sender: sender, AppID: f.routerID, Args: [][]byte{
			chain.MethodSelector(SigExecuteIntent),
			chain.Itob(intentID),
			plan,
			feeRecipient.Bytes(),
		}},
	})
	return err
}

func TestExecuteIntent(t *testing.T) {
	f := setup(t)
	plan := f.swapThenSweep(t)
	id := f.register(t, 1_500_000, plan, nil)

	keeperBefore := f.env.Balance(keeper, chain.NativeAssetID)
	require.NoError(t, f.execute(keeper, id, plan, codec.ZeroAddress))

	record, err := f.ledger.ExportIntent(id)
	require.NoError(t, err)
	assert.Equal(t, codec.StatusSuccess, record.Status)

	// Swap: 1000 USD at 2:1 = 2000 gold, swept to the treasury.
	assert.Equal(t, uint64(2_000), f.env.Balance(treasury, assetGOLD))
	assert.Equal(t, uint64(0), f.env.Balance(f.routerAddr, assetUSD))

	// Keeper fee: floor(1,500,000 * 250 / 10000) to the record keeper.
	assert.Equal(t, keeperBefore+37_500, f.env.Balance(keeper, chain.NativeAssetID))

	// ACTIVE -> EXECUTING -> SUCCESS exactly once each.
	statuses := chain.StatusEventsFor(f.env.Events(), id)
	assert.Equal(t, []codec.Status{codec.StatusExecuting, codec.StatusSuccess}, statuses)

	// A second execution finds the intent already terminal.
	assert.ErrorIs(t, f.execute(keeper, id, plan, codec.ZeroAddress), ErrWrongStatus)
}

func TestExecuteIntentRejectsMutatedPlan(t *testing.T) {
	f := setup(t)
	plan := f.swapThenSweep(t)
	id := f.register(t, 1_500_000, plan, nil)

	mutated := append([]byte(nil), plan...)
	mutated[len(mutated)-1] ^= 0x01

	err := f.execute(keeper, id, mutated, codec.ZeroAddress)
	assert.ErrorIs(t, err, ErrHashMismatch)

	// Nothing moved, status untouched.
	record, err := f.ledger.ExportIntent(id)
	require.NoError(t, err)
	assert.Equal(t, codec.StatusActive, record.Status)
	assert.Equal(t, uint64(1_500_000), f.env.Balance(f.ledgerAddr, chain.NativeAssetID))
	assert.Equal(t, uint64(0), f.env.Balance(treasury, assetGOLD))
	assert.Empty(t, chain.StatusEventsFor(f.env.Events(), id))
}

func TestExecuteIntentFeeRecipient(t *testing.T) {
	f := setup(t)
	plan := f.swapThenSweep(t)
	id := f.register(t, 2_000_000, plan, nil)

	// An explicit recipient overrides the record keeper.
	before := f.env.Balance(treasury, chain.NativeAssetID)
	require.NoError(t, f.execute(keeper, id, plan, treasury))
	assert.Equal(t, before+50_000, f.env.Balance(treasury, chain.NativeAssetID))
	assert.Equal(t, uint64(1_000_000), f.env.Balance(keeper, chain.NativeAssetID))
}

func TestExecuteIntentPriceTrigger(t *testing.T) {
	f := setup(t)

	oracle := chain.NewOracle(time.Hour)
	oracle.SetPrice("GOLD/USD", 1_900)
	oracleID, _ := f.env.CreateApp(oracle)

	trigger, err := codec.EncodeTrigger(codec.TriggerConfig{
		TriggerType:    codec.TriggerPriceThreshold,
		OracleAppID:    oracleID,
		OraclePriceKey: []byte("GOLD/USD"),
		Comparator:     codec.ComparatorGTE,
		Threshold:      2_000,
	})
	require.NoError(t, err)

	plan := f.swapThenSweep(t)
	id := f.register(t, 1_500_000, plan, trigger)

	// 1900 < 2000: condition not met, full revert.
	assert.ErrorIs(t, f.execute(keeper, id, plan, codec.ZeroAddress), ErrTriggerNotMet)
	record, err := f.ledger.ExportIntent(id)
	require.NoError(t, err)
	assert.Equal(t, codec.StatusActive, record.Status)

	// Unknown key: the oracle value is absent.
	missing, err := codec.EncodeTrigger(codec.TriggerConfig{
		TriggerType:    codec.TriggerPriceThreshold,
		OracleAppID:    oracleID,
		OraclePriceKey: []byte("SILVER/USD"),
		Comparator:     codec.ComparatorGTE,
		Threshold:      1,
	})
	require.NoError(t, err)
	id2 := f.register(t, 1_000_000, plan, missing)
	assert.ErrorIs(t, f.execute(keeper, id2, plan, codec.ZeroAddress), ErrOracleValueMissing)

	// Price crosses the threshold: execution goes through.
	oracle.SetPrice("GOLD/USD", 2_100)
	assert.NoError(t, f.execute(keeper, id, plan, codec.ZeroAddress))
}

func TestExecuteIntentAmountResolution(t *testing.T) {
	f := setup(t)

	// Gold the router already held is swept together with the swap
	// proceeds: the sentinel resolves against the balance at the moment
	// the transfer step runs.
	f.env.Fund(f.routerAddr, assetGOLD, 150)

	plan := f.swapThenSweep(t)
	id := f.register(t, 1_000_000, plan, nil)
	require.NoError(t, f.execute(keeper, id, plan, codec.ZeroAddress))
	assert.Equal(t, uint64(2_150), f.env.Balance(treasury, assetGOLD))
}

func TestExecuteIntentSlippageAborts(t *testing.T) {
	f := setup(t)

	// The pool pays 1:2 but the floor is computed from the step's own
	// input with a 1% tolerance, so the swap output misses it.
	f.pool.SetRate(assetUSD, assetGOLD, protocols.Rate{Num: 1, Den: 2})

	plan := f.swapThenSweep(t)
	id := f.register(t, 1_500_000, plan, nil)

	err := f.execute(keeper, id, plan, codec.ZeroAddress)
	assert.ErrorIs(t, err, protocols.ErrSlippage)

	record, err := f.ledger.ExportIntent(id)
	require.NoError(t, err)
	assert.Equal(t, codec.StatusActive, record.Status)
	assert.Equal(t, uint64(1_000), f.env.Balance(f.routerAddr, assetUSD))
}

func TestExecuteIntentRejectsBadPlans(t *testing.T) {
	f := setup(t)

	empty, err := codec.EncodeSteps(nil)
	require.NoError(t, err)
	id := f.register(t, 1_000_000, empty, nil)
	assert.ErrorIs(t, f.execute(keeper, id, empty, codec.ZeroAddress), ErrEmptyPlan)

	unknown, err := codec.EncodeSteps([]codec.WorkflowStep{
		{Opcode: codec.Opcode(99), Amount: 5},
	})
	require.NoError(t, err)
	id2 := f.register(t, 1_000_000, unknown, nil)
	assert.ErrorIs(t, f.execute(keeper, id2, unknown, codec.ZeroAddress), ErrUnknownOpcode)

	record, err := f.ledger.ExportIntent(id2)
	require.NoError(t, err)
	assert.Equal(t, codec.StatusActive, record.Status)

	wild, err := codec.EncodeSteps([]codec.WorkflowStep{
		{Opcode: codec.OpSwap, TargetAppID: f.poolID, AssetIn: assetUSD,
			AssetOut: assetGOLD, Amount: 100, SlippageBPS: codec.FeeScale + 1},
	})
	require.NoError(t, err)
	id3 := f.register(t, 1_000_000, wild, nil)
	assert.ErrorIs(t, f.execute(keeper, id3, wild, codec.ZeroAddress), ErrBadSlippage)
}

func TestSlippageFloorWideMath(t *testing.T) {
	// 2^60 * 100 overflows a bare 64-bit product; the widened math keeps
	// the 1% deduction exact.
	floor, err := slippageFloor(1<<60, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<60-11_529_215_046_068_469), floor)

	full, err := slippageFloor(1<<60, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<60), full)

	zero, err := slippageFloor(12_345, codec.FeeScale)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), zero)

	_, err = slippageFloor(1_000, codec.FeeScale+1)
	assert.ErrorIs(t, err, ErrBadSlippage)
}

func TestExecuteIntentLargeCollateralFee(t *testing.T) {
	f := setup(t)

	// A collateral large enough that collateral*fee_bps wraps 64 bits.
	collateral := uint64(2_000_000_000_000_000_000)
	f.env.Fund(owner, chain.NativeAssetID, collateral)
	f.env.Fund(f.routerAddr, chain.NativeAssetID, 60_000_000_000_000_000)

	plan := f.swapThenSweep(t)
	id := f.register(t, collateral, plan, nil)

	keeperBefore := f.env.Balance(keeper, chain.NativeAssetID)
	require.NoError(t, f.execute(keeper, id, plan, codec.ZeroAddress))

	// floor(2e18 * 250 / 10000), exactly.
	assert.Equal(t, keeperBefore+50_000_000_000_000_000, f.env.Balance(keeper, chain.NativeAssetID))
}

func TestExecuteIntentStepShapes(t *testing.T) {
	f := setup(t)

	staking := protocols.NewStakingPool()
	stakingID, _ := f.env.CreateApp(staking)
	lending := protocols.NewLendingMarket()
	lendingID, _ := f.env.CreateApp(lending)

	plan, err := codec.EncodeSteps([]codec.WorkflowStep{
		{Opcode: codec.OpStake, TargetAppID: stakingID, AssetIn: assetUSD, Amount: 400},
		{Opcode: codec.OpUnstake, TargetAppID: stakingID, AssetIn: assetUSD, Amount: 100},
		{Opcode: codec.OpLendSupply, TargetAppID: lendingID, AssetIn: assetUSD, Amount: 100},
		{Opcode: codec.OpLendWithdraw, TargetAppID: lendingID, AssetIn: assetUSD, Amount: 50},
	})
	require.NoError(t, err)

	id := f.register(t, 1_000_000, plan, nil)
	require.NoError(t, f.execute(keeper, id, plan, codec.ZeroAddress))

	assert.Equal(t, uint64(300), staking.Staked(f.routerAddr, assetUSD))
	assert.Equal(t, uint64(50), lending.Supplied(f.routerAddr, assetUSD))
	assert.Equal(t, uint64(1_000-400+100-100+50), f.env.Balance(f.routerAddr, assetUSD))
}

func TestExecuteIntentLiquiditySteps(t *testing.T) {
	f := setup(t)

	plan, err := codec.EncodeSteps([]codec.WorkflowStep{
		{Opcode: codec.OpProvideLiquidity, TargetAppID: f.poolID, AssetIn: assetUSD, AssetOut: assetGOLD, Amount: 600},
		{Opcode: codec.OpWithdrawLiquidity, TargetAppID: f.poolID, AssetIn: assetUSD, AssetOut: assetGOLD, Amount: 200},
	})
	require.NoError(t, err)

	id := f.register(t, 1_000_000, plan, nil)
	require.NoError(t, f.execute(keeper, id, plan, codec.ZeroAddress))
	assert.Equal(t, uint64(1_000-600+200), f.env.Balance(f.routerAddr, assetUSD))
}

func TestExecuteUnconfiguredRouter(t *testing.T) {
	env := chain.NewEnv(nil)
	rtr, err := New(store.NewMemoryStore(), nil, owner)
	require.NoError(t, err)
	routerID, _ := env.CreateApp(rtr)

	_, err = env.Submit([]chain.Txn{
		chain.AppCall{Sender: keeper, AppID: routerID, Args: [][]byte{
			chain.MethodSelector(SigExecuteIntent),
			chain.Itob(1),
			nil,
			codec.ZeroAddress.Bytes(),
		}},
	})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestConfigure(t *testing.T) {
	f := setup(t)

	configure := func(sender codec.Address, fee uint64) error {
		_, err := f.env.Submit([]chain.Txn{
			chain.AppCall{Sender: sender, AppID: f.routerID, Args: [][]byte{
				chain.MethodSelector(SigConfigure),
				chain.Itob(f.ledgerID),
				keeper.Bytes(),
				chain.Itob(fee),
			}},
		})
		return err
	}

	assert.Error(t, configure(keeper, 100))
	assert.Error(t, configure(owner, codec.MaxKeeperFeeBPS+1))
	require.NoError(t, configure(owner, 300))

	g, err := f.router.Globals()
	require.NoError(t, err)
	assert.Equal(t, uint64(300), g.FeeBPS)
	assert.Equal(t, f.ledgerID, g.LedgerAppID)
}
