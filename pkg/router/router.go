// Package router implements the execution side of the engine. The router
// never holds intent records itself: it reads them from the ledger through
// a synchronous cross-app call, verifies the caller-supplied plan against
// the stored commitment, drives the status machine through the ledger's
// authorized entry point, and dispatches each workflow step to its target
// protocol app.
package router

import (
	"errors"
	"fmt"
	"time"

	"github.com/gabikreal1/AlgoFlow/pkg/authz"
	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/ledger"
	"github.com/gabikreal1/AlgoFlow/pkg/logger"
	"github.com/gabikreal1/AlgoFlow/pkg/metrics"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

var (
	// ErrNotConfigured is returned when execute is called before the ledger
	// app id has been configured.
	ErrNotConfigured = errors.New("router: ledger app not configured")
	// ErrWrongStatus is returned when the intent is not ACTIVE.
	ErrWrongStatus = errors.New("router: intent is not executable")
	// ErrHashMismatch is returned when the supplied plan does not hash to
	// the stored workflow commitment.
	ErrHashMismatch = errors.New("router: plan hash does not match stored commitment")
	// ErrTriggerNotMet is returned when the price condition does not hold.
	ErrTriggerNotMet = errors.New("router: trigger condition not met")
	// ErrOracleValueMissing is returned when the trigger's oracle key
	// resolves to no value.
	ErrOracleValueMissing = errors.New("router: oracle value missing")
	// ErrEmptyPlan is returned for a plan with zero steps.
	ErrEmptyPlan = errors.New("router: execution plan has no steps")
	// ErrUnknownOpcode is returned for a step with an unrecognized opcode.
	ErrUnknownOpcode = errors.New("router: unknown step opcode")
	// ErrZeroAmount is returned when a step's resolved amount is zero.
	ErrZeroAmount = errors.New("router: step resolved to a zero amount")
	// ErrBadStep is returned for a step whose extra payload is malformed.
	ErrBadStep = errors.New("router: malformed step payload")
	// ErrBadComparator is returned for an out-of-range trigger comparator.
	ErrBadComparator = errors.New("router: unknown trigger comparator")
	// ErrBadSlippage is returned for a slippage tolerance above the full
	// basis-point scale.
	ErrBadSlippage = errors.New("router: slippage basis points out of bounds")
)

// Protocol method names understood by the sandbox protocol apps. Value
// legs travel as inner transfers immediately before the call.
const (
	MethodSwap            = "swap"
	MethodAddLiquidity    = "add_liquidity"
	MethodRemoveLiquidity = "remove_liquidity"
	MethodStake           = "stake"
	MethodUnstake         = "unstake"
	MethodSupply          = "supply"
	MethodWithdraw        = "withdraw"
)

// Router executes registered intents against protocol apps. Its working
// funds live in its own app account: step proceeds land there, so a later
// step with amount 0 consumes exactly what an earlier step produced.
type Router struct {
	boxes store.Store
	log   logger.Logger
}

// New opens the router over its configuration store. creator becomes the
// owner if the store has never been initialized.
func New(boxes store.Store, log logger.Logger, creator codec.Address) (*Router, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if _, err := loadGlobals(boxes, creator); err != nil {
		return nil, fmt.Errorf("failed to initialize router globals: %v", err)
	}
	return &Router{boxes: boxes, log: log}, nil
}

// Globals returns the current configuration.
func (r *Router) Globals() (Globals, error) {
	raw, err := r.boxes.Get(globalsKey)
	if err != nil {
		return Globals{}, err
	}
	return decodeGlobals(raw)
}

// Configure records the ledger app id, the fallback fee recipient, and the
// keeper fee rate. Owner only; the fee rate is bounded.
func (r *Router) Configure(call *chain.Call, ledgerAppID uint64, defaultKeeper codec.Address, feeBPS uint64) error {
	g, err := r.Globals()
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(call.Sender, g.Owner); err != nil {
		return err
	}
	if err := authz.CheckFeeBounds(feeBPS); err != nil {
		return err
	}
	g.LedgerAppID = ledgerAppID
	g.DefaultKeeper = defaultKeeper
	g.FeeBPS = feeBPS
	if err := call.JournalBoxWrite(r.boxes, globalsKey); err != nil {
		return err
	}
	if err := r.boxes.Put(globalsKey, encodeGlobals(g)); err != nil {
		return err
	}
	r.log.Info("[ROUTER] configured: ledger_app=%d fee_bps=%d", ledgerAppID, feeBPS)
	return nil
}

// ExecuteIntent runs the full execute flow for one intent. Any failure
// reverts the whole group, including the EXECUTING transition; status only
// advances when every step and the fee payout succeed.
func (r *Router) ExecuteIntent(call *chain.Call, intentID uint64, plan []byte, feeRecipient codec.Address) error {
	started := time.Now()

	g, err := r.Globals()
	if err != nil {
		return err
	}
	if g.LedgerAppID == 0 {
		return ErrNotConfigured
	}

	record, err := r.readRecord(call, g.LedgerAppID, intentID)
	if err != nil {
		return err
	}
	if record.Status != codec.StatusActive {
		return fmt.Errorf("%w: intent %d is %s", ErrWrongStatus, intentID, record.Status)
	}

	if err := r.checkTrigger(call, record.TriggerCondition); err != nil {
		return err
	}

	hash := codec.PlanHash(plan)
	if hash != record.WorkflowHash {
		metrics.HashMismatches.Inc()
		return fmt.Errorf("%w: intent %d", ErrHashMismatch, intentID)
	}

	if err := r.setStatus(call, g.LedgerAppID, intentID, codec.StatusExecuting, nil); err != nil {
		return err
	}

	steps, err := codec.DecodeSteps(plan)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return ErrEmptyPlan
	}
	for i, step := range steps {
		if err := r.dispatchStep(call, step); err != nil {
			metrics.IntentExecutions.WithLabelValues("failure").Inc()
			return fmt.Errorf("step %d (%s) failed: %w", i, step.Opcode, err)
		}
		metrics.StepsDispatched.WithLabelValues(step.Opcode.String()).Inc()
	}

	if err := r.payKeeperFee(call, record, g, feeRecipient); err != nil {
		return err
	}

	if err := r.setStatus(call, g.LedgerAppID, intentID, codec.StatusSuccess, hash.Bytes()); err != nil {
		return err
	}
	call.Log(chain.ExecutionResultEvent(intentID, codec.StatusSuccess, hash.Bytes()))

	metrics.IntentExecutions.WithLabelValues("success").Inc()
	metrics.ExecutionTime.Observe(time.Since(started).Seconds())
	r.log.Info("[ROUTER] intent %d executed: %d steps, plan %s", intentID, len(steps), hash.Hex())
	return nil
}

// readRecord cross-calls the ledger for the raw record bytes and decodes
// them. The return value travels back in a marker-prefixed log entry.
func (r *Router) readRecord(call *chain.Call, ledgerAppID, intentID uint64) (codec.IntentRecord, error) {
	logs, err := call.InnerCall(ledgerAppID, [][]byte{
		chain.MethodSelector(ledger.SigReadIntentRaw),
		chain.Itob(intentID),
	})
	if err != nil {
		return codec.IntentRecord{}, err
	}
	raw, err := chain.AppReturn(logs)
	if err != nil {
		return codec.IntentRecord{}, err
	}
	return codec.DecodeRecord(raw)
}

// setStatus cross-calls the ledger's authorized status entry point. The
// ledger sees the router's app address as sender, so the ledger must be
// configured with this router as its executor app.
func (r *Router) setStatus(call *chain.Call, ledgerAppID, intentID uint64, status codec.Status, detail []byte) error {
	_, err := call.InnerCall(ledgerAppID, [][]byte{
		chain.MethodSelector(ledger.SigUpdateIntentStatus),
		chain.Itob(intentID),
		chain.Itob(uint64(status)),
		detail,
	})
	return err
}

// checkTrigger decodes the stored condition and enforces it against the
// designated oracle app's global state. An empty condition is NONE.
func (r *Router) checkTrigger(call *chain.Call, condition []byte) error {
	trig, err := codec.DecodeTrigger(condition)
	if err != nil {
		return err
	}
	if trig.TriggerType == codec.TriggerNone {
		return nil
	}
	value, ok := call.AppGlobalGet(trig.OracleAppID, trig.OraclePriceKey)
	if !ok {
		metrics.TriggerRejections.Inc()
		return fmt.Errorf("%w: app %d key %q", ErrOracleValueMissing, trig.OracleAppID, trig.OraclePriceKey)
	}
	var met bool
	switch trig.Comparator {
	case codec.ComparatorGTE:
		met = value >= trig.Threshold
	case codec.ComparatorLTE:
		met = value <= trig.Threshold
	default:
		return fmt.Errorf("%w: %d", ErrBadComparator, trig.Comparator)
	}
	if !met {
		metrics.TriggerRejections.Inc()
		return fmt.Errorf("%w: oracle value %d, threshold %d", ErrTriggerNotMet, value, trig.Threshold)
	}
	return nil
}

// dispatchStep routes a step to its handler. Unknown opcodes are fatal to
// the whole call, never skipped.
func (r *Router) dispatchStep(call *chain.Call, step codec.WorkflowStep) error {
	switch step.Opcode {
	case codec.OpSwap:
		return r.stepSwap(call, step)
	case codec.OpProvideLiquidity:
		return r.stepAddLiquidity(call, step)
	case codec.OpWithdrawLiquidity:
		return r.stepWithdrawLiquidity(call, step)
	case codec.OpStake:
		return r.stepProtocol(call, step, MethodStake, true)
	case codec.OpUnstake:
		return r.stepProtocol(call, step, MethodUnstake, false)
	case codec.OpLendSupply:
		return r.stepProtocol(call, step, MethodSupply, true)
	case codec.OpLendWithdraw:
		return r.stepProtocol(call, step, MethodWithdraw, false)
	case codec.OpTransfer:
		return r.stepTransfer(call, step)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownOpcode, uint64(step.Opcode))
	}
}

// resolveAmount applies the inherit sentinel: amount 0 means the router's
// entire current balance of the asset at this point in execution. The
// resolved amount must be strictly positive.
func (r *Router) resolveAmount(call *chain.Call, assetID, amount uint64) (uint64, error) {
	if amount == 0 {
		amount = call.Balance(assetID)
	}
	if amount == 0 {
		return 0, fmt.Errorf("%w: asset %d", ErrZeroAmount, assetID)
	}
	return amount, nil
}

// slippageFloor computes the minimum acceptable output for a step. The
// deduction runs through a 128-bit intermediate so full-range amounts do
// not wrap.
func slippageFloor(amount, slippageBPS uint64) (uint64, error) {
	if slippageBPS > codec.FeeScale {
		return 0, fmt.Errorf("%w: %d > %d", ErrBadSlippage, slippageBPS, codec.FeeScale)
	}
	deduct, _ := codec.MulDiv(amount, slippageBPS, codec.FeeScale)
	return amount - deduct, nil
}

func (r *Router) stepSwap(call *chain.Call, step codec.WorkflowStep) error {
	amount, err := r.resolveAmount(call, step.AssetIn, step.Amount)
	if err != nil {
		return err
	}
	minOut, err := slippageFloor(amount, step.SlippageBPS)
	if err != nil {
		return err
	}
	target, ok := call.ResolveApp(step.TargetAppID)
	if !ok {
		return fmt.Errorf("swap target app %d not found", step.TargetAppID)
	}
	if err := call.TransferAsset(step.AssetIn, target, amount); err != nil {
		return err
	}
	_, err = call.InnerCall(step.TargetAppID, [][]byte{
		[]byte(MethodSwap),
		chain.Itob(step.AssetIn),
		chain.Itob(step.AssetOut),
		chain.Itob(amount),
		chain.Itob(minOut),
	})
	return err
}

// stepProtocol covers the stake/unstake and supply/withdraw step shapes:
// a single asset, a resolved amount, and for deposit-like methods a value
// leg ahead of the call.
func (r *Router) stepProtocol(call *chain.Call, step codec.WorkflowStep, method string, deposit bool) error {
	amount, err := r.resolveAmount(call, step.AssetIn, step.Amount)
	if err != nil {
		return err
	}
	target, ok := call.ResolveApp(step.TargetAppID)
	if !ok {
		return fmt.Errorf("%s target app %d not found", method, step.TargetAppID)
	}
	if deposit {
		if err := call.TransferAsset(step.AssetIn, target, amount); err != nil {
			return err
		}
	}
	_, err = call.InnerCall(step.TargetAppID, [][]byte{
		[]byte(method),
		chain.Itob(step.AssetIn),
		chain.Itob(amount),
	})
	return err
}

func (r *Router) stepAddLiquidity(call *chain.Call, step codec.WorkflowStep) error {
	amount, err := r.resolveAmount(call, step.AssetIn, step.Amount)
	if err != nil {
		return err
	}
	minLP, err := slippageFloor(amount, step.SlippageBPS)
	if err != nil {
		return err
	}
	target, ok := call.ResolveApp(step.TargetAppID)
	if !ok {
		return fmt.Errorf("add_liquidity target app %d not found", step.TargetAppID)
	}
	if err := call.TransferAsset(step.AssetIn, target, amount); err != nil {
		return err
	}
	_, err = call.InnerCall(step.TargetAppID, [][]byte{
		[]byte(MethodAddLiquidity),
		chain.Itob(step.AssetIn),
		chain.Itob(step.AssetOut),
		chain.Itob(amount),
		chain.Itob(minLP),
	})
	return err
}

func (r *Router) stepWithdrawLiquidity(call *chain.Call, step codec.WorkflowStep) error {
	if step.Amount == 0 {
		return fmt.Errorf("%w: liquidity amount must be explicit", ErrZeroAmount)
	}
	minOut, err := slippageFloor(step.Amount, step.SlippageBPS)
	if err != nil {
		return err
	}
	if _, ok := call.ResolveApp(step.TargetAppID); !ok {
		return fmt.Errorf("remove_liquidity target app %d not found", step.TargetAppID)
	}
	_, err = call.InnerCall(step.TargetAppID, [][]byte{
		[]byte(MethodRemoveLiquidity),
		chain.Itob(step.AssetIn),
		chain.Itob(step.AssetOut),
		chain.Itob(step.Amount),
		chain.Itob(minOut),
	})
	return err
}

// stepTransfer sends value directly. The recipient is the first 32 bytes
// of the step's extra payload.
func (r *Router) stepTransfer(call *chain.Call, step codec.WorkflowStep) error {
	if len(step.Extra) < codec.AddressLength {
		return fmt.Errorf("%w: transfer extra is %d bytes, want at least %d", ErrBadStep, len(step.Extra), codec.AddressLength)
	}
	amount, err := r.resolveAmount(call, step.AssetIn, step.Amount)
	if err != nil {
		return err
	}
	recipient := codec.BytesToAddress(step.Extra[:codec.AddressLength])
	return call.TransferAsset(step.AssetIn, recipient, amount)
}

// payKeeperFee pays floor(collateral * fee_bps / 10000) from the router's
// own account after all steps have succeeded. An unset recipient falls
// through to the record's keeper.
func (r *Router) payKeeperFee(call *chain.Call, record codec.IntentRecord, g Globals, feeRecipient codec.Address) error {
	// FeeBPS is bounded by configure, so the 128-bit quotient always fits.
	fee, _ := codec.MulDiv(record.Collateral, g.FeeBPS, codec.FeeScale)
	if fee == 0 {
		return nil
	}
	if feeRecipient.IsZero() {
		feeRecipient = record.Keeper
	}
	if feeRecipient.IsZero() {
		feeRecipient = g.DefaultKeeper
	}
	if feeRecipient.IsZero() {
		return nil
	}
	if err := call.Pay(feeRecipient, fee); err != nil {
		return fmt.Errorf("failed to pay keeper fee: %w", err)
	}
	metrics.KeeperFeesPaid.Add(float64(fee))
	return nil
}
