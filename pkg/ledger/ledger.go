// Package ledger implements the intent ledger: the single owner of intent
// records and their lifecycle. Records are stored fully encoded; every
// mutation rewrites the whole record. The ledger is registered as a chain
// app and invoked through the selector dispatch in app.go, including by
// the execution router's cross-component calls.
package ledger

import (
	"errors"
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/authz"
	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/logger"
	"github.com/gabikreal1/AlgoFlow/pkg/metrics"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

var (
	// ErrIntentNotFound is returned for unknown intent ids.
	ErrIntentNotFound = errors.New("ledger: intent not found")
	// ErrBadTransition is returned for status changes outside the table.
	ErrBadTransition = errors.New("ledger: illegal status transition")
	// ErrUnknownStatus is returned for status codes outside the enum.
	ErrUnknownStatus = errors.New("ledger: unknown status code")
	// ErrBlobTooLarge is returned for workflow blobs over the size cap.
	ErrBlobTooLarge = errors.New("ledger: workflow blob too large")
	// ErrCollateralTooLow is returned when the offered collateral is below
	// the configured minimum.
	ErrCollateralTooLow = errors.New("ledger: collateral below minimum")
	// ErrMissingPaymentLeg is returned when the atomic group does not carry
	// the exact collateral payment immediately before the register call.
	ErrMissingPaymentLeg = errors.New("ledger: collateral payment leg missing or wrong")
	// ErrNotTerminal is returned when withdrawing from a live intent.
	ErrNotTerminal = errors.New("ledger: intent not in a terminal status")
	// ErrNothingToWithdraw is returned on a second withdrawal attempt.
	ErrNothingToWithdraw = errors.New("ledger: collateral already withdrawn")
)

// Ledger owns the intent boxes and the global policy.
type Ledger struct {
	boxes store.Store
	log   logger.Logger
}

// New creates a ledger over the given box store. creator becomes owner and
// default keeper if the store has no persisted policy yet.
func New(boxes store.Store, log logger.Logger, creator codec.Address) (*Ledger, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if _, err := loadGlobals(boxes, creator); err != nil {
		return nil, fmt.Errorf("failed to initialize ledger globals: %v", err)
	}
	return &Ledger{boxes: boxes, log: log}, nil
}

// Globals returns the current persisted policy.
func (l *Ledger) Globals() (Globals, error) {
	buf, err := l.boxes.Get([]byte(globalsKey))
	if err != nil {
		return Globals{}, err
	}
	return decodeGlobals(buf)
}

// Configure stores the process-wide policy: default keeper, minimum
// collateral, keeper fee split, and the optional trusted executor app.
// Owner only.
func (l *Ledger) Configure(call *chain.Call, defaultKeeper codec.Address, minCollateral, feeSplitBPS, executorAppID uint64) error {
	g, err := l.Globals()
	if err != nil {
		return err
	}
	if err := authz.RequireOwner(call.Sender, g.Owner); err != nil {
		return err
	}
	if err := authz.CheckFeeBounds(feeSplitBPS); err != nil {
		return err
	}
	g.Keeper = defaultKeeper
	g.MinCollateral = minCollateral
	g.FeeSplitBPS = feeSplitBPS
	g.ExecutorAppID = executorAppID
	if err := l.putGlobals(call, g); err != nil {
		return err
	}
	l.log.Info("[LEDGER] configured: keeper=%s min_collateral=%d fee_bps=%d executor_app=%d",
		defaultKeeper, minCollateral, feeSplitBPS, executorAppID)
	return nil
}

// RegisterArgs are the caller-supplied fields of a new intent.
type RegisterArgs struct {
	WorkflowHash     [32]byte
	WorkflowBlob     []byte
	TriggerCondition []byte
	CollateralAmount uint64
	KeeperOverride   codec.Address
	Version          uint64
	AppEscrowID      uint64
	AppASAID         uint64
}

// RegisterIntent validates the collateral payment leg bundled in the
// group, stores a new ACTIVE record under the next sequential id, and
// returns the id.
func (l *Ledger) RegisterIntent(call *chain.Call, args RegisterArgs) (uint64, error) {
	if len(args.WorkflowBlob) > codec.MaxWorkflowBytes {
		return 0, fmt.Errorf("%w: %d bytes", ErrBlobTooLarge, len(args.WorkflowBlob))
	}
	g, err := l.Globals()
	if err != nil {
		return 0, err
	}
	if args.CollateralAmount < g.MinCollateral {
		return 0, fmt.Errorf("%w: %d < %d", ErrCollateralTooLow, args.CollateralAmount, g.MinCollateral)
	}
	if err := l.checkCollateralPayment(call, args.CollateralAmount); err != nil {
		return 0, err
	}

	intentID := g.NextIntentID
	g.NextIntentID++
	if err := l.putGlobals(call, g); err != nil {
		return 0, err
	}

	keeper := g.Keeper
	if !args.KeeperOverride.IsZero() {
		keeper = args.KeeperOverride
	}
	record := codec.IntentRecord{
		Owner:            call.Sender,
		Collateral:       args.CollateralAmount,
		WorkflowHash:     args.WorkflowHash,
		Status:           codec.StatusActive,
		WorkflowBlob:     args.WorkflowBlob,
		Keeper:           keeper,
		Version:          args.Version,
		TriggerCondition: args.TriggerCondition,
		AppEscrowID:      args.AppEscrowID,
		AppASAID:         args.AppASAID,
	}
	if err := l.putRecord(call, intentID, record); err != nil {
		return 0, err
	}

	call.Log(chain.IntentCreatedEvent(intentID, record.Owner, record.Version))
	metrics.IntentsRegistered.Inc()
	metrics.CollateralEscrowed.Add(float64(args.CollateralAmount))
	l.log.Info("[LEDGER] intent %d registered by %s (collateral=%d, blob=%d bytes)",
		intentID, record.Owner, args.CollateralAmount, len(args.WorkflowBlob))
	return intentID, nil
}

// checkCollateralPayment verifies the escrow convention: the transaction
// immediately preceding the register call in the same group must be a
// payment of exactly the collateral amount, from the registering sender to
// the ledger's own address. Balance inspection is never used.
func (l *Ledger) checkCollateralPayment(call *chain.Call, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if call.GroupIndex == 0 {
		return fmt.Errorf("%w: register call is first in group", ErrMissingPaymentLeg)
	}
	payment, ok := call.GroupPayment(call.GroupIndex - 1)
	if !ok {
		return fmt.Errorf("%w: preceding txn is not a payment", ErrMissingPaymentLeg)
	}
	if payment.Receiver != call.AppAddress() {
		return fmt.Errorf("%w: payment receiver %s is not the ledger", ErrMissingPaymentLeg, payment.Receiver)
	}
	if payment.Sender != call.Sender {
		return fmt.Errorf("%w: payment sender %s does not match caller", ErrMissingPaymentLeg, payment.Sender)
	}
	if payment.Amount != amount {
		return fmt.Errorf("%w: payment of %d does not match collateral %d", ErrMissingPaymentLeg, payment.Amount, amount)
	}
	return nil
}

// UpdateIntentStatus authorizes the caller as owner, keeper, or resolved
// executor, asserts the transition is legal, and rewrites the record.
// detail travels into the execution-result event untouched.
func (l *Ledger) UpdateIntentStatus(call *chain.Call, intentID uint64, newStatus codec.Status, detail []byte) error {
	if !newStatus.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStatus, uint64(newStatus))
	}
	record, err := l.getRecord(intentID)
	if err != nil {
		return err
	}

	g, err := l.Globals()
	if err != nil {
		return err
	}
	executor := codec.ZeroAddress
	if g.ExecutorAppID != 0 {
		if addr, ok := call.ResolveApp(g.ExecutorAppID); ok {
			executor = addr
		}
	}
	if err := authz.RequireActor(call.Sender, record.Owner, record.Keeper, executor); err != nil {
		return err
	}
	if !ValidTransition(record.Status, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, record.Status, newStatus)
	}

	previous := record.Status
	record.Status = newStatus
	if err := l.putRecord(call, intentID, record); err != nil {
		return err
	}

	call.Log(chain.IntentStatusEvent(intentID, newStatus, call.Sender))
	call.Log(chain.ExecutionResultEvent(intentID, newStatus, detail))
	metrics.StatusTransitions.WithLabelValues(previous.String(), newStatus.String()).Inc()
	l.log.Info("[LEDGER] intent %d status %s -> %s by %s", intentID, previous, newStatus, call.Sender)
	return nil
}

// ExportIntent returns the decoded record for an intent id.
func (l *Ledger) ExportIntent(intentID uint64) (codec.IntentRecord, error) {
	return l.getRecord(intentID)
}

// ReadIntentRaw returns the encoded record exactly as stored.
func (l *Ledger) ReadIntentRaw(intentID uint64) ([]byte, error) {
	buf, err := l.boxes.Get(IntentBoxKey(intentID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrIntentNotFound, intentID)
	}
	return buf, err
}

// WithdrawIntent pays the escrowed collateral of a terminal intent to
// recipient (owner when unset) and zeroes it. Owner only; a second call
// fails on the zero collateral.
func (l *Ledger) WithdrawIntent(call *chain.Call, intentID uint64, recipient codec.Address) (uint64, error) {
	record, err := l.getRecord(intentID)
	if err != nil {
		return 0, err
	}
	if err := authz.RequireOwner(call.Sender, record.Owner); err != nil {
		return 0, err
	}
	if !record.Status.Terminal() {
		return 0, fmt.Errorf("%w: status is %s", ErrNotTerminal, record.Status)
	}
	if record.Collateral == 0 {
		return 0, fmt.Errorf("%w: intent %d", ErrNothingToWithdraw, intentID)
	}

	receiver := recipient
	if receiver.IsZero() {
		receiver = record.Owner
	}
	amount := record.Collateral
	if err := call.Pay(receiver, amount); err != nil {
		return 0, err
	}
	record.Collateral = 0
	if err := l.putRecord(call, intentID, record); err != nil {
		return 0, err
	}

	call.Log(chain.IntentStatusEvent(intentID, record.Status, call.Sender))
	metrics.CollateralWithdrawn.Add(float64(amount))
	l.log.Info("[LEDGER] intent %d collateral %d withdrawn to %s", intentID, amount, receiver)
	return amount, nil
}

// ValidTransition reports whether current -> next is allowed. A status may
// always transition to itself.
func ValidTransition(current, next codec.Status) bool {
	if current == next {
		return true
	}
	switch current {
	case codec.StatusActive:
		return next == codec.StatusExecuting || next == codec.StatusCancelled
	case codec.StatusExecuting:
		return next == codec.StatusSuccess || next == codec.StatusFailed
	default:
		return false
	}
}

func (l *Ledger) getRecord(intentID uint64) (codec.IntentRecord, error) {
	buf, err := l.boxes.Get(IntentBoxKey(intentID))
	if errors.Is(err, store.ErrNotFound) {
		return codec.IntentRecord{}, fmt.Errorf("%w: %d", ErrIntentNotFound, intentID)
	}
	if err != nil {
		return codec.IntentRecord{}, err
	}
	return codec.DecodeRecord(buf)
}

// putRecord journals and rewrites the whole record under its box key.
func (l *Ledger) putRecord(call *chain.Call, intentID uint64, record codec.IntentRecord) error {
	encoded, err := codec.EncodeRecord(record)
	if err != nil {
		return err
	}
	key := IntentBoxKey(intentID)
	if err := call.JournalBoxWrite(l.boxes, key); err != nil {
		return err
	}
	return l.boxes.Put(key, encoded)
}

func (l *Ledger) putGlobals(call *chain.Call, g Globals) error {
	key := []byte(globalsKey)
	if err := call.JournalBoxWrite(l.boxes, key); err != nil {
		return err
	}
	return l.boxes.Put(key, encodeGlobals(g))
}
