// Package chain implements the in-process runtime the intent engine
// executes against: accounts with per-asset balances, applications with
// derived addresses, atomic transaction groups with journaled rollback,
// synchronous inner transactions, oracle state reads, and a retained event
// log. It models exactly the ledger-VM primitives the engine relies on; a
// group either commits in full or leaves no trace.
package chain

import (
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/logger"
)

// NativeAssetID is the asset id of the native value unit.
const NativeAssetID = 0

var (
	// ErrUnknownApp is returned when calling an unregistered app id.
	ErrUnknownApp = errors.New("chain: unknown application id")
	// ErrInsufficientBalance is returned when a transfer overdraws an account.
	ErrInsufficientBalance = errors.New("chain: insufficient balance")
	// ErrAppExists is returned when registering an app under a taken id.
	ErrAppExists = errors.New("chain: application id already registered")
)

// App is a callable application. A call either succeeds, leaving its
// effects in the enclosing group's journal, or returns an error that
// aborts the whole group.
type App interface {
	Call(call *Call) error
}

// GlobalStateReader is implemented by apps that expose keyed uint64 global
// state, such as price oracles.
type GlobalStateReader interface {
	GlobalGet(key []byte) (uint64, bool)
}

type account struct {
	balances map[uint64]uint64
}

// Env is the sandbox chain state. All group submission is serialized by a
// single mutex; there is no intra-call concurrency.
type Env struct {
	mu       sync.Mutex
	log      logger.Logger
	accounts map[codec.Address]*account
	apps     map[uint64]App
	appAddrs map[uint64]codec.Address
	nextApp  uint64
	logged   [][]byte
}

// NewEnv creates an empty sandbox environment.
func NewEnv(log logger.Logger) *Env {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Env{
		log:      log,
		accounts: make(map[codec.Address]*account),
		apps:     make(map[uint64]App),
		appAddrs: make(map[uint64]codec.Address),
		nextApp:  1000,
	}
}

// AppAddress derives the deterministic account address of an app id.
func AppAddress(appID uint64) codec.Address {
	buf := make([]byte, 0, 13)
	buf = append(buf, []byte("appID")...)
	buf = binary.BigEndian.AppendUint64(buf, appID)
	sum := sha512.Sum512_256(buf)
	return codec.BytesToAddress(sum[:])
}

// CreateApp registers app under the next free id and returns the id and
// the app's derived account address.
func (e *Env) CreateApp(app App) (uint64, codec.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextApp
	e.nextApp++
	e.apps[id] = app
	addr := AppAddress(id)
	e.appAddrs[id] = addr
	return id, addr
}

// RegisterApp registers app under a caller-chosen id.
func (e *Env) RegisterApp(id uint64, app App) (codec.Address, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, taken := e.apps[id]; taken {
		return codec.ZeroAddress, fmt.Errorf("%w: %d", ErrAppExists, id)
	}
	if id >= e.nextApp {
		e.nextApp = id + 1
	}
	e.apps[id] = app
	addr := AppAddress(id)
	e.appAddrs[id] = addr
	return addr, nil
}

// ResolveAppAddress returns the account address of a registered app id.
func (e *Env) ResolveAppAddress(appID uint64) (codec.Address, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	addr, ok := e.appAddrs[appID]
	return addr, ok
}

// Fund mints amount of asset into addr. Genesis/test helper; funding is
// not journaled.
func (e *Env) Fund(addr codec.Address, assetID, amount uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acct(addr).balances[assetID] += amount
}

// Balance returns addr's balance of asset.
func (e *Env) Balance(addr codec.Address, assetID uint64) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct(addr).balances[assetID]
}

// Events returns all log payloads retained from committed groups.
func (e *Env) Events() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.logged))
	copy(out, e.logged)
	return out
}

// Submit executes a transaction group as one atomic unit. Any error
// reverts every balance change, box write, and log entry the group made,
// including those of inner transactions.
func (e *Env) Submit(group []Txn) (*GroupResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	groupID := uuid.NewString()
	j := &journal{}
	result := &GroupResult{Logs: make([][][]byte, len(group))}

	for i, txn := range group {
		switch t := txn.(type) {
		case Payment:
			if err := e.transfer(j, t.Sender, t.Receiver, NativeAssetID, t.Amount); err != nil {
				j.revert()
				return nil, fmt.Errorf("group %s txn %d: %v", groupID, i, err)
			}
		case AssetTransfer:
			if err := e.transfer(j, t.Sender, t.Receiver, t.AssetID, t.Amount); err != nil {
				j.revert()
				return nil, fmt.Errorf("group %s txn %d: %v", groupID, i, err)
			}
		case AppCall:
			call, err := e.callApp(j, t, group, i)
			if err != nil {
				j.revert()
				e.log.Debug("[CHAIN] group %s reverted at txn %d: %v", groupID, i, err)
				return nil, fmt.Errorf("group %s txn %d: %w", groupID, i, err)
			}
			result.Logs[i] = call.Logs
		default:
			j.revert()
			return nil, fmt.Errorf("group %s txn %d: unsupported transaction type %T", groupID, i, txn)
		}
	}

	e.log.Debug("[CHAIN] group %s committed (%d txns)", groupID, len(group))
	return result, nil
}

// callApp dispatches one app call. Callers hold the env mutex.
func (e *Env) callApp(j *journal, t AppCall, group []Txn, index int) (*Call, error) {
	app, ok := e.apps[t.AppID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownApp, t.AppID)
	}
	call := &Call{
		env:        e,
		journal:    j,
		Sender:     t.Sender,
		AppID:      t.AppID,
		Args:       t.Args,
		Group:      group,
		GroupIndex: index,
	}
	if err := app.Call(call); err != nil {
		return nil, err
	}
	return call, nil
}

func (e *Env) acct(addr codec.Address) *account {
	a, ok := e.accounts[addr]
	if !ok {
		a = &account{balances: make(map[uint64]uint64)}
		e.accounts[addr] = a
	}
	return a
}

// transfer moves amount of asset between accounts, journaled. A zero
// amount is a no-op leg, which group builders use for bare app funding.
func (e *Env) transfer(j *journal, from, to codec.Address, assetID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	src := e.acct(from)
	if src.balances[assetID] < amount {
		return fmt.Errorf("%w: %s has %d of asset %d, needs %d",
			ErrInsufficientBalance, from, src.balances[assetID], assetID, amount)
	}
	dst := e.acct(to)
	j.record(func() {
		src.balances[assetID] += amount
		dst.balances[assetID] -= amount
	})
	src.balances[assetID] -= amount
	dst.balances[assetID] += amount
	return nil
}

// appendLog retains a log payload, journaled so reverted groups leave no
// events behind.
func (e *Env) appendLog(j *journal, payload []byte) {
	e.logged = append(e.logged, payload)
	j.record(func() {
		e.logged = e.logged[:len(e.logged)-1]
	})
}

// globalGet resolves keyed global state exposed by an app.
func (e *Env) globalGet(appID uint64, key []byte) (uint64, bool) {
	app, ok := e.apps[appID]
	if !ok {
		return 0, false
	}
	reader, ok := app.(GlobalStateReader)
	if !ok {
		return 0, false
	}
	return reader.GlobalGet(key)
}
