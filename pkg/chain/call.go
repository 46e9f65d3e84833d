package chain

import (
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

// abiReturnPrefix marks the log entry carrying a call's return value.
var abiReturnPrefix = []byte{0x15, 0x1f, 0x7c, 0x75}

// ErrNoReturn is returned when a call emitted no return-value log.
var ErrNoReturn = errors.New("chain: call emitted no return value")

// MethodSelector derives the 4-byte selector of a method signature.
func MethodSelector(signature string) []byte {
	sum := sha512.Sum512_256([]byte(signature))
	return sum[:4]
}

// Itob encodes v as 8 big-endian bytes, the argument convention for
// cross-app calls.
func Itob(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

// Call is the context of one in-flight application call.
type Call struct {
	env     *Env
	journal *journal

	Sender     codec.Address
	AppID      uint64
	Args       [][]byte
	Group      []Txn
	GroupIndex int
	Logs       [][]byte
}

// AppAddress returns the called app's own account address.
func (c *Call) AppAddress() codec.Address {
	return AppAddress(c.AppID)
}

// Balance returns the called app's balance of asset.
func (c *Call) Balance(assetID uint64) uint64 {
	return c.env.acct(c.AppAddress()).balances[assetID]
}

// BalanceOf returns an arbitrary account's balance of asset.
func (c *Call) BalanceOf(addr codec.Address, assetID uint64) uint64 {
	return c.env.acct(addr).balances[assetID]
}

// Pay issues an inner payment from the app's account.
func (c *Call) Pay(receiver codec.Address, amount uint64) error {
	return c.env.transfer(c.journal, c.AppAddress(), receiver, NativeAssetID, amount)
}

// TransferAsset issues an inner asset transfer from the app's account.
// Asset id 0 falls through to a native payment, matching the engine's
// "asset 0 is the native unit" convention.
func (c *Call) TransferAsset(assetID uint64, receiver codec.Address, amount uint64) error {
	return c.env.transfer(c.journal, c.AppAddress(), receiver, assetID, amount)
}

// InnerCall issues a synchronous sub-call to another app. The sub-call
// runs inside the same journal: its effects commit or revert with the
// enclosing group. The callee sees the app's account as sender.
func (c *Call) InnerCall(appID uint64, args [][]byte) ([][]byte, error) {
	t := AppCall{Sender: c.AppAddress(), AppID: appID, Args: args}
	inner, err := c.env.callApp(c.journal, t, []Txn{t}, 0)
	if err != nil {
		return nil, err
	}
	return inner.Logs, nil
}

// Log emits a log payload. Logs are retained by the environment once the
// group commits and are discarded on revert.
func (c *Call) Log(payload []byte) {
	c.Logs = append(c.Logs, payload)
	c.env.appendLog(c.journal, payload)
}

// LogReturn emits v as the call's return value, wrapped with the return
// marker the caller side strips.
func (c *Call) LogReturn(v []byte) {
	c.Log(append(append([]byte(nil), abiReturnPrefix...), v...))
}

// ResolveApp returns the account address of a registered app id, or false
// if no such app exists. Mirrors dynamic executor-address resolution.
func (c *Call) ResolveApp(appID uint64) (codec.Address, bool) {
	addr, ok := c.env.appAddrs[appID]
	return addr, ok
}

// AppGlobalGet reads keyed global state exposed by another app. The second
// return is false when the app, the key, or the reader capability is
// absent.
func (c *Call) AppGlobalGet(appID uint64, key []byte) (uint64, bool) {
	return c.env.globalGet(appID, key)
}

// GroupPayment returns the payment transaction at group index i, if the
// group has one there. Used for collateral payment-leg verification.
func (c *Call) GroupPayment(i int) (Payment, bool) {
	if i < 0 || i >= len(c.Group) {
		return Payment{}, false
	}
	p, ok := c.Group[i].(Payment)
	return p, ok
}

// JournalBoxWrite snapshots the current value under key in s and registers
// its restoration, so a ledger box write reverts with the group.
func (c *Call) JournalBoxWrite(s store.Store, key []byte) error {
	prev, err := s.Get(key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to snapshot box: %v", err)
	}
	existed := err == nil
	k := append([]byte(nil), key...)
	c.journal.record(func() {
		if existed {
			_ = s.Put(k, prev)
		} else {
			_ = s.Delete(k)
		}
	})
	return nil
}

// AppReturn extracts the return value from a callee's logs: the last log
// entry carrying the 4-byte return marker, with the marker stripped.
func AppReturn(logs [][]byte) ([]byte, error) {
	for i := len(logs) - 1; i >= 0; i-- {
		entry := logs[i]
		if len(entry) >= len(abiReturnPrefix) &&
			string(entry[:len(abiReturnPrefix)]) == string(abiReturnPrefix) {
			return entry[len(abiReturnPrefix):], nil
		}
	}
	return nil, ErrNoReturn
}
