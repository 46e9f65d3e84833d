package protocols

import (
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

// LendingMarket tracks per-address supplied deposits. No interest accrues
// in the sandbox; withdrawals return exactly what was supplied.
type LendingMarket struct {
	boxes store.Store
}

func NewLendingMarket() *LendingMarket {
	return &LendingMarket{boxes: store.NewMemoryStore()}
}

var _ chain.App = (*LendingMarket)(nil)

func (m *LendingMarket) Call(call *chain.Call) error {
	if len(call.Args) == 0 {
		return fmt.Errorf("%w: missing method", ErrBadCall)
	}
	method := string(call.Args[0])
	args := call.Args[1:]

	switch method {
	case "supply":
		return m.supply(call, args)
	case "withdraw":
		return m.withdraw(call, args)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// Supplied returns an address's deposit of one asset.
func (m *LendingMarket) Supplied(addr codec.Address, assetID uint64) uint64 {
	position, _ := readPosition(m.boxes, positionKey("deposit:", addr, assetID))
	return position
}

// supply(asset, amount). The value leg precedes the call.
func (m *LendingMarket) supply(call *chain.Call, args [][]byte) error {
	assetID, amount, err := assetAmountArgs(args)
	if err != nil {
		return err
	}
	key := positionKey("deposit:", call.Sender, assetID)
	position, err := readPosition(m.boxes, key)
	if err != nil {
		return err
	}
	return writePosition(call, m.boxes, key, position+amount)
}

// withdraw(asset, amount). Pays the deposit back to the sender.
func (m *LendingMarket) withdraw(call *chain.Call, args [][]byte) error {
	assetID, amount, err := assetAmountArgs(args)
	if err != nil {
		return err
	}
	key := positionKey("deposit:", call.Sender, assetID)
	position, err := readPosition(m.boxes, key)
	if err != nil {
		return err
	}
	if position < amount {
		return fmt.Errorf("%w: %d supplied, %d requested", ErrInsufficientPosition, position, amount)
	}
	if err := writePosition(call, m.boxes, key, position-amount); err != nil {
		return err
	}
	return call.TransferAsset(assetID, call.Sender, amount)
}
