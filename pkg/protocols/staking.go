package protocols

import (
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

// StakingPool tracks per-address staked balances. Staked value sits in
// the pool's app account until unstaked.
type StakingPool struct {
	boxes store.Store
}

func NewStakingPool() *StakingPool {
	return &StakingPool{boxes: store.NewMemoryStore()}
}

var _ chain.App = (*StakingPool)(nil)

func (p *StakingPool) Call(call *chain.Call) error {
	if len(call.Args) == 0 {
		return fmt.Errorf("%w: missing method", ErrBadCall)
	}
	method := string(call.Args[0])
	args := call.Args[1:]

	switch method {
	case "stake":
		return p.stake(call, args)
	case "unstake":
		return p.unstake(call, args)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// Staked returns an address's staked balance of one asset.
func (p *StakingPool) Staked(addr codec.Address, assetID uint64) uint64 {
	position, _ := readPosition(p.boxes, positionKey("staked:", addr, assetID))
	return position
}

// stake(asset, amount). The value leg precedes the call.
func (p *StakingPool) stake(call *chain.Call, args [][]byte) error {
	assetID, amount, err := assetAmountArgs(args)
	if err != nil {
		return err
	}
	key := positionKey("staked:", call.Sender, assetID)
	position, err := readPosition(p.boxes, key)
	if err != nil {
		return err
	}
	return writePosition(call, p.boxes, key, position+amount)
}

// unstake(asset, amount). Pays the value back to the sender.
func (p *StakingPool) unstake(call *chain.Call, args [][]byte) error {
	assetID, amount, err := assetAmountArgs(args)
	if err != nil {
		return err
	}
	key := positionKey("staked:", call.Sender, assetID)
	position, err := readPosition(p.boxes, key)
	if err != nil {
		return err
	}
	if position < amount {
		return fmt.Errorf("%w: %d staked, %d requested", ErrInsufficientPosition, position, amount)
	}
	if err := writePosition(call, p.boxes, key, position-amount); err != nil {
		return err
	}
	return call.TransferAsset(assetID, call.Sender, amount)
}

func assetAmountArgs(args [][]byte) (uint64, uint64, error) {
	if err := wantArgs(args, 2); err != nil {
		return 0, 0, err
	}
	assetID, err := argUint64(args[0])
	if err != nil {
		return 0, 0, err
	}
	amount, err := argUint64(args[1])
	if err != nil {
		return 0, 0, err
	}
	return assetID, amount, nil
}
