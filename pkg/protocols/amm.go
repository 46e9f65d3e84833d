package protocols

import (
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

// Rate is a fixed-point exchange rate: output = input * Num / Den.
type Rate struct {
	Num uint64
	Den uint64
}

// AmmPool is a fixed-rate swap pool. Its liquidity is whatever its app
// account holds; proceeds are paid straight back to the caller. Liquidity
// positions are single-sided and tracked 1:1 in box storage.
type AmmPool struct {
	boxes store.Store
	rates map[[2]uint64]Rate
}

// NewAmmPool builds a pool with no routes. Add them with SetRate.
func NewAmmPool() *AmmPool {
	return &AmmPool{
		boxes: store.NewMemoryStore(),
		rates: make(map[[2]uint64]Rate),
	}
}

// SetRate installs the exchange rate for one directed asset pair.
func (p *AmmPool) SetRate(assetIn, assetOut uint64, rate Rate) {
	p.rates[[2]uint64{assetIn, assetOut}] = rate
}

var _ chain.App = (*AmmPool)(nil)

func (p *AmmPool) Call(call *chain.Call) error {
	if len(call.Args) == 0 {
		return fmt.Errorf("%w: missing method", ErrBadCall)
	}
	method := string(call.Args[0])
	args := call.Args[1:]

	switch method {
	case "swap":
		return p.swap(call, args)
	case "add_liquidity":
		return p.addLiquidity(call, args)
	case "remove_liquidity":
		return p.removeLiquidity(call, args)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// swap(asset_in, asset_out, amount, min_out). The input leg has already
// been transferred in; the pool pays the computed output back to the
// sender or fails the whole group.
func (p *AmmPool) swap(call *chain.Call, args [][]byte) error {
	if err := wantArgs(args, 4); err != nil {
		return err
	}
	assetIn, err := argUint64(args[0])
	if err != nil {
		return err
	}
	assetOut, err := argUint64(args[1])
	if err != nil {
		return err
	}
	amount, err := argUint64(args[2])
	if err != nil {
		return err
	}
	minOut, err := argUint64(args[3])
	if err != nil {
		return err
	}

	rate, ok := p.rates[[2]uint64{assetIn, assetOut}]
	if !ok || rate.Den == 0 {
		return fmt.Errorf("%w: %d -> %d", ErrNoRoute, assetIn, assetOut)
	}
	out, ok := codec.MulDiv(amount, rate.Num, rate.Den)
	if !ok {
		return fmt.Errorf("%w: output of %d * %d/%d exceeds uint64", ErrOverflow, amount, rate.Num, rate.Den)
	}
	if out < minOut {
		return fmt.Errorf("%w: swap yields %d, floor %d", ErrSlippage, out, minOut)
	}
	return call.TransferAsset(assetOut, call.Sender, out)
}

// add_liquidity(asset_a, asset_b, amount_a, min_lp). Contributions are
// single-sided; liquidity units are credited 1:1 against the contributed
// amount.
func (p *AmmPool) addLiquidity(call *chain.Call, args [][]byte) error {
	if err := wantArgs(args, 4); err != nil {
		return err
	}
	assetA, err := argUint64(args[0])
	if err != nil {
		return err
	}
	if _, err := argUint64(args[1]); err != nil {
		return err
	}
	amount, err := argUint64(args[2])
	if err != nil {
		return err
	}
	minLP, err := argUint64(args[3])
	if err != nil {
		return err
	}
	if amount < minLP {
		return fmt.Errorf("%w: minted %d liquidity units, floor %d", ErrSlippage, amount, minLP)
	}

	key := positionKey("lp:", call.Sender, assetA)
	position, err := readPosition(p.boxes, key)
	if err != nil {
		return err
	}
	return writePosition(call, p.boxes, key, position+amount)
}

// remove_liquidity(asset_a, asset_b, amount, min_out). Burns liquidity
// units and returns the underlying asset.
func (p *AmmPool) removeLiquidity(call *chain.Call, args [][]byte) error {
	if err := wantArgs(args, 4); err != nil {
		return err
	}
	assetA, err := argUint64(args[0])
	if err != nil {
		return err
	}
	if _, err := argUint64(args[1]); err != nil {
		return err
	}
	amount, err := argUint64(args[2])
	if err != nil {
		return err
	}
	minOut, err := argUint64(args[3])
	if err != nil {
		return err
	}
	if amount < minOut {
		return fmt.Errorf("%w: withdrawal yields %d, floor %d", ErrSlippage, amount, minOut)
	}

	key := positionKey("lp:", call.Sender, assetA)
	position, err := readPosition(p.boxes, key)
	if err != nil {
		return err
	}
	if position < amount {
		return fmt.Errorf("%w: %d liquidity units held, %d requested", ErrInsufficientPosition, position, amount)
	}
	if err := writePosition(call, p.boxes, key, position-amount); err != nil {
		return err
	}
	return call.TransferAsset(assetA, call.Sender, amount)
}
