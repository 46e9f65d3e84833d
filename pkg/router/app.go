package router

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
)

// Method signatures of the router's caller-facing surface.
const (
	SigConfigure     = "configure(uint64,address,uint64)void"
	SigExecuteIntent = "execute_intent(uint64,byte[],address)void"
)

var (
	// ErrBadCall is returned for calls that do not follow the argument
	// conventions.
	ErrBadCall = errors.New("router: malformed call")
	// ErrUnknownMethod is returned for unrecognized selectors.
	ErrUnknownMethod = errors.New("router: unknown method selector")
)

var _ chain.App = (*Router)(nil)

// Call dispatches an incoming app call on its method selector, following
// the same argument conventions as the ledger.
func (r *Router) Call(call *chain.Call) error {
	if len(call.Args) == 0 {
		return fmt.Errorf("%w: missing selector", ErrBadCall)
	}
	selector := string(call.Args[0])
	args := call.Args[1:]

	switch selector {
	case string(chain.MethodSelector(SigConfigure)):
		if len(args) != 3 {
			return fmt.Errorf("%w: configure takes 3 args, got %d", ErrBadCall, len(args))
		}
		ledgerAppID, err := argUint64(args[0])
		if err != nil {
			return err
		}
		defaultKeeper, err := argAddress(args[1])
		if err != nil {
			return err
		}
		feeBPS, err := argUint64(args[2])
		if err != nil {
			return err
		}
		return r.Configure(call, ledgerAppID, defaultKeeper, feeBPS)

	case string(chain.MethodSelector(SigExecuteIntent)):
		if len(args) != 3 {
			return fmt.Errorf("%w: execute_intent takes 3 args, got %d", ErrBadCall, len(args))
		}
		intentID, err := argUint64(args[0])
		if err != nil {
			return err
		}
		feeRecipient, err := argAddress(args[2])
		if err != nil {
			return err
		}
		return r.ExecuteIntent(call, intentID, args[1], feeRecipient)

	default:
		return fmt.Errorf("%w: %x", ErrUnknownMethod, call.Args[0])
	}
}

func argUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: uint64 arg is %d bytes", ErrBadCall, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func argAddress(b []byte) (codec.Address, error) {
	if len(b) != codec.AddressLength {
		return codec.Address{}, fmt.Errorf("%w: address arg is %d bytes", ErrBadCall, len(b))
	}
	return codec.BytesToAddress(b), nil
}
