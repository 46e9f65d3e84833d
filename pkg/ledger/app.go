package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
)

// Method signatures of the ledger's caller-facing surface. The 4-byte
// selector of each signature is the first argument of a call; the router's
// cross-component calls use the read and update selectors.
const (
	SigConfigure          = "configure(address,uint64,uint64,uint64)void"
	SigRegisterIntent     = "register_intent(byte[32],byte[],byte[],uint64,address,uint64,uint64,uint64)uint64"
	SigUpdateIntentStatus = "update_intent_status(uint64,uint64,byte[])void"
	SigExportIntent       = "export_intent(uint64)byte[]"
	SigReadIntentRaw      = "read_intent_raw(uint64)byte[]"
	SigWithdrawIntent     = "withdraw_intent(uint64,address)uint64"
)

var (
	// ErrBadCall is returned for calls that do not follow the argument
	// conventions.
	ErrBadCall = errors.New("ledger: malformed call")
	// ErrUnknownMethod is returned for unrecognized selectors.
	ErrUnknownMethod = errors.New("ledger: unknown method selector")
)

var _ chain.App = (*Ledger)(nil)

// Call dispatches an incoming app call on its method selector. Arguments
// follow the cross-call convention: uint64 as 8 big-endian bytes,
// addresses as 32 raw bytes, byte fields raw.
func (l *Ledger) Call(call *chain.Call) error {
	if len(call.Args) == 0 {
		return fmt.Errorf("%w: missing selector", ErrBadCall)
	}
	selector := string(call.Args[0])
	args := call.Args[1:]

	switch selector {
	case string(chain.MethodSelector(SigConfigure)):
		if err := wantArgs(args, 4); err != nil {
			return err
		}
		keeper, err := argAddress(args[0])
		if err != nil {
			return err
		}
		minCollateral, err := argUint64(args[1])
		if err != nil {
			return err
		}
		feeBPS, err := argUint64(args[2])
		if err != nil {
			return err
		}
		executorApp, err := argUint64(args[3])
		if err != nil {
			return err
		}
		return l.Configure(call, keeper, minCollateral, feeBPS, executorApp)

	case string(chain.MethodSelector(SigRegisterIntent)):
		if err := wantArgs(args, 8); err != nil {
			return err
		}
		if len(args[0]) != 32 {
			return fmt.Errorf("%w: workflow hash must be 32 bytes", ErrBadCall)
		}
		var regArgs RegisterArgs
		copy(regArgs.WorkflowHash[:], args[0])
		regArgs.WorkflowBlob = args[1]
		regArgs.TriggerCondition = args[2]
		collateral, err := argUint64(args[3])
		if err != nil {
			return err
		}
		regArgs.CollateralAmount = collateral
		if regArgs.KeeperOverride, err = argAddress(args[4]); err != nil {
			return err
		}
		if regArgs.Version, err = argUint64(args[5]); err != nil {
			return err
		}
		if regArgs.AppEscrowID, err = argUint64(args[6]); err != nil {
			return err
		}
		if regArgs.AppASAID, err = argUint64(args[7]); err != nil {
			return err
		}
		intentID, err := l.RegisterIntent(call, regArgs)
		if err != nil {
			return err
		}
		call.LogReturn(chain.Itob(intentID))
		return nil

	case string(chain.MethodSelector(SigUpdateIntentStatus)):
		if err := wantArgs(args, 3); err != nil {
			return err
		}
		intentID, err := argUint64(args[0])
		if err != nil {
			return err
		}
		status, err := argUint64(args[1])
		if err != nil {
			return err
		}
		return l.UpdateIntentStatus(call, intentID, codec.Status(status), args[2])

	case string(chain.MethodSelector(SigExportIntent)), string(chain.MethodSelector(SigReadIntentRaw)):
		if err := wantArgs(args, 1); err != nil {
			return err
		}
		intentID, err := argUint64(args[0])
		if err != nil {
			return err
		}
		raw, err := l.ReadIntentRaw(intentID)
		if err != nil {
			return err
		}
		call.LogReturn(raw)
		return nil

	case string(chain.MethodSelector(SigWithdrawIntent)):
		if err := wantArgs(args, 2); err != nil {
			return err
		}
		intentID, err := argUint64(args[0])
		if err != nil {
			return err
		}
		recipient, err := argAddress(args[1])
		if err != nil {
			return err
		}
		amount, err := l.WithdrawIntent(call, intentID, recipient)
		if err != nil {
			return err
		}
		call.LogReturn(chain.Itob(amount))
		return nil

	default:
		return fmt.Errorf("%w: %x", ErrUnknownMethod, call.Args[0])
	}
}

func wantArgs(args [][]byte, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: want %d args, got %d", ErrBadCall, n, len(args))
	}
	return nil
}

func argUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: uint64 arg must be 8 bytes", ErrBadCall)
	}
	return binary.BigEndian.Uint64(b), nil
}

func argAddress(b []byte) (codec.Address, error) {
	if len(b) != codec.AddressLength {
		return codec.Address{}, fmt.Errorf("%w: address arg must be %d bytes", ErrBadCall, codec.AddressLength)
	}
	return codec.BytesToAddress(b), nil
}
