// Package protocols provides the sandbox protocol apps workflow steps
// execute against: a fixed-rate AMM pool, a staking pool, and a lending
// market. Each app dispatches on a method-name first argument; integer
// arguments are 8 big-endian bytes and value legs arrive as inner
// transfers immediately before the call. Per-account state lives in box
// storage so it reverts with the enclosing group.
package protocols

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

var (
	// ErrBadCall is returned for calls that do not follow the argument
	// conventions.
	ErrBadCall = errors.New("protocols: malformed call")
	// ErrUnknownMethod is returned for a method the app does not implement.
	ErrUnknownMethod = errors.New("protocols: unknown method")
	// ErrSlippage is returned when a computed output falls below the
	// caller's floor.
	ErrSlippage = errors.New("protocols: output below minimum")
	// ErrNoRoute is returned when the AMM has no rate for an asset pair.
	ErrNoRoute = errors.New("protocols: no rate for asset pair")
	// ErrOverflow is returned when a rate conversion does not fit in 64
	// bits.
	ErrOverflow = errors.New("protocols: rate conversion overflows")
	// ErrInsufficientPosition is returned when an unstake or withdraw
	// exceeds the caller's recorded position.
	ErrInsufficientPosition = errors.New("protocols: position too small")
)

func wantArgs(args [][]byte, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: want %d args, got %d", ErrBadCall, n, len(args))
	}
	return nil
}

func argUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: uint64 arg is %d bytes", ErrBadCall, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// positionKey builds the box key for one account's position in one asset.
func positionKey(prefix string, addr codec.Address, assetID uint64) []byte {
	key := make([]byte, 0, len(prefix)+codec.AddressLength+8)
	key = append(key, prefix...)
	key = append(key, addr.Bytes()...)
	return binary.BigEndian.AppendUint64(key, assetID)
}

func readPosition(s store.Store, key []byte) (uint64, error) {
	raw, err := s.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("protocols: corrupt position record (%d bytes)", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// writePosition journals and rewrites one position value.
func writePosition(call *chain.Call, s store.Store, key []byte, value uint64) error {
	if err := call.JournalBoxWrite(s, key); err != nil {
		return err
	}
	return s.Put(key, chain.Itob(value))
}
