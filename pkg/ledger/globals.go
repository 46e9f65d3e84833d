package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

// Storage keys. Intent boxes use the fixed prefix plus the big-endian
// 8-byte intent id; global policy lives under its own key.
const (
	BoxPrefixIntent = "intent:"
	globalsKey      = "globals"
)

// IntentBoxKey returns the storage key of an intent record.
func IntentBoxKey(intentID uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(BoxPrefixIntent), intentID)
}

// Globals is the ledger's process-wide policy, persisted alongside the
// intent boxes so it survives restarts with them.
type Globals struct {
	Owner         codec.Address
	Keeper        codec.Address
	NextIntentID  uint64
	MinCollateral uint64
	FeeSplitBPS   uint64
	ExecutorAppID uint64
	Version       uint64
}

const globalsSize = 2*codec.AddressLength + 5*8

func encodeGlobals(g Globals) []byte {
	out := make([]byte, 0, globalsSize)
	out = append(out, g.Owner.Bytes()...)
	out = append(out, g.Keeper.Bytes()...)
	out = binary.BigEndian.AppendUint64(out, g.NextIntentID)
	out = binary.BigEndian.AppendUint64(out, g.MinCollateral)
	out = binary.BigEndian.AppendUint64(out, g.FeeSplitBPS)
	out = binary.BigEndian.AppendUint64(out, g.ExecutorAppID)
	out = binary.BigEndian.AppendUint64(out, g.Version)
	return out
}

func decodeGlobals(buf []byte) (Globals, error) {
	var g Globals
	if len(buf) != globalsSize {
		return g, fmt.Errorf("ledger globals: unexpected size %d", len(buf))
	}
	g.Owner = codec.BytesToAddress(buf[:32])
	g.Keeper = codec.BytesToAddress(buf[32:64])
	g.NextIntentID = binary.BigEndian.Uint64(buf[64:])
	g.MinCollateral = binary.BigEndian.Uint64(buf[72:])
	g.FeeSplitBPS = binary.BigEndian.Uint64(buf[80:])
	g.ExecutorAppID = binary.BigEndian.Uint64(buf[88:])
	g.Version = binary.BigEndian.Uint64(buf[96:])
	return g, nil
}

// loadGlobals reads the persisted policy, or initializes it with creator
// as both owner and default keeper the first time around.
func loadGlobals(s store.Store, creator codec.Address) (Globals, error) {
	buf, err := s.Get([]byte(globalsKey))
	if errors.Is(err, store.ErrNotFound) {
		g := Globals{
			Owner:        creator,
			Keeper:       creator,
			NextIntentID: 1,
			Version:      1,
		}
		if err := s.Put([]byte(globalsKey), encodeGlobals(g)); err != nil {
			return Globals{}, err
		}
		return g, nil
	}
	if err != nil {
		return Globals{}, err
	}
	return decodeGlobals(buf)
}
