package router

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

// globalsKey is the box key for the router's configuration record.
var globalsKey = []byte("globals")

// Globals is the router's contract-wide configuration.
type Globals struct {
	Owner         codec.Address
	LedgerAppID   uint64
	DefaultKeeper codec.Address
	FeeBPS        uint64
}

const globalsSize = 2*codec.AddressLength + 2*8

func encodeGlobals(g Globals) []byte {
	buf := make([]byte, globalsSize)
	copy(buf[0:32], g.Owner.Bytes())
	binary.BigEndian.PutUint64(buf[32:40], g.LedgerAppID)
	copy(buf[40:72], g.DefaultKeeper.Bytes())
	binary.BigEndian.PutUint64(buf[72:80], g.FeeBPS)
	return buf
}

func decodeGlobals(buf []byte) (Globals, error) {
	if len(buf) != globalsSize {
		return Globals{}, fmt.Errorf("router globals record is %d bytes, want %d", len(buf), globalsSize)
	}
	var g Globals
	g.Owner = codec.BytesToAddress(buf[0:32])
	g.LedgerAppID = binary.BigEndian.Uint64(buf[32:40])
	g.DefaultKeeper = codec.BytesToAddress(buf[40:72])
	g.FeeBPS = binary.BigEndian.Uint64(buf[72:80])
	return g, nil
}

// loadGlobals reads the configuration record, initializing it with the
// creator as owner on first access.
func loadGlobals(s store.Store, creator codec.Address) (Globals, error) {
	raw, err := s.Get(globalsKey)
	if errors.Is(err, store.ErrNotFound) {
		g := Globals{Owner: creator}
		if err := s.Put(globalsKey, encodeGlobals(g)); err != nil {
			return Globals{}, err
		}
		return g, nil
	}
	if err != nil {
		return Globals{}, err
	}
	return decodeGlobals(raw)
}
