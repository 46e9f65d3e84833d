package chain

import (
	"errors"
	"sync"
	"time"
)

// ErrOracleNotCallable is returned for direct calls into the oracle app.
var ErrOracleNotCallable = errors.New("chain: oracle has no callable methods")

// Oracle is the sandbox price oracle app. It exposes keyed uint64 prices
// through GlobalStateReader so the router's trigger check can read them.
// Entries older than the staleness window read as absent, which the
// trigger check treats as a missing oracle value.
type Oracle struct {
	mu        sync.RWMutex
	prices    map[string]*pricedEntry
	staleness time.Duration
	now       func() time.Time
}

type pricedEntry struct {
	value     uint64
	timestamp time.Time
}

// NewOracle creates an oracle. A zero staleness window disables expiry.
func NewOracle(staleness time.Duration) *Oracle {
	return &Oracle{
		prices:    make(map[string]*pricedEntry),
		staleness: staleness,
		now:       time.Now,
	}
}

// Call rejects all direct invocations; the oracle is a passive data source
// consulted by key.
func (o *Oracle) Call(_ *Call) error {
	return ErrOracleNotCallable
}

// SetPrice publishes a price under key with the current timestamp.
func (o *Oracle) SetPrice(key string, value uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[key] = &pricedEntry{value: value, timestamp: o.now()}
}

// GlobalGet implements GlobalStateReader.
func (o *Oracle) GlobalGet(key []byte) (uint64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entry, ok := o.prices[string(key)]
	if !ok {
		return 0, false
	}
	if o.staleness > 0 && o.now().Sub(entry.timestamp) > o.staleness {
		return 0, false
	}
	return entry.value, true
}
