// Package codec implements the binary wire format shared by the intent
// ledger, the execution router, and off-chain plan builders. The layout is
// a fixed-order tuple encoding: uint64 fields are 8-byte big-endian,
// addresses and hashes are 32 raw bytes, and variable-length byte fields
// live in a tail section addressed by 2-byte big-endian offsets. Any change
// to field order or width is a breaking protocol change.
package codec

import (
	"bytes"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AddressLength is the byte length of an account address.
const AddressLength = 32

// Address is a 32-byte account address. The zero value means "unset".
type Address [AddressLength]byte

// ZeroAddress is the unset address.
var ZeroAddress Address

// BytesToAddress returns the address built from b, left-padded or truncated
// to 32 bytes.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// AddressFromHex parses a 0x-prefixed hex string into an address.
func AddressFromHex(s string) (Address, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Address{}, err
	}
	return BytesToAddress(b), nil
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the 0x-prefixed hex encoding of the address.
func (a Address) Hex() string { return hexutil.Encode(a[:]) }

func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Status is the lifecycle state of an intent record.
type Status uint64

const (
	StatusActive    Status = 1
	StatusExecuting Status = 2
	StatusSuccess   Status = 3
	StatusFailed    Status = 4
	StatusCancelled Status = 5
)

// StatusNames maps status codes to their display names.
var StatusNames = map[Status]string{
	StatusActive:    "ACTIVE",
	StatusExecuting: "EXECUTING",
	StatusSuccess:   "SUCCESS",
	StatusFailed:    "FAILED",
	StatusCancelled: "CANCELLED",
}

func (s Status) String() string {
	if name, ok := StatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether s is a known status code.
func (s Status) Valid() bool {
	_, ok := StatusNames[s]
	return ok
}

// Terminal reports whether s allows no further transitions (other than to
// itself).
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Opcode identifies a workflow step operation.
type Opcode uint64

const (
	OpSwap              Opcode = 1
	OpProvideLiquidity  Opcode = 2
	OpStake             Opcode = 3
	OpTransfer          Opcode = 4
	OpLendSupply        Opcode = 5
	OpLendWithdraw      Opcode = 6
	OpWithdrawLiquidity Opcode = 7
	OpUnstake           Opcode = 8
)

// OpcodeNames maps opcodes to their display names.
var OpcodeNames = map[Opcode]string{
	OpSwap:              "SWAP",
	OpProvideLiquidity:  "PROVIDE_LIQUIDITY",
	OpStake:             "STAKE",
	OpTransfer:          "TRANSFER",
	OpLendSupply:        "LEND_SUPPLY",
	OpLendWithdraw:      "LEND_WITHDRAW",
	OpWithdrawLiquidity: "WITHDRAW_LIQUIDITY",
	OpUnstake:           "UNSTAKE",
}

func (o Opcode) String() string {
	if name, ok := OpcodeNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// Trigger types and comparators for TriggerConfig.
const (
	TriggerNone           uint64 = 0
	TriggerPriceThreshold uint64 = 1

	ComparatorGTE uint64 = 0
	ComparatorLTE uint64 = 1
)

// Protocol-wide limits and scales.
const (
	// FeeScale is the basis-point denominator for fees and slippage.
	FeeScale = 10000
	// MaxKeeperFeeBPS bounds the configurable keeper fee.
	MaxKeeperFeeBPS = 1000
	// MaxWorkflowBytes bounds the size of an encoded workflow blob.
	MaxWorkflowBytes = 4096
)

// MulDiv returns floor(a*b/den) computed through a 128-bit intermediate,
// so basis-point math on full-range uint64 amounts never wraps. The second
// return is false when den is zero or the quotient does not fit in 64
// bits.
func MulDiv(a, b, den uint64) (uint64, bool) {
	if den == 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, den)
	return q, true
}

// WorkflowStep is one decoded element of a workflow blob.
type WorkflowStep struct {
	Opcode      Opcode
	TargetAppID uint64
	AssetIn     uint64
	AssetOut    uint64
	// Amount of 0 means "use the entire available balance of AssetIn at
	// the moment the step executes".
	Amount      uint64
	SlippageBPS uint64
	// Extra carries opcode-specific payload; the first 32 bytes are a
	// destination address for transfer-like steps.
	Extra []byte
}

// Equal reports whether two steps are field-for-field identical.
func (s WorkflowStep) Equal(o WorkflowStep) bool {
	return s.Opcode == o.Opcode &&
		s.TargetAppID == o.TargetAppID &&
		s.AssetIn == o.AssetIn &&
		s.AssetOut == o.AssetOut &&
		s.Amount == o.Amount &&
		s.SlippageBPS == o.SlippageBPS &&
		bytes.Equal(s.Extra, o.Extra)
}

// TriggerConfig gates execution on an oracle-priced condition.
type TriggerConfig struct {
	TriggerType    uint64
	OracleAppID    uint64
	OraclePriceKey []byte
	Comparator     uint64
	Threshold      uint64
}

// IntentRecord is the full persisted state of one intent, exactly as the
// ledger stores it.
type IntentRecord struct {
	Owner            Address
	Collateral       uint64
	WorkflowHash     common.Hash
	Status           Status
	WorkflowBlob     []byte
	Keeper           Address
	Version          uint64
	TriggerCondition []byte
	AppEscrowID      uint64
	AppASAID         uint64
}
