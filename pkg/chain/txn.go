package chain

import "github.com/gabikreal1/AlgoFlow/pkg/codec"

// Txn is one transaction inside an atomic group.
type Txn interface {
	isTxn()
}

// Payment moves the native asset between accounts.
type Payment struct {
	Sender   codec.Address
	Receiver codec.Address
	Amount   uint64
}

// AssetTransfer moves a non-native asset between accounts.
type AssetTransfer struct {
	Sender   codec.Address
	Receiver codec.Address
	AssetID  uint64
	Amount   uint64
}

// AppCall invokes a registered application.
type AppCall struct {
	Sender codec.Address
	AppID  uint64
	Args   [][]byte
}

func (Payment) isTxn()       {}
func (AssetTransfer) isTxn() {}
func (AppCall) isTxn()       {}

// GroupResult carries the per-transaction logs of a committed group.
type GroupResult struct {
	// Logs[i] holds the log entries emitted by group transaction i.
	// Payment and asset-transfer legs emit none.
	Logs [][][]byte
}
