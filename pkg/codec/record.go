package codec

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EncodeRecord encodes a full intent record in the fixed field order the
// ledger persists.
func EncodeRecord(rec IntentRecord) ([]byte, error) {
	w := &writer{}
	w.fixed(rec.Owner.Bytes())
	w.uint64(rec.Collateral)
	w.fixed(rec.WorkflowHash.Bytes())
	w.uint64(uint64(rec.Status))
	w.dynamic(rec.WorkflowBlob)
	w.fixed(rec.Keeper.Bytes())
	w.uint64(rec.Version)
	w.dynamic(rec.TriggerCondition)
	w.uint64(rec.AppEscrowID)
	w.uint64(rec.AppASAID)
	return w.finish()
}

// DecodeRecord decodes an intent record previously produced by
// EncodeRecord.
func DecodeRecord(buf []byte) (IntentRecord, error) {
	var rec IntentRecord
	if len(buf) < recordHeadSize {
		return rec, fmt.Errorf("intent record: %w", ErrTruncated)
	}
	r := newReader(buf)
	owner, err := r.fixed(AddressLength)
	if err != nil {
		return rec, err
	}
	rec.Owner = BytesToAddress(owner)
	if rec.Collateral, err = r.uint64(); err != nil {
		return rec, err
	}
	hash, err := r.fixed(common.HashLength)
	if err != nil {
		return rec, err
	}
	rec.WorkflowHash = common.BytesToHash(hash)
	status, err := r.uint64()
	if err != nil {
		return rec, err
	}
	rec.Status = Status(status)
	if rec.WorkflowBlob, err = r.dynamic(); err != nil {
		return rec, fmt.Errorf("intent record blob: %w", err)
	}
	keeper, err := r.fixed(AddressLength)
	if err != nil {
		return rec, err
	}
	rec.Keeper = BytesToAddress(keeper)
	if rec.Version, err = r.uint64(); err != nil {
		return rec, err
	}
	if rec.TriggerCondition, err = r.dynamic(); err != nil {
		return rec, fmt.Errorf("intent record trigger: %w", err)
	}
	if rec.AppEscrowID, err = r.uint64(); err != nil {
		return rec, err
	}
	if rec.AppASAID, err = r.uint64(); err != nil {
		return rec, err
	}
	return rec, nil
}
