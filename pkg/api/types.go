package api

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/gabikreal1/AlgoFlow/pkg/codec"
)

// RegisterRequest creates a new intent. The server builds the collateral
// payment leg and the register call as one atomic group on the sandbox.
type RegisterRequest struct {
	Owner       string        `json:"owner"`
	Collateral  uint64        `json:"collateral"`
	Plan        hexutil.Bytes `json:"plan"`
	Trigger     hexutil.Bytes `json:"trigger,omitempty"`
	Keeper      string        `json:"keeper,omitempty"`
	Version     uint64        `json:"version,omitempty"`
	AppEscrowID uint64        `json:"app_escrow_id,omitempty"`
	AppASAID    uint64        `json:"app_asa_id,omitempty"`
}

// RegisterResponse returns the assigned id and the stored commitment.
type RegisterResponse struct {
	IntentID     uint64 `json:"intent_id"`
	WorkflowHash string `json:"workflow_hash"`
}

// ExecuteRequest runs a registered intent with the full plan attached.
type ExecuteRequest struct {
	Sender       string        `json:"sender,omitempty"`
	Plan         hexutil.Bytes `json:"plan"`
	FeeRecipient string        `json:"fee_recipient,omitempty"`
}

// StatusRequest drives the status machine directly.
type StatusRequest struct {
	Sender string        `json:"sender"`
	Status uint64        `json:"status"`
	Detail hexutil.Bytes `json:"detail,omitempty"`
}

// WithdrawRequest releases collateral from a terminal intent.
type WithdrawRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient,omitempty"`
}

// IntentJSON is the API's view of one intent record.
type IntentJSON struct {
	IntentID     uint64        `json:"intent_id"`
	Owner        string        `json:"owner"`
	Keeper       string        `json:"keeper"`
	Collateral   uint64        `json:"collateral"`
	Status       string        `json:"status"`
	StatusCode   uint64        `json:"status_code"`
	WorkflowHash string        `json:"workflow_hash"`
	Plan         hexutil.Bytes `json:"plan"`
	Trigger      hexutil.Bytes `json:"trigger,omitempty"`
	Version      uint64        `json:"version"`
}

// EventJSON is one retained engine event.
type EventJSON struct {
	Topic   string        `json:"topic,omitempty"`
	Payload hexutil.Bytes `json:"payload"`
}

// EventsResponse wraps the event stream.
type EventsResponse struct {
	Events []EventJSON `json:"events"`
}

// ErrorResponse carries a request failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

func intentJSON(id uint64, record codec.IntentRecord) IntentJSON {
	return IntentJSON{
		IntentID:     id,
		Owner:        record.Owner.Hex(),
		Keeper:       record.Keeper.Hex(),
		Collateral:   record.Collateral,
		Status:       record.Status.String(),
		StatusCode:   uint64(record.Status),
		WorkflowHash: record.WorkflowHash.Hex(),
		Plan:         hexutil.Bytes(record.WorkflowBlob),
		Trigger:      hexutil.Bytes(record.TriggerCondition),
		Version:      record.Version,
	}
}
