package chain

import (
	"bytes"
	"encoding/binary"

	"github.com/gabikreal1/AlgoFlow/pkg/codec"
)

// Event topics emitted by the engine components.
const (
	TopicIntentCreated   = "intent_created"
	TopicIntentStatus    = "intent_status"
	TopicExecutionResult = "execution_result"
)

// IntentCreatedEvent builds the payload logged when a new intent record is
// stored: topic, 8-byte id, owner, 8-byte workflow version.
func IntentCreatedEvent(intentID uint64, owner codec.Address, version uint64) []byte {
	payload := append([]byte(TopicIntentCreated), Itob(intentID)...)
	payload = append(payload, owner.Bytes()...)
	return append(payload, Itob(version)...)
}

// IntentStatusEvent builds the payload logged on every status rewrite:
// topic, 8-byte id, 8-byte status code, acting address.
func IntentStatusEvent(intentID uint64, status codec.Status, actor codec.Address) []byte {
	payload := append([]byte(TopicIntentStatus), Itob(intentID)...)
	payload = append(payload, Itob(uint64(status))...)
	return append(payload, actor.Bytes()...)
}

// ExecutionResultEvent builds the payload carrying free-form diagnostic
// bytes alongside a status change: topic, 8-byte id, 8-byte status, detail.
func ExecutionResultEvent(intentID uint64, status codec.Status, detail []byte) []byte {
	payload := append([]byte(TopicExecutionResult), Itob(intentID)...)
	payload = append(payload, Itob(uint64(status))...)
	return append(payload, detail...)
}

// HasTopic reports whether a log payload carries the given topic prefix.
func HasTopic(payload []byte, topic string) bool {
	return bytes.HasPrefix(payload, []byte(topic))
}

// StatusEventsFor returns the status codes of all intent_status events for
// one intent id, in emission order.
func StatusEventsFor(logs [][]byte, intentID uint64) []codec.Status {
	prefix := append([]byte(TopicIntentStatus), Itob(intentID)...)
	var statuses []codec.Status
	for _, payload := range logs {
		if !bytes.HasPrefix(payload, prefix) {
			continue
		}
		rest := payload[len(prefix):]
		if len(rest) < 8 {
			continue
		}
		statuses = append(statuses, codec.Status(binary.BigEndian.Uint64(rest)))
	}
	return statuses
}
