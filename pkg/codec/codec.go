package codec

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Decode errors. All of them mean the input does not follow the wire
// layout; callers treat them as fatal validation failures.
var (
	ErrTruncated = errors.New("codec: truncated input")
	ErrBadOffset = errors.New("codec: tail offset out of range")
	ErrOversized = errors.New("codec: field exceeds 2-byte length range")
)

const (
	uint64Size = 8
	offsetSize = 2
	lenSize    = 2

	stepHeadSize    = 6*uint64Size + offsetSize
	triggerHeadSize = 4*uint64Size + offsetSize
	recordHeadSize  = 2*AddressLength + common.HashLength + 5*uint64Size + 2*offsetSize
)

// PlanHash returns the SHA-256 content hash of an encoded workflow blob.
// This is the commitment stored at registration and re-verified on every
// execution.
func PlanHash(blob []byte) common.Hash {
	return sha256.Sum256(blob)
}

// writer accumulates a tuple encoding: fixed-width head fields first, with
// dynamic fields appended to a tail section addressed by 2-byte offsets
// measured from the start of the tuple.
type writer struct {
	head  []byte
	slots []int
	tail  [][]byte
}

func (w *writer) uint64(v uint64) {
	w.head = binary.BigEndian.AppendUint64(w.head, v)
}

func (w *writer) fixed(b []byte) {
	w.head = append(w.head, b...)
}

// dynamic reserves an offset slot in the head and queues the field for the
// tail. Slots are resolved in finish once the head size is known.
func (w *writer) dynamic(b []byte) {
	w.slots = append(w.slots, len(w.head))
	w.head = append(w.head, 0, 0)
	w.tail = append(w.tail, b)
}

func (w *writer) finish() ([]byte, error) {
	out := append([]byte(nil), w.head...)
	offset := len(w.head)
	for i, field := range w.tail {
		if offset > 0xffff || len(field) > 0xffff {
			return nil, ErrOversized
		}
		binary.BigEndian.PutUint16(out[w.slots[i]:], uint16(offset))
		offset += lenSize + len(field)
	}
	for _, field := range w.tail {
		out = binary.BigEndian.AppendUint16(out, uint16(len(field)))
		out = append(out, field...)
	}
	return out, nil
}

// reader consumes a tuple encoding with bounds checking.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) uint64() (uint64, error) {
	if r.pos+uint64Size > len(r.buf) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += uint64Size
	return v, nil
}

func (r *reader) fixed(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, ErrTruncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// dynamic reads a 2-byte offset from the head and resolves the
// length-prefixed field it points at in the tail.
func (r *reader) dynamic() ([]byte, error) {
	if r.pos+offsetSize > len(r.buf) {
		return nil, ErrTruncated
	}
	offset := int(binary.BigEndian.Uint16(r.buf[r.pos:]))
	r.pos += offsetSize
	if offset+lenSize > len(r.buf) {
		return nil, ErrBadOffset
	}
	n := int(binary.BigEndian.Uint16(r.buf[offset:]))
	start := offset + lenSize
	if start+n > len(r.buf) {
		return nil, fmt.Errorf("%w: field of %d bytes at offset %d", ErrBadOffset, n, offset)
	}
	return append([]byte(nil), r.buf[start:start+n]...), nil
}
