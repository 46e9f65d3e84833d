package codec

import (
	"encoding/binary"
	"fmt"
)

// EncodeStep encodes a single workflow step tuple.
func EncodeStep(step WorkflowStep) ([]byte, error) {
	w := &writer{}
	w.uint64(uint64(step.Opcode))
	w.uint64(step.TargetAppID)
	w.uint64(step.AssetIn)
	w.uint64(step.AssetOut)
	w.uint64(step.Amount)
	w.uint64(step.SlippageBPS)
	w.dynamic(step.Extra)
	return w.finish()
}

// DecodeStep decodes a single workflow step tuple.
func DecodeStep(buf []byte) (WorkflowStep, error) {
	var step WorkflowStep
	if len(buf) < stepHeadSize {
		return step, fmt.Errorf("workflow step: %w", ErrTruncated)
	}
	r := newReader(buf)
	opcode, err := r.uint64()
	if err != nil {
		return step, err
	}
	step.Opcode = Opcode(opcode)
	if step.TargetAppID, err = r.uint64(); err != nil {
		return step, err
	}
	if step.AssetIn, err = r.uint64(); err != nil {
		return step, err
	}
	if step.AssetOut, err = r.uint64(); err != nil {
		return step, err
	}
	if step.Amount, err = r.uint64(); err != nil {
		return step, err
	}
	if step.SlippageBPS, err = r.uint64(); err != nil {
		return step, err
	}
	if step.Extra, err = r.dynamic(); err != nil {
		return step, fmt.Errorf("workflow step extra: %w", err)
	}
	return step, nil
}

// EncodeSteps encodes an ordered step sequence into a workflow blob. The
// array layout is a 2-byte big-endian element count followed by one 2-byte
// big-endian offset per element (from the start of the array) and then the
// element tuples themselves.
func EncodeSteps(steps []WorkflowStep) ([]byte, error) {
	if len(steps) > 0xffff {
		return nil, ErrOversized
	}
	out := binary.BigEndian.AppendUint16(nil, uint16(len(steps)))
	encoded := make([][]byte, len(steps))
	offset := lenSize + offsetSize*len(steps)
	offsets := make([]int, len(steps))
	for i, step := range steps {
		enc, err := EncodeStep(step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		encoded[i] = enc
		offsets[i] = offset
		offset += len(enc)
	}
	if offset > 0xffff {
		return nil, ErrOversized
	}
	for _, off := range offsets {
		out = binary.BigEndian.AppendUint16(out, uint16(off))
	}
	for _, enc := range encoded {
		out = append(out, enc...)
	}
	return out, nil
}

// DecodeSteps decodes a workflow blob back into its ordered step sequence.
func DecodeSteps(blob []byte) ([]WorkflowStep, error) {
	if len(blob) < lenSize {
		return nil, fmt.Errorf("workflow blob: %w", ErrTruncated)
	}
	count := int(binary.BigEndian.Uint16(blob))
	if len(blob) < lenSize+offsetSize*count {
		return nil, fmt.Errorf("workflow blob offsets: %w", ErrTruncated)
	}
	steps := make([]WorkflowStep, count)
	for i := 0; i < count; i++ {
		start := int(binary.BigEndian.Uint16(blob[lenSize+offsetSize*i:]))
		end := len(blob)
		if i+1 < count {
			end = int(binary.BigEndian.Uint16(blob[lenSize+offsetSize*(i+1):]))
		}
		if start > end || end > len(blob) {
			return nil, fmt.Errorf("workflow blob element %d: %w", i, ErrBadOffset)
		}
		step, err := DecodeStep(blob[start:end])
		if err != nil {
			return nil, fmt.Errorf("workflow blob element %d: %w", i, err)
		}
		steps[i] = step
	}
	return steps, nil
}
