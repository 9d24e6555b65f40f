package inference

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// flattenBatch concatenates per-frame tensors into one contiguous buffer.
// Every frame must have the same length.
func flattenBatch(batch [][]float32) ([]float32, error) {
	if len(batch) == 0 {
		return nil, errors.New("empty batch")
	}
	frameLen := len(batch[0])
	if frameLen == 0 {
		return nil, errors.New("empty frame tensor")
	}

	flat := make([]float32, 0, len(batch)*frameLen)
	for i, frame := range batch {
		if len(frame) != frameLen {
			return nil, errors.Errorf("frame %d has %d values, expected %d", i, len(frame), frameLen)
		}
		flat = append(flat, frame...)
	}
	return flat, nil
}

// splitFrames cuts a batched output into count equal per-frame slices. Each
// slice is a copy, so it stays valid after the native tensor is destroyed.
func splitFrames(flat []float32, count int) ([][]float32, error) {
	if count <= 0 {
		return nil, errors.Errorf("invalid frame count %d", count)
	}
	if len(flat)%count != 0 {
		return nil, errors.Errorf("output length %d is not divisible by batch size %d", len(flat), count)
	}

	per := len(flat) / count
	frames := make([][]float32, count)
	for i := range frames {
		frames[i] = make([]float32, per)
		copy(frames[i], flat[i*per:(i+1)*per])
	}
	return frames, nil
}

// halfEncode converts float32 values to little-endian float16 bytes, the
// layout onnxruntime expects for float16 tensor data.
func halfEncode(values []float32) []byte {
	raw := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(raw[2*i:], float16.Fromfloat32(v).Bits())
	}
	return raw
}

// halfDecode converts little-endian float16 bytes back to float32.
func halfDecode(raw []byte) ([]float32, error) {
	if len(raw)%2 != 0 {
		return nil, errors.Errorf("float16 payload has odd length %d", len(raw))
	}
	values := make([]float32, len(raw)/2)
	for i := range values {
		values[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[2*i:])).Float32()
	}
	return values, nil
}
