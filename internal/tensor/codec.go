package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SizeMismatchError reports a raw buffer whose byte length does not match
// the resolved shape. Mismatches are always fatal to the call; the codec
// never truncates or pads.
type SizeMismatchError struct {
	Expected int
	Actual   int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("tensor buffer size mismatch: expected %d bytes, got %d", e.Expected, e.Actual)
}

// ExpectedBytes returns the exact byte length a buffer must have for the
// given element type and resolved shape.
func ExpectedBytes(dtype ElementType, shape Shape) (int, error) {
	if !dtype.Valid() {
		return 0, &UnsupportedTypeError{Tag: int(dtype)}
	}

	count, err := shape.NumElements()
	if err != nil {
		return 0, err
	}

	size := count * int64(dtype.ByteSize())
	if size > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %s exceeds platform buffer capacity", shape)
	}

	return int(size), nil
}

// ValidateBuffer checks a raw buffer against the resolved shape and element
// type without converting it.
func ValidateBuffer(raw []byte, dtype ElementType, shape Shape) error {
	expected, err := ExpectedBytes(dtype, shape)
	if err != nil {
		return err
	}

	if len(raw) != expected {
		return &SizeMismatchError{Expected: expected, Actual: len(raw)}
	}

	return nil
}

// Buffers are little-endian, the host layout of every supported runtime.

func Float32FromBytes(raw []byte, shape Shape) ([]float32, error) {
	if err := ValidateBuffer(raw, Float32, shape); err != nil {
		return nil, err
	}

	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return out, nil
}

func Int32FromBytes(raw []byte, shape Shape) ([]int32, error) {
	if err := ValidateBuffer(raw, Int32, shape); err != nil {
		return nil, err
	}

	out := make([]int32, len(raw)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return out, nil
}

func Int64FromBytes(raw []byte, shape Shape) ([]int64, error) {
	if err := ValidateBuffer(raw, Int64, shape); err != nil {
		return nil, err
	}

	out := make([]int64, len(raw)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
	}

	return out, nil
}

func UInt8FromBytes(raw []byte, shape Shape) ([]uint8, error) {
	if err := ValidateBuffer(raw, UInt8, shape); err != nil {
		return nil, err
	}

	return append([]uint8(nil), raw...), nil
}

func Float32Bytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}

	return out
}

func Int32Bytes(data []int32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}

	return out
}

func Int64Bytes(data []int64) []byte {
	out := make([]byte, len(data)*8)
	for i, v := range data {
		binary.LittleEndian.PutUint64(out[i*8:], uint64(v))
	}

	return out
}

func Float32Values(data []float32) []Value {
	out := make([]Value, len(data))
	for i, v := range data {
		out[i] = Float32Value(v)
	}

	return out
}

func Int32Values(data []int32) []Value {
	out := make([]Value, len(data))
	for i, v := range data {
		out[i] = Int32Value(v)
	}

	return out
}

func Int64Values(data []int64) []Value {
	out := make([]Value, len(data))
	for i, v := range data {
		out[i] = Int64Value(v)
	}

	return out
}

func UInt8Values(data []uint8) []Value {
	out := make([]Value, len(data))
	for i, v := range data {
		out[i] = UInt8Value(v)
	}

	return out
}

// ZeroValues returns product(shape) zero elements of the given type.
func ZeroValues(dtype ElementType, shape Shape) ([]Value, error) {
	if !dtype.Valid() {
		return nil, &UnsupportedTypeError{Tag: int(dtype)}
	}

	count, err := shape.NumElements()
	if err != nil {
		return nil, err
	}

	out := make([]Value, count)
	for i := range out {
		switch dtype {
		case Float32:
			out[i] = Float32Value(0)
		case Int32:
			out[i] = Int32Value(0)
		case Int64:
			out[i] = Int64Value(0)
		case UInt8:
			out[i] = UInt8Value(0)
		}
	}

	return out, nil
}
