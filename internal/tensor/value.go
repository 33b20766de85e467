package tensor

import (
	"fmt"
	"strconv"
)

// Value is a single tensor element. It is a closed tagged union over the
// supported element types, immutable once constructed.
type Value struct {
	dtype ElementType
	f32   float32
	i32   int32
	i64   int64
	u8    uint8
}

func Float32Value(v float32) Value {
	return Value{dtype: Float32, f32: v}
}

func Int32Value(v int32) Value {
	return Value{dtype: Int32, i32: v}
}

func Int64Value(v int64) Value {
	return Value{dtype: Int64, i64: v}
}

func UInt8Value(v uint8) Value {
	return Value{dtype: UInt8, u8: v}
}

func (v Value) Type() ElementType {
	return v.dtype
}

// Float32 returns the held float32. The second result is false when the
// value holds a different variant.
func (v Value) Float32() (float32, bool) {
	return v.f32, v.dtype == Float32
}

func (v Value) Int32() (int32, bool) {
	return v.i32, v.dtype == Int32
}

func (v Value) Int64() (int64, bool) {
	return v.i64, v.dtype == Int64
}

func (v Value) UInt8() (uint8, bool) {
	return v.u8, v.dtype == UInt8
}

// Float64 widens any variant to float64, for display and comparisons.
func (v Value) Float64() float64 {
	switch v.dtype {
	case Float32:
		return float64(v.f32)
	case Int32:
		return float64(v.i32)
	case Int64:
		return float64(v.i64)
	case UInt8:
		return float64(v.u8)
	default:
		return 0
	}
}

func (v Value) String() string {
	return string(v.appendText(nil))
}

// MarshalJSON writes the value as a bare JSON number.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.dtype.Valid() {
		return nil, fmt.Errorf("marshal tensor value: %w", &UnsupportedTypeError{Tag: int(v.dtype)})
	}

	return v.appendText(nil), nil
}

func (v Value) appendText(dst []byte) []byte {
	switch v.dtype {
	case Float32:
		return strconv.AppendFloat(dst, float64(v.f32), 'g', -1, 32)
	case Int32:
		return strconv.AppendInt(dst, int64(v.i32), 10)
	case Int64:
		return strconv.AppendInt(dst, v.i64, 10)
	case UInt8:
		return strconv.AppendUint(dst, uint64(v.u8), 10)
	default:
		return append(dst, '0')
	}
}
