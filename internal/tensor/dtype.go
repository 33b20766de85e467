package tensor

import (
	"fmt"
	"strings"
)

// ElementType identifies a supported tensor element type. The numeric
// values follow the ONNX element-type enumeration so the tag can travel
// on the wire unchanged.
type ElementType int

const (
	Float32 ElementType = 1
	UInt8   ElementType = 2
	Int32   ElementType = 6
	Int64   ElementType = 7
)

// UnsupportedTypeError reports an element type outside the supported set.
// There is no generic fallback; an unknown type is fatal to the call.
type UnsupportedTypeError struct {
	Tag int
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported tensor element type %d", e.Tag)
}

func (t ElementType) Valid() bool {
	switch t {
	case Float32, UInt8, Int32, Int64:
		return true
	default:
		return false
	}
}

// ByteSize returns the width of one element in bytes. Zero for invalid types.
func (t ElementType) ByteSize() int {
	switch t {
	case Float32, Int32:
		return 4
	case Int64:
		return 8
	case UInt8:
		return 1
	default:
		return 0
	}
}

// String returns the wire name of the type ("float" for float32, matching
// the response format).
func (t ElementType) String() string {
	switch t {
	case Float32:
		return "float"
	case UInt8:
		return "uint8"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return fmt.Sprintf("invalid(%d)", int(t))
	}
}

// ElementTypeFromTag validates a wire integer tag.
func ElementTypeFromTag(tag int) (ElementType, error) {
	t := ElementType(tag)
	if !t.Valid() {
		return 0, &UnsupportedTypeError{Tag: tag}
	}

	return t, nil
}

// ParseElementType accepts both the wire names and common dtype spellings
// ("float", "float32", "tensor(float)", "int64", "long", ...).
func ParseElementType(raw string) (ElementType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.TrimPrefix(normalized, "tensor(")
	normalized = strings.TrimSuffix(normalized, ")")

	switch normalized {
	case "float", "float32":
		return Float32, nil
	case "uint8", "byte":
		return UInt8, nil
	case "int32", "int":
		return Int32, nil
	case "int64", "long":
		return Int64, nil
	default:
		return 0, fmt.Errorf("unsupported tensor dtype %q", raw)
	}
}
