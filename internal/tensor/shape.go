package tensor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DynamicDim marks a dimension whose size is not fixed by the model and
// must be supplied by the caller before the shape can size a buffer.
const DynamicDim int64 = -1

// Shape is an ordered sequence of dimension sizes. A resolved shape
// contains no DynamicDim and no non-positive dimension.
type Shape []int64

func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

// IsDynamic reports whether any dimension is still unresolved.
func (s Shape) IsDynamic() bool {
	for _, d := range s {
		if d == DynamicDim {
			return true
		}
	}

	return false
}

// NumElements returns the product of all dimensions. It fails on dynamic
// or non-positive dimensions and guards against overflow, so a successful
// result is always safe to use for buffer sizing.
func (s Shape) NumElements() (int64, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("shape is empty")
	}

	count := int64(1)
	for i, d := range s {
		if d < 1 {
			return 0, fmt.Errorf("shape[%d]=%d is not positive", i, d)
		}

		if count > math.MaxInt64/d {
			return 0, fmt.Errorf("shape %v overflows element count", []int64(s))
		}

		count *= d
	}

	return count, nil
}

// String renders the shape as "1x3x224x224". DynamicDim renders as "?".
func (s Shape) String() string {
	if len(s) == 0 {
		return ""
	}

	parts := make([]string, len(s))
	for i, d := range s {
		if d == DynamicDim {
			parts[i] = "?"
			continue
		}

		parts[i] = strconv.FormatInt(d, 10)
	}

	return strings.Join(parts, "x")
}
