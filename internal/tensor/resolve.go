package tensor

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingOverride is returned when a declared shape still contains
	// dynamic axes and the caller supplied no override for them.
	ErrMissingOverride = errors.New("shape has dynamic axes and no override was supplied")

	// ErrOverrideArity is returned when an override matches neither the
	// declared rank nor the declared rank minus the batch axis.
	ErrOverrideArity = errors.New("override length matches neither the declared rank nor the declared rank without the batch axis")
)

// ShapeResolutionError attaches the input or output name to a resolution
// failure. Resolution failures are fatal to backend initialization.
type ShapeResolutionError struct {
	Name string
	Err  error
}

func (e *ShapeResolutionError) Error() string {
	return fmt.Sprintf("resolve shape for %q: %v", e.Name, e.Err)
}

func (e *ShapeResolutionError) Unwrap() error {
	return e.Err
}

// ResolveShape reconciles a declared shape (possibly containing DynamicDim
// axes) with a caller-supplied override and a batch size, producing a fully
// concrete shape. Position 0 is the batch axis and is always forced to
// batchSize, including over an override-supplied value.
//
// An override may either include the batch axis (len == len(declared)) or
// exclude it (len == len(declared)-1). Override values overwrite declared
// dimensions unconditionally, fixed ones included; several runtimes need a
// model-declared-fixed input forced to a caller-chosen size.
func ResolveShape(declared Shape, override []int64, batchSize int64) (Shape, error) {
	if len(declared) == 0 {
		return nil, errors.New("declared shape is empty")
	}

	if batchSize < 1 {
		return nil, fmt.Errorf("batch size %d is not positive", batchSize)
	}

	resolved := declared.Clone()

	switch {
	case len(override) == 0:
		if resolved.IsDynamic() {
			return nil, ErrMissingOverride
		}
	case len(override) == len(declared):
		copy(resolved, override)
	case len(override) == len(declared)-1:
		copy(resolved[1:], override)
	default:
		return nil, fmt.Errorf("%w: declared rank %d, override length %d",
			ErrOverrideArity, len(declared), len(override))
	}

	resolved[0] = batchSize

	for i, d := range resolved {
		if d == DynamicDim {
			return nil, fmt.Errorf("%w: axis %d left unresolved", ErrMissingOverride, i)
		}

		if d < 1 {
			return nil, fmt.Errorf("resolved shape %s has non-positive dimension %d at axis %d", resolved, d, i)
		}
	}

	return resolved, nil
}
