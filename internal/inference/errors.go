package inference

import "fmt"

// Native runtime errors are always caught at the backend boundary and
// re-wrapped into this taxonomy; callers never observe a runtime-specific
// error type.

// ModelLoadError means a backend could not reach the ready state. It is
// fatal to the instance; retrying the same construction without changing
// inputs will fail again.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("model loading failed: %v", e.Err)
	}

	return fmt.Sprintf("model loading failed for %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// ExecutionError means a single inference call failed. The instance stays
// ready and the call may be retried.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("inference execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
