package inference

import (
	"errors"
	"testing"

	"github.com/example/go-neuriplo/internal/tensor"
)

func TestModelLoadError_WrapsCause(t *testing.T) {
	cause := &tensor.ShapeResolutionError{Name: "input", Err: tensor.ErrMissingOverride}
	err := &ModelLoadError{Path: "model.onnx", Err: cause}

	if !errors.Is(err, tensor.ErrMissingOverride) {
		t.Fatal("want wrapped ErrMissingOverride")
	}

	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) || loadErr.Path != "model.onnx" {
		t.Fatalf("want ModelLoadError with path, got %v", err)
	}
}

func TestExecutionError_WrapsTaxonomyMembers(t *testing.T) {
	cause := &tensor.SizeMismatchError{Expected: 8, Actual: 4}
	err := &ExecutionError{Err: cause}

	var sizeErr *tensor.SizeMismatchError
	if !errors.As(err, &sizeErr) || sizeErr.Expected != 8 {
		t.Fatalf("want wrapped SizeMismatchError, got %v", err)
	}
}

func TestTracker_ObserveUpdatesCounters(t *testing.T) {
	var tr Tracker

	tr.Observe(1500000) // 1.5ms
	tr.Observe(2500000)

	stats := tr.Stats()
	if stats.TotalInferences != 2 {
		t.Fatalf("want 2 inferences, got %d", stats.TotalInferences)
	}

	if stats.LastInferenceTime.Nanoseconds() != 2500000 {
		t.Fatalf("want last=2.5ms, got %v", stats.LastInferenceTime)
	}

	tr.SetMemoryUsageMB(42)
	if tr.Stats().MemoryUsageMB != 42 {
		t.Fatal("memory usage not recorded")
	}
}
