package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/example/go-neuriplo/internal/inference"
	"github.com/example/go-neuriplo/internal/tensor"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()

	e, err := New(inference.LoadOptions{ModelPath: "mock.onnx", BatchSize: 1})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	return e
}

func classifierInput() []byte {
	return make([]byte, 3*224*224*4)
}

func TestInfer_ClassifierEndToEnd(t *testing.T) {
	e := newEngine(t)
	defer func() { _ = e.Close() }()

	outputs, err := e.Infer(context.Background(), [][]byte{classifierInput()})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}

	if len(outputs) != 1 {
		t.Fatalf("want exactly one output record, got %d", len(outputs))
	}

	out := outputs[0]
	if out.Name != "output" {
		t.Errorf("want name output, got %q", out.Name)
	}

	if out.Shape.String() != "1x1000" {
		t.Errorf("want shape 1x1000, got %s", out.Shape)
	}

	if len(out.Values) != 1000 {
		t.Errorf("want 1000 values, got %d", len(out.Values))
	}
}

func TestInfer_WrongBufferSizeFailsCallNotInstance(t *testing.T) {
	e := newEngine(t)
	defer func() { _ = e.Close() }()

	_, err := e.Infer(context.Background(), [][]byte{make([]byte, 100)})

	var sizeErr *tensor.SizeMismatchError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("want SizeMismatchError, got %v", err)
	}

	// The instance stays usable after a failed call.
	if _, err := e.Infer(context.Background(), [][]byte{classifierInput()}); err != nil {
		t.Fatalf("retry after failed call: %v", err)
	}
}

func TestInfer_WrongInputCountFails(t *testing.T) {
	e := newEngine(t)
	defer func() { _ = e.Close() }()

	_, err := e.Infer(context.Background(), nil)

	var execErr *inference.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("want ExecutionError, got %v", err)
	}
}

func TestInfer_SequentialCallsIncrementCounterByOne(t *testing.T) {
	e := newEngine(t)
	defer func() { _ = e.Close() }()

	for want := uint64(1); want <= 2; want++ {
		if _, err := e.Infer(context.Background(), [][]byte{classifierInput()}); err != nil {
			t.Fatalf("call %d: %v", want, err)
		}

		stats := e.Stats()
		if stats.TotalInferences != want {
			t.Fatalf("want %d total inferences, got %d", want, stats.TotalInferences)
		}

		if stats.LastInferenceTime < 0 {
			t.Fatalf("negative inference time %v", stats.LastInferenceTime)
		}
	}
}

func TestInfer_AfterCloseFailsFast(t *testing.T) {
	e := newEngine(t)
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Close is idempotent.
	if err := e.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	_, err := e.Infer(context.Background(), [][]byte{classifierInput()})

	var execErr *inference.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("want ExecutionError on released engine, got %v", err)
	}

	if e.Stats().TotalInferences != 0 {
		t.Fatal("released engine must not record inferences")
	}
}

func TestNew_AppliesBatchSizeToMetadata(t *testing.T) {
	e, err := New(inference.LoadOptions{ModelPath: "mock.onnx", BatchSize: 4})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer func() { _ = e.Close() }()

	meta, err := e.Metadata()
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}

	in := meta.Inputs()[0]
	if in.BatchSize != 4 || in.FullShape().String() != "4x3x224x224" {
		t.Fatalf("batch size not applied: %+v", in)
	}
}

func TestNew_InputOverrideForcesSpatialSize(t *testing.T) {
	e, err := New(inference.LoadOptions{
		ModelPath:      "mock.onnx",
		BatchSize:      1,
		InputOverrides: [][]int64{{3, 320, 320}},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer func() { _ = e.Close() }()

	meta, err := e.Metadata()
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}

	if got := meta.Inputs()[0].FullShape().String(); got != "1x3x320x320" {
		t.Fatalf("override not applied, got %s", got)
	}
}

func TestNew_BadOverrideArityFailsLoad(t *testing.T) {
	_, err := New(inference.LoadOptions{
		ModelPath:      "mock.onnx",
		BatchSize:      1,
		InputOverrides: [][]int64{{320, 320}},
	})

	var loadErr *inference.ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("want ModelLoadError, got %v", err)
	}

	if !errors.Is(err, tensor.ErrOverrideArity) {
		t.Fatalf("want wrapped ErrOverrideArity, got %v", err)
	}
}

func TestNewWithMetadata_RejectsEmptyMetadata(t *testing.T) {
	_, err := NewWithMetadata(inference.Metadata{}, inference.LoadOptions{ModelPath: "mock.onnx"})

	if !errors.Is(err, inference.ErrNoMetadata) {
		t.Fatalf("want ErrNoMetadata, got %v", err)
	}
}
