package inference

import (
	"context"
	"time"

	"github.com/example/go-neuriplo/internal/tensor"
)

// Output is one decoded output tensor: its name, concrete shape as
// reported by the runtime, and element values in row-major order.
type Output struct {
	Name   string
	DType  tensor.ElementType
	Shape  tensor.Shape
	Values []tensor.Value
}

// Stats carries an engine's performance counters.
type Stats struct {
	LastInferenceTime time.Duration
	TotalInferences   uint64
	MemoryUsageMB     uint64
}

// Engine is the operation set every backend implements. One Engine owns
// one loaded model, one device binding, and its metadata.
//
// An Engine is not safe for concurrent Infer calls on itself: native
// execution contexts and pre-allocated buffers are single-writer
// resources. Implementations serialize calls internally; callers needing
// concurrency run one Engine per worker. Infer is synchronous and
// run-to-completion; there is no cancellation inside a call, the context
// is honoured only at runtime boundaries that accept one.
type Engine interface {
	// Metadata returns the model's self-description. Calling it on an
	// engine whose metadata was never populated returns a ModelLoadError
	// wrapping ErrNoMetadata, never a silently empty result.
	Metadata() (Metadata, error)

	// Infer runs one call: one raw byte buffer per declared input, in
	// metadata order, producing one Output per declared output in
	// metadata order. Buffer sizes are validated strictly against the
	// resolved input shapes before any native work happens.
	Infer(ctx context.Context, inputs [][]byte) ([]Output, error)

	Stats() Stats
	GPUAvailable() bool
	ModelPath() string
	BatchSize() int64

	// Close releases all native resources. Unconditional and idempotent,
	// including after a partially failed initialization.
	Close() error
}

// LoadOptions are the constructor inputs shared by every backend.
// InputOverrides align positionally with the model's declared inputs.
type LoadOptions struct {
	ModelPath      string
	UseGPU         bool
	BatchSize      int64
	InputOverrides [][]int64
}

// Override returns the positional override for input i, or nil.
func (o LoadOptions) Override(i int) []int64 {
	if i < 0 || i >= len(o.InputOverrides) {
		return nil
	}

	return o.InputOverrides[i]
}

// EffectiveBatchSize defaults the batch size to 1.
func (o LoadOptions) EffectiveBatchSize() int64 {
	if o.BatchSize < 1 {
		return 1
	}

	return o.BatchSize
}
