// Package mock provides a deterministic inference backend with no native
// runtime behind it. It validates inputs exactly like a real backend and
// returns zero-filled outputs, which makes it the engine of choice for
// server and client tests and for smoke deployments without a model.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/go-neuriplo/internal/inference"
	"github.com/example/go-neuriplo/internal/tensor"
)

// Default self-description when no metadata is supplied: a 224x224 RGB
// classifier with 1000 classes.
func defaultMetadata(batchSize int64) (inference.Metadata, error) {
	var meta inference.Metadata
	err := meta.AddInput(inference.TensorInfo{
		Name:      "input",
		DType:     tensor.Float32,
		Shape:     tensor.Shape{3, 224, 224},
		BatchSize: batchSize,
	})
	if err != nil {
		return inference.Metadata{}, err
	}

	err = meta.AddOutput(inference.TensorInfo{
		Name:      "output",
		DType:     tensor.Float32,
		Shape:     tensor.Shape{1000},
		BatchSize: batchSize,
	})
	if err != nil {
		return inference.Metadata{}, err
	}

	return meta, nil
}

// Engine implements inference.Engine without a native runtime.
type Engine struct {
	meta      inference.Metadata
	modelPath string
	batchSize int64
	tracker   inference.Tracker

	mu     sync.Mutex
	closed bool
}

// New builds a mock engine. Input overrides go through the same shape
// resolution as a real backend so callers can exercise the override
// contract end to end.
func New(opts inference.LoadOptions) (*Engine, error) {
	batchSize := opts.EffectiveBatchSize()

	meta, err := defaultMetadata(batchSize)
	if err != nil {
		return nil, &inference.ModelLoadError{Path: opts.ModelPath, Err: err}
	}

	resolved, err := applyOverrides(meta, opts, batchSize)
	if err != nil {
		return nil, &inference.ModelLoadError{Path: opts.ModelPath, Err: err}
	}

	return &Engine{
		meta:      resolved,
		modelPath: opts.ModelPath,
		batchSize: batchSize,
	}, nil
}

// NewWithMetadata builds a mock engine around caller-supplied metadata.
func NewWithMetadata(meta inference.Metadata, opts inference.LoadOptions) (*Engine, error) {
	if meta.Empty() {
		return nil, &inference.ModelLoadError{Path: opts.ModelPath, Err: inference.ErrNoMetadata}
	}

	return &Engine{
		meta:      meta,
		modelPath: opts.ModelPath,
		batchSize: opts.EffectiveBatchSize(),
	}, nil
}

func applyOverrides(meta inference.Metadata, opts inference.LoadOptions, batchSize int64) (inference.Metadata, error) {
	var resolved inference.Metadata
	for i, info := range meta.Inputs() {
		shape, err := tensor.ResolveShape(info.FullShape(), opts.Override(i), batchSize)
		if err != nil {
			return inference.Metadata{}, &tensor.ShapeResolutionError{Name: info.Name, Err: err}
		}

		info.Shape = shape[1:]
		info.BatchSize = shape[0]
		if err := resolved.AddInput(info); err != nil {
			return inference.Metadata{}, err
		}
	}

	for _, info := range meta.Outputs() {
		if err := resolved.AddOutput(info); err != nil {
			return inference.Metadata{}, err
		}
	}

	return resolved, nil
}

func (e *Engine) Metadata() (inference.Metadata, error) {
	if e.meta.Empty() {
		return inference.Metadata{}, &inference.ModelLoadError{Path: e.modelPath, Err: inference.ErrNoMetadata}
	}

	return e.meta, nil
}

func (e *Engine) Infer(_ context.Context, inputs [][]byte) ([]inference.Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, &inference.ExecutionError{Err: errors.New("engine is released")}
	}

	declared := e.meta.Inputs()
	if len(inputs) != len(declared) {
		return nil, &inference.ExecutionError{
			Err: fmt.Errorf("model declares %d inputs, got %d buffers", len(declared), len(inputs)),
		}
	}

	start := time.Now()

	for i, info := range declared {
		if err := tensor.ValidateBuffer(inputs[i], info.DType, info.FullShape()); err != nil {
			return nil, fmt.Errorf("input %q: %w", info.Name, err)
		}
	}

	outputs := make([]inference.Output, 0, len(e.meta.Outputs()))
	for _, info := range e.meta.Outputs() {
		shape := info.FullShape()
		values, err := tensor.ZeroValues(info.DType, shape)
		if err != nil {
			return nil, &inference.ExecutionError{Err: fmt.Errorf("output %q: %w", info.Name, err)}
		}

		outputs = append(outputs, inference.Output{
			Name:   info.Name,
			DType:  info.DType,
			Shape:  shape,
			Values: values,
		})
	}

	e.tracker.Observe(time.Since(start))

	return outputs, nil
}

func (e *Engine) Stats() inference.Stats {
	return e.tracker.Stats()
}

func (e *Engine) GPUAvailable() bool {
	return false
}

func (e *Engine) ModelPath() string {
	return e.modelPath
}

func (e *Engine) BatchSize() int64 {
	return e.batchSize
}

// Close is idempotent; there are no native resources to free.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true

	return nil
}

var _ inference.Engine = (*Engine)(nil)
