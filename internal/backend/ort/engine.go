// Package ort is the ONNX Runtime backend. It drives the runtime through
// the purego binding and owns exactly one loaded session per Engine.
package ort

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"

	"github.com/example/go-neuriplo/internal/inference"
	"github.com/example/go-neuriplo/internal/tensor"
)

// Config holds ORT library settings.
type Config struct {
	LibraryPath string
	APIVersion  uint32
}

var libraryCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"C:/onnxruntime/lib/onnxruntime.dll",
}

func resolveLibraryPath(cfg Config) (string, error) {
	path := cfg.LibraryPath
	if path == "" {
		path = os.Getenv("NEURIPLO_ORT_LIB")
	}

	if path == "" {
		path = os.Getenv("ORT_LIBRARY_PATH")
	}

	if path == "" {
		for _, c := range libraryCandidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	if path == "" {
		return "", errors.New("unable to detect ONNX Runtime library path")
	}

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("onnx runtime library path check failed: %w", err)
	}

	return path, nil
}

// Engine implements inference.Engine on top of ONNX Runtime.
type Engine struct {
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session

	meta         inference.Metadata
	modelPath    string
	gpuAvailable bool
	batchSize    int64
	tracker      inference.Tracker

	mu     sync.Mutex
	closed bool
}

// New loads the model and brings the engine to the ready state. Any
// failure on the way releases whatever was acquired and surfaces a
// ModelLoadError; the engine is never left half-initialized.
func New(opts inference.LoadOptions, cfg Config) (*Engine, error) {
	if opts.ModelPath == "" {
		return nil, &inference.ModelLoadError{Err: errors.New("model path is required")}
	}

	stat, err := os.Stat(opts.ModelPath)
	if err != nil {
		return nil, &inference.ModelLoadError{Path: opts.ModelPath, Err: err}
	}

	manifest, err := loadManifest(opts.ModelPath)
	if err != nil {
		return nil, &inference.ModelLoadError{Path: opts.ModelPath, Err: err}
	}

	batchSize := opts.EffectiveBatchSize()

	meta, err := buildMetadata(manifest, opts, batchSize)
	if err != nil {
		return nil, &inference.ModelLoadError{Path: opts.ModelPath, Err: err}
	}

	libraryPath, err := resolveLibraryPath(cfg)
	if err != nil {
		return nil, &inference.ModelLoadError{Path: opts.ModelPath, Err: err}
	}

	apiVersion := cfg.APIVersion
	if apiVersion == 0 {
		apiVersion = 23
	}

	runtime, err := ort.NewRuntime(libraryPath, apiVersion)
	if err != nil {
		return nil, &inference.ModelLoadError{Path: opts.ModelPath, Err: fmt.Errorf("ort runtime: %w", err)}
	}

	env, err := runtime.NewEnv("neuriplo", ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, &inference.ModelLoadError{Path: opts.ModelPath, Err: fmt.Errorf("ort env: %w", err)}
	}

	session, err := runtime.NewSession(env, opts.ModelPath, nil)
	if err != nil {
		env.Close()
		_ = runtime.Close()

		return nil, &inference.ModelLoadError{Path: opts.ModelPath, Err: fmt.Errorf("ort session: %w", err)}
	}

	if opts.UseGPU {
		// The purego binding offers no CUDA execution provider.
		slog.Info("CUDA GPU not available, falling back to CPU")
	}

	e := &Engine{
		runtime:   runtime,
		env:       env,
		session:   session,
		meta:      meta,
		modelPath: opts.ModelPath,
		batchSize: batchSize,
	}
	e.tracker.SetMemoryUsageMB(uint64(stat.Size()) >> 20)

	for _, in := range meta.Inputs() {
		slog.Info("model input", "name", in.Name, "shape", in.FullShape().String(), "dtype", in.DType.String())
	}

	for _, out := range meta.Outputs() {
		slog.Info("model output", "name", out.Name, "shape", out.FullShape().String(), "dtype", out.DType.String())
	}

	return e, nil
}

// buildMetadata resolves every declared input shape against the caller's
// positional overrides and the batch size. Manifest shapes include the
// batch axis at position 0; Metadata stores it separately.
func buildMetadata(manifest *modelManifest, opts inference.LoadOptions, batchSize int64) (inference.Metadata, error) {
	var meta inference.Metadata

	for i, node := range manifest.Inputs {
		declared, err := node.declaredShape()
		if err != nil {
			return inference.Metadata{}, err
		}

		dtype, err := node.elementType()
		if err != nil {
			return inference.Metadata{}, fmt.Errorf("input %q: %w", node.Name, err)
		}

		resolved, err := tensor.ResolveShape(declared, opts.Override(i), batchSize)
		if err != nil {
			return inference.Metadata{}, &tensor.ShapeResolutionError{Name: node.Name, Err: err}
		}

		err = meta.AddInput(inference.TensorInfo{
			Name:      node.Name,
			DType:     dtype,
			Shape:     resolved[1:],
			BatchSize: resolved[0],
		})
		if err != nil {
			return inference.Metadata{}, err
		}
	}

	for _, node := range manifest.Outputs {
		declared, err := node.declaredShape()
		if err != nil {
			return inference.Metadata{}, err
		}

		dtype, err := node.elementType()
		if err != nil {
			return inference.Metadata{}, fmt.Errorf("output %q: %w", node.Name, err)
		}

		// Output shapes stay as declared; the runtime reports the
		// concrete shape with every call.
		batch := batchSize
		if declared[0] > 0 {
			batch = declared[0]
		}

		err = meta.AddOutput(inference.TensorInfo{
			Name:      node.Name,
			DType:     dtype,
			Shape:     declared[1:],
			BatchSize: batch,
		})
		if err != nil {
			return inference.Metadata{}, err
		}
	}

	if meta.Empty() {
		return inference.Metadata{}, inference.ErrNoMetadata
	}

	return meta, nil
}

func (e *Engine) Metadata() (inference.Metadata, error) {
	if e.meta.Empty() {
		return inference.Metadata{}, &inference.ModelLoadError{Path: e.modelPath, Err: inference.ErrNoMetadata}
	}

	return e.meta, nil
}

// Infer runs one synchronous call. Calls are serialized: the session and
// its scratch buffers are single-writer resources.
func (e *Engine) Infer(ctx context.Context, inputs [][]byte) ([]inference.Output, error) {
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

	ortInputs := make(map[string]*ort.Value, len(declared))
	defer closeValues(ortInputs)

	for i, info := range declared {
		v, err := e.inputValue(info, inputs[i])
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", info.Name, err)
		}

		ortInputs[info.Name] = v
	}

	start := time.Now()

	ortOutputs, err := e.session.Run(ctx, ortInputs)
	if err != nil {
		return nil, &inference.ExecutionError{Err: fmt.Errorf("run session: %w", err)}
	}
	defer closeValues(ortOutputs)

	e.tracker.Observe(time.Since(start))

	outputs := make([]inference.Output, 0, len(e.meta.Outputs()))
	for _, info := range e.meta.Outputs() {
		v, ok := ortOutputs[info.Name]
		if !ok {
			return nil, &inference.ExecutionError{Err: fmt.Errorf("runtime returned no output %q", info.Name)}
		}

		out, err := decodeValue(info.Name, v)
		if err != nil {
			return nil, err
		}

		outputs = append(outputs, out)
	}

	return outputs, nil
}

// inputValue validates one raw buffer against its resolved shape and
// converts it into an ORT tensor.
func (e *Engine) inputValue(info inference.TensorInfo, raw []byte) (*ort.Value, error) {
	shape := info.FullShape()

	switch info.DType {
	case tensor.Float32:
		data, err := tensor.Float32FromBytes(raw, shape)
		if err != nil {
			return nil, err
		}

		return ort.NewTensorValue(e.runtime, data, shape)
	case tensor.Int64:
		data, err := tensor.Int64FromBytes(raw, shape)
		if err != nil {
			return nil, err
		}

		return ort.NewTensorValue(e.runtime, data, shape)
	default:
		// The binding feeds float32 and int64 tensors only.
		return nil, &tensor.UnsupportedTypeError{Tag: int(info.DType)}
	}
}

func decodeValue(name string, v *ort.Value) (inference.Output, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return inference.Output{}, &inference.ExecutionError{Err: fmt.Errorf("output %q element type: %w", name, err)}
	}

	switch elemType {
	case ort.ONNXTensorElementDataTypeFloat:
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return inference.Output{}, &inference.ExecutionError{Err: fmt.Errorf("output %q: %w", name, err)}
		}

		return inference.Output{
			Name:   name,
			DType:  tensor.Float32,
			Shape:  tensor.Shape(shape).Clone(),
			Values: tensor.Float32Values(data),
		}, nil
	case ort.ONNXTensorElementDataTypeInt64:
		data, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return inference.Output{}, &inference.ExecutionError{Err: fmt.Errorf("output %q: %w", name, err)}
		}

		return inference.Output{
			Name:   name,
			DType:  tensor.Int64,
			Shape:  tensor.Shape(shape).Clone(),
			Values: tensor.Int64Values(data),
		}, nil
	default:
		return inference.Output{}, fmt.Errorf("output %q: %w", name, &tensor.UnsupportedTypeError{Tag: int(elemType)})
	}
}

func (e *Engine) Stats() inference.Stats {
	return e.tracker.Stats()
}

func (e *Engine) GPUAvailable() bool {
	return e.gpuAvailable
}

func (e *Engine) ModelPath() string {
	return e.modelPath
}

func (e *Engine) BatchSize() int64 {
	return e.batchSize
}

// Close releases all ORT resources. Safe to call multiple times.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true

	if e.session != nil {
		e.session.Close()
		e.session = nil
	}

	if e.env != nil {
		e.env.Close()
		e.env = nil
	}

	if e.runtime != nil {
		if err := e.runtime.Close(); err != nil {
			slog.Warn("closing ort runtime", "error", err)
		}

		e.runtime = nil
	}

	return nil
}

func closeValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}

var _ inference.Engine = (*Engine)(nil)
