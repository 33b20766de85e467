package ort

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/example/go-neuriplo/internal/tensor"
)

// The purego ORT binding exposes no session introspection, so the model's
// declared inputs and outputs come from a sidecar manifest next to the
// model file (<model>.json). Shape entries may be positive numbers, -1, or
// symbolic strings; the latter two mark dynamic axes.

type manifestNode struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []any  `json:"shape"`
}

type modelManifest struct {
	Inputs  []manifestNode `json:"inputs"`
	Outputs []manifestNode `json:"outputs"`
}

func manifestPath(modelPath string) string {
	return modelPath + ".json"
}

func loadManifest(modelPath string) (*modelManifest, error) {
	path := manifestPath(modelPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model manifest: %w", err)
	}

	var manifest modelManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode model manifest %s: %w", path, err)
	}

	if len(manifest.Inputs) == 0 && len(manifest.Outputs) == 0 {
		return nil, errors.New("model manifest declares no inputs or outputs")
	}

	return &manifest, nil
}

func (n manifestNode) elementType() (tensor.ElementType, error) {
	if strings.TrimSpace(n.DType) == "" {
		// ORT models overwhelmingly take and produce float tensors.
		return tensor.Float32, nil
	}

	return tensor.ParseElementType(n.DType)
}

// declaredShape converts manifest shape entries into a Shape, mapping
// symbolic dimensions to DynamicDim.
func (n manifestNode) declaredShape() (tensor.Shape, error) {
	if len(n.Shape) == 0 {
		return nil, fmt.Errorf("node %q has no shape", n.Name)
	}

	out := make(tensor.Shape, len(n.Shape))
	for i, dim := range n.Shape {
		switch v := dim.(type) {
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("node %q shape[%d]=%v is not an integer", n.Name, i, v)
			}

			if v < 1 && int64(v) != tensor.DynamicDim {
				return nil, fmt.Errorf("node %q shape[%d]=%v is neither positive nor dynamic", n.Name, i, v)
			}

			out[i] = int64(v)
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, fmt.Errorf("node %q shape[%d] has empty symbolic dimension", n.Name, i)
			}

			out[i] = tensor.DynamicDim
		default:
			return nil, fmt.Errorf("node %q shape[%d] has unsupported type %T", n.Name, i, dim)
		}
	}

	return out, nil
}
