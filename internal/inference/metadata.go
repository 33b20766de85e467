package inference

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/go-neuriplo/internal/tensor"
)

// TensorInfo describes one named model input or output. Shape excludes the
// batch axis; the concrete shape submitted to the runtime is FullShape.
type TensorInfo struct {
	Name      string             `json:"name"`
	DType     tensor.ElementType `json:"dtype"`
	Shape     tensor.Shape       `json:"shape"`
	BatchSize int64              `json:"batch_size"`
}

// FullShape prepends the batch axis to the stored shape.
func (t TensorInfo) FullShape() tensor.Shape {
	full := make(tensor.Shape, 0, len(t.Shape)+1)
	full = append(full, t.BatchSize)

	return append(full, t.Shape...)
}

// Metadata is a model's self-description: its named inputs and outputs in
// runtime binding order. It is append-only and populated exclusively
// during backend initialization.
type Metadata struct {
	inputs  []TensorInfo
	outputs []TensorInfo
}

func (m *Metadata) AddInput(info TensorInfo) error {
	return addRecord(&m.inputs, info, "input")
}

func (m *Metadata) AddOutput(info TensorInfo) error {
	return addRecord(&m.outputs, info, "output")
}

func addRecord(records *[]TensorInfo, info TensorInfo, kind string) error {
	if info.Name == "" {
		return fmt.Errorf("%s name is empty", kind)
	}

	for _, existing := range *records {
		if existing.Name == info.Name {
			return fmt.Errorf("duplicate %s name %q", kind, info.Name)
		}
	}

	info.Shape = info.Shape.Clone()
	*records = append(*records, info)

	return nil
}

// Inputs returns the inputs in insertion order. The result is a copy.
func (m *Metadata) Inputs() []TensorInfo {
	return copyRecords(m.inputs)
}

// Outputs returns the outputs in insertion order. The result is a copy.
func (m *Metadata) Outputs() []TensorInfo {
	return copyRecords(m.outputs)
}

func copyRecords(records []TensorInfo) []TensorInfo {
	out := make([]TensorInfo, len(records))
	for i, r := range records {
		r.Shape = r.Shape.Clone()
		out[i] = r
	}

	return out
}

// Empty reports whether the model never described itself. An empty
// Metadata after load is an error state, not a valid empty model.
func (m *Metadata) Empty() bool {
	return len(m.inputs) == 0 && len(m.outputs) == 0
}

type metadataJSON struct {
	Inputs  []TensorInfo `json:"inputs"`
	Outputs []TensorInfo `json:"outputs"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	doc := metadataJSON{Inputs: m.inputs, Outputs: m.outputs}
	if doc.Inputs == nil {
		doc.Inputs = []TensorInfo{}
	}

	if doc.Outputs == nil {
		doc.Outputs = []TensorInfo{}
	}

	return json.Marshal(doc)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var doc metadataJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	rebuilt := Metadata{}
	for _, info := range doc.Inputs {
		if err := rebuilt.AddInput(info); err != nil {
			return err
		}
	}

	for _, info := range doc.Outputs {
		if err := rebuilt.AddOutput(info); err != nil {
			return err
		}
	}

	*m = rebuilt

	return nil
}

// ErrNoMetadata signals a describe call on a model that never populated
// its metadata.
var ErrNoMetadata = errors.New("model has not described its inputs and outputs")
