// Package protocol defines the JSON wire format shared by the inference
// server and client: a request carrying one raw tensor buffer and a
// response carrying named, typed output records.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/example/go-neuriplo/internal/inference"
	"github.com/example/go-neuriplo/internal/tensor"
)

// Blob is a raw tensor buffer on the wire: its shape, an integer element
// type tag (ONNX numbering), and the base64-encoded bytes.
type Blob struct {
	Shape []int64 `json:"shape"`
	Type  int     `json:"type"`
	Data  string  `json:"data"`
}

func NewBlob(raw []byte, shape tensor.Shape, dtype tensor.ElementType) Blob {
	return Blob{
		Shape: append([]int64(nil), shape...),
		Type:  int(dtype),
		Data:  base64.StdEncoding.EncodeToString(raw),
	}
}

func (b Blob) Bytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b.Data)
	if err != nil {
		return nil, fmt.Errorf("decode blob payload: %w", err)
	}

	return raw, nil
}

func (b Blob) ElementType() (tensor.ElementType, error) {
	return tensor.ElementTypeFromTag(b.Type)
}

func (b Blob) TensorShape() tensor.Shape {
	return tensor.Shape(b.Shape).Clone()
}

// Validate checks that the payload length matches shape and type. The
// check never coerces; any mismatch fails the request.
func (b Blob) Validate() error {
	dtype, err := b.ElementType()
	if err != nil {
		return err
	}

	raw, err := b.Bytes()
	if err != nil {
		return err
	}

	return tensor.ValidateBuffer(raw, dtype, b.TensorShape())
}

type InferRequest struct {
	InputBlob Blob `json:"input_blob"`
}

// OutputRecord is one output tensor on the wire. Type uses the string
// form ("float", "int32", "int64", "uint8"); Data holds bare numbers.
type OutputRecord struct {
	Name  string        `json:"name,omitempty"`
	Type  string        `json:"type"`
	Shape []int64       `json:"shape"`
	Data  []json.Number `json:"data"`
}

type InferResponse struct {
	Outputs         []OutputRecord `json:"outputs"`
	InferenceTimeMS float64        `json:"inference_time_ms"`
	TotalTimeMS     float64        `json:"total_time_ms"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	GPUAvailable  bool   `json:"gpu_available"`
	ModelPath     string `json:"model_path"`
	TotalRequests uint64 `json:"total_requests"`
}

type StatsResponse struct {
	TotalRequests      uint64  `json:"total_requests"`
	FailedRequests     uint64  `json:"failed_requests"`
	SuccessRate        float64 `json:"success_rate"`
	TotalInferences    uint64  `json:"total_inferences"`
	AvgInferenceTimeMS float64 `json:"avg_inference_time_ms"`
	MemoryUsageMB      uint64  `json:"memory_usage_mb"`
}

// EncodeOutputs converts decoded engine outputs into wire records.
func EncodeOutputs(outputs []inference.Output) ([]OutputRecord, error) {
	records := make([]OutputRecord, 0, len(outputs))
	for _, out := range outputs {
		if !out.DType.Valid() {
			return nil, &tensor.UnsupportedTypeError{Tag: int(out.DType)}
		}

		data := make([]json.Number, len(out.Values))
		for i, v := range out.Values {
			text, err := v.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("output %q element %d: %w", out.Name, i, err)
			}

			data[i] = json.Number(text)
		}

		records = append(records, OutputRecord{
			Name:  out.Name,
			Type:  out.DType.String(),
			Shape: append([]int64(nil), out.Shape...),
			Data:  data,
		})
	}

	return records, nil
}

// DecodeOutputs converts wire records back into the same typed outputs a
// local engine produces. An unknown type tag fails the whole response.
func DecodeOutputs(records []OutputRecord) ([]inference.Output, error) {
	outputs := make([]inference.Output, 0, len(records))
	for i, rec := range records {
		dtype, err := tensor.ParseElementType(rec.Type)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}

		values := make([]tensor.Value, len(rec.Data))
		for j, num := range rec.Data {
			v, err := decodeNumber(num, dtype)
			if err != nil {
				return nil, fmt.Errorf("output %d element %d: %w", i, j, err)
			}

			values[j] = v
		}

		outputs = append(outputs, inference.Output{
			Name:   rec.Name,
			DType:  dtype,
			Shape:  tensor.Shape(rec.Shape).Clone(),
			Values: values,
		})
	}

	return outputs, nil
}

func decodeNumber(num json.Number, dtype tensor.ElementType) (tensor.Value, error) {
	switch dtype {
	case tensor.Float32:
		f, err := num.Float64()
		if err != nil {
			return tensor.Value{}, err
		}

		return tensor.Float32Value(float32(f)), nil
	case tensor.Int32:
		n, err := num.Int64()
		if err != nil {
			return tensor.Value{}, err
		}

		if n < math.MinInt32 || n > math.MaxInt32 {
			return tensor.Value{}, fmt.Errorf("value %s overflows int32", num)
		}

		return tensor.Int32Value(int32(n)), nil
	case tensor.Int64:
		n, err := num.Int64()
		if err != nil {
			return tensor.Value{}, err
		}

		return tensor.Int64Value(n), nil
	case tensor.UInt8:
		n, err := num.Int64()
		if err != nil {
			return tensor.Value{}, err
		}

		if n < 0 || n > math.MaxUint8 {
			return tensor.Value{}, fmt.Errorf("value %s overflows uint8", num)
		}

		return tensor.UInt8Value(uint8(n)), nil
	default:
		return tensor.Value{}, &tensor.UnsupportedTypeError{Tag: int(dtype)}
	}
}
