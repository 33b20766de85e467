package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/go-neuriplo/internal/inference"
	"github.com/example/go-neuriplo/internal/tensor"
)

func TestBlob_RoundTrip(t *testing.T) {
	raw := tensor.Float32Bytes([]float32{1, 2, 3, 4, 5, 6})
	blob := NewBlob(raw, tensor.Shape{1, 2, 3}, tensor.Float32)

	if blob.Type != 1 {
		t.Fatalf("want ONNX float tag 1, got %d", blob.Type)
	}

	if err := blob.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	back, err := blob.Bytes()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(back) != len(raw) {
		t.Fatalf("want %d bytes, got %d", len(raw), len(back))
	}

	for i := range raw {
		if back[i] != raw[i] {
			t.Fatalf("byte %d differs", i)
		}
	}
}

func TestBlob_ValidateRejectsSizeMismatch(t *testing.T) {
	blob := NewBlob(make([]byte, 10), tensor.Shape{1, 2, 3}, tensor.Float32)

	var sizeErr *tensor.SizeMismatchError
	if err := blob.Validate(); !errors.As(err, &sizeErr) {
		t.Fatalf("want SizeMismatchError, got %v", err)
	}
}

func TestBlob_ValidateRejectsUnknownTag(t *testing.T) {
	blob := Blob{Shape: []int64{1}, Type: 42, Data: ""}

	var typeErr *tensor.UnsupportedTypeError
	if err := blob.Validate(); !errors.As(err, &typeErr) {
		t.Fatalf("want UnsupportedTypeError, got %v", err)
	}
}

func TestBlob_BadBase64Fails(t *testing.T) {
	blob := Blob{Shape: []int64{1}, Type: 1, Data: "%%%not-base64%%%"}
	if _, err := blob.Bytes(); err == nil {
		t.Fatal("want error for invalid base64")
	}
}

func TestEncodeDecodeOutputs_RoundTrip(t *testing.T) {
	original := []inference.Output{
		{
			Name:   "scores",
			DType:  tensor.Float32,
			Shape:  tensor.Shape{1, 3},
			Values: tensor.Float32Values([]float32{0.5, -1.25, 3}),
		},
		{
			Name:   "labels",
			DType:  tensor.Int64,
			Shape:  tensor.Shape{1, 2},
			Values: tensor.Int64Values([]int64{7, 42}),
		},
	}

	records, err := EncodeOutputs(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if records[0].Type != "float" || records[1].Type != "int64" {
		t.Fatalf("wire types wrong: %s, %s", records[0].Type, records[1].Type)
	}

	// Through actual JSON, as the transport would carry it.
	payload, err := json.Marshal(InferResponse{Outputs: records, InferenceTimeMS: 1.5})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var resp InferResponse
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	decoded, err := DecodeOutputs(resp.Outputs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded) != 2 {
		t.Fatalf("want 2 outputs, got %d", len(decoded))
	}

	if v, ok := decoded[0].Values[1].Float32(); !ok || v != -1.25 {
		t.Fatalf("float value mangled: %v", decoded[0].Values[1])
	}

	if v, ok := decoded[1].Values[1].Int64(); !ok || v != 42 {
		t.Fatalf("int64 value mangled: %v", decoded[1].Values[1])
	}

	if decoded[1].Shape.String() != "1x2" {
		t.Fatalf("shape mangled: %s", decoded[1].Shape)
	}
}

func TestDecodeOutputs_UnknownTypeFails(t *testing.T) {
	_, err := DecodeOutputs([]OutputRecord{{Type: "float64", Shape: []int64{1}, Data: []json.Number{"1"}}})
	if err == nil {
		t.Fatal("want error for unknown output type")
	}
}

func TestDecodeOutputs_RangeChecks(t *testing.T) {
	_, err := DecodeOutputs([]OutputRecord{{Type: "uint8", Shape: []int64{1}, Data: []json.Number{"256"}}})
	if err == nil {
		t.Fatal("want error for uint8 overflow")
	}

	_, err = DecodeOutputs([]OutputRecord{{Type: "int32", Shape: []int64{1}, Data: []json.Number{"2147483648"}}})
	if err == nil {
		t.Fatal("want error for int32 overflow")
	}
}

func TestWireFormat_FieldNames(t *testing.T) {
	req := InferRequest{InputBlob: NewBlob([]byte{0}, tensor.Shape{1}, tensor.UInt8)}

	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	blob, ok := doc["input_blob"].(map[string]any)
	if !ok {
		t.Fatalf("missing input_blob: %s", payload)
	}

	for _, field := range []string{"shape", "type", "data"} {
		if _, ok := blob[field]; !ok {
			t.Errorf("missing blob field %q", field)
		}
	}
}
