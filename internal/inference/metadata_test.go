package inference

import (
	"encoding/json"
	"testing"

	"github.com/example/go-neuriplo/internal/tensor"
)

func classifierMetadata(t *testing.T) Metadata {
	t.Helper()

	var meta Metadata
	err := meta.AddInput(TensorInfo{
		Name:      "input",
		DType:     tensor.Float32,
		Shape:     tensor.Shape{3, 224, 224},
		BatchSize: 1,
	})
	if err != nil {
		t.Fatalf("add input: %v", err)
	}

	err = meta.AddOutput(TensorInfo{
		Name:      "output",
		DType:     tensor.Float32,
		Shape:     tensor.Shape{1000},
		BatchSize: 1,
	})
	if err != nil {
		t.Fatalf("add output: %v", err)
	}

	return meta
}

func TestMetadata_PreservesInsertionOrder(t *testing.T) {
	var meta Metadata
	for _, name := range []string{"images", "orig_target_sizes"} {
		err := meta.AddInput(TensorInfo{Name: name, DType: tensor.Float32, Shape: tensor.Shape{2}, BatchSize: 1})
		if err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	inputs := meta.Inputs()
	if inputs[0].Name != "images" || inputs[1].Name != "orig_target_sizes" {
		t.Fatalf("insertion order lost: %v", inputs)
	}
}

func TestMetadata_RejectsDuplicateNames(t *testing.T) {
	var meta Metadata
	info := TensorInfo{Name: "input", DType: tensor.Float32, Shape: tensor.Shape{1}, BatchSize: 1}

	if err := meta.AddInput(info); err != nil {
		t.Fatalf("first add: %v", err)
	}

	if err := meta.AddInput(info); err == nil {
		t.Fatal("want error for duplicate input name")
	}

	// The same name may appear on the output side.
	if err := meta.AddOutput(info); err != nil {
		t.Fatalf("output with same name: %v", err)
	}
}

func TestMetadata_RejectsEmptyName(t *testing.T) {
	var meta Metadata
	if err := meta.AddInput(TensorInfo{DType: tensor.Float32, Shape: tensor.Shape{1}}); err == nil {
		t.Fatal("want error for empty name")
	}
}

func TestMetadata_AccessorsReturnCopies(t *testing.T) {
	meta := classifierMetadata(t)

	inputs := meta.Inputs()
	inputs[0].Shape[0] = 999

	if meta.Inputs()[0].Shape[0] != 3 {
		t.Fatal("accessor leaked internal shape storage")
	}
}

func TestMetadata_Empty(t *testing.T) {
	var meta Metadata
	if !meta.Empty() {
		t.Fatal("fresh metadata must report empty")
	}

	meta = classifierMetadata(t)
	if meta.Empty() {
		t.Fatal("populated metadata must not report empty")
	}
}

func TestTensorInfo_FullShapePrependsBatch(t *testing.T) {
	info := TensorInfo{Name: "input", Shape: tensor.Shape{3, 224, 224}, BatchSize: 4}

	full := info.FullShape()
	want := tensor.Shape{4, 3, 224, 224}
	if full.String() != want.String() {
		t.Fatalf("want %s, got %s", want, full)
	}
}

func TestMetadata_JSONRoundTrip(t *testing.T) {
	meta := classifierMetadata(t)

	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Metadata
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	inputs := decoded.Inputs()
	if len(inputs) != 1 || inputs[0].Name != "input" || inputs[0].Shape.String() != "3x224x224" {
		t.Fatalf("inputs mangled: %+v", inputs)
	}

	outputs := decoded.Outputs()
	if len(outputs) != 1 || outputs[0].BatchSize != 1 {
		t.Fatalf("outputs mangled: %+v", outputs)
	}
}

func TestMetadata_UnmarshalRejectsDuplicates(t *testing.T) {
	payload := `{"inputs":[{"name":"x","dtype":1,"shape":[1],"batch_size":1},{"name":"x","dtype":1,"shape":[1],"batch_size":1}],"outputs":[]}`

	var decoded Metadata
	if err := json.Unmarshal([]byte(payload), &decoded); err == nil {
		t.Fatal("want error for duplicate names in payload")
	}
}
