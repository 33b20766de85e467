package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-neuriplo/internal/inference"
	"github.com/example/go-neuriplo/internal/tensor"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	want := map[string]bool{"serve": false, "infer": false, "health": false, "stats": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}

	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestServe_RequiresModelPath(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"serve"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	if err == nil {
		t.Fatal("serve without --model must fail")
	}

	if !strings.Contains(err.Error(), "model") {
		t.Errorf("error should name the missing model path, got %v", err)
	}
}

func TestSpatialDims(t *testing.T) {
	h, w, err := spatialDims(tensor.Shape{3, 224, 320})
	if err != nil {
		t.Fatalf("spatial dims: %v", err)
	}

	if h != 224 || w != 320 {
		t.Fatalf("want 224x320, got %dx%d", h, w)
	}

	if _, _, err := spatialDims(tensor.Shape{1000}); err == nil {
		t.Error("want error for non-CHW shape")
	}

	if _, _, err := spatialDims(tensor.Shape{1, 224, 224}); err == nil {
		t.Error("want error for non-RGB channel count")
	}
}

func TestBuildImageBuffer_BatchedClassifierInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_ = f.Close()

	in := inference.TensorInfo{
		Name:      "input",
		DType:     tensor.Float32,
		Shape:     tensor.Shape{3, 224, 224},
		BatchSize: 2,
	}

	buf, err := buildImageBuffer(path, in)
	if err != nil {
		t.Fatalf("build buffer: %v", err)
	}

	if want := 2 * 3 * 224 * 224 * 4; len(buf) != want {
		t.Fatalf("want %d bytes for batch 2, got %d", want, len(buf))
	}
}

func TestBuildImageBuffer_RejectsNonFloatInput(t *testing.T) {
	in := inference.TensorInfo{
		Name:      "input",
		DType:     tensor.Int64,
		Shape:     tensor.Shape{3, 224, 224},
		BatchSize: 1,
	}

	if _, err := buildImageBuffer("unused.png", in); err == nil {
		t.Fatal("want error for non-float input")
	}
}
