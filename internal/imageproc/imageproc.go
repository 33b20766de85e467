// Package imageproc prepares images for model input: decode, resize,
// and conversion to a planar float32 tensor buffer.
package imageproc

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"

	"golang.org/x/image/draw"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Load decodes an image file. JPEG, PNG, and WebP are supported.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}

	return img, nil
}

// Resize scales the image to width x height with bilinear filtering.
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// Blob converts an image into a batch-1 NCHW float32 buffer with RGB
// channel order and values scaled to [0, 1]. The buffer length is
// 3 * height * width * 4 bytes.
func Blob(img image.Image) []byte {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	plane := width * height
	buf := make([]byte, 3*plane*4)

	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()

			putFloat(buf, idx, float32(r>>8)/255.0)
			putFloat(buf, plane+idx, float32(g>>8)/255.0)
			putFloat(buf, 2*plane+idx, float32(b>>8)/255.0)
			idx++
		}
	}

	return buf
}

func putFloat(buf []byte, elem int, v float32) {
	binary.LittleEndian.PutUint32(buf[elem*4:], math.Float32bits(v))
}
