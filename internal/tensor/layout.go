package tensor

import "fmt"

// Layout conversion between channel-first and channel-last 4-D tensors is
// an explicit index remapping, never a reinterpretation of the same bytes.

// NCHWToNHWC permutes src with dst[b][h][w][c] = src[b][c][h][w] and
// returns the permuted data with its new shape.
func NCHWToNHWC(src []float32, shape Shape) ([]float32, Shape, error) {
	b, c, h, w, err := dims4(src, shape)
	if err != nil {
		return nil, nil, err
	}

	dst := make([]float32, len(src))
	for bi := int64(0); bi < b; bi++ {
		for ci := int64(0); ci < c; ci++ {
			for hi := int64(0); hi < h; hi++ {
				for wi := int64(0); wi < w; wi++ {
					dst[((bi*h+hi)*w+wi)*c+ci] = src[((bi*c+ci)*h+hi)*w+wi]
				}
			}
		}
	}

	return dst, Shape{b, h, w, c}, nil
}

// NHWCToNCHW is the inverse permutation: dst[b][c][h][w] = src[b][h][w][c].
func NHWCToNCHW(src []float32, shape Shape) ([]float32, Shape, error) {
	b, h, w, c, err := dims4(src, shape)
	if err != nil {
		return nil, nil, err
	}

	dst := make([]float32, len(src))
	for bi := int64(0); bi < b; bi++ {
		for hi := int64(0); hi < h; hi++ {
			for wi := int64(0); wi < w; wi++ {
				for ci := int64(0); ci < c; ci++ {
					dst[((bi*c+ci)*h+hi)*w+wi] = src[((bi*h+hi)*w+wi)*c+ci]
				}
			}
		}
	}

	return dst, Shape{b, c, h, w}, nil
}

func dims4(src []float32, shape Shape) (int64, int64, int64, int64, error) {
	if len(shape) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("layout conversion requires a 4-D shape, got %s", shape)
	}

	count, err := shape.NumElements()
	if err != nil {
		return 0, 0, 0, 0, err
	}

	if int64(len(src)) != count {
		return 0, 0, 0, 0, fmt.Errorf("layout conversion: data has %d elements, shape %s expects %d", len(src), shape, count)
	}

	return shape[0], shape[1], shape[2], shape[3], nil
}
