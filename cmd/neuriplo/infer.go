package main

import (
	"bytes"
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/example/go-neuriplo/internal/client"
	"github.com/example/go-neuriplo/internal/imageproc"
	"github.com/example/go-neuriplo/internal/inference"
	"github.com/example/go-neuriplo/internal/tensor"
	"github.com/spf13/cobra"
)

func newInferCmd() *cobra.Command {
	var (
		imagePath  string
		serverHost string
		serverPort int
	)

	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Send an image to a running inference server",
		RunE: func(_ *cobra.Command, _ []string) error {
			if imagePath == "" {
				return fmt.Errorf("--image is required")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := client.New(ctx, serverHost, serverPort)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			meta, err := c.Metadata()
			if err != nil {
				return err
			}

			inputs := meta.Inputs()
			if len(inputs) == 0 {
				return fmt.Errorf("server model declares no inputs")
			}

			buf, err := buildImageBuffer(imagePath, inputs[0])
			if err != nil {
				return err
			}

			outputs, err := c.Infer(ctx, [][]byte{buf})
			if err != nil {
				return err
			}

			for _, out := range outputs {
				fmt.Printf("output %q  shape %s  dtype %s\n", out.Name, out.Shape, out.DType)

				preview := out.Values
				if len(preview) > 10 {
					preview = preview[:10]
				}

				for i, v := range preview {
					fmt.Printf("  [%d] %g\n", i, v.Float64())
				}

				if len(out.Values) > len(preview) {
					fmt.Printf("  ... %d more values\n", len(out.Values)-len(preview))
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the input image (jpeg|png|webp)")
	cmd.Flags().StringVar(&serverHost, "server", "localhost", "Inference server host")
	cmd.Flags().IntVar(&serverPort, "server-port", 8080, "Inference server port")

	return cmd
}

// buildImageBuffer resizes the image to the model's spatial dimensions
// and lays it out as NCHW float32, repeated across the batch axis.
func buildImageBuffer(path string, in inference.TensorInfo) ([]byte, error) {
	if in.DType != tensor.Float32 {
		return nil, fmt.Errorf("image input requires a float32 model input, got %s", in.DType)
	}

	height, width, err := spatialDims(in.Shape)
	if err != nil {
		return nil, err
	}

	img, err := imageproc.Load(path)
	if err != nil {
		return nil, err
	}

	blob := imageproc.Blob(imageproc.Resize(img, width, height))

	if in.BatchSize > 1 {
		return bytes.Repeat(blob, int(in.BatchSize)), nil
	}

	return blob, nil
}

// spatialDims reads H and W from a CHW input shape.
func spatialDims(shape tensor.Shape) (height, width int, err error) {
	if len(shape) != 3 {
		return 0, 0, fmt.Errorf("expected a CHW image input, got shape %s", shape)
	}

	if shape[0] != 3 {
		return 0, 0, fmt.Errorf("expected a 3-channel image input, got %d channels", shape[0])
	}

	return int(shape[1]), int(shape[2]), nil
}
