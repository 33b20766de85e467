package main

import (
	"fmt"

	"github.com/example/go-neuriplo/internal/client"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var (
		serverHost string
		serverPort int
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running inference server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			health, err := client.Probe(cmd.Context(), serverHost, serverPort)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			fmt.Printf("status:         %s\n", health.Status)
			fmt.Printf("model:          %s\n", health.ModelPath)
			fmt.Printf("gpu:            %t\n", health.GPUAvailable)
			fmt.Printf("total requests: %d\n", health.TotalRequests)

			return nil
		},
	}

	cmd.Flags().StringVar(&serverHost, "server", "localhost", "Inference server host")
	cmd.Flags().IntVar(&serverPort, "server-port", 8080, "Inference server port")

	return cmd
}
