package main

import (
	"fmt"

	"github.com/example/go-neuriplo/internal/client"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var (
		serverHost string
		serverPort int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate counters from a running inference server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := client.FetchStats(cmd.Context(), serverHost, serverPort)
			if err != nil {
				return fmt.Errorf("stats fetch failed: %w", err)
			}

			fmt.Printf("total requests:    %d\n", stats.TotalRequests)
			fmt.Printf("failed requests:   %d\n", stats.FailedRequests)
			fmt.Printf("success rate:      %.1f%%\n", stats.SuccessRate)
			fmt.Printf("total inferences:  %d\n", stats.TotalInferences)
			fmt.Printf("avg inference ms:  %.3f\n", stats.AvgInferenceTimeMS)
			fmt.Printf("memory usage mb:   %d\n", stats.MemoryUsageMB)

			return nil
		},
	}

	cmd.Flags().StringVar(&serverHost, "server", "localhost", "Inference server host")
	cmd.Flags().IntVar(&serverPort, "server-port", 8080, "Inference server port")

	return cmd
}
