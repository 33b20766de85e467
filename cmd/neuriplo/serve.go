package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/go-neuriplo/internal/backend"
	"github.com/example/go-neuriplo/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the inference HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireModel()
			if err != nil {
				return err
			}

			engine, err := backend.New(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			srv := server.New(cfg, engine).
				WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeout) * time.Second)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}
}
