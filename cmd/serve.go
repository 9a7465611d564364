package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/hourswatch/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the poller and the HTTP API",
		Long: `Starts the background poller and the HTTP server that accepts the
hours slash command. Shuts down gracefully on SIGINT or SIGTERM, waiting
for in-flight commands to send their reply.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	if err := app.BuildServer(); err != nil {
		app.Close(context.WithoutCancel(ctx))
		return fmt.Errorf("build server: %w", err)
	}
	return app.Run(ctx)
}
