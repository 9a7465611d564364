package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/hourswatch/internal/server"
)

func newPollCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Runs the snapshot poller without the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPollCommand(cmd, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single poll cycle and exit")
	return cmd
}

func runPollCommand(cmd *cobra.Command, once bool) error {
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
	defer app.Close(context.WithoutCancel(ctx))

	if !once {
		app.Poll(ctx)
		return nil
	}

	snapshot, err := app.PollOnce(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("poll cycle complete",
		zap.Int("hours_pending", *snapshot.HoursPending),
		zap.Int("hours_approved", *snapshot.HoursApproved),
	)
	record, err := snapshot.MarshalRecord()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(record))
	return err
}
