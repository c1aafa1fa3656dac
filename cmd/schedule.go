package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"radreject/internal/bootstrap"
	"radreject/internal/bootstrap/logging"
	"radreject/internal/errs"
	"radreject/internal/usecase/rejectrate"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Compute and save the previous month's analyses on the configured cron schedule",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		once, _ := cmd.Flags().GetBool("once")

		opts := rejectrate.ScheduleOptions{
			Spec:       app.Config.Schedule.Cron,
			Modalities: app.Config.Schedule.Modalities,
			Actor:      app.Config.Schedule.Actor,
		}
		if cmd.Flags().Changed("cron") {
			opts.Spec, _ = cmd.Flags().GetString("cron")
		}
		if cmd.Flags().Changed("modality") {
			opts.Modalities, _ = cmd.Flags().GetStringSlice("modality")
		}

		scheduler, err := rejectrate.NewScheduler(svc, opts)
		if err != nil {
			return errs.Wrap(err, "create scheduler")
		}

		if once {
			if err := scheduler.RunOnce(ctx); err != nil {
				return errs.Wrap(err, "run scheduled analyses")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "scheduled analyses saved")
			return nil
		}

		runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := scheduler.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return errs.Wrap(err, "run scheduler")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().Bool("once", false, "Run the previous month once and exit")
	scheduleCmd.Flags().String("cron", "", "Override schedule.cron")
	scheduleCmd.Flags().StringSlice("modality", nil, "Override schedule.modalities")
}
