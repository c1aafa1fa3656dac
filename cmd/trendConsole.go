package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"radreject/internal/bootstrap"
	"radreject/internal/bootstrap/logging"
	"radreject/internal/errs"
	"radreject/internal/usecase/rejectrate"
	"radreject/internal/usecase/trendconsole"
)

var consoleTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Start the reject-rate trend console",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		modalities, _ := cmd.Flags().GetStringSlice("modality")
		if len(modalities) == 0 {
			modalities = app.Config.Schedule.Modalities
		}
		year, _ := cmd.Flags().GetInt("year")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		model := trendconsole.NewTrendModel(ctx, svc, trendconsole.TrendOptions{
			Modalities:      modalities,
			Year:            year,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run trend console")
		}
		return nil
	}),
}

func init() {
	consoleCmd.AddCommand(consoleTrendCmd)
	consoleTrendCmd.Flags().StringSlice("modality", nil, "Modalities to cycle with tab (default: schedule.modalities)")
	consoleTrendCmd.Flags().Int("year", 0, "Year to show (default: current year)")
	consoleTrendCmd.Flags().Duration("refresh-interval", time.Minute, "Auto refresh interval")
}
