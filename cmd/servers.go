package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"radreject/internal/bootstrap"
	"radreject/internal/bootstrap/logging"
	"radreject/internal/errs"
	"radreject/internal/infrastructure/archive"
	"radreject/internal/usecase/rejectrate"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Manage the archive server registry",
}

var serversSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upsert archive servers from the TOML registry file",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		file, _ := cmd.Flags().GetString("file")
		if strings.TrimSpace(file) == "" {
			file = app.Config.Archive.ServersFile
		}
		servers, err := archive.LoadRegistry(file)
		if err != nil {
			logging.Error(ctx, "load archive registry failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load archive registry")
		}

		synced, err := svc.SyncServers(ctx, servers)
		if err != nil {
			logging.Error(ctx, "sync archive servers failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "sync archive servers")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "synced %d archive servers from %s\n", len(synced), file); err != nil {
			return errs.Wrap(err, "write sync output")
		}
		return nil
	}),
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered archive servers",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		servers, err := svc.ListServers(ctx)
		if err != nil {
			return errs.Wrap(err, "list archive servers")
		}
		if format == "json" {
			for i := range servers {
				servers[i].Password = ""
			}
			return writeJSON(cmd, servers)
		}

		table := newTable(cmd, "NAME", "BASE_URL", "ACTIVE", "ELIGIBLE", "PRIMARY", "TIMEOUT")
		for _, server := range servers {
			timeout := "default"
			if server.Timeout > 0 {
				timeout = server.Timeout.String()
			}
			_, _ = fmt.Fprintf(table, "%s\t%s\t%t\t%t\t%t\t%s\n",
				server.Name, server.BaseURL, server.Active, server.Eligible(), server.IsPrimary, timeout)
		}
		return table.Flush()
	}),
}

var serversCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe archive servers with GET /studies",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")

		checks, err := svc.CheckServers(ctx, name)
		if err != nil {
			return errs.Wrap(err, "check archive servers")
		}
		if format == "json" {
			return writeJSON(cmd, checks)
		}

		table := newTable(cmd, "NAME", "ELIGIBLE", "REACHABLE", "STUDIES", "LATENCY", "ERROR")
		for _, check := range checks {
			_, _ = fmt.Fprintf(table, "%s\t%t\t%t\t%d\t%s\t%s\n",
				check.Name, check.Eligible, check.Reachable, check.Studies, check.Latency.Round(time.Millisecond), check.Error)
		}
		return table.Flush()
	}),
}

func init() {
	rootCmd.AddCommand(serversCmd)
	serversCmd.AddCommand(serversSyncCmd, serversListCmd, serversCheckCmd)

	serversSyncCmd.Flags().String("file", "", "Registry TOML file (default: archive.servers_file)")
	addFormatFlag(serversListCmd)
	serversCheckCmd.Flags().String("name", "", "Check only this server")
	addFormatFlag(serversCheckCmd)
}
