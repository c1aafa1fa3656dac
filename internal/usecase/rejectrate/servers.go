package rejectrate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"radreject/internal/bootstrap/logging"
	"radreject/internal/errs"
	"radreject/internal/ports"
)

// SyncServers upserts every registry entry by name. Servers missing from the
// registry are left as they are.
func (s *Service) SyncServers(ctx context.Context, servers []ports.ArchiveServer) ([]ports.ArchiveServer, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	at := s.timestamp()
	synced := make([]ports.ArchiveServer, 0, len(servers))
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, server := range servers {
			server.UpdatedAt = at
			saved, err := s.repos.Servers.UpsertArchiveServer(txCtx, server)
			if err != nil {
				return errs.Wrapf(err, "upsert archive server %s", server.Name)
			}
			synced = append(synced, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info(ctx, "archive servers synced",
		slog.String("component", "usecase.rejectrate.servers"),
		slog.Int("servers", len(synced)),
	)
	return synced, nil
}

func (s *Service) ListServers(ctx context.Context) ([]ports.ArchiveServer, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return s.repos.Servers.ListArchiveServers(ctx)
}

type ServerCheck struct {
	Name      string
	BaseURL   string
	Eligible  bool
	Reachable bool
	Studies   int
	Latency   time.Duration
	Error     string
}

// CheckServers lists studies on each server, or on the named one only, and
// reports reachability. Failures are reported, not returned.
func (s *Service) CheckServers(ctx context.Context, name string) ([]ServerCheck, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var servers []ports.ArchiveServer
	if name = strings.TrimSpace(name); name != "" {
		server, err := s.repos.Servers.GetArchiveServerByName(ctx, name)
		if err != nil {
			return nil, errs.Wrap(err, "load archive server")
		}
		servers = []ports.ArchiveServer{server}
	} else {
		all, err := s.repos.Servers.ListArchiveServers(ctx)
		if err != nil {
			return nil, errs.Wrap(err, "list archive servers")
		}
		servers = all
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.rejectrate.servers"))
	checks := make([]ServerCheck, len(servers))
	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrent)
	for i, server := range servers {
		g.Go(func() error {
			started := s.now()
			studies, err := s.archive.ListStudies(logCtx, server)
			check := ServerCheck{
				Name:     server.Name,
				BaseURL:  server.BaseURL,
				Eligible: server.Eligible(),
				Latency:  s.now().Sub(started),
			}
			if err != nil {
				check.Error = err.Error()
				logging.Warn(logCtx, "archive server unreachable",
					slog.String("server", server.Name),
					slog.Any("err", errs.Loggable(err)),
				)
			} else {
				check.Reachable = true
				check.Studies = len(studies)
			}
			checks[i] = check
			return nil
		})
	}
	_ = g.Wait()
	return checks, nil
}
