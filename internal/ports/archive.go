package ports

import (
	"context"
	"errors"
	"time"

	"radreject/internal/domain/reject"
)

var ErrArchiveServerNotFound = errors.New("archive server not found")

// ArchiveServer is a configured PACS endpoint. Only servers that are both
// Active and IncludeInRejectAnalysis take part in aggregation.
type ArchiveServer struct {
	ID                      uint64
	Name                    string
	BaseURL                 string
	Username                string
	Password                string
	Active                  bool
	IncludeInRejectAnalysis bool
	IsPrimary               bool
	Timeout                 time.Duration
	UpdatedAt               string
}

func (s ArchiveServer) Eligible() bool {
	return s.Active && s.IncludeInRejectAnalysis
}

// ArchiveClient reads the study/series hierarchy of one archive.
// Implementations skip nothing; tag validation is done by the caller.
type ArchiveClient interface {
	ListStudies(ctx context.Context, server ArchiveServer) ([]string, error)
	GetStudy(ctx context.Context, server ArchiveServer, studyID string) (reject.ArchiveStudy, error)
	GetSeries(ctx context.Context, server ArchiveServer, seriesID string) (reject.ArchiveSeries, error)
}

type ArchiveServerRepository interface {
	ListArchiveServers(ctx context.Context) ([]ArchiveServer, error)
	ListEligibleArchiveServers(ctx context.Context) ([]ArchiveServer, error)
	GetArchiveServerByName(ctx context.Context, name string) (ArchiveServer, error)
	UpsertArchiveServer(ctx context.Context, server ArchiveServer) (ArchiveServer, error)
}
