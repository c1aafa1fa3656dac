package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"radreject/internal/errs"
	"radreject/internal/infrastructure/persistence/sqlite/model"
	"radreject/internal/ports"
)

type ArchiveServerRepository struct {
	db *gorm.DB
}

var _ ports.ArchiveServerRepository = (*ArchiveServerRepository)(nil)

func NewArchiveServerRepository(db *gorm.DB) *ArchiveServerRepository {
	return &ArchiveServerRepository{db: db}
}

func (r *ArchiveServerRepository) ListArchiveServers(ctx context.Context) ([]ports.ArchiveServer, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}
	return listServers(db.Order("is_primary desc").Order("name asc"))
}

// ListEligibleArchiveServers returns active servers flagged for reject analysis,
// primary first.
func (r *ArchiveServerRepository) ListEligibleArchiveServers(ctx context.Context) ([]ports.ArchiveServer, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}
	return listServers(db.
		Where("is_active = ? AND include_in_reject_analysis = ?", true, true).
		Order("is_primary desc").
		Order("name asc"))
}

func (r *ArchiveServerRepository) GetArchiveServerByName(ctx context.Context, name string) (ports.ArchiveServer, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.ArchiveServer{}, err
	}

	var row model.ArchiveServer
	if err := db.Where("name = ?", strings.TrimSpace(name)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ArchiveServer{}, errs.Wrapf(ports.ErrArchiveServerNotFound, "server %q", name)
		}
		return ports.ArchiveServer{}, errs.Wrap(err, "query archive server")
	}
	return mapArchiveServer(row), nil
}

// UpsertArchiveServer keys on the server name.
func (r *ArchiveServerRepository) UpsertArchiveServer(ctx context.Context, server ports.ArchiveServer) (ports.ArchiveServer, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.ArchiveServer{}, err
	}

	now := strings.TrimSpace(server.UpdatedAt)
	if now == "" {
		now = time.Now().UTC().Format(time.RFC3339Nano)
	}
	row := model.ArchiveServer{
		Name:                    strings.TrimSpace(server.Name),
		BaseURL:                 strings.TrimRight(strings.TrimSpace(server.BaseURL), "/"),
		Username:                server.Username,
		Password:                server.Password,
		IsActive:                server.Active,
		IncludeInRejectAnalysis: server.IncludeInRejectAnalysis,
		IsPrimary:               server.IsPrimary,
		TimeoutSeconds:          int(server.Timeout / time.Second),
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_url",
			"username",
			"password",
			"is_active",
			"include_in_reject_analysis",
			"is_primary",
			"timeout_seconds",
			"updated_at",
		}),
	}).Create(&row).Error; err != nil {
		return ports.ArchiveServer{}, errs.Wrap(err, "upsert archive server")
	}

	var stored model.ArchiveServer
	if err := db.Where("name = ?", row.Name).Take(&stored).Error; err != nil {
		return ports.ArchiveServer{}, errs.Wrap(err, "reload archive server")
	}
	return mapArchiveServer(stored), nil
}

func listServers(query *gorm.DB) ([]ports.ArchiveServer, error) {
	var rows []model.ArchiveServer
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query archive servers")
	}

	items := make([]ports.ArchiveServer, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapArchiveServer(row))
	}
	return items, nil
}

func mapArchiveServer(row model.ArchiveServer) ports.ArchiveServer {
	return ports.ArchiveServer{
		ID:                      row.ArchiveServerID,
		Name:                    row.Name,
		BaseURL:                 row.BaseURL,
		Username:                row.Username,
		Password:                row.Password,
		Active:                  row.IsActive,
		IncludeInRejectAnalysis: row.IncludeInRejectAnalysis,
		IsPrimary:               row.IsPrimary,
		Timeout:                 time.Duration(row.TimeoutSeconds) * time.Second,
		UpdatedAt:               row.UpdatedAt,
	}
}
