package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/infrastructure/persistence/sqlite/model"
	"radreject/internal/ports"
)

type IncidentRepository struct {
	db *gorm.DB
}

var _ ports.IncidentRepository = (*IncidentRepository)(nil)

func NewIncidentRepository(db *gorm.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

func (r *IncidentRepository) CreateIncident(ctx context.Context, incident ports.Incident) (ports.Incident, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Incident{}, err
	}

	row := model.RejectIncident{
		ExaminationID:      incident.ExaminationID,
		AnalysisID:         incident.AnalysisID,
		ReasonID:           incident.ReasonID,
		Modality:           incident.Modality,
		RetakeCount:        incident.RetakeCount,
		OriginalTechnique:  incident.OriginalTechnique,
		CorrectedTechnique: incident.CorrectedTechnique,
		PatientFactors:     incident.PatientFactors,
		EquipmentFactors:   incident.EquipmentFactors,
		ImmediateAction:    incident.ImmediateAction,
		FollowUpRequired:   incident.FollowUpRequired,
		Technologist:       incident.Technologist,
		ReportedBy:         incident.ReportedBy,
		OccurredAt:         formatTimestamp(incident.OccurredAt),
		Notes:              incident.Notes,
		CreatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Incident{}, errs.Wrap(err, "create reject incident")
	}
	return mapIncident(row), nil
}

func (r *IncidentRepository) GetIncident(ctx context.Context, incidentID uint64) (ports.Incident, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Incident{}, err
	}

	var row model.RejectIncident
	if err := db.Where("incident_id = ?", incidentID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Incident{}, errs.Wrapf(ports.ErrIncidentNotFound, "incident %d", incidentID)
		}
		return ports.Incident{}, errs.Wrap(err, "query reject incident")
	}
	return mapIncident(row), nil
}

func (r *IncidentRepository) ListIncidents(ctx context.Context, filter ports.IncidentFilter) ([]ports.Incident, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.RejectIncident{})
	if filter.Month != nil {
		query = inPeriod(query, *filter.Month, filter.Modality)
	} else if filter.Modality != "" {
		query = query.Where("modality = ?", filter.Modality)
	}
	if filter.AnalysisID != nil {
		query = query.Where("analysis_id = ?", *filter.AnalysisID)
	}
	if filter.Unassigned {
		query = query.Where("analysis_id IS NULL")
	}
	if filter.FollowUpRequired != nil {
		query = query.Where("follow_up_required = ?", *filter.FollowUpRequired)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.RejectIncident
	if err := query.Order("occurred_at desc").Order("incident_id desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query reject incidents")
	}

	items := make([]ports.Incident, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapIncident(row))
	}
	return items, nil
}

func (r *IncidentRepository) SetIncidentAnalysis(ctx context.Context, incidentID uint64, analysisID uint64) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.RejectIncident{}).
		Where("incident_id = ?", incidentID).
		Update("analysis_id", analysisID)
	if result.Error != nil {
		return errs.Wrap(result.Error, "attach incident")
	}
	if result.RowsAffected == 0 {
		return errs.Wrapf(ports.ErrIncidentNotFound, "incident %d", incidentID)
	}
	return nil
}

func (r *IncidentRepository) SetIncidentFollowUp(ctx context.Context, incidentID uint64, followUp bool) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.RejectIncident{}).
		Where("incident_id = ?", incidentID).
		Update("follow_up_required", followUp)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update incident follow-up")
	}
	if result.RowsAffected == 0 {
		return errs.Wrapf(ports.ErrIncidentNotFound, "incident %d", incidentID)
	}
	return nil
}

// AttachUnassignedIncidents links every free incident of the period to analysisID.
func (r *IncidentRepository) AttachUnassignedIncidents(ctx context.Context, month reject.Month, modality string, analysisID uint64) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	result := inPeriod(db.Model(&model.RejectIncident{}), month, modality).
		Where("analysis_id IS NULL").
		Update("analysis_id", analysisID)
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "attach period incidents")
	}
	return result.RowsAffected, nil
}

func (r *IncidentRepository) SumIncidentRetakes(ctx context.Context, month reject.Month, modality string) (ports.LedgerTotals, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.LedgerTotals{}, err
	}

	var out struct {
		Incidents int64
		Retakes   int64
	}
	if err := inPeriod(db.Model(&model.RejectIncident{}), month, modality).
		Select("count(*) AS incidents, coalesce(sum(retake_count), 0) AS retakes").
		Scan(&out).Error; err != nil {
		return ports.LedgerTotals{}, errs.Wrap(err, "sum incident retakes")
	}
	return ports.LedgerTotals{Incidents: int(out.Incidents), Retakes: out.Retakes}, nil
}

// ReasonBreakdown groups the period's incidents by reason, largest retake total first.
func (r *IncidentRepository) ReasonBreakdown(ctx context.Context, month reject.Month, modality string) ([]ports.ReasonBreakdownRow, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		CategoryType string
		CategoryName string
		ReasonID     uint64
		ReasonText   string
		Severity     string
		Incidents    int64
		Retakes      int64
	}
	query := db.Table("reject_incidents AS i").
		Select(`c.category_type AS category_type, c.name AS category_name,
			r.reason_id AS reason_id, r.reason_text AS reason_text, r.severity AS severity,
			count(*) AS incidents, coalesce(sum(i.retake_count), 0) AS retakes`).
		Joins("JOIN reject_reasons AS r ON r.reason_id = i.reason_id").
		Joins("JOIN reject_categories AS c ON c.category_id = r.category_id").
		Where("i.occurred_at >= ? AND i.occurred_at < ?", formatTimestamp(month.First()), formatTimestamp(month.End()))
	if modality != "" {
		query = query.Where("i.modality = ?", modality)
	}
	if err := query.
		Group("c.category_type, c.name, r.reason_id, r.reason_text, r.severity").
		Order("retakes desc").
		Order("r.reason_id asc").
		Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query reason breakdown")
	}

	items := make([]ports.ReasonBreakdownRow, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.ReasonBreakdownRow{
			CategoryType: reject.CategoryType(row.CategoryType),
			CategoryName: row.CategoryName,
			ReasonID:     row.ReasonID,
			ReasonText:   row.ReasonText,
			Severity:     reject.Severity(row.Severity),
			Incidents:    row.Incidents,
			Retakes:      row.Retakes,
		})
	}
	return items, nil
}

func inPeriod(query *gorm.DB, month reject.Month, modality string) *gorm.DB {
	query = query.Where("occurred_at >= ? AND occurred_at < ?", formatTimestamp(month.First()), formatTimestamp(month.End()))
	if modality != "" {
		query = query.Where("modality = ?", modality)
	}
	return query
}

func mapIncident(row model.RejectIncident) ports.Incident {
	return ports.Incident{
		IncidentID:         row.IncidentID,
		ExaminationID:      row.ExaminationID,
		AnalysisID:         row.AnalysisID,
		ReasonID:           row.ReasonID,
		Modality:           row.Modality,
		RetakeCount:        row.RetakeCount,
		OriginalTechnique:  row.OriginalTechnique,
		CorrectedTechnique: row.CorrectedTechnique,
		PatientFactors:     row.PatientFactors,
		EquipmentFactors:   row.EquipmentFactors,
		ImmediateAction:    row.ImmediateAction,
		FollowUpRequired:   row.FollowUpRequired,
		Technologist:       row.Technologist,
		ReportedBy:         row.ReportedBy,
		OccurredAt:         parseTimestamp(row.OccurredAt),
		Notes:              row.Notes,
	}
}
