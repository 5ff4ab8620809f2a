package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"intelplatform/internal/models"
)

type IncidentFilter struct {
	Severity     string
	Status       string
	IncidentType string
	Limit        int
	Offset       int
}

type IncidentRepository struct {
	db DB
}

func NewIncidentRepository(db DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

const incidentColumns = `id, date, incident_type, severity, status, description, reported_by, created_at`

func (r *IncidentRepository) Create(ctx context.Context, incident models.Incident) (int64, error) {
	const query = `
		INSERT INTO cyber_incidents (date, incident_type, severity, status, description, reported_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query,
		incident.Date,
		incident.IncidentType,
		incident.Severity,
		incident.Status,
		incident.Description,
		incident.ReportedBy,
	).Scan(&id)
	return id, err
}

func (r *IncidentRepository) GetByID(ctx context.Context, id int64) (models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM cyber_incidents WHERE id = $1`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Incident{}, ErrRecordNotFound
		}
		return models.Incident{}, err
	}
	return incident, nil
}

func (r *IncidentRepository) List(ctx context.Context, filter IncidentFilter) ([]models.Incident, error) {
	var w whereBuilder
	w.eq("severity", filter.Severity)
	w.eq("status", filter.Status)
	w.eq("incident_type", filter.IncidentType)
	query := `SELECT ` + incidentColumns + ` FROM cyber_incidents` + w.sql() + ` ORDER BY id DESC` + w.page(filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incidents := make([]models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, incident)
	}
	return incidents, rows.Err()
}

func (r *IncidentRepository) Update(ctx context.Context, incident models.Incident) (int64, error) {
	const query = `
		UPDATE cyber_incidents
		SET date = $2, incident_type = $3, severity = $4, status = $5, description = $6, reported_by = $7
		WHERE id = $1
	`

	cmd, err := r.db.Exec(ctx, query,
		incident.ID,
		incident.Date,
		incident.IncidentType,
		incident.Severity,
		incident.Status,
		incident.Description,
		incident.ReportedBy,
	)
	if err != nil {
		return 0, err
	}
	return affected(cmd.RowsAffected())
}

func (r *IncidentRepository) UpdateStatus(ctx context.Context, id int64, status string) (int64, error) {
	const query = `UPDATE cyber_incidents SET status = $2 WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return 0, err
	}
	return affected(cmd.RowsAffected())
}

func (r *IncidentRepository) Delete(ctx context.Context, id int64) (int64, error) {
	const query = `DELETE FROM cyber_incidents WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return affected(cmd.RowsAffected())
}

func (r *IncidentRepository) CountByType(ctx context.Context) ([]models.GroupCount, error) {
	return groupCount(ctx, r.db, groupCountQuery{table: "cyber_incidents", column: "incident_type"})
}

func (r *IncidentRepository) HighSeverityByStatus(ctx context.Context) ([]models.GroupCount, error) {
	return groupCount(ctx, r.db, groupCountQuery{
		table:  "cyber_incidents",
		column: "status",
		where:  "LOWER(severity) = 'high'",
	})
}

func (r *IncidentRepository) TypesWithMoreThan(ctx context.Context, minCount int) ([]models.GroupCount, error) {
	return groupCount(ctx, r.db, groupCountQuery{
		table:  "cyber_incidents",
		column: "incident_type",
		having: "COUNT(*) > $1",
		args:   []any{minCount},
	})
}

func scanIncident(row pgx.Row) (models.Incident, error) {
	var incident models.Incident
	if err := row.Scan(
		&incident.ID,
		&incident.Date,
		&incident.IncidentType,
		&incident.Severity,
		&incident.Status,
		&incident.Description,
		&incident.ReportedBy,
		&incident.CreatedAt,
	); err != nil {
		return models.Incident{}, err
	}
	return incident, nil
}

func affected(n int64) (int64, error) {
	if n == 0 {
		return 0, ErrRecordNotFound
	}
	return n, nil
}
