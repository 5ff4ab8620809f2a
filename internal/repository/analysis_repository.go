package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"intelplatform/internal/models"
)

type AnalysisRepository struct {
	db DB
}

func NewAnalysisRepository(db DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, analysis models.Analysis) error {
	const query = `
		INSERT INTO analyses (id, domain, record_id, requested_by, status, result, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '', '', $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		analysis.ID,
		string(analysis.Domain),
		analysis.RecordID,
		analysis.RequestedBy,
		string(analysis.Status),
		analysis.CreatedAt,
		analysis.UpdatedAt,
	)
	return err
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (models.Analysis, error) {
	const query = `
		SELECT id, domain, record_id, requested_by, status, result, error, created_at, updated_at
		FROM analyses WHERE id = $1
	`

	var (
		analysis models.Analysis
		domain   string
		status   string
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&analysis.ID,
		&domain,
		&analysis.RecordID,
		&analysis.RequestedBy,
		&status,
		&analysis.Result,
		&analysis.Error,
		&analysis.CreatedAt,
		&analysis.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Analysis{}, ErrAnalysisNotFound
		}
		return models.Analysis{}, err
	}
	analysis.Domain = models.Domain(domain)
	analysis.Status = models.AnalysisStatus(status)
	return analysis, nil
}

func (r *AnalysisRepository) Finish(ctx context.Context, id string, status models.AnalysisStatus, result string, errMsg string) error {
	const query = `
		UPDATE analyses SET status = $2, result = $3, error = $4, updated_at = NOW()
		WHERE id = $1
	`

	cmd, err := r.db.Exec(ctx, query, id, string(status), result, errMsg)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAnalysisNotFound
	}
	return nil
}
