package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"intelplatform/internal/models"
)

const (
	largeDatasetRecords = 10000
	wideDatasetColumns  = 10
)

type DatasetFilter struct {
	Category string
	Source   string
	Limit    int
	Offset   int
}

type DatasetRepository struct {
	db  DB
	now func() time.Time
}

func NewDatasetRepository(db DB) *DatasetRepository {
	return &DatasetRepository{db: db, now: time.Now}
}

const datasetColumns = `id, dataset_name, category, source, last_updated, record_count, column_count, file_size_mb, object_key, created_at`

func (r *DatasetRepository) Create(ctx context.Context, dataset models.Dataset) (int64, error) {
	const query = `
		INSERT INTO datasets_metadata (
			dataset_name, category, source, last_updated, record_count, column_count, file_size_mb, object_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query,
		dataset.Name,
		dataset.Category,
		dataset.Source,
		dataset.LastUpdated,
		dataset.RecordCount,
		dataset.ColumnCount,
		dataset.FileSizeMB,
		dataset.ObjectKey,
	).Scan(&id)
	return id, err
}

func (r *DatasetRepository) GetByID(ctx context.Context, id int64) (models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets_metadata WHERE id = $1`

	dataset, err := scanDataset(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Dataset{}, ErrRecordNotFound
		}
		return models.Dataset{}, err
	}
	return dataset, nil
}

func (r *DatasetRepository) List(ctx context.Context, filter DatasetFilter) ([]models.Dataset, error) {
	var w whereBuilder
	w.eq("category", filter.Category)
	w.eq("source", filter.Source)
	query := `SELECT ` + datasetColumns + ` FROM datasets_metadata` + w.sql() + ` ORDER BY id DESC` + w.page(filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	datasets := make([]models.Dataset, 0)
	for rows.Next() {
		dataset, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, dataset)
	}
	return datasets, rows.Err()
}

func (r *DatasetRepository) Update(ctx context.Context, dataset models.Dataset) (int64, error) {
	const query = `
		UPDATE datasets_metadata
		SET dataset_name = $2, category = $3, source = $4, last_updated = $5,
		    record_count = $6, column_count = $7, file_size_mb = $8
		WHERE id = $1
	`

	cmd, err := r.db.Exec(ctx, query,
		dataset.ID,
		dataset.Name,
		dataset.Category,
		dataset.Source,
		dataset.LastUpdated,
		dataset.RecordCount,
		dataset.ColumnCount,
		dataset.FileSizeMB,
	)
	if err != nil {
		return 0, err
	}
	return affected(cmd.RowsAffected())
}

// UpdateRecordCount sets the record count and stamps last_updated with today.
func (r *DatasetRepository) UpdateRecordCount(ctx context.Context, id int64, recordCount int64) (int64, error) {
	const query = `UPDATE datasets_metadata SET record_count = $2, last_updated = $3 WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id, recordCount, r.now().Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	return affected(cmd.RowsAffected())
}

// AttachFile records an uploaded file and the shape measured from it.
func (r *DatasetRepository) AttachFile(ctx context.Context, id int64, objectKey string, records, columns int64, sizeMB float64) (int64, error) {
	const query = `
		UPDATE datasets_metadata
		SET object_key = $2, record_count = $3, column_count = $4, file_size_mb = $5, last_updated = $6
		WHERE id = $1
	`

	cmd, err := r.db.Exec(ctx, query, id, objectKey, records, columns, sizeMB, r.now().Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	return affected(cmd.RowsAffected())
}

func (r *DatasetRepository) Delete(ctx context.Context, id int64) (int64, error) {
	const query = `DELETE FROM datasets_metadata WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return affected(cmd.RowsAffected())
}

func (r *DatasetRepository) CountByCategory(ctx context.Context) ([]models.GroupCount, error) {
	return groupCount(ctx, r.db, groupCountQuery{table: "datasets_metadata", column: "category"})
}

func (r *DatasetRepository) LargeBySource(ctx context.Context) ([]models.GroupCount, error) {
	return groupCount(ctx, r.db, groupCountQuery{
		table:  "datasets_metadata",
		column: "source",
		where:  "record_count >= $1",
		args:   []any{largeDatasetRecords},
	})
}

func (r *DatasetRepository) WideDatasets(ctx context.Context) ([]models.GroupCount, error) {
	const query = `
		SELECT dataset_name, column_count
		FROM datasets_metadata
		WHERE column_count > $1
		ORDER BY column_count DESC
	`

	rows, err := r.db.Query(ctx, query, wideDatasetColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]models.GroupCount, 0)
	for rows.Next() {
		var gc models.GroupCount
		if err := rows.Scan(&gc.Key, &gc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, gc)
	}
	return counts, rows.Err()
}

func scanDataset(row pgx.Row) (models.Dataset, error) {
	var dataset models.Dataset
	if err := row.Scan(
		&dataset.ID,
		&dataset.Name,
		&dataset.Category,
		&dataset.Source,
		&dataset.LastUpdated,
		&dataset.RecordCount,
		&dataset.ColumnCount,
		&dataset.FileSizeMB,
		&dataset.ObjectKey,
		&dataset.CreatedAt,
	); err != nil {
		return models.Dataset{}, err
	}
	return dataset, nil
}
