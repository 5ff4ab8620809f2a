package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"time"

	"github.com/rs/zerolog"

	"intelplatform/internal/datafile"
	"intelplatform/internal/ids"
	"intelplatform/internal/models"
)

var (
	ErrFileTooLarge    = errors.New("dataset file too large")
	ErrFileMismatch    = errors.New("declared content type does not match file")
	ErrUnsupportedFile = datafile.ErrUnknownType
)

type DatasetFileStore interface {
	GetByID(ctx context.Context, id int64) (models.Dataset, error)
	AttachFile(ctx context.Context, id int64, objectKey string, records, columns int64, sizeMB float64) (int64, error)
}

type ObjectPutter interface {
	PutDataset(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) (int64, error)
	RemoveDataset(ctx context.Context, objectKey string) error
}

type DatasetFileService struct {
	datasets DatasetFileStore
	store    ObjectPutter
	maxBytes int64
	now      func() time.Time
	log      zerolog.Logger
}

func NewDatasetFileService(datasets DatasetFileStore, store ObjectPutter, maxBytes int64, log zerolog.Logger) *DatasetFileService {
	return &DatasetFileService{
		datasets: datasets,
		store:    store,
		maxBytes: maxBytes,
		now:      time.Now,
		log:      log,
	}
}

type UploadInput struct {
	DatasetID int64
	File      multipart.File
	Header    *multipart.FileHeader
}

// Upload stores a dataset file, measures it, and updates the dataset row.
// The previous object, if any, is removed once the row points at the new one.
func (s *DatasetFileService) Upload(ctx context.Context, input UploadInput) (models.Dataset, error) {
	if input.File == nil || input.Header == nil {
		return models.Dataset{}, errors.New("invalid file payload")
	}

	dataset, err := s.datasets.GetByID(ctx, input.DatasetID)
	if err != nil {
		return models.Dataset{}, err
	}

	limit := s.maxBytes
	if limit <= 0 {
		limit = 50 << 20
	}
	data, err := io.ReadAll(io.LimitReader(input.File, limit+1))
	if err != nil {
		return models.Dataset{}, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > limit {
		return models.Dataset{}, ErrFileTooLarge
	}
	if len(data) == 0 {
		return models.Dataset{}, datafile.ErrEmptyFile
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	result, err := datafile.DetectHead(head)
	if err != nil {
		return models.Dataset{}, err
	}
	declared := datafile.MimeTypeFromHeader(input.Header.Header)
	if !result.Agrees(declared) {
		return models.Dataset{}, fmt.Errorf("%w: declared %s, actual %s", ErrFileMismatch, declared, result.MIME)
	}

	shape, err := datafile.Inspect(result.Type, data)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("inspect %s: %w", result.Type, err)
	}

	objectKey := s.buildObjectKey(dataset.ID, result.Type)
	size, err := s.store.PutDataset(ctx, objectKey, bytes.NewReader(data), int64(len(data)), result.MIME)
	if err != nil {
		return models.Dataset{}, err
	}
	sizeMB := float64(size) / (1 << 20)

	if _, err := s.datasets.AttachFile(ctx, dataset.ID, objectKey, shape.Records, shape.Columns, sizeMB); err != nil {
		if rerr := s.store.RemoveDataset(ctx, objectKey); rerr != nil {
			s.log.Warn().Err(rerr).Str("object_key", objectKey).Msg("remove orphaned dataset object failed")
		}
		return models.Dataset{}, fmt.Errorf("save dataset file: %w", err)
	}

	if dataset.ObjectKey != "" && dataset.ObjectKey != objectKey {
		if err := s.store.RemoveDataset(ctx, dataset.ObjectKey); err != nil {
			s.log.Warn().Err(err).Str("object_key", dataset.ObjectKey).Msg("remove previous dataset object failed")
		}
	}

	s.log.Info().
		Int64("dataset_id", dataset.ID).
		Str("format", string(result.Type)).
		Int64("records", shape.Records).
		Int64("columns", shape.Columns).
		Msg("dataset file uploaded")

	return s.datasets.GetByID(ctx, dataset.ID)
}

func (s *DatasetFileService) buildObjectKey(datasetID int64, fileType datafile.FileType) string {
	datePrefix := s.now().UTC().Format("2006/01/02")
	return path.Join(datePrefix, fmt.Sprintf("dataset-%d-%s.%s", datasetID, ids.New(), fileType))
}
