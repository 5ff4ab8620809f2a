package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelplatform/internal/datafile"
	"intelplatform/internal/models"
	"intelplatform/internal/repository"
)

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func newUpload(data []byte, contentType string) (multipart.File, *multipart.FileHeader) {
	header := &multipart.FileHeader{
		Filename: "upload",
		Header:   textproto.MIMEHeader{},
		Size:     int64(len(data)),
	}
	if contentType != "" {
		header.Header.Set("Content-Type", contentType)
	}
	return memFile{bytes.NewReader(data)}, header
}

type datasetFiles struct {
	dataset models.Dataset
	attach  error
}

func (d *datasetFiles) GetByID(_ context.Context, id int64) (models.Dataset, error) {
	if id != d.dataset.ID {
		return models.Dataset{}, repository.ErrRecordNotFound
	}
	return d.dataset, nil
}

func (d *datasetFiles) AttachFile(_ context.Context, id int64, key string, records, columns int64, sizeMB float64) (int64, error) {
	if d.attach != nil {
		return 0, d.attach
	}
	d.dataset.ObjectKey = key
	d.dataset.RecordCount = records
	d.dataset.ColumnCount = columns
	d.dataset.FileSizeMB = sizeMB
	return 1, nil
}

type memObjects struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memObjects) PutDataset(_ context.Context, key string, r io.Reader, _ int64, contentType string) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return int64(len(data)), nil
}

func (m *memObjects) RemoveDataset(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func TestDatasetUploadCSV(t *testing.T) {
	datasets := &datasetFiles{dataset: models.Dataset{ID: 7, Name: "hosts", ObjectKey: "old/key.csv"}}
	objects := newMemObjects()
	objects.objects["old/key.csv"] = []byte("a\n")
	svc := NewDatasetFileService(datasets, objects, 1<<20, zerolog.Nop())
	svc.now = newFakeClock().Now

	file, header := newUpload([]byte("host,cpu,mem\nweb-1,1,2\nweb-2,3,4\n"), "text/csv")
	got, err := svc.Upload(context.Background(), UploadInput{DatasetID: 7, File: file, Header: header})
	require.NoError(t, err)

	assert.EqualValues(t, 2, got.RecordCount)
	assert.EqualValues(t, 3, got.ColumnCount)
	assert.Contains(t, got.ObjectKey, "2024/03/01/dataset-7-")
	assert.Equal(t, "text/csv", objects.types[got.ObjectKey])
	assert.NotContains(t, objects.objects, "old/key.csv", "previous object removed")
	assert.Greater(t, got.FileSizeMB, 0.0)
}

func TestDatasetUploadRejects(t *testing.T) {
	ctx := context.Background()
	datasets := &datasetFiles{dataset: models.Dataset{ID: 1}}
	objects := newMemObjects()
	svc := NewDatasetFileService(datasets, objects, 16, zerolog.Nop())

	file, header := newUpload([]byte(`[{"a":1}]`), "image/png")
	_, err := svc.Upload(ctx, UploadInput{DatasetID: 1, File: file, Header: header})
	assert.ErrorIs(t, err, ErrFileMismatch)

	file, header = newUpload(bytes.Repeat([]byte("a,b\n"), 10), "text/csv")
	_, err = svc.Upload(ctx, UploadInput{DatasetID: 1, File: file, Header: header})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	file, header = newUpload([]byte("a,b\n"), "")
	_, err = svc.Upload(ctx, UploadInput{DatasetID: 2, File: file, Header: header})
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)

	file, header = newUpload(nil, "")
	_, err = svc.Upload(ctx, UploadInput{DatasetID: 1, File: file, Header: header})
	assert.ErrorIs(t, err, datafile.ErrEmptyFile)

	assert.Empty(t, objects.objects)
}

func TestDatasetUploadCleansUpWhenRowUpdateFails(t *testing.T) {
	datasets := &datasetFiles{dataset: models.Dataset{ID: 1}, attach: errors.New("db down")}
	objects := newMemObjects()
	svc := NewDatasetFileService(datasets, objects, 1<<20, zerolog.Nop())

	file, header := newUpload([]byte(`[{"a":1},{"b":2}]`), "application/json")
	_, err := svc.Upload(context.Background(), UploadInput{DatasetID: 1, File: file, Header: header})
	require.Error(t, err)
	assert.Empty(t, objects.objects)
}
