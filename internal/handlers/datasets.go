package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"intelplatform/internal/models"
	"intelplatform/internal/repository"
	"intelplatform/internal/service"
)

type datasetRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Category    string  `json:"category" binding:"max=100"`
	Source      string  `json:"source" binding:"max=100"`
	LastUpdated string  `json:"lastUpdated" binding:"omitempty,datetime=2006-01-02"`
	RecordCount int64   `json:"recordCount" binding:"gte=0"`
	ColumnCount int64   `json:"columnCount" binding:"gte=0"`
	FileSizeMB  float64 `json:"fileSizeMb" binding:"gte=0"`
}

func (r datasetRequest) model(id int64) models.Dataset {
	return models.Dataset{
		ID:          id,
		Name:        r.Name,
		Category:    r.Category,
		Source:      r.Source,
		LastUpdated: r.LastUpdated,
		RecordCount: r.RecordCount,
		ColumnCount: r.ColumnCount,
		FileSizeMB:  r.FileSizeMB,
	}
}

type datasetResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Source      string    `json:"source"`
	LastUpdated string    `json:"lastUpdated"`
	RecordCount int64     `json:"recordCount"`
	ColumnCount int64     `json:"columnCount"`
	FileSizeMB  float64   `json:"fileSizeMb"`
	HasFile     bool      `json:"hasFile"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newDatasetResponse(ds models.Dataset) datasetResponse {
	return datasetResponse{
		ID:          ds.ID,
		Name:        ds.Name,
		Category:    ds.Category,
		Source:      ds.Source,
		LastUpdated: ds.LastUpdated,
		RecordCount: ds.RecordCount,
		ColumnCount: ds.ColumnCount,
		FileSizeMB:  ds.FileSizeMB,
		HasFile:     ds.ObjectKey != "",
		CreatedAt:   ds.CreatedAt,
	}
}

func (h HandlerSet) ListDatasets(c *gin.Context) {
	limit, offset := page(c)
	datasets, err := h.datasets.List(c.Request.Context(), repository.DatasetFilter{
		Category: c.Query("category"),
		Source:   c.Query("source"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]datasetResponse, 0, len(datasets))
	for _, ds := range datasets {
		items = append(items, newDatasetResponse(ds))
	}
	succeed(c, http.StatusOK, "", gin.H{"items": items})
}

func (h HandlerSet) GetDataset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	dataset, err := h.datasets.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusOK, "", gin.H{"item": newDatasetResponse(dataset)})
}

func (h HandlerSet) CreateDataset(c *gin.Context) {
	var req datasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.LastUpdated == "" {
		req.LastUpdated = time.Now().Format(time.DateOnly)
	}

	id, err := h.datasets.Create(c.Request.Context(), req.model(0))
	if err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusCreated, "Dataset created.", gin.H{"id": id})
}

func (h HandlerSet) UpdateDataset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req datasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.LastUpdated == "" {
		req.LastUpdated = time.Now().Format(time.DateOnly)
	}

	rows, err := h.datasets.Update(c.Request.Context(), req.model(id))
	if err != nil {
		h.writeError(c, err)
		return
	}
	updated(c, rows)
}

type recordCountRequest struct {
	RecordCount *int64 `json:"recordCount" binding:"required,gte=0"`
}

func (h HandlerSet) UpdateDatasetRecordCount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req recordCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rows, err := h.datasets.UpdateRecordCount(c.Request.Context(), id, *req.RecordCount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	updated(c, rows)
}

func (h HandlerSet) DeleteDataset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rows, err := h.datasets.Delete(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	deleted(c, rows)
}

func (h HandlerSet) UploadDatasetFile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if h.files == nil {
		fail(c, http.StatusServiceUnavailable, "storage_unavailable", "File storage is not configured.")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "file_required", "Attach the dataset in the \"file\" field.")
		return
	}
	defer file.Close()

	dataset, err := h.files.Upload(c.Request.Context(), service.UploadInput{
		DatasetID: id,
		File:      file,
		Header:    header,
	})
	if err != nil {
		h.log.Error().Err(err).Int64("dataset_id", id).Msg("dataset upload failed")
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusOK, "Dataset file uploaded.", gin.H{"item": newDatasetResponse(dataset)})
}
