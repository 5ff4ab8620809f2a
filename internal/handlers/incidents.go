package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"intelplatform/internal/models"
	"intelplatform/internal/repository"
)

type incidentRequest struct {
	Date         string `json:"date" binding:"required,datetime=2006-01-02"`
	IncidentType string `json:"incidentType" binding:"required,max=100"`
	Severity     string `json:"severity" binding:"required,max=20"`
	Status       string `json:"status" binding:"required,max=20"`
	Description  string `json:"description" binding:"max=4000"`
	ReportedBy   string `json:"reportedBy" binding:"max=100"`
}

func (r incidentRequest) model(id int64) models.Incident {
	return models.Incident{
		ID:           id,
		Date:         r.Date,
		IncidentType: r.IncidentType,
		Severity:     r.Severity,
		Status:       r.Status,
		Description:  r.Description,
		ReportedBy:   r.ReportedBy,
	}
}

type incidentResponse struct {
	ID           int64     `json:"id"`
	Date         string    `json:"date"`
	IncidentType string    `json:"incidentType"`
	Severity     string    `json:"severity"`
	Status       string    `json:"status"`
	Description  string    `json:"description"`
	ReportedBy   string    `json:"reportedBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newIncidentResponse(in models.Incident) incidentResponse {
	return incidentResponse{
		ID:           in.ID,
		Date:         in.Date,
		IncidentType: in.IncidentType,
		Severity:     in.Severity,
		Status:       in.Status,
		Description:  in.Description,
		ReportedBy:   in.ReportedBy,
		CreatedAt:    in.CreatedAt,
	}
}

func (h HandlerSet) ListIncidents(c *gin.Context) {
	limit, offset := page(c)
	incidents, err := h.incidents.List(c.Request.Context(), repository.IncidentFilter{
		Severity:     c.Query("severity"),
		Status:       c.Query("status"),
		IncidentType: c.Query("type"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]incidentResponse, 0, len(incidents))
	for _, in := range incidents {
		items = append(items, newIncidentResponse(in))
	}
	succeed(c, http.StatusOK, "", gin.H{"items": items})
}

func (h HandlerSet) GetIncident(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	incident, err := h.incidents.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusOK, "", gin.H{"item": newIncidentResponse(incident)})
}

func (h HandlerSet) CreateIncident(c *gin.Context) {
	var req incidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id, err := h.incidents.Create(c.Request.Context(), req.model(0))
	if err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusCreated, "Incident created.", gin.H{"id": id})
}

func (h HandlerSet) UpdateIncident(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req incidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rows, err := h.incidents.Update(c.Request.Context(), req.model(id))
	if err != nil {
		h.writeError(c, err)
		return
	}
	updated(c, rows)
}

func (h HandlerSet) UpdateIncidentStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rows, err := h.incidents.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	updated(c, rows)
}

func (h HandlerSet) DeleteIncident(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rows, err := h.incidents.Delete(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	deleted(c, rows)
}
