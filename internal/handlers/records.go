package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"intelplatform/internal/models"
	"intelplatform/internal/repository"
)

type IncidentStore interface {
	Create(ctx context.Context, incident models.Incident) (int64, error)
	GetByID(ctx context.Context, id int64) (models.Incident, error)
	List(ctx context.Context, filter repository.IncidentFilter) ([]models.Incident, error)
	Update(ctx context.Context, incident models.Incident) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status string) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	CountByType(ctx context.Context) ([]models.GroupCount, error)
	HighSeverityByStatus(ctx context.Context) ([]models.GroupCount, error)
	TypesWithMoreThan(ctx context.Context, minCount int) ([]models.GroupCount, error)
}

type DatasetStore interface {
	Create(ctx context.Context, dataset models.Dataset) (int64, error)
	GetByID(ctx context.Context, id int64) (models.Dataset, error)
	List(ctx context.Context, filter repository.DatasetFilter) ([]models.Dataset, error)
	Update(ctx context.Context, dataset models.Dataset) (int64, error)
	UpdateRecordCount(ctx context.Context, id int64, recordCount int64) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	CountByCategory(ctx context.Context) ([]models.GroupCount, error)
	LargeBySource(ctx context.Context) ([]models.GroupCount, error)
	WideDatasets(ctx context.Context) ([]models.GroupCount, error)
}

type TicketStore interface {
	Create(ctx context.Context, ticket models.Ticket) (int64, error)
	GetByID(ctx context.Context, id int64) (models.Ticket, error)
	List(ctx context.Context, filter repository.TicketFilter) ([]models.Ticket, error)
	Open(ctx context.Context) ([]models.Ticket, error)
	HighOrCritical(ctx context.Context) ([]models.Ticket, error)
	Update(ctx context.Context, ticket models.Ticket) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status string) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	CountByStatus(ctx context.Context) ([]models.GroupCount, error)
	CountByPriority(ctx context.Context) ([]models.GroupCount, error)
	CountByAssignee(ctx context.Context) ([]models.GroupCount, error)
	HighPriorityByAssignee(ctx context.Context) ([]models.GroupCount, error)
	CountByCreatedDate(ctx context.Context) ([]models.GroupCount, error)
	CategoriesWithMoreThan(ctx context.Context, minCount int) ([]models.GroupCount, error)
}

const defaultMinCount = 5

type statQuery struct {
	title string
	run   func(ctx context.Context, minCount int) ([]models.GroupCount, error)
}

func noMin(fn func(ctx context.Context) ([]models.GroupCount, error)) func(context.Context, int) ([]models.GroupCount, error) {
	return func(ctx context.Context, _ int) ([]models.GroupCount, error) { return fn(ctx) }
}

// statQueries lists the named dashboard aggregates per domain.
func (h HandlerSet) statQueries(domain models.Domain) map[string]statQuery {
	switch domain {
	case models.DomainCybersecurity:
		return map[string]statQuery{
			"by_type":                 {"Incidents by type", noMin(h.incidents.CountByType)},
			"high_severity_by_status": {"High severity incidents by status", noMin(h.incidents.HighSeverityByStatus)},
			"frequent_types":          {"Incident types above threshold", h.incidents.TypesWithMoreThan},
		}
	case models.DomainDataScience:
		return map[string]statQuery{
			"by_category":     {"Datasets by category", noMin(h.datasets.CountByCategory)},
			"large_by_source": {"Large datasets by source", noMin(h.datasets.LargeBySource)},
			"wide":            {"Column count of wide datasets", noMin(h.datasets.WideDatasets)},
		}
	case models.DomainITOperations:
		return map[string]statQuery{
			"by_status":                 {"Tickets by status", noMin(h.tickets.CountByStatus)},
			"by_priority":               {"Tickets by priority", noMin(h.tickets.CountByPriority)},
			"by_assignee":               {"Tickets by assignee", noMin(h.tickets.CountByAssignee)},
			"high_priority_by_assignee": {"High priority tickets by assignee", noMin(h.tickets.HighPriorityByAssignee)},
			"by_created_date":           {"Tickets created per day", noMin(h.tickets.CountByCreatedDate)},
			"frequent_categories":       {"Ticket categories above threshold", h.tickets.CategoriesWithMoreThan},
		}
	}
	return nil
}

// runStat resolves and runs the aggregate named in the :name parameter.
// It writes the error response itself and reports ok=false on failure.
func (h HandlerSet) runStat(c *gin.Context, domain models.Domain) (string, []models.GroupCount, bool) {
	query, found := h.statQueries(domain)[c.Param("name")]
	if !found {
		fail(c, http.StatusNotFound, "unknown_stat", "Unknown statistic "+strconv.Quote(c.Param("name"))+".")
		return "", nil, false
	}

	minCount := defaultMinCount
	if v := c.Query("min"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "invalid_min", "min must be a non-negative integer.")
			return "", nil, false
		}
		minCount = n
	}

	counts, err := query.run(c.Request.Context(), minCount)
	if err != nil {
		h.writeError(c, err)
		return "", nil, false
	}
	return query.title, counts, true
}

func (h HandlerSet) recordStats(domain models.Domain) gin.HandlerFunc {
	return func(c *gin.Context) {
		title, counts, ok := h.runStat(c, domain)
		if !ok {
			return
		}
		succeed(c, http.StatusOK, "", gin.H{"title": title, "counts": counts})
	}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func deleted(c *gin.Context, rows int64) {
	succeed(c, http.StatusOK, "Record deleted.", gin.H{"affected": rows})
}

func updated(c *gin.Context, rows int64) {
	succeed(c, http.StatusOK, "Record updated.", gin.H{"affected": rows})
}
