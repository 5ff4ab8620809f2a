package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"intelplatform/internal/models"
	"intelplatform/internal/repository"
)

type ticketRequest struct {
	Priority     string `json:"priority" binding:"required,max=20"`
	Status       string `json:"status" binding:"required,max=20"`
	Category     string `json:"category" binding:"max=100"`
	Subject      string `json:"subject" binding:"max=200"`
	Description  string `json:"description" binding:"max=4000"`
	CreatedDate  string `json:"createdDate" binding:"omitempty,datetime=2006-01-02"`
	ResolvedDate string `json:"resolvedDate" binding:"omitempty,datetime=2006-01-02"`
	AssignedTo   string `json:"assignedTo" binding:"max=100"`
}

func (r ticketRequest) model(id int64) models.Ticket {
	return models.Ticket{
		ID:           id,
		Priority:     r.Priority,
		Status:       r.Status,
		Category:     r.Category,
		Subject:      r.Subject,
		Description:  r.Description,
		CreatedDate:  r.CreatedDate,
		ResolvedDate: r.ResolvedDate,
		AssignedTo:   r.AssignedTo,
	}
}

type ticketResponse struct {
	ID           int64     `json:"id"`
	Priority     string    `json:"priority"`
	Status       string    `json:"status"`
	Category     string    `json:"category"`
	Subject      string    `json:"subject"`
	Description  string    `json:"description"`
	CreatedDate  string    `json:"createdDate"`
	ResolvedDate string    `json:"resolvedDate"`
	AssignedTo   string    `json:"assignedTo"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newTicketResponse(t models.Ticket) ticketResponse {
	return ticketResponse{
		ID:           t.ID,
		Priority:     t.Priority,
		Status:       t.Status,
		Category:     t.Category,
		Subject:      t.Subject,
		Description:  t.Description,
		CreatedDate:  t.CreatedDate,
		ResolvedDate: t.ResolvedDate,
		AssignedTo:   t.AssignedTo,
		CreatedAt:    t.CreatedAt,
	}
}

// ListTickets supports view=open and view=urgent shortcuts next to the
// column filters.
func (h HandlerSet) ListTickets(c *gin.Context) {
	var (
		tickets []models.Ticket
		err     error
	)
	switch c.Query("view") {
	case "open":
		tickets, err = h.tickets.Open(c.Request.Context())
	case "urgent":
		tickets, err = h.tickets.HighOrCritical(c.Request.Context())
	case "":
		limit, offset := page(c)
		tickets, err = h.tickets.List(c.Request.Context(), repository.TicketFilter{
			Priority:   c.Query("priority"),
			Status:     c.Query("status"),
			Category:   c.Query("category"),
			AssignedTo: c.Query("assignedTo"),
			Limit:      limit,
			Offset:     offset,
		})
	default:
		fail(c, http.StatusBadRequest, "invalid_view", "view must be open or urgent.")
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, newTicketResponse(t))
	}
	succeed(c, http.StatusOK, "", gin.H{"items": items})
}

func (h HandlerSet) GetTicket(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ticket, err := h.tickets.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusOK, "", gin.H{"item": newTicketResponse(ticket)})
}

func (h HandlerSet) CreateTicket(c *gin.Context) {
	var req ticketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.CreatedDate == "" {
		req.CreatedDate = time.Now().Format(time.DateOnly)
	}

	id, err := h.tickets.Create(c.Request.Context(), req.model(0))
	if err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusCreated, "Ticket created.", gin.H{"id": id})
}

func (h HandlerSet) UpdateTicket(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ticketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rows, err := h.tickets.Update(c.Request.Context(), req.model(id))
	if err != nil {
		h.writeError(c, err)
		return
	}
	updated(c, rows)
}

func (h HandlerSet) UpdateTicketStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rows, err := h.tickets.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	updated(c, rows)
}

func (h HandlerSet) DeleteTicket(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rows, err := h.tickets.Delete(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	deleted(c, rows)
}
