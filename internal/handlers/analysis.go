package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"intelplatform/internal/analysis"
	"intelplatform/internal/authz"
	"intelplatform/internal/middleware"
	"intelplatform/internal/models"
)

var domainAliases = map[string]models.Domain{
	"incidents": models.DomainCybersecurity,
	"datasets":  models.DomainDataScience,
	"tickets":   models.DomainITOperations,
}

// parseDomain accepts a domain name or its record collection name and checks
// the caller may analyze it.
func parseDomain(c *gin.Context) (models.Domain, bool) {
	raw := c.Param("domain")
	domain := models.Domain(raw)
	if alias, ok := domainAliases[raw]; ok {
		domain = alias
	}
	if !domain.Valid() {
		fail(c, http.StatusNotFound, "invalid_domain", "Unknown domain "+strconv.Quote(raw)+".")
		return "", false
	}

	user, ok := middleware.CurrentUser(c)
	if !ok || !authz.CanUser(user, authz.ActionAnalyze, domain) {
		fail(c, http.StatusForbidden, "forbidden", "You are not allowed to analyze "+domain.Label()+" records.")
		return "", false
	}
	return domain, true
}

type analysisResponse struct {
	ID          string    `json:"id"`
	Domain      string    `json:"domain"`
	RecordID    int64     `json:"recordId"`
	RequestedBy string    `json:"requestedBy"`
	Status      string    `json:"status"`
	Result      string    `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newAnalysisResponse(a models.Analysis) analysisResponse {
	return analysisResponse{
		ID:          a.ID,
		Domain:      string(a.Domain),
		RecordID:    a.RecordID,
		RequestedBy: a.RequestedBy,
		Status:      string(a.Status),
		Result:      a.Result,
		Error:       a.Error,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// AnalyzeRecord answers synchronously unless async=true, in which case the
// job is queued for the worker and 202 is returned with its id.
func (h HandlerSet) AnalyzeRecord(c *gin.Context) {
	domain, ok := parseDomain(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if c.Query("async") == "true" {
		user, _ := middleware.CurrentUser(c)
		job, err := h.analysis.Enqueue(c.Request.Context(), domain, id, user.Username)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.Header("Location", "/api/v1/analyses/"+job.ID)
		succeed(c, http.StatusAccepted, "Analysis queued.", gin.H{"analysis": newAnalysisResponse(job)})
		return
	}

	result, err := h.analysis.AnalyzeRecord(c.Request.Context(), domain, id)
	if err != nil {
		h.writeLLMError(c, err)
		return
	}
	succeed(c, http.StatusOK, "", gin.H{"analysis": result})
}

// StreamAnalysis relays the model output as server-sent "chunk" events and
// closes with "done" or "error".
func (h HandlerSet) StreamAnalysis(c *gin.Context) {
	domain, ok := parseDomain(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	h.stream(c, func(onChunk func(string) error) error {
		return h.analysis.StreamRecord(c.Request.Context(), domain, id, onChunk)
	})
}

func (h HandlerSet) GetAnalysis(c *gin.Context) {
	job, err := h.analysis.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	user, _ := middleware.CurrentUser(c)
	if job.RequestedBy != user.Username && user.Role != models.UserRoleAdmin {
		fail(c, http.StatusNotFound, "analysis_not_found", "Analysis not found.")
		return
	}
	succeed(c, http.StatusOK, "", gin.H{"analysis": newAnalysisResponse(job)})
}

// SummarizeStats runs a named dashboard aggregate and asks the model to
// read it.
func (h HandlerSet) SummarizeStats(c *gin.Context) {
	domain, ok := parseDomain(c)
	if !ok {
		return
	}
	title, counts, ok := h.runStat(c, domain)
	if !ok {
		return
	}

	summary, err := h.analysis.Summarize(c.Request.Context(), domain, title, counts)
	if err != nil {
		h.writeLLMError(c, err)
		return
	}
	succeed(c, http.StatusOK, "", gin.H{"title": title, "counts": counts, "summary": summary})
}

type chatRequest struct {
	Messages []analysis.Message `json:"messages" binding:"required,min=1,max=50,dive"`
}

func (h HandlerSet) AssistantChat(c *gin.Context) {
	domain, ok := parseDomain(c)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	hasUser := false
	for _, m := range req.Messages {
		if m.Role == analysis.RoleUser && m.Content != "" {
			hasUser = true
			break
		}
	}
	if !hasUser {
		fail(c, http.StatusBadRequest, "empty_chat", "Send at least one user message.")
		return
	}

	h.stream(c, func(onChunk func(string) error) error {
		return h.analysis.Chat(c.Request.Context(), domain, req.Messages, onChunk)
	})
}

// stream writes SSE events from run. Errors before the first chunk are
// reported as a normal JSON error response.
func (h HandlerSet) stream(c *gin.Context, run func(onChunk func(string) error) error) {
	started := false
	err := run(func(chunk string) error {
		if !started {
			started = true
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Status(http.StatusOK)
		}
		c.SSEvent("chunk", chunk)
		c.Writer.Flush()
		return c.Request.Context().Err()
	})

	if !started {
		if err != nil {
			h.writeLLMError(c, err)
			return
		}
		c.Header("Content-Type", "text/event-stream")
		c.Status(http.StatusOK)
	}
	if err != nil {
		if c.Request.Context().Err() != nil {
			return
		}
		h.log.Warn().Err(err).Msg("stream interrupted")
		c.SSEvent("error", "AI service error")
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", "")
	c.Writer.Flush()
}

// writeLLMError maps model failures to 502 unless a sentinel is known.
func (h HandlerSet) writeLLMError(c *gin.Context, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			h.writeError(c, err)
			return
		}
	}
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("llm request failed")
	fail(c, http.StatusBadGateway, "llm_failed", "AI service error. Please try again later.")
}
