package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"intelplatform/internal/authz"
	"intelplatform/internal/config"
	"intelplatform/internal/middleware"
	"intelplatform/internal/models"
	"intelplatform/internal/service"
)

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

type Dependencies struct {
	Auth      *service.AuthService
	Analysis  *service.AnalysisService
	Files     *service.DatasetFileService
	Incidents IncidentStore
	Datasets  DatasetStore
	Tickets   TicketStore
	Checks    map[string]HealthCheck
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	auth      *service.AuthService
	analysis  *service.AnalysisService
	files     *service.DatasetFileService
	incidents IncidentStore
	datasets  DatasetStore
	tickets   TicketStore
	checks    map[string]HealthCheck
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Dependencies) HandlerSet {
	return HandlerSet{
		log:       log,
		cfg:       cfg,
		auth:      deps.Auth,
		analysis:  deps.Analysis,
		files:     deps.Files,
		incidents: deps.Incidents,
		datasets:  deps.Datasets,
		tickets:   deps.Tickets,
		checks:    deps.Checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	authed := middleware.Auth(h.auth, h.cfg.Security.SessionCookie)
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.POST("/password-strength", h.PasswordStrength)

		protected := v1.Group("/auth")
		protected.Use(authed)
		protected.POST("/logout", h.Logout)
		protected.GET("/me", h.Me)
		protected.GET("/sessions", h.ListSessions)
		protected.POST("/password", h.ChangePassword)
	}

	admin := v1.Group("/admin")
	admin.Use(authed, middleware.RequireCapability(authz.ActionManageUsers, ""))
	{
		admin.GET("/users", h.AdminListUsers)
		admin.PUT("/users/:username/role", h.AdminUpdateRole)
		admin.PUT("/users/:username/password", h.AdminResetPassword)
		admin.DELETE("/users/:username", h.AdminDeleteUser)
		admin.POST("/users/:username/unlock", h.AdminUnlockUser)
		admin.POST("/users/import", h.AdminImportUsers)
	}

	incidents := v1.Group("/incidents")
	incidents.Use(authed)
	h.registerRecords(incidents, models.DomainCybersecurity, recordRoutes{
		list: h.ListIncidents, get: h.GetIncident, create: h.CreateIncident,
		update: h.UpdateIncident, remove: h.DeleteIncident,
	})
	incidents.PUT("/:id/status", middleware.RequireCapability(authz.ActionUpdate, models.DomainCybersecurity), h.UpdateIncidentStatus)

	datasets := v1.Group("/datasets")
	datasets.Use(authed)
	h.registerRecords(datasets, models.DomainDataScience, recordRoutes{
		list: h.ListDatasets, get: h.GetDataset, create: h.CreateDataset,
		update: h.UpdateDataset, remove: h.DeleteDataset,
	})
	datasets.PUT("/:id/records", middleware.RequireCapability(authz.ActionUpdate, models.DomainDataScience), h.UpdateDatasetRecordCount)
	datasets.POST("/:id/file", middleware.RequireCapability(authz.ActionUpdate, models.DomainDataScience), h.UploadDatasetFile)

	tickets := v1.Group("/tickets")
	tickets.Use(authed)
	h.registerRecords(tickets, models.DomainITOperations, recordRoutes{
		list: h.ListTickets, get: h.GetTicket, create: h.CreateTicket,
		update: h.UpdateTicket, remove: h.DeleteTicket,
	})
	tickets.PUT("/:id/status", middleware.RequireCapability(authz.ActionUpdate, models.DomainITOperations), h.UpdateTicketStatus)

	analyzed := v1.Group("")
	analyzed.Use(authed)
	{
		analyzed.POST("/analysis/:domain/:id", h.AnalyzeRecord)
		analyzed.GET("/analysis/:domain/:id/stream", h.StreamAnalysis)
		analyzed.POST("/analysis/:domain/summary/:name", h.SummarizeStats)
		analyzed.GET("/analyses/:id", h.GetAnalysis)
		analyzed.POST("/assistant/:domain/chat", h.AssistantChat)
	}
}

type recordRoutes struct {
	list, get, create, update, remove gin.HandlerFunc
}

func (h HandlerSet) registerRecords(group *gin.RouterGroup, domain models.Domain, routes recordRoutes) {
	group.GET("", middleware.RequireCapability(authz.ActionRead, domain), routes.list)
	group.GET("/stats/:name", middleware.RequireCapability(authz.ActionRead, domain), h.recordStats(domain))
	group.GET("/:id", middleware.RequireCapability(authz.ActionRead, domain), routes.get)
	group.POST("", middleware.RequireCapability(authz.ActionCreate, domain), routes.create)
	group.PUT("/:id", middleware.RequireCapability(authz.ActionUpdate, domain), routes.update)
	group.DELETE("/:id", middleware.RequireCapability(authz.ActionDelete, domain), routes.remove)
}
