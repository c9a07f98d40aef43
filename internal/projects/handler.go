package projects

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

// Handler handles HTTP requests for projects, their lifecycle and their hours
type Handler struct {
	service ProjectService
	engine  *Engine
	ledger  *Ledger
	auditor *LedgerAuditor
	logger  *zap.Logger
}

func NewHandler(service ProjectService, engine *Engine, ledger *Ledger, auditor *LedgerAuditor, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		engine:  engine,
		ledger:  ledger,
		auditor: auditor,
		logger:  logger,
	}
}

// RegisterRoutes registers project routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authn *auth.Middleware) {
	projects := router.Group("/projects", authn.RequireActor())
	{
		projects.POST("", h.createProject)
		projects.GET("", h.listProjects)
		projects.POST("/rollover", h.requireManager, h.rollover)
		projects.GET("/:id", h.getProject)
		projects.PUT("/:id", h.updateProject)
		projects.POST("/:id/transition", h.requireManager, h.transition)
		projects.GET("/:id/history", h.getHistory)
		projects.GET("/:id/ledger", h.getLedger)

		hours := projects.Group("/:id/hours", h.requireManager)
		hours.POST("/allocate", h.changeHours(h.ledger.Allocate))
		hours.POST("/deallocate", h.changeHours(h.ledger.Deallocate))
		hours.POST("/adjust", h.changeHours(h.ledger.Adjust))
		hours.POST("/extend", h.changeHours(h.ledger.Extend))
	}

	if h.auditor != nil {
		router.GET("/admin/ledger/audit", authn.RequireActor(), h.requireManager, h.audit)
	}
}

type transitionBody struct {
	ToStatus           string         `json:"to_status" binding:"required"`
	Reason             string         `json:"reason"`
	CompletionNotes    string         `json:"completion_notes"`
	CancellationReason string         `json:"cancellation_reason"`
	Metadata           map[string]any `json:"metadata"`
}

type hoursBody struct {
	Hours     float64    `json:"hours"`
	RequestID *uuid.UUID `json:"request_id"`
	Notes     string     `json:"notes"`
}

type rolloverBody struct {
	FromProjectID uuid.UUID `json:"from_project_id" binding:"required"`
	ToProjectID   uuid.UUID `json:"to_project_id" binding:"required"`
	Hours         float64   `json:"hours"`
	Notes         string    `json:"notes"`
}

// createProject handles POST /api/v1/projects
func (h *Handler) createProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor, _ := auth.ActorFrom(c)

	project, err := h.service.CreateProject(c.Request.Context(), req, actor)
	if err != nil {
		h.fail(c, "Failed to create project", err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// listProjects handles GET /api/v1/projects
func (h *Handler) listProjects(c *gin.Context) {
	filter := ProjectFilter{
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	if status := c.Query("status"); status != "" {
		s := workflows.ProjectStatus(status)
		filter.Status = &s
	}
	if category := c.Query("category"); category != "" {
		filter.Category = &category
	}

	projects, err := h.service.ListProjects(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "Failed to list projects", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects, "count": len(projects)})
}

func (h *Handler) getProject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	project, err := h.service.GetProject(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get project", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) updateProject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor, _ := auth.ActorFrom(c)

	project, err := h.service.UpdateProject(c.Request.Context(), id, req, actor)
	if err != nil {
		h.fail(c, "Failed to update project", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// transition handles POST /api/v1/projects/:id/transition
func (h *Handler) transition(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := workflows.ParseProjectStatus(body.ToStatus)
	if err != nil {
		h.fail(c, "Invalid target status", err)
		return
	}
	actor, _ := auth.ActorFrom(c)

	project, err := h.engine.TransitionProjectStatus(c.Request.Context(), TransitionInput{
		ProjectID:          id,
		ToStatus:           to,
		Reason:             body.Reason,
		Actor:              actor,
		CompletionNotes:    body.CompletionNotes,
		CancellationReason: body.CancellationReason,
		Metadata:           body.Metadata,
	})
	if err != nil {
		h.fail(c, "Failed to transition project", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) getHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	history, err := h.service.GetStatusHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get status history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *Handler) getLedger(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entries, err := h.ledger.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get ledger", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

func (h *Handler) changeHours(op func(ctx context.Context, c HourChange) (*Project, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var body hoursBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		actor, _ := auth.ActorFrom(c)

		project, err := op(c.Request.Context(), HourChange{
			ProjectID: id,
			RequestID: body.RequestID,
			Hours:     body.Hours,
			Notes:     body.Notes,
			Actor:     actor,
		})
		if err != nil {
			h.fail(c, "Failed to change project hours", err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

// rollover handles POST /api/v1/projects/rollover
func (h *Handler) rollover(c *gin.Context) {
	var body rolloverBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor, _ := auth.ActorFrom(c)

	from, to, err := h.ledger.Rollover(c.Request.Context(), RolloverInput{
		FromProjectID: body.FromProjectID,
		ToProjectID:   body.ToProjectID,
		Hours:         body.Hours,
		Notes:         body.Notes,
		Actor:         actor,
	})
	if err != nil {
		h.fail(c, "Failed to roll over hours", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to})
}

// audit handles GET /api/v1/admin/ledger/audit
func (h *Handler) audit(c *gin.Context) {
	report, err := h.auditor.Reconcile(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to audit ledger", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) requireManager(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)
	if !actor.IsManager() {
		h.fail(c, "Forbidden", workflows.NewError(workflows.KindValidation, workflows.CodeForbidden, "manager role required"))
		c.Abort()
		return
	}
	c.Next()
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := workflows.HTTPStatus(err)
	if be, ok := workflows.AsError(err); ok {
		h.logger.Debug(msg, zap.String("code", string(be.Code)), zap.Error(err))
		c.JSON(status, gin.H{"error": be})
		return
	}
	h.logger.Error(msg, zap.Error(err))
	c.JSON(status, gin.H{"error": gin.H{"code": "INTERNAL", "message": "internal error"}})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
