package requests

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

// Handler handles HTTP requests for the request workflow
type Handler struct {
	coordinator *Coordinator
	logger      *zap.Logger
}

func NewHandler(coordinator *Coordinator, logger *zap.Logger) *Handler {
	return &Handler{coordinator: coordinator, logger: logger}
}

// RegisterRoutes registers request and discussion routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authn *auth.Middleware) {
	reqs := router.Group("/requests", authn.RequireActor())
	{
		reqs.POST("", h.createRequest)
		reqs.GET("", h.listRequests)
		reqs.GET("/:id", h.getRequest)
		reqs.GET("/:id/history", h.getHistory)
		reqs.POST("/:id/assign", h.assign)
		reqs.POST("/:id/transition", h.transition)
		reqs.GET("/:id/discussions", h.listDiscussions)
		reqs.POST("/:id/discussions", h.openDiscussion)
	}

	router.POST("/discussions/:id/review", authn.RequireActor(), h.review)
}

func (h *Handler) createRequest(c *gin.Context) {
	var in CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor, _ := auth.ActorFrom(c)

	req, err := h.coordinator.CreateRequest(c.Request.Context(), in, actor)
	if err != nil {
		h.fail(c, "Failed to create request", err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handler) listRequests(c *gin.Context) {
	filter := RequestFilter{Limit: 50}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		filter.Offset = v
	}
	if status := c.Query("status"); status != "" {
		s := workflows.RequestStatus(status)
		filter.Status = &s
	}
	if raw := c.Query("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
			return
		}
		filter.ProjectID = &id
	}
	if raw := c.Query("assignee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignee_id"})
			return
		}
		filter.AssigneeID = &id
	}

	reqs, err := h.coordinator.ListRequests(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "Failed to list requests", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs, "count": len(reqs)})
}

func (h *Handler) getRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	req, err := h.coordinator.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get request", err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) getHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	history, err := h.coordinator.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get request history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// assign handles POST /api/v1/requests/:id/assign
func (h *Handler) assign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in AssignInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.RequestID = id
	actor, _ := auth.ActorFrom(c)

	req, err := h.coordinator.AssignEngineer(c.Request.Context(), in, actor)
	if err != nil {
		h.fail(c, "Failed to assign engineer", err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// transition handles POST /api/v1/requests/:id/transition
func (h *Handler) transition(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in TransitionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := workflows.ParseRequestStatus(string(in.ToStatus)); err != nil {
		h.fail(c, "Invalid target status", err)
		return
	}
	in.RequestID = id
	actor, _ := auth.ActorFrom(c)

	req, err := h.coordinator.TransitionRequest(c.Request.Context(), in, actor)
	if err != nil {
		h.fail(c, "Failed to transition request", err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) listDiscussions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ds, err := h.coordinator.ListDiscussions(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to list discussions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discussions": ds})
}

// openDiscussion handles POST /api/v1/requests/:id/discussions
func (h *Handler) openDiscussion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in OpenDiscussionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.RequestID = id
	actor, _ := auth.ActorFrom(c)

	d, err := h.coordinator.CreateDiscussionRequest(c.Request.Context(), in, actor)
	if err != nil {
		h.fail(c, "Failed to open discussion", err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// review handles POST /api/v1/discussions/:id/review
func (h *Handler) review(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.DiscussionID = id
	actor, _ := auth.ActorFrom(c)

	d, err := h.coordinator.ReviewDiscussionRequest(c.Request.Context(), in, actor)
	if err != nil {
		h.fail(c, "Failed to review discussion", err)
		return
	}
	c.JSON(http.StatusOK, d)
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
